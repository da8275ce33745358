package messaging

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/medilink/telehealth/internal/domain/consultation"
	"github.com/medilink/telehealth/internal/platform/apperr"
)

const maxContentLength = 4000

// Consultations resolves the consultation a message belongs to.
type Consultations interface {
	Find(ctx context.Context, id string) (*consultation.Consultation, error)
}

// Names resolves the display name shown next to a message.
type Names interface {
	DisplayName(ctx context.Context, accountID string) (string, error)
}

// Broadcaster delivers an event to every subscriber of a consultation room.
// Delivery is best effort.
type Broadcaster interface {
	BroadcastToConsultation(consultationID, event string, data interface{})
}

type Service struct {
	repo          Repository
	consultations Consultations
	names         Names
	broadcaster   Broadcaster
	now           func() time.Time
}

func NewService(repo Repository, consultations Consultations, names Names) *Service {
	return &Service{repo: repo, consultations: consultations, names: names, now: time.Now}
}

// SetBroadcaster attaches the realtime relay. The relay depends on the
// service for sendMessage, so it is wired after both exist.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// authorize loads the consultation and checks that accountID is on it.
func (s *Service) authorize(ctx context.Context, consultationID, accountID string) (*consultation.Consultation, error) {
	if consultationID == "" {
		return nil, apperr.Validation("consultation_id is required")
	}
	c, err := s.consultations.Find(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if !c.IsParticipant(accountID) {
		return nil, apperr.Forbidden("not a participant of this consultation")
	}
	return c, nil
}

// Send persists a message and then delivers it to the consultation room,
// including the sender's own connections.
func (s *Service) Send(ctx context.Context, in SendInput) (*Message, error) {
	in.normalize()
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Validation("content is required")
	}
	if utf8.RuneCountInString(in.Content) > maxContentLength {
		return nil, apperr.Validation("content must be at most %d characters", maxContentLength)
	}
	if !in.Kind.Valid() {
		return nil, apperr.Validation("kind must be text, image, file, audio or video")
	}
	if _, err := s.authorize(ctx, in.ConsultationID, in.SenderID); err != nil {
		return nil, err
	}

	m := &Message{
		ID:             uuid.NewString(),
		ConsultationID: in.ConsultationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Kind:           in.Kind,
		FileURL:        in.FileURL,
		Timestamp:      s.now().UTC(),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	s.resolveNames(ctx, []*Message{m})
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToConsultation(m.ConsultationID, EventReceiveMessage, m)
	}
	return m, nil
}

// History returns a consultation's messages oldest first.
func (s *Service) History(ctx context.Context, consultationID, readerID string) ([]*Message, error) {
	if _, err := s.authorize(ctx, consultationID, readerID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListByConsultation(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	s.resolveNames(ctx, msgs)
	return msgs, nil
}

// resolveNames fills SenderName, looking each sender up once. Unknown senders
// are left blank.
func (s *Service) resolveNames(ctx context.Context, msgs []*Message) {
	names := make(map[string]string)
	for _, m := range msgs {
		name, ok := names[m.SenderID]
		if !ok {
			name, _ = s.names.DisplayName(ctx, m.SenderID)
			names[m.SenderID] = name
		}
		m.SenderName = name
	}
}

// MarkRead marks every message the reader received in a consultation as read.
func (s *Service) MarkRead(ctx context.Context, consultationID, readerID string) (int, error) {
	if _, err := s.authorize(ctx, consultationID, readerID); err != nil {
		return 0, err
	}
	return s.repo.MarkRead(ctx, consultationID, readerID)
}
