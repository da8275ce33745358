package consultation

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medilink/telehealth/internal/domain/identity"
	"github.com/medilink/telehealth/internal/platform/apperr"
)

// Directory is the slice of the account directory bookings depend on.
type Directory interface {
	Get(ctx context.Context, id string) (*identity.Account, error)
	UpdateRating(ctx context.Context, doctorID string, rating float64, total int) error
}

type Service struct {
	repo      Repository
	directory Directory
	now       func() time.Time
}

func NewService(repo Repository, directory Directory) *Service {
	return &Service{repo: repo, directory: directory, now: time.Now}
}

// Create books a slot with an available doctor and snapshots the doctor's
// fee onto the record.
//
// The overlap check and the insert are not atomic, so two concurrent
// bookings for the same slot can both succeed.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Consultation, error) {
	in.normalize()
	if in.PatientID == "" {
		return nil, apperr.Validation("patient id is required")
	}
	if in.DoctorID == "" {
		return nil, apperr.Validation("doctor_id is required")
	}
	if in.ScheduledAt.IsZero() {
		return nil, apperr.Validation("scheduled_at is required")
	}
	if !in.Type.Valid() {
		return nil, apperr.Validation("type must be chat, video, voice or in-person")
	}
	if in.PatientID == in.DoctorID {
		return nil, apperr.Validation("cannot book a consultation with yourself")
	}

	doctor, err := s.directory.Get(ctx, in.DoctorID)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && !doctor.IsDoctor()) {
		return nil, apperr.NotFound("doctor not found")
	}
	if err != nil {
		return nil, err
	}
	if !doctor.Available {
		return nil, apperr.DoctorUnavailable("doctor is not available for consultations")
	}

	at := in.ScheduledAt.UTC()
	existing, err := s.repo.ActiveForDoctorBetween(ctx, doctor.ID, at.Add(-SlotDuration), at.Add(SlotDuration))
	if err != nil {
		return nil, err
	}
	for _, other := range existing {
		if other.Status.Active() && other.Overlaps(at) {
			return nil, apperr.SchedulingConflict("doctor has a conflicting appointment at this time")
		}
	}

	now := s.now().UTC()
	c := &Consultation{
		ID:            uuid.NewString(),
		PatientID:     in.PatientID,
		DoctorID:      doctor.ID,
		Status:        StatusScheduled,
		Type:          in.Type,
		ScheduledAt:   at,
		Symptoms:      in.Symptoms,
		PaymentStatus: PaymentPending,
		Amount:        doctor.ConsultationFee,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Find loads a consultation without an access check. Callers that act on
// behalf of an account must check participation themselves.
func (s *Service) Find(ctx context.Context, id string) (*Consultation, error) {
	if id == "" {
		return nil, apperr.Validation("consultation id is required")
	}
	return s.repo.GetByID(ctx, id)
}

// Get returns a consultation the actor participates in. Admins may read any
// consultation.
func (s *Service) Get(ctx context.Context, id, actorID, role string) (*Consultation, error) {
	c, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != RoleAdmin && !c.IsParticipant(actorID) {
		return nil, apperr.Forbidden("not a participant of this consultation")
	}
	return c, nil
}

// Transition moves a consultation along the state machine. Moving to the
// current status re-applies the side effects, which are idempotent.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (*Consultation, error) {
	in.Status = Status(strings.ToLower(strings.TrimSpace(string(in.Status))))
	if !in.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", in.Status)
	}

	c, err := s.Find(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if !c.OnSide(in.ActorID, in.ActorRole) {
		return nil, apperr.Forbidden("not authorized to update this consultation")
	}
	if in.Status != c.Status && !c.Status.CanTransitionTo(in.Status) {
		return nil, apperr.InvalidState("cannot move consultation from %s to %s", c.Status, in.Status)
	}

	now := s.now().UTC()
	c.Status = in.Status
	switch in.Status {
	case StatusInProgress:
		if c.StartedAt == nil {
			c.StartedAt = &now
		}
	case StatusCompleted:
		if c.EndedAt == nil {
			c.EndedAt = &now
		}
		if c.StartedAt != nil && c.DurationMinutes == nil {
			minutes := durationMinutes(*c.StartedAt, *c.EndedAt)
			c.DurationMinutes = &minutes
		}
	}

	if in.Diagnosis != nil {
		c.Diagnosis = strings.TrimSpace(*in.Diagnosis)
	}
	if in.Notes != nil {
		c.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.FollowUpDate != nil {
		followUp := in.FollowUpDate.UTC()
		c.FollowUpDate = &followUp
	}
	if in.MeetingLink != nil {
		c.MeetingLink = strings.TrimSpace(*in.MeetingLink)
	}
	c.UpdatedAt = now

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func durationMinutes(started, ended time.Time) int {
	d := ended.Sub(started)
	if d < 0 {
		return 0
	}
	return int(math.Round(d.Minutes()))
}

// Cancel ends a consultation that has not started yet.
func (s *Service) Cancel(ctx context.Context, id, actorID, role string) (*Consultation, error) {
	c, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.OnSide(actorID, role) {
		return nil, apperr.Forbidden("not authorized to cancel this consultation")
	}
	if c.Status != StatusScheduled {
		return nil, apperr.InvalidState("only scheduled consultations can be cancelled, status is %s", c.Status)
	}
	c.Status = StatusCancelled
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Rate records the patient's rating and recomputes the doctor's aggregate
// from every completed and rated consultation.
func (s *Service) Rate(ctx context.Context, id, patientID string, rating int, review string) (*Consultation, error) {
	c, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if patientID == "" || c.PatientID != patientID {
		return nil, apperr.Forbidden("only the patient can rate this consultation")
	}
	if c.Status != StatusCompleted {
		return nil, apperr.InvalidState("only completed consultations can be rated, status is %s", c.Status)
	}
	if rating < 1 || rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}

	c.Rating = &rating
	c.Review = strings.TrimSpace(review)
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	ratings, err := s.repo.RatingsForDoctor(ctx, c.DoctorID)
	if err != nil {
		return nil, err
	}
	if err := s.directory.UpdateRating(ctx, c.DoctorID, averageRating(ratings), len(ratings)); err != nil {
		return nil, err
	}
	return c, nil
}

// averageRating is the mean of ratings rounded to one decimal place.
func averageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return math.Round(float64(sum)/float64(len(ratings))*10) / 10
}

// List returns the actor's consultations, newest scheduled first. Admins see
// every consultation.
func (s *Service) List(ctx context.Context, actorID, role string, status Status, limit, offset int) ([]*Consultation, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperr.Validation("unknown status %q", status)
	}
	f := ListFilter{Status: status}
	switch role {
	case RolePatient:
		f.PatientID = actorID
	case RoleDoctor:
		f.DoctorID = actorID
	case RoleAdmin:
	default:
		return nil, 0, apperr.Forbidden("role %q cannot list consultations", role)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// SweepNoShows marks scheduled consultations that never started within
// grace of their slot as no-show.
func (s *Service) SweepNoShows(ctx context.Context, now time.Time, grace time.Duration) (int, error) {
	now = now.UTC()
	return s.repo.MarkNoShows(ctx, now.Add(-grace), now)
}

// AttachPrescription links an issued prescription to its consultation.
func (s *Service) AttachPrescription(ctx context.Context, consultationID, prescriptionID string) error {
	if consultationID == "" || prescriptionID == "" {
		return apperr.Validation("consultation id and prescription id are required")
	}
	return s.repo.SetPrescription(ctx, consultationID, prescriptionID, s.now().UTC())
}
