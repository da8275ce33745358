package messaging

import "context"

type Repository interface {
	Create(ctx context.Context, m *Message) error
	// ListByConsultation returns the consultation's messages oldest first.
	ListByConsultation(ctx context.Context, consultationID string) ([]*Message, error)
	// MarkRead flips the read flag on unread messages not sent by readerID
	// and returns how many changed.
	MarkRead(ctx context.Context, consultationID, readerID string) (int, error)
}
