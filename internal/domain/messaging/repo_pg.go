package messaging

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink/telehealth/internal/platform/db"
)

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &messageRepoPG{pool: pool}
}

func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO messages (id, consultation_id, sender_id, content, kind, file_url, is_read, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.ConsultationID, m.SenderID, m.Content, string(m.Kind), db.NullIfEmpty(m.FileURL), m.Read, m.Timestamp)
	return db.TranslateError(err, "message")
}

func (r *messageRepoPG) ListByConsultation(ctx context.Context, consultationID string) ([]*Message, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, consultation_id, sender_id, content, kind, COALESCE(file_url, ''), is_read, sent_at
		FROM messages WHERE consultation_id = $1 ORDER BY sent_at ASC, id ASC`, consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		var kind string
		if err := rows.Scan(&m.ID, &m.ConsultationID, &m.SenderID, &m.Content, &kind, &m.FileURL, &m.Read, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Kind = Kind(kind)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *messageRepoPG) MarkRead(ctx context.Context, consultationID, readerID string) (int, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE consultation_id = $1 AND sender_id <> $2 AND is_read = FALSE`, consultationID, readerID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
