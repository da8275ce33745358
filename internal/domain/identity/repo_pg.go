package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink/telehealth/internal/platform/apperr"
	"github.com/medilink/telehealth/internal/platform/db"
)

type accountRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &accountRepoPG{pool: pool}
}

const accountCols = `id, name, phone, COALESCE(email, ''), password_hash, role, language,
	COALESCE(specialization, ''), COALESCE(bio, ''), experience, consultation_fee, available,
	rating, total_consultations, created_at, updated_at`

func (r *accountRepoPG) scan(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Phone, &a.Email, &a.PasswordHash, &a.Role, &a.Language,
		&a.Specialization, &a.Bio, &a.Experience, &a.ConsultationFee, &a.Available,
		&a.Rating, &a.TotalConsultations, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, db.TranslateError(err, "account")
	}
	return &a, nil
}

func (r *accountRepoPG) Create(ctx context.Context, a *Account) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO accounts (id, name, phone, email, password_hash, role, language,
			specialization, bio, experience, consultation_fee, available, rating,
			total_consultations, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		a.ID, a.Name, a.Phone, db.NullIfEmpty(a.Email), a.PasswordHash, a.Role, a.Language,
		db.NullIfEmpty(a.Specialization), db.NullIfEmpty(a.Bio), a.Experience, a.ConsultationFee,
		a.Available, a.Rating, a.TotalConsultations, a.CreatedAt, a.UpdatedAt)
	return db.TranslateError(err, "account")
}

func (r *accountRepoPG) GetByID(ctx context.Context, id string) (*Account, error) {
	return r.scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id))
}

func (r *accountRepoPG) GetByPhone(ctx context.Context, phone string) (*Account, error) {
	return r.scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE phone = $1`, phone))
}

func (r *accountRepoPG) Update(ctx context.Context, a *Account) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE accounts SET name=$2, email=$3, language=$4, specialization=$5, bio=$6,
			experience=$7, consultation_fee=$8, updated_at=$9
		WHERE id = $1`,
		a.ID, a.Name, db.NullIfEmpty(a.Email), a.Language, db.NullIfEmpty(a.Specialization),
		db.NullIfEmpty(a.Bio), a.Experience, a.ConsultationFee, a.UpdatedAt)
	if err != nil {
		return db.TranslateError(err, "account")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("account not found")
	}
	return nil
}

func (r *accountRepoPG) SetAvailability(ctx context.Context, id string, available bool) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE accounts SET available=$2, updated_at=NOW() WHERE id = $1 AND role = 'doctor'`, id, available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("doctor not found")
	}
	return nil
}

func (r *accountRepoPG) UpdateRating(ctx context.Context, id string, rating float64, total int) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE accounts SET rating=$2, total_consultations=$3, updated_at=NOW() WHERE id = $1`, id, rating, total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("doctor not found")
	}
	return nil
}

func (r *accountRepoPG) ListAvailableDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Account, int, error) {
	where := []string{"role = 'doctor'", "available = TRUE"}
	var args []interface{}
	if f.Specialization != "" {
		args = append(args, f.Specialization)
		where = append(where, fmt.Sprintf("specialization ILIKE $%d", len(args)))
	}
	if f.Language != "" {
		args = append(args, f.Language)
		where = append(where, fmt.Sprintf("language ILIKE $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM accounts WHERE %s ORDER BY rating DESC, name LIMIT $%d OFFSET $%d`,
			accountCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}
