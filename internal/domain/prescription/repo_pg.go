package prescription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink/telehealth/internal/platform/apperr"
	"github.com/medilink/telehealth/internal/platform/db"
)

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &prescriptionRepoPG{pool: pool}
}

// medications and lab_tests are JSONB; pgx marshals the slices directly.
const prescriptionCols = `id, doctor_id, patient_id, COALESCE(consultation_id::text, ''), medications,
	COALESCE(instructions, ''), diagnosis, symptoms, follow_up_date, is_active, refill_count, max_refills,
	expires_at, COALESCE(notes, ''), warnings, allergies, lab_tests, created_at, updated_at`

func (r *prescriptionRepoPG) scan(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.DoctorID, &p.PatientID, &p.ConsultationID, &p.Medications,
		&p.Instructions, &p.Diagnosis, &p.Symptoms, &p.FollowUpDate, &p.IsActive, &p.RefillCount, &p.MaxRefills,
		&p.ExpiresAt, &p.Notes, &p.Warnings, &p.Allergies, &p.LabTests, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.TranslateError(err, "prescription")
	}
	return &p, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO prescriptions (id, doctor_id, patient_id, consultation_id, medications, instructions,
			diagnosis, symptoms, follow_up_date, is_active, refill_count, max_refills, expires_at, notes,
			warnings, allergies, lab_tests, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		p.ID, p.DoctorID, p.PatientID, db.NullIfEmpty(p.ConsultationID), orEmpty(p.Medications),
		db.NullIfEmpty(p.Instructions), p.Diagnosis, orEmpty(p.Symptoms), p.FollowUpDate, p.IsActive,
		p.RefillCount, p.MaxRefills, p.ExpiresAt, db.NullIfEmpty(p.Notes), orEmpty(p.Warnings),
		orEmpty(p.Allergies), orEmpty(p.LabTests), p.CreatedAt, p.UpdatedAt)
	return db.TranslateError(err, "prescription")
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id string) (*Prescription, error) {
	return r.scan(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE prescriptions SET medications=$2, instructions=$3, diagnosis=$4, follow_up_date=$5,
			is_active=$6, refill_count=$7, notes=$8, warnings=$9, lab_tests=$10, updated_at=$11
		WHERE id = $1`,
		p.ID, orEmpty(p.Medications), db.NullIfEmpty(p.Instructions), p.Diagnosis, p.FollowUpDate,
		p.IsActive, p.RefillCount, db.NullIfEmpty(p.Notes), orEmpty(p.Warnings), orEmpty(p.LabTests), p.UpdatedAt)
	if err != nil {
		return db.TranslateError(err, "prescription")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("prescription not found")
	}
	return nil
}

func (r *prescriptionRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Prescription, int, error) {
	var where []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.PatientID != "" {
		add("patient_id", f.PatientID)
	}
	if f.DoctorID != "" {
		add("doctor_id", f.DoctorID)
	}
	if f.IsActive != nil {
		add("is_active", *f.IsActive)
	}
	clause := "TRUE"
	if len(where) > 0 {
		clause = strings.Join(where, " AND ")
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, "patient")
	}

	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM prescriptions WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			prescriptionCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Prescription
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *prescriptionRepoPG) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE prescriptions SET is_active = FALSE, updated_at = $1
		WHERE is_active AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
