package consultation

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

type consultationRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &consultationRepoPG{pool: pool}
}

const consultationCols = `id, patient_id, doctor_id, status, type, scheduled_at, started_at, ended_at,
	duration_minutes, symptoms, COALESCE(diagnosis, ''), COALESCE(notes, ''), rating, COALESCE(review, ''),
	payment_status, amount, COALESCE(prescription_id::text, ''), follow_up_date, COALESCE(meeting_link, ''),
	created_at, updated_at`

func (r *consultationRepoPG) scan(row pgx.Row) (*Consultation, error) {
	var c Consultation
	var status, typ string
	var duration, rating *int32
	err := row.Scan(&c.ID, &c.PatientID, &c.DoctorID, &status, &typ, &c.ScheduledAt, &c.StartedAt, &c.EndedAt,
		&duration, &c.Symptoms, &c.Diagnosis, &c.Notes, &rating, &c.Review,
		&c.PaymentStatus, &c.Amount, &c.PrescriptionID, &c.FollowUpDate, &c.MeetingLink,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, db.TranslateError(err, "consultation")
	}
	c.Status, c.Type = Status(status), Type(typ)
	if duration != nil {
		d := int(*duration)
		c.DurationMinutes = &d
	}
	if rating != nil {
		v := int(*rating)
		c.Rating = &v
	}
	if c.Symptoms == nil {
		c.Symptoms = []string{}
	}
	return &c, nil
}

func (r *consultationRepoPG) Create(ctx context.Context, c *Consultation) error {
	symptoms := c.Symptoms
	if symptoms == nil {
		symptoms = []string{}
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO consultations (id, patient_id, doctor_id, status, type, scheduled_at, symptoms,
			payment_status, amount, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		c.ID, c.PatientID, c.DoctorID, string(c.Status), string(c.Type), c.ScheduledAt, symptoms,
		c.PaymentStatus, c.Amount, c.CreatedAt, c.UpdatedAt)
	return db.TranslateError(err, "consultation")
}

func (r *consultationRepoPG) GetByID(ctx context.Context, id string) (*Consultation, error) {
	return r.scan(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+consultationCols+` FROM consultations WHERE id = $1`, id))
}

func (r *consultationRepoPG) Update(ctx context.Context, c *Consultation) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE consultations SET status=$2, started_at=$3, ended_at=$4, duration_minutes=$5,
			diagnosis=$6, notes=$7, rating=$8, review=$9, payment_status=$10,
			prescription_id=$11, follow_up_date=$12, meeting_link=$13, updated_at=$14
		WHERE id = $1`,
		c.ID, string(c.Status), c.StartedAt, c.EndedAt, c.DurationMinutes,
		db.NullIfEmpty(c.Diagnosis), db.NullIfEmpty(c.Notes), c.Rating, db.NullIfEmpty(c.Review), c.PaymentStatus,
		db.NullIfEmpty(c.PrescriptionID), c.FollowUpDate, db.NullIfEmpty(c.MeetingLink), c.UpdatedAt)
	if err != nil {
		return db.TranslateError(err, "consultation")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("consultation not found")
	}
	return nil
}

func (r *consultationRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Consultation, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Consultation
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *consultationRepoPG) ActiveForDoctorBetween(ctx context.Context, doctorID string, from, to time.Time) ([]*Consultation, error) {
	return r.query(ctx, `SELECT `+consultationCols+` FROM consultations
		WHERE doctor_id = $1 AND status IN ('scheduled', 'in-progress')
		  AND scheduled_at > $2 AND scheduled_at < $3`, doctorID, from, to)
}

func (r *consultationRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Consultation, int, error) {
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
	if f.Status != "" {
		add("status", string(f.Status))
	}
	clause := "TRUE"
	if len(where) > 0 {
		clause = strings.Join(where, " AND ")
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM consultations WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	out, err := r.query(ctx,
		fmt.Sprintf(`SELECT %s FROM consultations WHERE %s ORDER BY scheduled_at DESC LIMIT $%d OFFSET $%d`,
			consultationCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *consultationRepoPG) RatingsForDoctor(ctx context.Context, doctorID string) ([]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT rating FROM consultations
		WHERE doctor_id = $1 AND status = 'completed' AND rating IS NOT NULL`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int32
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, int(v))
	}
	return out, rows.Err()
}

func (r *consultationRepoPG) MarkNoShows(ctx context.Context, cutoff, now time.Time) (int, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE consultations SET status = 'no-show', updated_at = $2
		WHERE status = 'scheduled' AND scheduled_at < $1`, cutoff, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *consultationRepoPG) SetPrescription(ctx context.Context, id, prescriptionID string, now time.Time) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE consultations SET prescription_id = $2, updated_at = $3 WHERE id = $1`, id, prescriptionID, now)
	if err != nil {
		return db.TranslateError(err, "consultation")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("consultation not found")
	}
	return nil
}
