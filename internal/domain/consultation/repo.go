package consultation

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id string) (*Consultation, error)
	// Update writes every mutable field of c.
	Update(ctx context.Context, c *Consultation) error
	// ActiveForDoctorBetween returns the doctor's scheduled or in-progress
	// consultations with scheduledAt strictly inside (from, to).
	ActiveForDoctorBetween(ctx context.Context, doctorID string, from, to time.Time) ([]*Consultation, error)
	// List returns matches ordered by scheduledAt descending and the total
	// number of matches.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Consultation, int, error)
	// RatingsForDoctor returns the rating of every completed and rated
	// consultation of the doctor.
	RatingsForDoctor(ctx context.Context, doctorID string) ([]int, error)
	// MarkNoShows moves scheduled consultations with scheduledAt before
	// cutoff to no-show and returns how many changed.
	MarkNoShows(ctx context.Context, cutoff, now time.Time) (int, error)
	SetPrescription(ctx context.Context, id, prescriptionID string, now time.Time) error
}
