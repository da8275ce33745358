package identity

import (
	"context"
)

// DoctorFilter narrows the available-doctor listing.
type DoctorFilter struct {
	Specialization string
	Language       string
}

type Repository interface {
	// Create stores a new account. A duplicate phone or email yields an
	// apperr conflict.
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByPhone(ctx context.Context, phone string) (*Account, error)
	// Update writes the profile fields of a. Credentials, role and the rating
	// aggregate are not touched.
	Update(ctx context.Context, a *Account) error
	SetAvailability(ctx context.Context, id string, available bool) error
	UpdateRating(ctx context.Context, id string, rating float64, total int) error
	ListAvailableDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Account, int, error)
}
