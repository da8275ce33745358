package prescription

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id string) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	// List returns matches newest first and the total number of matches.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Prescription, int, error)
	// ExpireOverdue deactivates active prescriptions whose expiry is before
	// now and returns how many changed.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}
