package jobs

import (
	"context"
	"time"
)

// Job names.
const (
	NoShowSweepJob        = "consultation-no-show-sweep"
	PrescriptionExpiryJob = "prescription-expiry"
)

type NoShowSweeper interface {
	SweepNoShows(ctx context.Context, now time.Time, grace time.Duration) (int, error)
}

type PrescriptionExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// NoShowSweep marks scheduled consultations as no-show once grace has passed
// since their start time.
func NoShowSweep(svc NoShowSweeper, grace time.Duration) RunFunc {
	return func(ctx context.Context, now time.Time) (int, error) {
		return svc.SweepNoShows(ctx, now, grace)
	}
}

// PrescriptionExpiry deactivates prescriptions past their expiry date.
func PrescriptionExpiry(svc PrescriptionExpirer) RunFunc {
	return svc.ExpireOverdue
}

// Schedule holds the cron specs for the built-in sweeps.
type Schedule struct {
	NoShowCron             string
	NoShowGrace            time.Duration
	PrescriptionExpiryCron string
}

// RegisterSweeps adds the consultation and prescription sweeps to s.
func RegisterSweeps(s *Scheduler, sched Schedule, consultations NoShowSweeper, prescriptions PrescriptionExpirer) error {
	if err := s.Add(NoShowSweepJob, sched.NoShowCron, NoShowSweep(consultations, sched.NoShowGrace)); err != nil {
		return err
	}
	return s.Add(PrescriptionExpiryJob, sched.PrescriptionExpiryCron, PrescriptionExpiry(prescriptions))
}
