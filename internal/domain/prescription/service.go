package prescription

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medilink/telehealth/internal/domain/consultation"
	"github.com/medilink/telehealth/internal/domain/identity"
	"github.com/medilink/telehealth/internal/platform/apperr"
)

// Accounts resolves the patient a prescription is issued to.
type Accounts interface {
	Get(ctx context.Context, id string) (*identity.Account, error)
}

// Consultations resolves and links the consultation a prescription came
// out of.
type Consultations interface {
	Find(ctx context.Context, id string) (*consultation.Consultation, error)
	AttachPrescription(ctx context.Context, consultationID, prescriptionID string) error
}

type Service struct {
	repo          Repository
	accounts      Accounts
	consultations Consultations
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(repo Repository, accounts Accounts, consultations Consultations) *Service {
	return &Service{repo: repo, accounts: accounts, consultations: consultations, logger: zerolog.Nop(), now: time.Now}
}

// SetLogger sets the logger used for failures that do not fail the call.
func (s *Service) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

func validateMedications(meds []Medication) ([]Medication, error) {
	if len(meds) == 0 {
		return nil, apperr.Validation("at least one medication is required")
	}
	out := make([]Medication, len(meds))
	for i, m := range meds {
		m.Name = strings.TrimSpace(m.Name)
		m.Dosage = strings.TrimSpace(m.Dosage)
		m.Frequency = strings.TrimSpace(m.Frequency)
		m.Duration = strings.TrimSpace(m.Duration)
		m.Instructions = strings.TrimSpace(m.Instructions)
		m.Unit = strings.TrimSpace(m.Unit)
		if m.Name == "" || m.Dosage == "" || m.Frequency == "" || m.Duration == "" {
			return nil, apperr.Validation("medication %d: name, dosage, frequency and duration are required", i+1)
		}
		if m.Quantity <= 0 {
			return nil, apperr.Validation("medication %d: quantity must be positive", i+1)
		}
		if m.Unit == "" {
			m.Unit = defaultUnit
		}
		out[i] = m
	}
	return out, nil
}

func validateLabTests(tests []LabTest) ([]LabTest, error) {
	out := make([]LabTest, 0, len(tests))
	for i, t := range tests {
		t.TestName = strings.TrimSpace(t.TestName)
		t.Urgency = strings.ToLower(strings.TrimSpace(t.Urgency))
		if t.TestName == "" {
			return nil, apperr.Validation("lab test %d: test_name is required", i+1)
		}
		if !validUrgency(t.Urgency) {
			return nil, apperr.Validation("lab test %d: urgency must be routine, urgent or emergency", i+1)
		}
		out = append(out, t)
	}
	return out, nil
}

// Create issues a prescription from a doctor to a patient and links it to
// the consultation it came out of, if any. Once the prescription is stored
// it is returned even if the link write fails; the failure is logged.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Prescription, error) {
	if in.ActorRole != identity.RoleDoctor {
		return nil, apperr.Forbidden("only doctors can create prescriptions")
	}
	in.PatientID = strings.TrimSpace(in.PatientID)
	in.ConsultationID = strings.TrimSpace(in.ConsultationID)
	if in.PatientID == "" {
		return nil, apperr.Validation("patient_id is required")
	}
	if in.MaxRefills < 0 {
		return nil, apperr.Validation("max_refills must not be negative")
	}
	meds, err := validateMedications(in.Medications)
	if err != nil {
		return nil, err
	}
	labTests, err := validateLabTests(in.LabTests)
	if err != nil {
		return nil, err
	}

	patient, err := s.accounts.Get(ctx, in.PatientID)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && patient.Role != identity.RolePatient) {
		return nil, apperr.NotFound("patient not found")
	}
	if err != nil {
		return nil, err
	}

	if in.ConsultationID != "" {
		c, err := s.consultations.Find(ctx, in.ConsultationID)
		if errors.Is(err, apperr.ErrNotFound) || (err == nil && c.DoctorID != in.DoctorID) {
			return nil, apperr.NotFound("consultation not found")
		}
		if err != nil {
			return nil, err
		}
		if c.PatientID != in.PatientID {
			return nil, apperr.Validation("consultation belongs to a different patient")
		}
	}

	now := s.now().UTC()
	p := &Prescription{
		ID:             uuid.NewString(),
		DoctorID:       in.DoctorID,
		PatientID:      in.PatientID,
		ConsultationID: in.ConsultationID,
		Medications:    meds,
		Instructions:   strings.TrimSpace(in.Instructions),
		Diagnosis:      strings.TrimSpace(in.Diagnosis),
		Symptoms:       cleanStrings(in.Symptoms),
		IsActive:       true,
		MaxRefills:     in.MaxRefills,
		ExpiresAt:      now.Add(Validity),
		Notes:          strings.TrimSpace(in.Notes),
		Warnings:       cleanStrings(in.Warnings),
		Allergies:      cleanStrings(in.Allergies),
		LabTests:       labTests,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.FollowUpDate != nil {
		followUp := in.FollowUpDate.UTC()
		p.FollowUpDate = &followUp
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	if p.ConsultationID != "" {
		if err := s.consultations.AttachPrescription(ctx, p.ConsultationID, p.ID); err != nil {
			s.logger.Error().Err(err).
				Str("prescription_id", p.ID).
				Str("consultation_id", p.ConsultationID).
				Msg("failed to link prescription to consultation")
		}
	}
	return p, nil
}

// Get returns a prescription to its doctor, its patient or an admin.
func (s *Service) Get(ctx context.Context, id, actorID, role string) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch role {
	case identity.RoleAdmin:
		return p, nil
	case identity.RoleDoctor:
		if p.DoctorID == actorID {
			return p, nil
		}
	case identity.RolePatient:
		if p.PatientID == actorID {
			return p, nil
		}
	}
	return nil, apperr.Forbidden("not authorized to view this prescription")
}

// ListForPatient returns the prescriptions issued to a patient, optionally
// only active or only inactive ones.
func (s *Service) ListForPatient(ctx context.Context, patientID string, isActive *bool, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.List(ctx, ListFilter{PatientID: patientID, IsActive: isActive}, limit, offset)
}

// ListForDoctor returns the prescriptions a doctor issued, optionally for a
// single patient.
func (s *Service) ListForDoctor(ctx context.Context, doctorID, patientID string, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.List(ctx, ListFilter{DoctorID: doctorID, PatientID: patientID}, limit, offset)
}

// owned loads a prescription the acting doctor issued.
func (s *Service) owned(ctx context.Context, id, doctorID, role, action string) (*Prescription, error) {
	if role != identity.RoleDoctor {
		return nil, apperr.Forbidden("only doctors can %s prescriptions", action)
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.DoctorID != doctorID {
		return nil, apperr.Forbidden("not authorized to %s this prescription", action)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id, doctorID, role string, in UpdateInput) (*Prescription, error) {
	p, err := s.owned(ctx, id, doctorID, role, "update")
	if err != nil {
		return nil, err
	}
	if in.Medications != nil {
		meds, err := validateMedications(*in.Medications)
		if err != nil {
			return nil, err
		}
		p.Medications = meds
	}
	if in.LabTests != nil {
		tests, err := validateLabTests(*in.LabTests)
		if err != nil {
			return nil, err
		}
		p.LabTests = tests
	}
	if in.Instructions != nil {
		p.Instructions = strings.TrimSpace(*in.Instructions)
	}
	if in.Diagnosis != nil {
		p.Diagnosis = strings.TrimSpace(*in.Diagnosis)
	}
	if in.FollowUpDate != nil {
		followUp := in.FollowUpDate.UTC()
		p.FollowUpDate = &followUp
	}
	if in.Warnings != nil {
		p.Warnings = cleanStrings(*in.Warnings)
	}
	if in.Notes != nil {
		p.Notes = strings.TrimSpace(*in.Notes)
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Deactivate(ctx context.Context, id, doctorID, role string) (*Prescription, error) {
	p, err := s.owned(ctx, id, doctorID, role, "deactivate")
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return p, nil
	}
	p.IsActive = false
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ExpireOverdue deactivates every active prescription past its expiry.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	return s.repo.ExpireOverdue(ctx, now.UTC())
}
