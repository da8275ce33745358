package prescription

import (
	"strings"
	"time"
)

// Validity is how long a prescription stays active after it is issued.
const Validity = 30 * 24 * time.Hour

const defaultUnit = "tablets"

type Medication struct {
	Name         string `json:"name" bson:"name"`
	Dosage       string `json:"dosage" bson:"dosage"`
	Frequency    string `json:"frequency" bson:"frequency"`
	Duration     string `json:"duration" bson:"duration"`
	Instructions string `json:"instructions,omitempty" bson:"instructions,omitempty"`
	Quantity     int    `json:"quantity" bson:"quantity"`
	Unit         string `json:"unit" bson:"unit"`
	BeforeMeal   bool   `json:"before_meal" bson:"beforeMeal"`
	AfterMeal    bool   `json:"after_meal" bson:"afterMeal"`
}

// Lab test urgencies.
const (
	UrgencyRoutine   = "routine"
	UrgencyUrgent    = "urgent"
	UrgencyEmergency = "emergency"
)

type LabTest struct {
	TestName     string `json:"test_name" bson:"testName"`
	Instructions string `json:"instructions,omitempty" bson:"instructions,omitempty"`
	Urgency      string `json:"urgency,omitempty" bson:"urgency,omitempty"`
}

type Prescription struct {
	ID             string       `json:"id" bson:"_id"`
	DoctorID       string       `json:"doctor_id" bson:"doctorId"`
	PatientID      string       `json:"patient_id" bson:"patientId"`
	ConsultationID string       `json:"consultation_id,omitempty" bson:"consultationId,omitempty"`
	Medications    []Medication `json:"medications" bson:"medications"`
	Instructions   string       `json:"instructions,omitempty" bson:"instructions,omitempty"`
	Diagnosis      string       `json:"diagnosis" bson:"diagnosis"`
	Symptoms       []string     `json:"symptoms" bson:"symptoms"`
	FollowUpDate   *time.Time   `json:"follow_up_date,omitempty" bson:"followUpDate,omitempty"`
	IsActive       bool         `json:"is_active" bson:"isActive"`
	RefillCount    int          `json:"refill_count" bson:"refillCount"`
	MaxRefills     int          `json:"max_refills" bson:"maxRefills"`
	ExpiresAt      time.Time    `json:"expires_at" bson:"expiresAt"`
	Notes          string       `json:"notes,omitempty" bson:"notes,omitempty"`
	Warnings       []string     `json:"warnings" bson:"warnings"`
	Allergies      []string     `json:"allergies" bson:"allergies"`
	LabTests       []LabTest    `json:"lab_tests" bson:"labTests"`
	CreatedAt      time.Time    `json:"created_at" bson:"createdAt"`
	UpdatedAt      time.Time    `json:"updated_at" bson:"updatedAt"`
}

type CreateInput struct {
	DoctorID       string       `json:"-"`
	ActorRole      string       `json:"-"`
	PatientID      string       `json:"patient_id"`
	ConsultationID string       `json:"consultation_id"`
	Medications    []Medication `json:"medications"`
	Instructions   string       `json:"instructions"`
	Diagnosis      string       `json:"diagnosis"`
	Symptoms       []string     `json:"symptoms"`
	FollowUpDate   *time.Time   `json:"follow_up_date"`
	Warnings       []string     `json:"warnings"`
	Allergies      []string     `json:"allergies"`
	LabTests       []LabTest    `json:"lab_tests"`
	MaxRefills     int          `json:"max_refills"`
	Notes          string       `json:"notes"`
}

// UpdateInput replaces the fields that are non-nil.
type UpdateInput struct {
	Medications  *[]Medication `json:"medications"`
	Instructions *string       `json:"instructions"`
	Diagnosis    *string       `json:"diagnosis"`
	FollowUpDate *time.Time    `json:"follow_up_date"`
	Warnings     *[]string     `json:"warnings"`
	LabTests     *[]LabTest    `json:"lab_tests"`
	Notes        *string       `json:"notes"`
}

// ListFilter scopes a listing. Empty fields match everything.
type ListFilter struct {
	PatientID string
	DoctorID  string
	IsActive  *bool
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func validUrgency(u string) bool {
	switch u {
	case "", UrgencyRoutine, UrgencyUrgent, UrgencyEmergency:
		return true
	}
	return false
}
