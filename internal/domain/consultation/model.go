package consultation

import (
	"strings"
	"time"
)

// Status is a point in the consultation lifecycle.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// transitions lists the statuses reachable from each status. Terminal
// statuses have no entry.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether a consultation in this status blocks the doctor's
// calendar.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusInProgress
}

func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether next is a legal edge out of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Type is how the consultation is conducted.
type Type string

const (
	TypeChat     Type = "chat"
	TypeVideo    Type = "video"
	TypeVoice    Type = "voice"
	TypeInPerson Type = "in-person"
)

func (t Type) Valid() bool {
	switch t {
	case TypeChat, TypeVideo, TypeVoice, TypeInPerson:
		return true
	}
	return false
}

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

// SlotDuration is the length of the window a consultation reserves on the
// doctor's calendar.
const SlotDuration = 30 * time.Minute

type Consultation struct {
	ID              string     `json:"id" bson:"_id"`
	PatientID       string     `json:"patient_id" bson:"patientId"`
	DoctorID        string     `json:"doctor_id" bson:"doctorId"`
	Status          Status     `json:"status" bson:"status"`
	Type            Type       `json:"type" bson:"type"`
	ScheduledAt     time.Time  `json:"scheduled_at" bson:"scheduledAt"`
	StartedAt       *time.Time `json:"started_at,omitempty" bson:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty" bson:"endedAt,omitempty"`
	DurationMinutes *int       `json:"duration,omitempty" bson:"duration,omitempty"`
	Symptoms        []string   `json:"symptoms" bson:"symptoms"`
	Diagnosis       string     `json:"diagnosis,omitempty" bson:"diagnosis,omitempty"`
	Notes           string     `json:"notes,omitempty" bson:"notes,omitempty"`
	Rating          *int       `json:"rating,omitempty" bson:"rating,omitempty"`
	Review          string     `json:"review,omitempty" bson:"review,omitempty"`
	PaymentStatus   string     `json:"payment_status" bson:"paymentStatus"`
	Amount          int64      `json:"amount" bson:"amount"`
	PrescriptionID  string     `json:"prescription_id,omitempty" bson:"prescriptionId,omitempty"`
	FollowUpDate    *time.Time `json:"follow_up_date,omitempty" bson:"followUpDate,omitempty"`
	MeetingLink     string     `json:"meeting_link,omitempty" bson:"meetingLink,omitempty"`
	CreatedAt       time.Time  `json:"created_at" bson:"createdAt"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updatedAt"`
}

// IsParticipant reports whether accountID is the patient or the doctor.
func (c *Consultation) IsParticipant(accountID string) bool {
	return accountID != "" && (accountID == c.PatientID || accountID == c.DoctorID)
}

// OnSide reports whether accountID holds the side of the record that role
// names.
func (c *Consultation) OnSide(accountID, role string) bool {
	switch role {
	case RolePatient:
		return accountID == c.PatientID
	case RoleDoctor:
		return accountID == c.DoctorID
	}
	return false
}

// Overlaps reports whether a slot starting at t intersects this
// consultation's slot.
func (c *Consultation) Overlaps(t time.Time) bool {
	return c.ScheduledAt.After(t.Add(-SlotDuration)) && c.ScheduledAt.Before(t.Add(SlotDuration))
}

// Roles as carried in bearer tokens.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

type CreateInput struct {
	PatientID   string    `json:"-"`
	DoctorID    string    `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Type        Type      `json:"type"`
	Symptoms    []string  `json:"symptoms"`
}

func (in *CreateInput) normalize() {
	in.DoctorID = strings.TrimSpace(in.DoctorID)
	in.Type = Type(strings.ToLower(strings.TrimSpace(string(in.Type))))
	if in.Type == "" {
		in.Type = TypeChat
	}
	symptoms := make([]string, 0, len(in.Symptoms))
	for _, s := range in.Symptoms {
		if s = strings.TrimSpace(s); s != "" {
			symptoms = append(symptoms, s)
		}
	}
	in.Symptoms = symptoms
}

// TransitionInput moves a consultation to Status. Diagnosis, Notes,
// FollowUpDate and MeetingLink are merged when non-nil.
type TransitionInput struct {
	ID           string     `json:"-"`
	ActorID      string     `json:"-"`
	ActorRole    string     `json:"-"`
	Status       Status     `json:"status"`
	Diagnosis    *string    `json:"diagnosis"`
	Notes        *string    `json:"notes"`
	FollowUpDate *time.Time `json:"follow_up_date"`
	MeetingLink  *string    `json:"meeting_link"`
}

// ListFilter scopes a listing to one side of the record. Empty fields match
// everything.
type ListFilter struct {
	PatientID string
	DoctorID  string
	Status    Status
}
