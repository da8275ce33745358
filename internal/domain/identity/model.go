package identity

import (
	"strings"
	"time"
)

// Account roles.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

const defaultLanguage = "english"

// Account is a patient, doctor or admin. Availability, fee and rating only
// carry meaning for doctors.
type Account struct {
	ID                 string    `json:"id" bson:"_id"`
	Name               string    `json:"name" bson:"name"`
	Phone              string    `json:"phone" bson:"phone"`
	Email              string    `json:"email,omitempty" bson:"email,omitempty"`
	PasswordHash       string    `json:"-" bson:"password"`
	Role               string    `json:"role" bson:"role"`
	Language           string    `json:"language" bson:"language"`
	Specialization     string    `json:"specialization,omitempty" bson:"specialization,omitempty"`
	Bio                string    `json:"bio,omitempty" bson:"bio,omitempty"`
	Experience         int       `json:"experience,omitempty" bson:"experience"`
	ConsultationFee    int64     `json:"consultation_fee" bson:"consultationFee"`
	Available          bool      `json:"available" bson:"available"`
	Rating             float64   `json:"rating" bson:"rating"`
	TotalConsultations int       `json:"total_consultations" bson:"totalConsultations"`
	CreatedAt          time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt          time.Time `json:"updated_at" bson:"updatedAt"`
}

func (a *Account) IsDoctor() bool { return a.Role == RoleDoctor }

// DoctorSummary is the public view of a doctor returned by the directory.
type DoctorSummary struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Phone              string  `json:"phone"`
	Language           string  `json:"language"`
	Specialization     string  `json:"specialization,omitempty"`
	Experience         int     `json:"experience,omitempty"`
	ConsultationFee    int64   `json:"consultation_fee"`
	Rating             float64 `json:"rating"`
	TotalConsultations int     `json:"total_consultations"`
}

func (a *Account) Summary() DoctorSummary {
	return DoctorSummary{
		ID:                 a.ID,
		Name:               a.Name,
		Phone:              a.Phone,
		Language:           a.Language,
		Specialization:     a.Specialization,
		Experience:         a.Experience,
		ConsultationFee:    a.ConsultationFee,
		Rating:             a.Rating,
		TotalConsultations: a.TotalConsultations,
	}
}

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Role            string `json:"role"`
	Language        string `json:"language"`
	Specialization  string `json:"specialization"`
	ConsultationFee int64  `json:"consultation_fee"`
}

func (in *RegisterInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.Role == "" {
		in.Role = RolePatient
	}
	if in.Language == "" {
		in.Language = defaultLanguage
	}
}

// ProfileUpdate holds the mutable profile fields. Nil fields are left as is.
type ProfileUpdate struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Language        *string `json:"language"`
	Specialization  *string `json:"specialization"`
	Bio             *string `json:"bio"`
	Experience      *int    `json:"experience"`
	ConsultationFee *int64  `json:"consultation_fee"`
}

func (u ProfileUpdate) apply(a *Account) {
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.Language != nil {
		a.Language = *u.Language
	}
	if u.Specialization != nil {
		a.Specialization = *u.Specialization
	}
	if u.Bio != nil {
		a.Bio = *u.Bio
	}
	if u.Experience != nil {
		a.Experience = *u.Experience
	}
	if u.ConsultationFee != nil {
		a.ConsultationFee = *u.ConsultationFee
	}
}

// Session is returned by a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Account   *Account  `json:"user"`
}
