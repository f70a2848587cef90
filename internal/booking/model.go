package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Specialty string

const (
	SpecialtyGeneralMedicine Specialty = "GENERAL_MEDICINE"
	SpecialtyCardiology      Specialty = "CARDIOLOGY"
	SpecialtyPediatrics      Specialty = "PEDIATRICS"
	SpecialtyDermatology     Specialty = "DERMATOLOGY"
	SpecialtyNeurology       Specialty = "NEUROLOGY"
	SpecialtyOrthopedics     Specialty = "ORTHOPEDICS"
)

func (s Specialty) Valid() bool {
	switch s {
	case SpecialtyGeneralMedicine, SpecialtyCardiology, SpecialtyPediatrics,
		SpecialtyDermatology, SpecialtyNeurology, SpecialtyOrthopedics:
		return true
	}
	return false
}

type ConsultationType string

const (
	ConsultationInPerson   ConsultationType = "IN_PERSON"
	ConsultationTelehealth ConsultationType = "TELEHEALTH"
)

func (c ConsultationType) Valid() bool {
	return c == ConsultationInPerson || c == ConsultationTelehealth
}

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusCompleted AppointmentStatus = "COMPLETED"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave this status.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Doctor struct {
	ID                    uuid.UUID
	Name                  string          `validate:"required,max=100"`
	Specialty             Specialty       `validate:"specialty"`
	Experience            string          `validate:"max=100"`
	PricePerConsultation  decimal.Decimal `validate:"price"`
	ImageURL              string          `validate:"omitempty,url"`
	IsTelehealthAvailable bool
	Location              string `validate:"required,max=150"`
	About                 string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Patient struct {
	ID          uuid.UUID
	Name        string    `validate:"required,max=100"`
	Email       string    `validate:"required,email"`
	Phone       string    `validate:"omitempty,max=20"`
	DateOfBirth time.Time `validate:"past_date"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NormalizeEmail lowercases the address so uniqueness is case-insensitive
// regardless of how the caller typed it.
func (p *Patient) NormalizeEmail() {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
}

// TimeSlot is owned by exactly one doctor for its lifetime. No two slots
// for the same doctor share the same instant.
type TimeSlot struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	At          time.Time
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Appointment struct {
	ID               uuid.UUID
	DoctorID         uuid.UUID
	PatientID        uuid.UUID
	Date             time.Time
	ConsultationType ConsultationType `validate:"consultation_type"`
	Reason           string
	Status           AppointmentStatus `validate:"appointment_status"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
