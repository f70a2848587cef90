package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediturn/booking-service/internal/booking"
)

type CreateDoctorRequest struct {
	Name                  string `json:"name"`
	Specialty             string `json:"specialty"`
	Experience            string `json:"experience"`
	PricePerConsultation  string `json:"price_per_consultation"`
	ImageURL              string `json:"image_url,omitempty"`
	IsTelehealthAvailable bool   `json:"is_telehealth_available"`
	Location              string `json:"location"`
	About                 string `json:"about,omitempty"`
}

type DoctorResponse struct {
	ID                    uuid.UUID `json:"id"`
	Name                  string    `json:"name"`
	Specialty             string    `json:"specialty"`
	Experience            string    `json:"experience"`
	PricePerConsultation  string    `json:"price_per_consultation"`
	ImageURL              string    `json:"image_url,omitempty"`
	IsTelehealthAvailable bool      `json:"is_telehealth_available"`
	Location              string    `json:"location"`
	About                 string    `json:"about,omitempty"`
}

func toDoctorResponse(d *booking.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:                    d.ID,
		Name:                  d.Name,
		Specialty:             string(d.Specialty),
		Experience:            d.Experience,
		PricePerConsultation:  d.PricePerConsultation.StringFixed(2),
		ImageURL:              d.ImageURL,
		IsTelehealthAvailable: d.IsTelehealthAvailable,
		Location:              d.Location,
		About:                 d.About,
	}
}

type CreatePatientRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
}

type PatientResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	DateOfBirth string    `json:"date_of_birth"`
}

func toPatientResponse(p *booking.Patient) PatientResponse {
	return PatientResponse{
		ID:          p.ID,
		Name:        p.Name,
		Email:       p.Email,
		Phone:       p.Phone,
		DateOfBirth: p.DateOfBirth.Format("2006-01-02"),
	}
}

type BookAppointmentRequest struct {
	DoctorID         string    `json:"doctor_id"`
	PatientID        string    `json:"patient_id"`
	Date             time.Time `json:"date"`
	ConsultationType string    `json:"consultation_type"`
	Reason           string    `json:"reason,omitempty"`
	Status           string    `json:"status,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type RescheduleRequest struct {
	Date time.Time `json:"date"`
}

type AppointmentResponse struct {
	ID               uuid.UUID `json:"id"`
	DoctorID         uuid.UUID `json:"doctor_id"`
	PatientID        uuid.UUID `json:"patient_id"`
	Date             time.Time `json:"date"`
	ConsultationType string    `json:"consultation_type"`
	Reason           string    `json:"reason,omitempty"`
	Status           string    `json:"status"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		DoctorID:         a.DoctorID,
		PatientID:        a.PatientID,
		Date:             a.Date,
		ConsultationType: string(a.ConsultationType),
		Reason:           a.Reason,
		Status:           string(a.Status),
	}
}

type SlotResponse struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	At          time.Time `json:"at"`
	IsAvailable bool      `json:"is_available"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
