package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mediturn/booking-service/internal/booking"
)

// BookingService is the slice of the core the handlers need. Declared here
// so handler tests can substitute a stub.
type BookingService interface {
	Book(ctx context.Context, req booking.BookingRequest) (*booking.Appointment, error)
	Transition(ctx context.Context, id uuid.UUID, target booking.AppointmentStatus) (*booking.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time) (*booking.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]booking.Appointment, error)
	ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]booking.TimeSlot, error)

	CreateDoctor(ctx context.Context, d *booking.Doctor) (*booking.Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*booking.Doctor, error)
	ListDoctors(ctx context.Context, specialty *booking.Specialty, q string, limit, offset int) ([]booking.Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error

	CreatePatient(ctx context.Context, p *booking.Patient) (*booking.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*booking.Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps core errors onto transport responses. The core
// itself never speaks HTTP.
func writeDomainError(w http.ResponseWriter, err error) {
	var ve *booking.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot is not available, pick another one")
	case errors.Is(err, booking.ErrInvalidConsultationType):
		writeError(w, http.StatusConflict, "invalid_consultation_type", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "duplicate_email", err.Error())
	case errors.Is(err, booking.ErrDuplicateSlot):
		writeError(w, http.StatusConflict, "duplicate_slot", err.Error())
	case errors.Is(err, booking.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// Appointments

func bookAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		status := booking.StatusConfirmed
		if req.Status != "" {
			status = booking.AppointmentStatus(req.Status)
		}

		appt, err := svc.Book(r.Context(), booking.BookingRequest{
			DoctorID:         doctorID,
			PatientID:        patientID,
			Date:             req.Date,
			ConsultationType: booking.ConsultationType(req.ConsultationType),
			Reason:           req.Reason,
			InitialStatus:    status,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Transition(r.Context(), id, booking.AppointmentStatus(req.Status))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Date.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_date", "date is required")
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, req.Date)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// Doctors

func createDoctorHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		price, err := decimal.NewFromString(req.PricePerConsultation)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_price", "price_per_consultation must be a decimal")
			return
		}

		doctor, err := svc.CreateDoctor(r.Context(), &booking.Doctor{
			Name:                  req.Name,
			Specialty:             booking.Specialty(req.Specialty),
			Experience:            req.Experience,
			PricePerConsultation:  price,
			ImageURL:              req.ImageURL,
			IsTelehealthAvailable: req.IsTelehealthAvailable,
			Location:              req.Location,
			About:                 req.About,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDoctorResponse(doctor))
	}
}

func getDoctorHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		doctor, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(doctor))
	}
}

func listDoctorsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var specialty *booking.Specialty
		if s := r.URL.Query().Get("specialty"); s != "" {
			sp := booking.Specialty(s)
			specialty = &sp
		}
		q := r.URL.Query().Get("q")
		limit := queryInt(r, "limit", 20)
		offset := queryInt(r, "offset", 0)

		doctors, err := svc.ListDoctors(r.Context(), specialty, q, limit, offset)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for i := range doctors {
			resp = append(resp, toDoctorResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func deleteDoctorHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		if err := svc.DeleteDoctor(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listDoctorSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		now := time.Now()
		from, ok := queryTime(w, r, "from", now)
		if !ok {
			return
		}
		to, ok := queryTime(w, r, "to", now.AddDate(0, 0, 14))
		if !ok {
			return
		}

		slots, err := svc.ListAvailableSlots(r.Context(), id, from, to)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, SlotResponse{
				ID:          s.ID,
				DoctorID:    s.DoctorID,
				At:          s.At,
				IsAvailable: s.IsAvailable,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Patients

func createPatientHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_of_birth", "date_of_birth must be YYYY-MM-DD")
			return
		}

		patient, err := svc.CreatePatient(r.Context(), &booking.Patient{
			Name:        req.Name,
			Email:       req.Email,
			Phone:       req.Phone,
			DateOfBirth: dob,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPatientResponse(patient))
	}
}

func getPatientHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		patient, err := svc.GetPatient(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(patient))
	}
}

func deletePatientHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		if err := svc.DeletePatient(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listPatientAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		limit := queryInt(r, "limit", 20)
		offset := queryInt(r, "offset", 0)

		appts, err := svc.ListAppointmentsByPatient(r.Context(), id, limit, offset)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryTime(w http.ResponseWriter, r *http.Request, name string, def time.Time) (time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be RFC3339")
		return time.Time{}, false
	}
	return t, true
}
