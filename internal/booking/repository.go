package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions the core depends on. Slot
// availability is only ever changed through ConditionalSetSlotAvailability
// so the allocator's check-and-set stays linearizable per slot.
type Repository interface {
	CreateDoctor(ctx context.Context, d *Doctor) error
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// ListDoctors filters by specialty when non-nil and by a case-insensitive
	// name substring when q is non-empty.
	ListDoctors(ctx context.Context, specialty *Specialty, q string, limit, offset int) ([]Doctor, error)
	// DeleteDoctor removes the doctor together with its slots and
	// appointments in one transaction.
	DeleteDoctor(ctx context.Context, id uuid.UUID) error

	CreatePatient(ctx context.Context, p *Patient) error
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// DeletePatient removes the patient and its appointments, freeing any
	// slots those appointments were holding.
	DeletePatient(ctx context.Context, id uuid.UUID) error

	GetTimeSlot(ctx context.Context, doctorID uuid.UUID, at time.Time) (*TimeSlot, error)
	GetTimeSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	// ConditionalSetSlotAvailability performs an atomic compare-and-set on
	// the availability flag. It returns false when the current flag did not
	// match expected, without touching the row.
	ConditionalSetSlotAvailability(ctx context.Context, slotID uuid.UUID, expected, value bool) (bool, error)
	// CreateTimeSlots batch-inserts slots, skipping (doctor, at) duplicates.
	// Returns how many rows were actually inserted.
	CreateTimeSlots(ctx context.Context, slots []TimeSlot) (int, error)
	ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, availableOnly bool) ([]TimeSlot, error)

	CreateAppointment(ctx context.Context, a *Appointment) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateAppointmentStatus only applies when the current status matches
	// from, so concurrent transitions cannot both win.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	// UpdateAppointmentDate only applies while the appointment still has the
	// given status and date, so a concurrent transition or reschedule makes
	// it miss instead of being overwritten.
	UpdateAppointmentDate(ctx context.Context, id uuid.UUID, from AppointmentStatus, oldDate, newDate time.Time) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// WithTx runs fn against a transaction-bound repository. fn returning an
	// error rolls everything back.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
