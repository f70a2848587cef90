package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/mediturn/booking-service/internal/redis"
)

// transitionTable holds the only legal status changes. Everything else,
// including any move out of a terminal status, is rejected.
var transitionTable = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

func canTransition(from, to AppointmentStatus) bool {
	for _, t := range transitionTable[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Service owns the appointment lifecycle. All slot state changes route
// through the allocator; storage writes that must be atomic run inside a
// repository transaction.
type Service struct {
	repo   Repository
	alloc  *SlotAllocator
	locker redisclient.Locker
	log    *zap.Logger
}

func NewService(repo Repository, alloc *SlotAllocator, locker redisclient.Locker, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		alloc:  alloc,
		locker: locker,
		log:    log,
	}
}

type BookingRequest struct {
	DoctorID         uuid.UUID
	PatientID        uuid.UUID
	Date             time.Time
	ConsultationType ConsultationType
	Reason           string
	InitialStatus    AppointmentStatus
}

// Book reserves the doctor's slot and creates the appointment as one logical
// unit. A distributed per-slot lock keeps concurrent bookings for the same
// slot from thrashing; the slot row's check-and-set decides the winner. If
// appointment creation fails after a successful reservation, the transaction
// rollback returns the slot, so no reservation is ever stranded.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.InitialStatus != StatusPending && req.InitialStatus != StatusConfirmed {
		return nil, &ValidationError{Field: "status", Reason: "initial status must be PENDING or CONFIRMED"}
	}
	if !req.ConsultationType.Valid() {
		return nil, &ValidationError{Field: "consultation_type", Reason: "is not a recognized value"}
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		return nil, deadline(ctx, err)
	}

	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		return nil, deadline(ctx, err)
	}
	if req.ConsultationType == ConsultationTelehealth && !doctor.IsTelehealthAvailable {
		return nil, ErrInvalidConsultationType
	}

	// Located up front only to key the lock; availability is re-checked
	// through the allocator inside the transaction.
	slot, err := s.repo.GetTimeSlot(ctx, req.DoctorID, req.Date)
	if err != nil {
		return nil, deadline(ctx, err)
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slot.ID, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(tx Repository) error {
			alloc := NewSlotAllocator(tx, s.log)
			if _, err := alloc.Reserve(lockCtx, req.DoctorID, req.Date); err != nil {
				return err
			}

			appt := &Appointment{
				ID:               uuid.New(),
				DoctorID:         req.DoctorID,
				PatientID:        req.PatientID,
				Date:             req.Date,
				ConsultationType: req.ConsultationType,
				Reason:           req.Reason,
				Status:           req.InitialStatus,
			}
			if err := tx.CreateAppointment(lockCtx, appt); err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}

			created = appt
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotUnavailable
		}
		return nil, deadline(ctx, err)
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("doctor_id", req.DoctorID.String()),
		zap.String("patient_id", req.PatientID.String()),
		zap.Time("date", req.Date),
		zap.String("status", string(created.Status)))

	return created, nil
}

// Transition moves an appointment to target per the lifecycle table. On
// entry into CANCELLED the held slot is released, exactly once, inside the
// same transaction as the status change.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target AppointmentStatus) (*Appointment, error) {
	if !target.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "is not a recognized value"}
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, deadline(ctx, err)
	}
	if !canTransition(appt.Status, target) {
		return nil, ErrInvalidTransition
	}

	var updated *Appointment

	if target == StatusCancelled {
		err = s.repo.WithTx(ctx, func(tx Repository) error {
			u, err := tx.UpdateAppointmentStatus(ctx, id, appt.Status, target)
			if err != nil {
				return err
			}

			// Release the slot at the date the update returned, not the
			// pre-transaction read: a reschedule may have moved the
			// appointment in between.
			slot, err := tx.GetTimeSlot(ctx, appt.DoctorID, u.Date)
			if err != nil {
				return err
			}
			if err := NewSlotAllocator(tx, s.log).Release(ctx, slot.ID); err != nil {
				return err
			}

			updated = u
			return nil
		})
	} else {
		updated, err = s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, target)
	}
	if err != nil {
		// The CAS missed: the appointment existed a moment ago, so a
		// concurrent transition won the race.
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, deadline(ctx, err)
	}

	s.log.Info("appointment transitioned",
		zap.String("appointment_id", id.String()),
		zap.String("from", string(appt.Status)),
		zap.String("to", string(target)))

	return updated, nil
}

// Reschedule moves a PENDING or CONFIRMED appointment to a new slot of the
// same doctor. The new slot is reserved first; if that fails the appointment
// and the old slot are left untouched.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, deadline(ctx, err)
	}
	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, ErrInvalidTransition
	}

	var updated *Appointment

	err = s.repo.WithTx(ctx, func(tx Repository) error {
		alloc := NewSlotAllocator(tx, s.log)

		if _, err := alloc.Reserve(ctx, appt.DoctorID, newDate); err != nil {
			return err
		}

		// The update is conditional on the status and date read above;
		// a miss rolls the new reservation back.
		u, err := tx.UpdateAppointmentDate(ctx, id, appt.Status, appt.Date, newDate)
		if err != nil {
			return err
		}

		oldSlot, err := tx.GetTimeSlot(ctx, appt.DoctorID, appt.Date)
		if err != nil {
			return err
		}
		if err := alloc.Release(ctx, oldSlot.ID); err != nil {
			return err
		}

		updated = u
		return nil
	})
	if err != nil {
		// The CAS missed: a concurrent transition or reschedule changed the
		// appointment after the read.
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, deadline(ctx, err)
	}

	s.log.Info("appointment rescheduled",
		zap.String("appointment_id", id.String()),
		zap.Time("old_date", appt.Date),
		zap.Time("new_date", newDate))

	return updated, nil
}

// ListAvailableSlots exposes the allocator's lazy sequence of open slots.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	if !to.After(from) {
		return nil, &ValidationError{Field: "to", Reason: "must be after from"}
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, deadline(ctx, err)
	}

	var slots []TimeSlot
	for slot, err := range s.alloc.ListAvailable(ctx, doctorID, from, to) {
		if err != nil {
			return nil, deadline(ctx, err)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, deadline(ctx, err)
	}
	return appt, nil
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	appts, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, deadline(ctx, err)
	}
	return appts, nil
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) (*Doctor, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.ID = uuid.New()
	if err := s.repo.CreateDoctor(ctx, d); err != nil {
		return nil, deadline(ctx, err)
	}
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		return nil, deadline(ctx, err)
	}
	return d, nil
}

func (s *Service) ListDoctors(ctx context.Context, specialty *Specialty, q string, limit, offset int) ([]Doctor, error) {
	if specialty != nil && !specialty.Valid() {
		return nil, &ValidationError{Field: "specialty", Reason: "is not a recognized value"}
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	ds, err := s.repo.ListDoctors(ctx, specialty, q, limit, offset)
	if err != nil {
		return nil, deadline(ctx, err)
	}
	return ds, nil
}

// DeleteDoctor removes the doctor and cascades over its slots and
// appointments in one transaction.
func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteDoctor(ctx, id); err != nil {
		return deadline(ctx, err)
	}
	s.log.Info("doctor deleted", zap.String("doctor_id", id.String()))
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	p.NormalizeEmail()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.ID = uuid.New()
	if err := s.repo.CreatePatient(ctx, p); err != nil {
		return nil, deadline(ctx, err)
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetPatientByID(ctx, id)
	if err != nil {
		return nil, deadline(ctx, err)
	}
	return p, nil
}

// DeletePatient cascades over the patient's appointments, freeing any slots
// they were holding.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeletePatient(ctx, id); err != nil {
		return deadline(ctx, err)
	}
	s.log.Info("patient deleted", zap.String("patient_id", id.String()))
	return nil
}

// deadline rewrites a deadline expiry as ErrTimeout. Mutations run inside
// transactions, so an expired deadline always rolls back to unchanged state.
func deadline(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
