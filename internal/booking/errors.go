package booking

import (
	"errors"
	"fmt"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("time slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotUnavailable means the caller lost the race for a slot: it was
	// already reserved, or another booking claimed it first.
	ErrSlotUnavailable = errors.New("time slot is not available")

	ErrInvalidConsultationType = errors.New("doctor does not offer telehealth consultations")
	ErrInvalidTransition       = errors.New("invalid appointment status transition")

	// ErrTimeout is returned when the caller's deadline expired before the
	// operation completed. State is guaranteed unchanged.
	ErrTimeout = errors.New("operation deadline exceeded")

	ErrDuplicateSlot  = errors.New("doctor already has a slot at that time")
	ErrDuplicateEmail = errors.New("patient email already registered")
)

// ValidationError reports a single malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps a repository-level transient failure (connection loss,
// query error) so callers never mistake it for a domain condition.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
