package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so every query
// method works identically inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PgRepository{pool: r.pool, q: tx, inTx: true})
	})
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&d.Experience,
		&d.PricePerConsultation,
		&d.ImageURL,
		&d.IsTelehealthAvailable,
		&d.Location,
		&d.About,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, &StorageError{Op: "scan doctor", Err: err}
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.DateOfBirth,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, &StorageError{Op: "scan patient", Err: err}
	}
	return &p, nil
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.At,
		&s.IsAvailable,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, &StorageError{Op: "scan time slot", Err: err}
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&a.ConsultationType,
		&a.Reason,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, &StorageError{Op: "scan appointment", Err: err}
	}
	return &a, nil
}

// uniqueViolation translates Postgres unique-index errors into the domain
// duplicate errors, based on which constraint fired.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return ErrDuplicateEmail
		case strings.Contains(pgErr.ConstraintName, "doctor_id_at"):
			return ErrDuplicateSlot
		}
	}
	return nil
}

// Doctors

func (r *PgRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	row := r.q.QueryRow(ctx, `
		INSERT INTO doctors (id, name, specialty, experience, price_per_consultation,
		                     image_url, is_telehealth_available, location, about,
		                     created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING created_at, updated_at
	`, d.ID, d.Name, d.Specialty, d.Experience, d.PricePerConsultation,
		d.ImageURL, d.IsTelehealthAvailable, d.Location, d.About)

	if err := row.Scan(&d.CreatedAt, &d.UpdatedAt); err != nil {
		return &StorageError{Op: "create doctor", Err: err}
	}
	return nil
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, specialty, experience, price_per_consultation,
		       image_url, is_telehealth_available, location, about,
		       created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context, specialty *Specialty, q string, limit, offset int) ([]Doctor, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, specialty, experience, price_per_consultation,
		       image_url, is_telehealth_available, location, about,
		       created_at, updated_at
		FROM doctors
		WHERE ($1::text IS NULL OR specialty = $1)
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY name ASC
		LIMIT $3 OFFSET $4
	`, specialty, q, limit, offset)
	if err != nil {
		return nil, &StorageError{Op: "list doctors", Err: err}
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list doctors", Err: err}
	}
	return result, nil
}

// DeleteDoctor writes the cascade out explicitly: appointments first, then
// slots, then the doctor row. Slots go away with the doctor, so nothing is
// released.
func (r *PgRepository) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(repo Repository) error {
		tx := repo.(*PgRepository)

		if _, err := tx.q.Exec(ctx, `DELETE FROM appointments WHERE doctor_id = $1`, id); err != nil {
			return &StorageError{Op: "delete doctor appointments", Err: err}
		}
		if _, err := tx.q.Exec(ctx, `DELETE FROM time_slots WHERE doctor_id = $1`, id); err != nil {
			return &StorageError{Op: "delete doctor slots", Err: err}
		}

		tag, err := tx.q.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
		if err != nil {
			return &StorageError{Op: "delete doctor", Err: err}
		}
		if tag.RowsAffected() == 0 {
			return ErrDoctorNotFound
		}
		return nil
	})
}

// Patients

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	row := r.q.QueryRow(ctx, `
		INSERT INTO patients (id, name, email, phone, date_of_birth, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Email, p.Phone, p.DateOfBirth)

	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return dup
		}
		return &StorageError{Op: "create patient", Err: err}
	}
	return nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, email, phone, date_of_birth, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

// DeletePatient cascades over the patient's appointments. Slots held by
// still-active appointments are freed so they can be booked again.
func (r *PgRepository) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(repo Repository) error {
		tx := repo.(*PgRepository)

		_, err := tx.q.Exec(ctx, `
			UPDATE time_slots ts
			SET is_available = true, updated_at = now()
			FROM appointments a
			WHERE a.patient_id = $1
			  AND a.status IN ('PENDING', 'CONFIRMED')
			  AND ts.doctor_id = a.doctor_id
			  AND ts.at = a.date
		`, id)
		if err != nil {
			return &StorageError{Op: "free patient slots", Err: err}
		}

		if _, err := tx.q.Exec(ctx, `DELETE FROM appointments WHERE patient_id = $1`, id); err != nil {
			return &StorageError{Op: "delete patient appointments", Err: err}
		}

		tag, err := tx.q.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
		if err != nil {
			return &StorageError{Op: "delete patient", Err: err}
		}
		if tag.RowsAffected() == 0 {
			return ErrPatientNotFound
		}
		return nil
	})
}

// Time slots

func (r *PgRepository) GetTimeSlot(ctx context.Context, doctorID uuid.UUID, at time.Time) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, doctor_id, at, is_available, created_at, updated_at
		FROM time_slots
		WHERE doctor_id = $1 AND at = $2
	`, doctorID, at)
	return scanSlot(row)
}

func (r *PgRepository) GetTimeSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, doctor_id, at, is_available, created_at, updated_at
		FROM time_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ConditionalSetSlotAvailability(ctx context.Context, slotID uuid.UUID, expected, value bool) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE time_slots
		SET is_available = $3,
		    updated_at = now()
		WHERE id = $1
		  AND is_available = $2
	`, slotID, expected, value)
	if err != nil {
		return false, &StorageError{Op: "set slot availability", Err: err}
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) CreateTimeSlots(ctx context.Context, slots []TimeSlot) (int, error) {
	batch := &pgx.Batch{}
	for _, s := range slots {
		batch.Queue(`
			INSERT INTO time_slots (id, doctor_id, at, is_available, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (doctor_id, at) DO NOTHING
		`, s.ID, s.DoctorID, s.At, s.IsAvailable)
	}

	results := r.q.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range slots {
		tag, err := results.Exec()
		if err != nil {
			return inserted, &StorageError{Op: "create time slots", Err: err}
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *PgRepository) ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, availableOnly bool) ([]TimeSlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, doctor_id, at, is_available, created_at, updated_at
		FROM time_slots
		WHERE doctor_id = $1
		  AND at >= $2
		  AND at < $3
		  AND ($4 = false OR is_available = true)
		ORDER BY at ASC
	`, doctorID, from, to, availableOnly)
	if err != nil {
		return nil, &StorageError{Op: "list slots", Err: err}
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list slots", Err: err}
	}
	return result, nil
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	row := r.q.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, date, consultation_type,
		                          reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING created_at, updated_at
	`, a.ID, a.DoctorID, a.PatientID, a.Date, a.ConsultationType, a.Reason, a.Status)

	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return &StorageError{Op: "create appointment", Err: err}
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, doctor_id, patient_id, date, consultation_type, reason, status,
		       created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, doctor_id, patient_id, date, consultation_type, reason, status,
		          created_at, updated_at
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentDate(ctx context.Context, id uuid.UUID, from AppointmentStatus, oldDate, newDate time.Time) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET date = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		  AND date = $3
		RETURNING id, doctor_id, patient_id, date, consultation_type, reason, status,
		          created_at, updated_at
	`, id, from, oldDate, newDate)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, doctor_id, patient_id, date, consultation_type, reason, status,
		       created_at, updated_at
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, &StorageError{Op: "list appointments by patient", Err: err}
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list appointments by patient", Err: err}
	}
	return result, nil
}
