package booking

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository with the same semantics as the
// Postgres implementation: compare-and-set availability, CAS status
// updates, and transactional rollback via snapshot/restore.
type memRepo struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]Doctor
	patients     map[uuid.UUID]Patient
	slots        map[uuid.UUID]TimeSlot
	appointments map[uuid.UUID]Appointment

	failCreateAppointment error
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:      make(map[uuid.UUID]Doctor),
		patients:     make(map[uuid.UUID]Patient),
		slots:        make(map[uuid.UUID]TimeSlot),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (m *memRepo) snapshot() (map[uuid.UUID]TimeSlot, map[uuid.UUID]Appointment) {
	slots := make(map[uuid.UUID]TimeSlot, len(m.slots))
	for k, v := range m.slots {
		slots[k] = v
	}
	appts := make(map[uuid.UUID]Appointment, len(m.appointments))
	for k, v := range m.appointments {
		appts[k] = v
	}
	return slots, appts
}

func (m *memRepo) WithTx(ctx context.Context, fn func(Repository) error) error {
	m.mu.Lock()
	slots, appts := m.snapshot()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.slots = slots
		m.appointments = appts
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memRepo) CreateDoctor(ctx context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	m.doctors[d.ID] = *d
	return nil
}

func (m *memRepo) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *memRepo) ListDoctors(ctx context.Context, specialty *Specialty, q string, limit, offset int) ([]Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Doctor
	for _, d := range m.doctors {
		if specialty != nil && d.Specialty != *specialty {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(q)) {
			continue
		}
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (m *memRepo) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctors[id]; !ok {
		return ErrDoctorNotFound
	}
	for aid, a := range m.appointments {
		if a.DoctorID == id {
			delete(m.appointments, aid)
		}
	}
	for sid, s := range m.slots {
		if s.DoctorID == id {
			delete(m.slots, sid)
		}
	}
	delete(m.doctors, id)
	return nil
}

func (m *memRepo) CreatePatient(ctx context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.patients {
		if existing.Email == p.Email {
			return ErrDuplicateEmail
		}
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.patients[p.ID] = *p
	return nil
}

func (m *memRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memRepo) DeletePatient(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[id]; !ok {
		return ErrPatientNotFound
	}
	for aid, a := range m.appointments {
		if a.PatientID != id {
			continue
		}
		if a.Status == StatusPending || a.Status == StatusConfirmed {
			for sid, s := range m.slots {
				if s.DoctorID == a.DoctorID && s.At.Equal(a.Date) {
					s.IsAvailable = true
					m.slots[sid] = s
				}
			}
		}
		delete(m.appointments, aid)
	}
	delete(m.patients, id)
	return nil
}

func (m *memRepo) GetTimeSlot(ctx context.Context, doctorID uuid.UUID, at time.Time) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.DoctorID == doctorID && s.At.Equal(at) {
			return &s, nil
		}
	}
	return nil, ErrSlotNotFound
}

func (m *memRepo) GetTimeSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (m *memRepo) ConditionalSetSlotAvailability(ctx context.Context, slotID uuid.UUID, expected, value bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok || s.IsAvailable != expected {
		return false, nil
	}
	s.IsAvailable = value
	s.UpdatedAt = time.Now()
	m.slots[slotID] = s
	return true, nil
}

func (m *memRepo) CreateTimeSlots(ctx context.Context, slots []TimeSlot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, s := range slots {
		dup := false
		for _, existing := range m.slots {
			if existing.DoctorID == s.DoctorID && existing.At.Equal(s.At) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		m.slots[s.ID] = s
		inserted++
	}
	return inserted, nil
}

func (m *memRepo) ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, availableOnly bool) ([]TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []TimeSlot
	for _, s := range m.slots {
		if s.DoctorID != doctorID {
			continue
		}
		if s.At.Before(from) || !s.At.Before(to) {
			continue
		}
		if availableOnly && !s.IsAvailable {
			continue
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].At.Before(result[j].At) })
	return result, nil
}

func (m *memRepo) CreateAppointment(ctx context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateAppointment != nil {
		return m.failCreateAppointment
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.appointments[a.ID] = *a
	return nil
}

func (m *memRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	return &a, nil
}

func (m *memRepo) UpdateAppointmentDate(ctx context.Context, id uuid.UUID, from AppointmentStatus, oldDate, newDate time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from || !a.Date.Equal(oldDate) {
		return nil, ErrAppointmentNotFound
	}
	a.Date = newDate
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	return &a, nil
}

func (m *memRepo) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// passLocker runs the critical section directly; lock contention is covered
// by the storage-level check-and-set.
type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
