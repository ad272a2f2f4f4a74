package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

// MemoryRepository keeps appointments, diagnoses and events in process memory.
// It enforces the same live-slot uniqueness as the Postgres schema.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]Appointment
	diagnoses    map[uuid.UUID]Diagnosis // keyed by appointment id
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]Appointment),
		diagnoses:    make(map[uuid.UUID]Diagnosis),
	}
}

func (r *MemoryRepository) FindAppointments(_ context.Context, doctorID uuid.UUID, date availability.Date) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []Appointment{}
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Date == date {
			result = append(result, a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func (r *MemoryRepository) FindAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) InsertAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	for _, other := range r.appointments {
		if other.Status != StatusCancelled &&
			other.DoctorID == a.DoctorID && other.Date == a.Date && other.Start == a.Start {
			return ErrSlotAlreadyBooked
		}
	}
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from Status, change StatusChange) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.updateStatusLocked(id, from, change)
}

func (r *MemoryRepository) updateStatusLocked(id uuid.UUID, from Status, change StatusChange) (*Appointment, error) {
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrStatusChanged
	}

	a.Status = change.To
	a.UpdatedAt = change.At
	if change.ActorID != nil {
		actor := *change.ActorID
		a.CancelledBy = &actor
	}
	if change.Reason != "" {
		a.CancelReason = change.Reason
	}
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) CompleteWithDiagnosis(_ context.Context, d *Diagnosis, completedAt time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.diagnoses[d.AppointmentID]; exists {
		return nil, ErrDiagnosisExists
	}
	completed, err := r.updateStatusLocked(d.AppointmentID, StatusConfirmed, StatusChange{
		To: StatusCompleted,
		At: completedAt,
	})
	if err != nil {
		return nil, err
	}

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	r.diagnoses[d.AppointmentID] = *d
	return completed, nil
}

func (r *MemoryRepository) FindDiagnosis(_ context.Context, appointmentID uuid.UUID) (*Diagnosis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.diagnoses[appointmentID]
	if !ok {
		return nil, ErrDiagnosisNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) FindOpenUntil(_ context.Context, date availability.Date) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []Appointment{}
	for _, a := range r.appointments {
		if a.Status.IsTerminal() || a.Date.After(date) {
			continue
		}
		result = append(result, a)
	}
	sortAppointments(result)
	return result, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

func sortAppointments(as []Appointment) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].Date != as[j].Date {
			return as[i].Date.Before(as[j].Date)
		}
		if as[i].Start != as[j].Start {
			return as[i].Start < as[j].Start
		}
		return as[i].CreatedAt.Before(as[j].CreatedAt)
	})
}
