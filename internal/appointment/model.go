package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

type Status string

const (
	StatusScheduled Status = "PROGRAMADA"
	StatusConfirmed Status = "CONFIRMADA"
	StatusCompleted Status = "COMPLETADA"
	StatusCancelled Status = "CANCELADA"
	StatusNoShow    Status = "NO_ASISTIO"
)

// transitions lists every state change the service may perform.
// Statuses absent from the map are terminal.
var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	ID           uuid.UUID              `json:"id"`
	PatientID    uuid.UUID              `json:"patient_id"`
	DoctorID     uuid.UUID              `json:"doctor_id"`
	Date         availability.Date      `json:"date"`
	Start        availability.TimeOfDay `json:"start"`
	End          availability.TimeOfDay `json:"end"`
	Status       Status                 `json:"status"`
	Reason       string                 `json:"reason"`
	Notes        string                 `json:"notes,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	CreatedBy    uuid.UUID              `json:"created_by"`
	CancelledBy  *uuid.UUID             `json:"cancelled_by,omitempty"`
	CancelReason string                 `json:"cancel_reason,omitempty"`
}

func (a *Appointment) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Date.At(a.Start, loc)
}

func (a *Appointment) EndsAt(loc *time.Location) time.Time {
	return a.Date.At(a.End, loc)
}

// Diagnosis is the clinical record attached to a completed appointment.
type Diagnosis struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Summary       string    `json:"summary"`
	Symptoms      string    `json:"symptoms,omitempty"`
	Treatment     string    `json:"treatment,omitempty"`
	Medications   []string  `json:"medications,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// StatusChange describes a single state-machine step applied by the repository.
type StatusChange struct {
	To      Status
	At      time.Time
	ActorID *uuid.UUID
	Reason  string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
