package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/availability"
)

var (
	ErrAppointmentNotFound = apperr.New(apperr.ErrNotFound, "appointment not found")
	ErrDiagnosisNotFound   = apperr.New(apperr.ErrNotFound, "diagnosis not found")
	ErrSlotAlreadyBooked   = apperr.New(apperr.ErrConflict, "slot already has an active appointment")
	ErrDiagnosisExists     = apperr.New(apperr.ErrConflict, "appointment already has a diagnosis")
	ErrStatusChanged       = apperr.New(apperr.ErrConflict, "appointment status changed concurrently")
)

// Repository contains all persistence needed by the service.
//
// InsertAppointment is the final arbiter of slot exclusivity: it must fail with
// ErrSlotAlreadyBooked when a non-cancelled appointment already holds the same
// (doctor, date, start). UpdateStatus only applies when the stored status still
// equals from, otherwise it returns ErrStatusChanged.
type Repository interface {
	FindAppointments(ctx context.Context, doctorID uuid.UUID, date availability.Date) ([]Appointment, error)
	FindAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	InsertAppointment(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from Status, change StatusChange) (*Appointment, error)

	// Diagnosis storage completes the appointment in the same unit of work.
	CompleteWithDiagnosis(ctx context.Context, d *Diagnosis, completedAt time.Time) (*Appointment, error)
	FindDiagnosis(ctx context.Context, appointmentID uuid.UUID) (*Diagnosis, error)

	// No-show sweep
	FindOpenUntil(ctx context.Context, date availability.Date) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

// TemplateFinder resolves a doctor's active template for a weekday. It returns
// availability.ErrTemplateNotFound when the doctor does not work that day.
type TemplateFinder interface {
	FindActiveTemplate(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*availability.Template, error)
}
