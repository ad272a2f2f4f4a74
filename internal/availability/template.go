package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

// MaxSlotMinutes is the longest consultation a template or appointment may define.
const MaxSlotMinutes = 30

var (
	ErrInvalidTimeRange    = apperr.New(apperr.ErrValidation, "start time must be before end time")
	ErrInvalidSlotDuration = apperr.New(apperr.ErrValidation, "slot duration must be between 1 and 30 minutes")
)

// Template is a doctor's recurring weekly working window.
type Template struct {
	ID             uuid.UUID    `json:"id"`
	DoctorID       uuid.UUID    `json:"doctor_id"`
	Weekday        time.Weekday `json:"weekday"`
	Start          TimeOfDay    `json:"start"`
	End            TimeOfDay    `json:"end"`
	SlotMinutes    int          `json:"slot_minutes"`
	Active         bool         `json:"active"`
	ExceptionDates []Date       `json:"exception_dates"`
	Version        int          `json:"version"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (t *Template) IsValid() bool {
	return t.Start < t.End
}

// Validate enforces the invariants a template must hold before it is stored.
func (t *Template) Validate() error {
	if !t.Start.Valid() || !t.End.Valid() {
		return ErrInvalidTimeOfDay
	}
	if !t.IsValid() {
		return ErrInvalidTimeRange
	}
	if t.SlotMinutes <= 0 || t.SlotMinutes > MaxSlotMinutes {
		return ErrInvalidSlotDuration
	}
	return nil
}

func (t *Template) SlotCount() int {
	if !t.IsValid() || t.SlotMinutes <= 0 {
		return 0
	}
	return int(t.End-t.Start) / t.SlotMinutes
}

func (t *Template) IsAvailableOn(d Date) bool {
	for _, ex := range t.ExceptionDates {
		if ex == d {
			return false
		}
	}
	return true
}

// AddExceptionDate records d as a day off. It reports false if d was already excluded.
func (t *Template) AddExceptionDate(d Date) bool {
	if !t.IsAvailableOn(d) {
		return false
	}
	t.ExceptionDates = append(t.ExceptionDates, d)
	return true
}

// GenerateSlots returns every start time whose full slot fits before End.
// A trailing interval shorter than the slot duration is left unscheduled.
func (t *Template) GenerateSlots() []TimeOfDay {
	if !t.IsValid() || t.SlotMinutes <= 0 {
		return []TimeOfDay{}
	}

	step := TimeOfDay(t.SlotMinutes)
	slots := make([]TimeOfDay, 0, t.SlotCount())
	for cur := t.Start; cur+step <= t.End; cur += step {
		slots = append(slots, cur)
	}
	return slots
}

// HasSlot reports whether start is one of the generated slot start times.
func (t *Template) HasSlot(start TimeOfDay) bool {
	if !t.IsValid() || t.SlotMinutes <= 0 {
		return false
	}
	if start < t.Start || start+TimeOfDay(t.SlotMinutes) > t.End {
		return false
	}
	return int(start-t.Start)%t.SlotMinutes == 0
}

func (t Template) clone() Template {
	c := t
	c.ExceptionDates = append([]Date(nil), t.ExceptionDates...)
	return c
}
