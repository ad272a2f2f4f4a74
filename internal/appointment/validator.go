package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/availability"
)

var (
	ErrNoAvailability  = apperr.New(apperr.ErrConflict, "doctor has no availability on that day")
	ErrExceptionDate   = apperr.New(apperr.ErrConflict, "doctor is not available on that date")
	ErrOutsideHours    = apperr.New(apperr.ErrConflict, "time is outside the doctor's working hours")
	ErrOffGrid         = apperr.New(apperr.ErrConflict, "time is not one of the doctor's slot start times")
	ErrSlotOverrunsDay = apperr.New(apperr.ErrConflict, "appointment ends after the doctor's working hours")
	ErrInvalidDuration = apperr.New(apperr.ErrValidation, "appointment must last more than 0 and at most 30 minutes")
	ErrSlotUnavailable = apperr.New(apperr.ErrConflict, "slot is not available")
)

// Verdict names the rule that decided whether a slot can be booked.
type Verdict int

const (
	Bookable Verdict = iota
	NoTemplate
	ExceptionDate
	OutsideHours
	OffGrid
	Occupied
	InvalidDuration
	OverrunsTemplate
)

var verdictNames = map[Verdict]string{
	Bookable:         "bookable",
	NoTemplate:       "no_template",
	ExceptionDate:    "exception_date",
	OutsideHours:     "outside_hours",
	OffGrid:          "off_grid",
	Occupied:         "occupied",
	InvalidDuration:  "invalid_duration",
	OverrunsTemplate: "overruns_template",
}

func (v Verdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Err converts a rejecting verdict into the error returned to callers.
func (v Verdict) Err() error {
	switch v {
	case Bookable:
		return nil
	case NoTemplate:
		return ErrNoAvailability
	case ExceptionDate:
		return ErrExceptionDate
	case OutsideHours:
		return ErrOutsideHours
	case OffGrid:
		return ErrOffGrid
	case Occupied:
		return ErrSlotAlreadyBooked
	case InvalidDuration:
		return ErrInvalidDuration
	case OverrunsTemplate:
		return ErrSlotOverrunsDay
	}
	return ErrSlotUnavailable
}

// AppointmentFinder is the read side of the repository used for conflict checks.
type AppointmentFinder interface {
	FindAppointments(ctx context.Context, doctorID uuid.UUID, date availability.Date) ([]Appointment, error)
}

// Validator answers whether a slot can be booked. It never caches: every call
// re-reads templates and appointments. A positive answer is only a pre-check,
// the repository insert decides races.
type Validator struct {
	templates    TemplateFinder
	appointments AppointmentFinder
}

func NewValidator(templates TemplateFinder, appointments AppointmentFinder) *Validator {
	return &Validator{templates: templates, appointments: appointments}
}

func (v *Validator) IsSlotBookable(ctx context.Context, doctorID uuid.UUID, date availability.Date, start availability.TimeOfDay) (bool, error) {
	verdict, _, err := v.CheckSlot(ctx, doctorID, date, start)
	if err != nil {
		return false, err
	}
	return verdict == Bookable, nil
}

func (v *Validator) IsFullSlotValid(ctx context.Context, doctorID uuid.UUID, date availability.Date, start, end availability.TimeOfDay) (bool, error) {
	verdict, err := v.CheckFullSlot(ctx, doctorID, date, start, end)
	if err != nil {
		return false, err
	}
	return verdict == Bookable, nil
}

// CheckSlot applies the start-time rules in order and returns the template it
// resolved, if any. err is only set for infrastructure failures.
func (v *Validator) CheckSlot(ctx context.Context, doctorID uuid.UUID, date availability.Date, start availability.TimeOfDay) (Verdict, *availability.Template, error) {
	tpl, err := v.activeTemplate(ctx, doctorID, date)
	if err != nil || tpl == nil {
		return NoTemplate, nil, err
	}
	if !tpl.IsAvailableOn(date) {
		return ExceptionDate, tpl, nil
	}
	if start < tpl.Start || start > tpl.End {
		return OutsideHours, tpl, nil
	}
	if !tpl.HasSlot(start) {
		return OffGrid, tpl, nil
	}

	booked, err := v.bookedStarts(ctx, doctorID, date)
	if err != nil {
		return Bookable, tpl, err
	}
	if _, taken := booked[start]; taken {
		return Occupied, tpl, nil
	}
	return Bookable, tpl, nil
}

// CheckFullSlot is CheckSlot plus the duration and end-time rules.
func (v *Validator) CheckFullSlot(ctx context.Context, doctorID uuid.UUID, date availability.Date, start, end availability.TimeOfDay) (Verdict, error) {
	verdict, tpl, err := v.CheckSlot(ctx, doctorID, date, start)
	if err != nil || verdict != Bookable {
		return verdict, err
	}
	if !validDuration(start, end) {
		return InvalidDuration, nil
	}
	if end > tpl.End {
		return OverrunsTemplate, nil
	}
	return Bookable, nil
}

// AvailableSlots returns the template's slots for date minus those already taken.
func (v *Validator) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date availability.Date) ([]availability.TimeOfDay, error) {
	tpl, err := v.activeTemplate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if tpl == nil || !tpl.IsAvailableOn(date) {
		return []availability.TimeOfDay{}, nil
	}

	booked, err := v.bookedStarts(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	generated := tpl.GenerateSlots()
	free := make([]availability.TimeOfDay, 0, len(generated))
	for _, slot := range generated {
		if _, taken := booked[slot]; !taken {
			free = append(free, slot)
		}
	}
	return free, nil
}

func (v *Validator) activeTemplate(ctx context.Context, doctorID uuid.UUID, date availability.Date) (*availability.Template, error) {
	tpl, err := v.templates.FindActiveTemplate(ctx, doctorID, date.Weekday())
	if err != nil {
		if errors.Is(err, availability.ErrTemplateNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active template: %w", err)
	}
	return tpl, nil
}

func (v *Validator) bookedStarts(ctx context.Context, doctorID uuid.UUID, date availability.Date) (map[availability.TimeOfDay]struct{}, error) {
	existing, err := v.appointments.FindAppointments(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}

	booked := make(map[availability.TimeOfDay]struct{}, len(existing))
	for _, a := range existing {
		if a.Status == StatusCancelled {
			continue
		}
		booked[a.Start] = struct{}{}
	}
	return booked, nil
}

func validDuration(start, end availability.TimeOfDay) bool {
	minutes := int(end - start)
	return minutes > 0 && minutes <= availability.MaxSlotMinutes
}
