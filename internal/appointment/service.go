package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
	EventDiagnosisRecorded    = "DIAGNOSIS_RECORDED"
)

var (
	ErrMissingParticipant      = apperr.New(apperr.ErrValidation, "patient_id and doctor_id are required")
	ErrBookingInPast           = apperr.New(apperr.ErrValidation, "appointments cannot be booked in the past")
	ErrMissingDiagnosis        = apperr.New(apperr.ErrValidation, "diagnosis summary is required")
	ErrSlotBeingBooked         = apperr.New(apperr.ErrConflict, "doctor's agenda for that day is being booked, please retry")
	ErrInvalidStatusTransition = apperr.New(apperr.ErrIllegalTransition, "invalid status transition")
	ErrCannotCancelCompleted   = apperr.New(apperr.ErrIllegalTransition, "cannot cancel a completed appointment")
	ErrNotAttendable           = apperr.New(apperr.ErrIllegalTransition, "appointment cannot be attended now")
	ErrWindowStillOpen         = apperr.New(apperr.ErrIllegalTransition, "attendance window has not closed yet")
	ErrNotAppointmentDoctor    = apperr.New(apperr.ErrForbidden, "only the appointment's doctor may record its diagnosis")
)

// BookingRequest is the caller's chosen slot.
type BookingRequest struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      availability.Date
	Start     availability.TimeOfDay
	End       availability.TimeOfDay
	Reason    string
	Notes     string
	CreatedBy uuid.UUID
}

// DiagnosisInput is what a doctor submits when attending an appointment.
type DiagnosisInput struct {
	Summary     string
	Symptoms    string
	Treatment   string
	Medications []string
	Notes       string
}

// Attendance is the result of the attendance-window gate.
type Attendance struct {
	Attendable bool      `json:"attendable"`
	Reason     string    `json:"reason,omitempty"`
	OpensAt    time.Time `json:"opens_at"`
	ClosesAt   time.Time `json:"closes_at"`
}

type Service struct {
	repo      Repository
	validator *Validator
	locker    redisclient.Locker
	clock     clock.Clock
	window    AttendanceWindow
	log       zerolog.Logger
}

func NewService(repo Repository, templates TemplateFinder, locker redisclient.Locker, clk clock.Clock, cfg config.Config, logger zerolog.Logger) *Service {
	window := AttendanceWindow{Early: cfg.AttendEarly, Late: cfg.AttendLate}
	if window.Early <= 0 || window.Late <= 0 {
		window = DefaultAttendanceWindow
	}

	return &Service{
		repo:      repo,
		validator: NewValidator(templates, repo),
		locker:    locker,
		clock:     clk,
		window:    window,
		log:       logger.With().Str("component", "appointment").Logger(),
	}
}

func (s *Service) Window() AttendanceWindow { return s.window }

// AvailableSlots lists the doctor's free start times on date.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date availability.Date) ([]availability.TimeOfDay, error) {
	metrics.SlotQueriesTotal.Inc()
	slots, err := s.validator.AvailableSlots(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("available slots: %w", err)
	}
	return slots, nil
}

// Book creates a PROGRAMADA appointment. The doctor's day is locked while the
// slot is validated and inserted, and the insert itself rejects duplicates.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := s.checkBookingRequest(req); err != nil {
		metrics.RecordBooking("invalid")
		return nil, err
	}

	var created *Appointment

	err := s.locker.WithDayLock(ctx, req.DoctorID, req.Date.String(), func(lockCtx context.Context) error {
		verdict, err := s.validator.CheckFullSlot(lockCtx, req.DoctorID, req.Date, req.Start, req.End)
		if err != nil {
			return fmt.Errorf("validate slot: %w", err)
		}
		if verdict != Bookable {
			return verdict.Err()
		}

		now := s.clock.Now()
		appt := &Appointment{
			ID:        uuid.New(),
			PatientID: req.PatientID,
			DoctorID:  req.DoctorID,
			Date:      req.Date,
			Start:     req.Start,
			End:       req.End,
			Status:    StatusScheduled,
			Reason:    strings.TrimSpace(req.Reason),
			Notes:     req.Notes,
			CreatedAt: now,
			UpdatedAt: now,
			CreatedBy: req.CreatedBy,
		}
		if appt.CreatedBy == uuid.Nil {
			appt.CreatedBy = req.PatientID
		}

		if err := s.repo.InsertAppointment(lockCtx, appt); err != nil {
			if errors.Is(err, ErrSlotAlreadyBooked) {
				return err
			}
			return fmt.Errorf("insert appointment: %w", err)
		}
		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"doctor_id":  appt.DoctorID.String(),
			"patient_id": appt.PatientID.String(),
			"date":       appt.Date.String(),
			"start":      appt.Start.String(),
			"end":        appt.End.String(),
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			err = ErrSlotBeingBooked
		}
		metrics.RecordBooking(bookingOutcome(err))
		return nil, err
	}

	metrics.RecordBooking("booked")
	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Str("date", created.Date.String()).
		Str("start", created.Start.String()).
		Msg("appointment booked")

	return created, nil
}

func (s *Service) checkBookingRequest(req BookingRequest) error {
	if req.PatientID == uuid.Nil || req.DoctorID == uuid.Nil {
		return ErrMissingParticipant
	}
	if !req.Start.Valid() || !req.End.Valid() {
		return availability.ErrInvalidTimeOfDay
	}
	if !validDuration(req.Start, req.End) {
		return ErrInvalidDuration
	}
	if req.Date.At(req.Start, s.clock.Location()).Before(s.clock.Now()) {
		return ErrBookingInPast
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.FindAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date availability.Date) ([]Appointment, error) {
	appts, err := s.repo.FindAppointments(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// Confirm moves a PROGRAMADA appointment to CONFIRMADA.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusChange{To: StatusConfirmed}, nil)
}

// Cancel is allowed from PROGRAMADA and CONFIRMADA only.
func (s *Service) Cancel(ctx context.Context, id, actorID uuid.UUID, reason string) (*Appointment, error) {
	change := StatusChange{
		To:     StatusCancelled,
		Reason: strings.TrimSpace(reason),
	}
	if actorID != uuid.Nil {
		change.ActorID = &actorID
	}
	return s.transition(ctx, id, change, nil)
}

// Complete closes a confirmed appointment. In the normal flow it is reached
// through RecordDiagnosis.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusChange{To: StatusCompleted}, nil)
}

// MarkNoShow records that the patient never arrived. It is only allowed once
// the attendance window has closed.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusChange{To: StatusNoShow}, func(a *Appointment, now time.Time) error {
		if !s.window.Closed(a, now, s.clock.Location()) {
			return ErrWindowStillOpen
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, change StatusChange, guard func(*Appointment, time.Time) error) (*Appointment, error) {
	appt, err := s.repo.FindAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !appt.Status.CanTransitionTo(change.To) {
		return nil, transitionError(appt.Status, change.To)
	}

	now := s.clock.Now()
	if guard != nil {
		if err := guard(appt, now); err != nil {
			return nil, err
		}
	}

	change.At = now
	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, change)
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	metrics.RecordTransition(string(change.To))

	payload := map[string]any{
		"from": string(appt.Status),
		"to":   string(change.To),
	}
	if change.ActorID != nil {
		payload["actor_id"] = change.ActorID.String()
	}
	if change.Reason != "" {
		payload["reason"] = change.Reason
	}
	s.logEvent(ctx, updated.ID, transitionEvents[change.To], payload)

	return updated, nil
}

var transitionEvents = map[Status]string{
	StatusConfirmed: EventAppointmentConfirmed,
	StatusCancelled: EventAppointmentCancelled,
	StatusCompleted: EventAppointmentCompleted,
	StatusNoShow:    EventAppointmentNoShow,
}

func transitionError(from, to Status) error {
	if from == StatusCompleted && to == StatusCancelled {
		return ErrCannotCancelCompleted
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, from, to)
}

// CanBeAttended reports whether a diagnosis may be recorded right now.
func (s *Service) CanBeAttended(ctx context.Context, id uuid.UUID) (bool, error) {
	att, err := s.Attendance(ctx, id)
	if err != nil {
		return false, err
	}
	return att.Attendable, nil
}

// ExplainBlockReason returns why the appointment cannot be attended now, or ""
// when it can.
func (s *Service) ExplainBlockReason(ctx context.Context, id uuid.UUID) (string, error) {
	att, err := s.Attendance(ctx, id)
	if err != nil {
		return "", err
	}
	return att.Reason, nil
}

func (s *Service) Attendance(ctx context.Context, id uuid.UUID) (Attendance, error) {
	appt, err := s.repo.FindAppointment(ctx, id)
	if err != nil {
		return Attendance{}, fmt.Errorf("load appointment: %w", err)
	}
	return s.attendance(appt, s.clock.Now()), nil
}

func (s *Service) attendance(appt *Appointment, now time.Time) Attendance {
	loc := s.clock.Location()
	opens, closes := s.window.Bounds(appt, loc)
	return Attendance{
		Attendable: s.window.CanBeAttended(appt, now, loc),
		Reason:     s.window.ExplainBlockReason(appt, now, loc),
		OpensAt:    opens,
		ClosesAt:   closes,
	}
}

// RecordDiagnosis stores the doctor's diagnosis and completes the appointment.
// It is gated by the attendance window.
func (s *Service) RecordDiagnosis(ctx context.Context, doctorID, appointmentID uuid.UUID, in DiagnosisInput) (*Diagnosis, *Appointment, error) {
	if strings.TrimSpace(in.Summary) == "" {
		return nil, nil, ErrMissingDiagnosis
	}

	appt, err := s.repo.FindAppointment(ctx, appointmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.DoctorID != doctorID {
		return nil, nil, ErrNotAppointmentDoctor
	}

	if _, err := s.repo.FindDiagnosis(ctx, appt.ID); err == nil {
		return nil, nil, ErrDiagnosisExists
	} else if !errors.Is(err, ErrDiagnosisNotFound) {
		return nil, nil, fmt.Errorf("check diagnosis: %w", err)
	}

	now := s.clock.Now()
	if att := s.attendance(appt, now); !att.Attendable {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotAttendable, att.Reason)
	}

	d := &Diagnosis{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Summary:       strings.TrimSpace(in.Summary),
		Symptoms:      in.Symptoms,
		Treatment:     in.Treatment,
		Medications:   in.Medications,
		Notes:         in.Notes,
		CreatedAt:     now,
	}

	completed, err := s.repo.CompleteWithDiagnosis(ctx, d, now)
	if err != nil {
		return nil, nil, fmt.Errorf("record diagnosis: %w", err)
	}

	metrics.RecordTransition(string(StatusCompleted))
	s.logEvent(ctx, appt.ID, EventDiagnosisRecorded, map[string]any{
		"diagnosis_id": d.ID.String(),
		"doctor_id":    doctorID.String(),
	})
	s.logEvent(ctx, appt.ID, EventAppointmentCompleted, map[string]any{
		"from": string(appt.Status),
		"to":   string(StatusCompleted),
	})

	return d, completed, nil
}

// ExpireNoShows is intended to be called by the worker periodically. It marks
// every open appointment whose attendance window has closed as NO_ASISTIO and
// returns how many were changed.
func (s *Service) ExpireNoShows(ctx context.Context) (int, error) {
	now := s.clock.Now()
	loc := s.clock.Location()

	candidates, err := s.repo.FindOpenUntil(ctx, availability.DateOf(now.In(loc)))
	if err != nil {
		return 0, fmt.Errorf("find open appointments: %w", err)
	}

	expired := 0
	for _, appt := range candidates {
		if !s.window.Closed(&appt, now, loc) {
			continue
		}

		_, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, StatusChange{To: StatusNoShow, At: now})
		if err != nil {
			if errors.Is(err, ErrStatusChanged) || errors.Is(err, ErrAppointmentNotFound) {
				metrics.NoShowSweeps.WithLabelValues("skipped").Inc()
				continue
			}
			metrics.NoShowSweeps.WithLabelValues("error").Inc()
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to mark no-show")
			continue
		}

		expired++
		metrics.NoShowSweeps.WithLabelValues("marked").Inc()
		metrics.RecordTransition(string(StatusNoShow))
		s.logEvent(ctx, appt.ID, EventAppointmentNoShow, map[string]any{
			"from":   string(appt.Status),
			"reason": "worker",
		})
	}

	return expired, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, ErrSlotAlreadyBooked):
		return "occupied"
	case errors.Is(err, ErrSlotBeingBooked):
		return "contended"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrConflict):
		return "unavailable"
	}
	return "error"
}
