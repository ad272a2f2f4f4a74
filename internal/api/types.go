package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
)

type CreateAppointmentRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type CreateTemplateRequest struct {
	Weekday     string `json:"weekday"`
	Start       string `json:"start"`
	End         string `json:"end"`
	SlotMinutes int    `json:"slot_minutes"`
}

type SetActiveRequest struct {
	Active *bool `json:"active"`
}

type ExceptionDateRequest struct {
	Date string `json:"date"`
}

type DiagnosisRequest struct {
	Summary     string   `json:"summary"`
	Symptoms    string   `json:"symptoms"`
	Treatment   string   `json:"treatment"`
	Medications []string `json:"medications"`
	Notes       string   `json:"notes"`
}

type AppointmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	DoctorID     uuid.UUID  `json:"doctor_id"`
	Date         string     `json:"date"`
	Start        string     `json:"start"`
	End          string     `json:"end"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CancelledBy  *uuid.UUID `json:"cancelled_by,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

type TemplateResponse struct {
	ID             uuid.UUID `json:"id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	Weekday        string    `json:"weekday"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
	SlotMinutes    int       `json:"slot_minutes"`
	Active         bool      `json:"active"`
	ExceptionDates []string  `json:"exception_dates"`
	Slots          []string  `json:"slots"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Slots    []string  `json:"slots"`
}

type AttendanceResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Status        string    `json:"status"`
	Attendable    bool      `json:"attendable"`
	Reason        string    `json:"reason,omitempty"`
	OpensAt       time.Time `json:"opens_at"`
	ClosesAt      time.Time `json:"closes_at"`
}

type DiagnosisResponse struct {
	Diagnosis   appointment.Diagnosis `json:"diagnosis"`
	Appointment AppointmentResponse   `json:"appointment"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		PatientID:    a.PatientID,
		DoctorID:     a.DoctorID,
		Date:         a.Date.String(),
		Start:        a.Start.String(),
		End:          a.End.String(),
		Status:       string(a.Status),
		Reason:       a.Reason,
		Notes:        a.Notes,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
		CancelledBy:  a.CancelledBy,
		CancelReason: a.CancelReason,
	}
}

func toTemplateResponse(t *availability.Template) TemplateResponse {
	resp := TemplateResponse{
		ID:             t.ID,
		DoctorID:       t.DoctorID,
		Weekday:        t.Weekday.String(),
		Start:          t.Start.String(),
		End:            t.End.String(),
		SlotMinutes:    t.SlotMinutes,
		Active:         t.Active,
		ExceptionDates: make([]string, 0, len(t.ExceptionDates)),
		Slots:          formatSlots(t.GenerateSlots()),
	}
	for _, d := range t.ExceptionDates {
		resp.ExceptionDates = append(resp.ExceptionDates, d.String())
	}
	return resp
}

func formatSlots(slots []availability.TimeOfDay) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.String())
	}
	return out
}
