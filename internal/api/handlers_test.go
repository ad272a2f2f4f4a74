package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/config"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

type testServer struct {
	handler http.Handler
	clock   *clock.Fixed
	doctor  uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clk := clock.NewFixed(time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC))
	templates := availability.NewMemoryRepository()
	appts := appointment.NewMemoryRepository()

	tplSvc := availability.NewService(templates, clk, zerolog.Nop())
	apptSvc := appointment.NewService(appts, templates, redisclient.NewLocalDayLocker(time.Second),
		clk, config.Config{}, zerolog.Nop())

	handler := NewRouter(RouterConfig{
		Appointments: apptSvc,
		Templates:    tplSvc,
		Postgres:     PingFunc(func(context.Context) error { return nil }),
		Logger:       zerolog.Nop(),
		Env:          "test",
	})

	return &testServer{handler: handler, clock: clk, doctor: uuid.New()}
}

func (s *testServer) do(t *testing.T, method, path string, actor uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != uuid.Nil {
		req.Header.Set(ActorHeader, actor.String())
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createMondayTemplate(t *testing.T) TemplateResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/doctors/"+s.doctor.String()+"/templates", s.doctor, CreateTemplateRequest{
		Weekday:     "monday",
		Start:       "08:00",
		End:         "12:00",
		SlotMinutes: 30,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create template: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var tpl TemplateResponse
	decode(t, rec, &tpl)
	return tpl
}

func (s *testServer) book(t *testing.T, start, end string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/appointments", uuid.Nil, CreateAppointmentRequest{
		PatientID: uuid.NewString(),
		DoctorID:  s.doctor.String(),
		Date:      "2024-06-03",
		Start:     start,
		End:       end,
		Reason:    "follow-up",
	})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, rec, &resp)
	return resp.Error
}

func TestTemplatesAndSlots(t *testing.T) {
	s := newTestServer(t)

	tpl := s.createMondayTemplate(t)
	if len(tpl.Slots) != 8 || tpl.Slots[0] != "08:00" || tpl.Slots[7] != "11:30" {
		t.Errorf("unexpected generated slots %v", tpl.Slots)
	}

	rec := s.do(t, http.MethodGet, "/doctors/"+s.doctor.String()+"/slots?date=2024-06-03", uuid.Nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var slots SlotsResponse
	decode(t, rec, &slots)
	if len(slots.Slots) != 8 {
		t.Errorf("expected 8 free slots, got %v", slots.Slots)
	}

	rec = s.do(t, http.MethodPost, "/templates/"+tpl.ID.String()+"/exceptions", s.doctor, ExceptionDateRequest{Date: "2024-06-03"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add exception: expected 200, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/doctors/"+s.doctor.String()+"/slots?date=2024-06-03", uuid.Nil, nil)
	decode(t, rec, &slots)
	if len(slots.Slots) != 0 {
		t.Errorf("expected no slots on an exception date, got %v", slots.Slots)
	}
}

func TestCreateTemplate_Errors(t *testing.T) {
	s := newTestServer(t)
	path := "/doctors/" + s.doctor.String() + "/templates"
	valid := CreateTemplateRequest{Weekday: "monday", Start: "08:00", End: "12:00", SlotMinutes: 30}

	tests := []struct {
		name     string
		actor    uuid.UUID
		body     CreateTemplateRequest
		wantCode int
	}{
		{"missing actor", uuid.Nil, valid, http.StatusBadRequest},
		{"other doctor", uuid.New(), valid, http.StatusForbidden},
		{"bad weekday", s.doctor, CreateTemplateRequest{Weekday: "someday", Start: "08:00", End: "12:00", SlotMinutes: 30}, http.StatusBadRequest},
		{"slot too long", s.doctor, CreateTemplateRequest{Weekday: "monday", Start: "08:00", End: "12:00", SlotMinutes: 45}, http.StatusBadRequest},
		{"end before start", s.doctor, CreateTemplateRequest{Weekday: "monday", Start: "12:00", End: "08:00", SlotMinutes: 30}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, path, tt.actor, tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
		})
	}

	s.createMondayTemplate(t)
	rec := s.do(t, http.MethodPost, path, s.doctor, valid)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected a second active monday template to conflict, got %d", rec.Code)
	}
}

func TestBookAppointment(t *testing.T) {
	s := newTestServer(t)
	s.createMondayTemplate(t)

	rec := s.book(t, "09:00", "09:30")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var appt AppointmentResponse
	decode(t, rec, &appt)
	if appt.Status != string(appointment.StatusScheduled) || appt.Start != "09:00" {
		t.Errorf("unexpected appointment %+v", appt)
	}

	tests := []struct {
		name       string
		start, end string
		wantCode   int
		wantError  string
	}{
		{"same slot", "09:00", "09:30", http.StatusConflict, "conflict"},
		{"off grid", "09:10", "09:40", http.StatusConflict, "conflict"},
		{"bad time", "9am", "09:30", http.StatusBadRequest, "validation_error"},
		{"too long", "10:00", "11:00", http.StatusBadRequest, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.book(t, tt.start, tt.end)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, code)
			}
		})
	}

	rec = s.do(t, http.MethodGet, "/appointments?doctor_id="+s.doctor.String()+"&date=2024-06-03", uuid.Nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var list []AppointmentResponse
	decode(t, rec, &list)
	if len(list) != 1 || list[0].ID != appt.ID {
		t.Errorf("expected the booked appointment in the listing, got %+v", list)
	}
}

func TestAppointmentLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.createMondayTemplate(t)

	rec := s.book(t, "10:00", "10:30")
	var appt AppointmentResponse
	decode(t, rec, &appt)
	base := "/appointments/" + appt.ID.String()

	rec = s.do(t, http.MethodPost, base+"/confirm", uuid.Nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, base+"/confirm", uuid.Nil, nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "illegal_transition" {
		t.Errorf("second confirm: expected 409 illegal_transition, got %d", rec.Code)
	}

	s.clock.Set(time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC))
	rec = s.do(t, http.MethodGet, base+"/attendance", uuid.Nil, nil)
	var att AttendanceResponse
	decode(t, rec, &att)
	if att.Attendable || att.Reason != "too early: attention opens in 30 min (at 09:30)" {
		t.Errorf("unexpected attendance %+v", att)
	}

	diagnosis := DiagnosisRequest{Summary: "Tension headache"}

	rec = s.do(t, http.MethodPost, base+"/diagnosis", s.doctor, diagnosis)
	if rec.Code != http.StatusConflict {
		t.Errorf("early diagnosis: expected 409, got %d", rec.Code)
	}

	s.clock.Set(time.Date(2024, time.June, 3, 10, 10, 0, 0, time.UTC))

	rec = s.do(t, http.MethodPost, base+"/diagnosis", uuid.New(), diagnosis)
	if rec.Code != http.StatusForbidden {
		t.Errorf("other doctor: expected 403, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, base+"/diagnosis", s.doctor, diagnosis)
	if rec.Code != http.StatusCreated {
		t.Fatalf("diagnosis: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp DiagnosisResponse
	decode(t, rec, &resp)
	if resp.Appointment.Status != string(appointment.StatusCompleted) {
		t.Errorf("expected completed appointment, got %s", resp.Appointment.Status)
	}

	rec = s.do(t, http.MethodPost, base+"/cancel", uuid.Nil, CancelAppointmentRequest{Reason: "late"})
	if rec.Code != http.StatusConflict {
		t.Errorf("cancel completed: expected 409, got %d", rec.Code)
	}
}

func TestCancelAndNoShow(t *testing.T) {
	s := newTestServer(t)
	s.createMondayTemplate(t)

	var first, second AppointmentResponse
	decode(t, s.book(t, "08:00", "08:30"), &first)
	decode(t, s.book(t, "08:30", "09:00"), &second)

	actor := uuid.New()
	rec := s.do(t, http.MethodPost, "/appointments/"+first.ID.String()+"/cancel", actor, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel without body: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cancelled AppointmentResponse
	decode(t, rec, &cancelled)
	if cancelled.CancelledBy == nil || *cancelled.CancelledBy != actor {
		t.Errorf("expected cancelled_by %s, got %v", actor, cancelled.CancelledBy)
	}

	rec = s.do(t, http.MethodPost, "/appointments/"+second.ID.String()+"/no-show", uuid.Nil, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("no-show before window closes: expected 409, got %d", rec.Code)
	}

	s.clock.Set(time.Date(2024, time.June, 3, 11, 0, 0, 0, time.UTC))
	rec = s.do(t, http.MethodPost, "/appointments/"+second.ID.String()+"/no-show", uuid.Nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("no-show: expected 200, got %d", rec.Code)
	}
}

func TestAppointment_NotFoundAndBadID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), uuid.Nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/appointments/not-a-uuid", uuid.Nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health/ready", uuid.Nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ready ReadinessResponse
	decode(t, rec, &ready)
	if ready.Status != "ok" || ready.Dependencies["redis"] != "disabled" {
		t.Errorf("unexpected readiness %+v", ready)
	}

	down := NewHealthHandler(PingFunc(func(context.Context) error { return errors.New("down") }), nil, "test", "")
	rec = httptest.NewRecorder()
	down.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with postgres down, got %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
}
