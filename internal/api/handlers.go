package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		date, err := availability.ParseDate(req.Date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		start, err := availability.ParseTimeOfDay(req.Start)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		end, err := availability.ParseTimeOfDay(req.End)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		booking := appointment.BookingRequest{
			PatientID: patientID,
			DoctorID:  doctorID,
			Date:      date,
			Start:     start,
			End:       end,
			Reason:    req.Reason,
			Notes:     req.Notes,
		}
		if actor, ok := actorID(r); ok {
			booking.CreatedBy = actor
		}

		appt, err := svc.Book(r.Context(), booking)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id query parameter must be a valid UUID")
			return
		}
		date, err := availability.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		appts, err := svc.ListByDoctorAndDate(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func confirmAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(svc.Confirm)
}

func completeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(svc.Complete)
}

func noShowAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(svc.MarkNoShow)
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentIDParam(w, r)
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		// the body is optional
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		actor, _ := actorID(r)
		appt, err := svc.Cancel(r.Context(), id, actor, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func attendanceHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		att, err := svc.Attendance(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AttendanceResponse{
			AppointmentID: appt.ID,
			Status:        string(appt.Status),
			Attendable:    att.Attendable,
			Reason:        att.Reason,
			OpensAt:       att.OpensAt,
			ClosesAt:      att.ClosesAt,
		})
	}
}

func recordDiagnosisHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentIDParam(w, r)
		if !ok {
			return
		}

		doctorID, ok := actorID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "missing_actor", ActorHeader+" header must carry the doctor's UUID")
			return
		}

		var req DiagnosisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		d, appt, err := svc.RecordDiagnosis(r.Context(), doctorID, id, appointment.DiagnosisInput{
			Summary:     req.Summary,
			Symptoms:    req.Symptoms,
			Treatment:   req.Treatment,
			Medications: req.Medications,
			Notes:       req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, DiagnosisResponse{
			Diagnosis:   *d,
			Appointment: toAppointmentResponse(appt),
		})
	}
}

func availableSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}
		date, err := availability.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			DoctorID: doctorID,
			Date:     date.String(),
			Slots:    formatSlots(slots),
		})
	}
}

// transitionHandler serves the body-less state-machine endpoints.
func transitionHandler(apply func(context.Context, uuid.UUID) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentIDParam(w, r)
		if !ok {
			return
		}

		appt, err := apply(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func appointmentIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return uuidParam(w, r, "id")
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_path_id", name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
