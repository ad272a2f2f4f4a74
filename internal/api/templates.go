package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

func listTemplatesHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}

		templates, err := svc.ListByDoctor(r.Context(), doctorID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := make([]TemplateResponse, 0, len(templates))
		for i := range templates {
			resp = append(resp, toTemplateResponse(&templates[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createTemplateHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req CreateTemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		weekday, err := availability.ParseWeekday(req.Weekday)
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

		tpl, err := svc.CreateTemplate(r.Context(), actor, availability.NewTemplate{
			DoctorID:    doctorID,
			Weekday:     weekday,
			Start:       start,
			End:         end,
			SlotMinutes: req.SlotMinutes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toTemplateResponse(tpl))
	}
}

func setTemplateActiveHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req SetActiveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", `body must be {"active": true|false}`)
			return
		}

		tpl, err := svc.SetActive(r.Context(), actor, id, *req.Active)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toTemplateResponse(tpl))
	}
}

func addExceptionDateHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req ExceptionDateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		date, err := availability.ParseDate(req.Date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		tpl, err := svc.AddExceptionDate(r.Context(), actor, id, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toTemplateResponse(tpl))
	}
}

func requireActor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actor, ok := actorID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_actor", ActorHeader+" header must carry a valid UUID")
	}
	return actor, ok
}
