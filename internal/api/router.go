package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Templates    *availability.Service
	Postgres     Pinger
	Redis        Pinger
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware)
	r.Use(MetricsMiddleware)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/doctors/{doctorID}", func(r chi.Router) {
		r.Get("/slots", availableSlotsHandler(cfg.Appointments))
		r.Get("/templates", listTemplatesHandler(cfg.Templates))
		r.Post("/templates", createTemplateHandler(cfg.Templates))
	})

	r.Patch("/templates/{id}/active", setTemplateActiveHandler(cfg.Templates))
	r.Post("/templates/{id}/exceptions", addExceptionDateHandler(cfg.Templates))

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Appointments))
		r.Get("/", listAppointmentsHandler(cfg.Appointments))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getAppointmentHandler(cfg.Appointments))
			r.Post("/confirm", confirmAppointmentHandler(cfg.Appointments))
			r.Post("/cancel", cancelAppointmentHandler(cfg.Appointments))
			r.Post("/complete", completeAppointmentHandler(cfg.Appointments))
			r.Post("/no-show", noShowAppointmentHandler(cfg.Appointments))
			r.Get("/attendance", attendanceHandler(cfg.Appointments))
			r.Post("/diagnosis", recordDiagnosisHandler(cfg.Appointments))
		})
	})

	return r
}
