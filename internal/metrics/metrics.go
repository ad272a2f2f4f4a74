// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinic_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_bookings_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_appointment_transitions_total",
			Help: "Appointment state transitions by target state",
		},
		[]string{"to"},
	)

	SlotQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_slot_queries_total",
			Help: "Available slot lookups",
		},
	)

	NoShowSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_noshow_sweep_appointments_total",
			Help: "Appointments handled by the no-show sweep by result",
		},
		[]string{"result"},
	)
)

func RecordBooking(outcome string) {
	BookingsTotal.WithLabelValues(outcome).Inc()
}

func RecordTransition(to string) {
	TransitionsTotal.WithLabelValues(to).Inc()
}
