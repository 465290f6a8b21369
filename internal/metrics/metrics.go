// Package metrics defines the Prometheus metrics for the scheduler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/room-scheduler/internal/application"
)

// Metrics owns a registry so tests and multiple servers do not share global state.
type Metrics struct {
	registry *prometheus.Registry

	reservationsCreated prometheus.Counter
	conflicts           prometheus.Counter
	updates             prometheus.Counter
	cancellations       prometheus.Counter
	requestDuration     *prometheus.HistogramVec
	requestsTotal       *prometheus.CounterVec
}

var _ application.Recorder = (*Metrics)(nil)

// New registers every scheduler metric plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reservationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_reservations_created_total",
			Help: "Reservations written by create requests, one per occurrence",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_reservation_conflicts_total",
			Help: "Create or update requests rejected because of an overlapping reservation",
		}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_reservation_updates_total",
			Help: "Reservations edited",
		}),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_reservation_cancellations_total",
			Help: "Reservations canceled",
		}),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scheduler_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}
	m.registry.MustRegister(
		m.reservationsCreated, m.conflicts, m.updates, m.cancellations,
		m.requestDuration, m.requestsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ReservationsCreated adds count created occurrences.
func (m *Metrics) ReservationsCreated(count int) {
	m.reservationsCreated.Add(float64(count))
}

// ReservationConflict counts one rejected request.
func (m *Metrics) ReservationConflict() { m.conflicts.Inc() }

// ReservationUpdated counts one edit.
func (m *Metrics) ReservationUpdated() { m.updates.Inc() }

// ReservationCanceled counts one cancellation.
func (m *Metrics) ReservationCanceled() { m.cancellations.Inc() }

// ObserveRequest records one served HTTP request. route is the mux pattern,
// never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
	m.requestsTotal.WithLabelValues(method, route, code).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
