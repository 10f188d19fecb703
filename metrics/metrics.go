// Package metrics exports session activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/invencare/go-auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements auth.ActivitySink.
type Metrics struct {
	EventsTotal          *prometheus.CounterVec
	TransitionsTotal     *prometheus.CounterVec
	AuthenticatedCurrent prometheus.Gauge
	SessionsActive       prometheus.Gauge
}

var _ auth.ActivitySink = (*Metrics)(nil)

// NewMetrics creates and registers the session metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storeauth_events_total",
				Help: "Total number of authentication activity events",
			},
			[]string{"event"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storeauth_session_transitions_total",
				Help: "Total number of session status transitions",
			},
			[]string{"from", "to"},
		),
		AuthenticatedCurrent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "storeauth_sessions_authenticated",
				Help: "Number of sessions currently authenticated",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "storeauth_sessions_active",
				Help: "Number of session managers held by the registry",
			},
		),
	}

	registry.MustRegister(
		m.EventsTotal,
		m.TransitionsTotal,
		m.AuthenticatedCurrent,
		m.SessionsActive,
	)

	return m
}

// Record counts the event and tracks how many sessions are authenticated.
func (m *Metrics) Record(_ context.Context, event auth.ActivityEvent) error {
	m.EventsTotal.WithLabelValues(string(event.EventType)).Inc()

	if event.EventType != auth.ActivityEventSessionStatusChanged {
		return nil
	}

	m.TransitionsTotal.WithLabelValues(string(event.FromStatus), string(event.ToStatus)).Inc()
	switch {
	case event.ToStatus == auth.StatusAuthenticated && event.FromStatus != auth.StatusAuthenticated:
		m.AuthenticatedCurrent.Inc()
	case event.FromStatus == auth.StatusAuthenticated && event.ToStatus != auth.StatusAuthenticated:
		m.AuthenticatedCurrent.Dec()
	}
	return nil
}

// SetActiveSessions reports the registry size.
func (m *Metrics) SetActiveSessions(n int) {
	m.SessionsActive.Set(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
