package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects coordinator instrumentation.
//
// Tracked:
//   - inbound events by type and drops by reason
//   - broadcasts by outbound event type
//   - live session and connected actor gauges
type Metrics struct {
	// EventsTotal counts inbound events by type.
	EventsTotal *prometheus.CounterVec

	// EventsDropped counts dropped events.
	// Labels: reason (malformed|unauthorized|not_in_session|rate_limited|channel_full)
	EventsDropped *prometheus.CounterVec

	// BroadcastsTotal counts fan-outs by outbound event type.
	BroadcastsTotal *prometheus.CounterVec

	// ActiveSessions tracks live sessions in the registry.
	ActiveSessions prometheus.Gauge

	// ConnectedActors tracks directory entries (actors in a session).
	ConnectedActors prometheus.Gauge
}

// New creates and registers all metrics against reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studysync_events_total",
				Help: "Inbound events received, by event type.",
			},
			[]string{"type"},
		),
		EventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studysync_events_dropped_total",
				Help: "Inbound events dropped without broadcast, by reason.",
			},
			[]string{"reason"},
		),
		BroadcastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studysync_broadcasts_total",
				Help: "Session broadcasts emitted, by outbound event type.",
			},
			[]string{"event_type"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "studysync_active_sessions",
				Help: "Live sessions currently held by the registry.",
			},
		),
		ConnectedActors: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "studysync_connected_actors",
				Help: "Actors currently mapped to a session.",
			},
		),
	}
}

// SetRegistryStats updates the session/actor gauges from registry counters.
func (m *Metrics) SetRegistryStats(stats map[string]int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(stats["active_sessions"]))
	m.ConnectedActors.Set(float64(stats["connected_actors"]))
}

// Event records an inbound event.
func (m *Metrics) Event(eventType string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

// Dropped records a dropped event.
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
}

// Broadcast records a session fan-out.
func (m *Metrics) Broadcast(eventType string) {
	if m == nil {
		return
	}
	m.BroadcastsTotal.WithLabelValues(eventType).Inc()
}
