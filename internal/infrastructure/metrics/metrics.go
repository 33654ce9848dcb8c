package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the access-control Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	GateDecisions          *prometheus.CounterVec
	SessionInitializations *prometheus.CounterVec
	LiveSessions           prometheus.GaugeFunc
}

// New creates and registers the metrics on registry. liveSessions may be nil.
func New(registry *prometheus.Registry, liveSessions func() float64) *Metrics {
	m := &Metrics{
		registry: registry,
		GateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edustack_gate_decisions_total",
				Help: "Access gate decisions by outcome",
			},
			[]string{"decision"},
		),
		SessionInitializations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edustack_session_initializations_total",
				Help: "Session initializations by outcome",
			},
			[]string{"outcome"},
		),
	}
	registry.MustRegister(m.GateDecisions, m.SessionInitializations)
	if liveSessions != nil {
		m.LiveSessions = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "edustack_live_sessions",
				Help: "Session states held in memory",
			},
			liveSessions,
		)
		registry.MustRegister(m.LiveSessions)
	}
	return m
}

// NewDefault builds a fresh registry with the Go and process collectors.
func NewDefault(liveSessions func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg, liveSessions)
}

// InitializeFinished implements session.Observer.
func (m *Metrics) InitializeFinished(outcome string) {
	if m == nil {
		return
	}
	m.SessionInitializations.WithLabelValues(outcome).Inc()
}

// GateDecided counts one gate decision.
func (m *Metrics) GateDecided(decision string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(decision).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
