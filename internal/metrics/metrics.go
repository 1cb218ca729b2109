// Package metrics exposes Prometheus counters for conversation turns and flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Flow outcomes recorded by FlowEnded.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	turns        *prometheus.CounterVec
	flowsStarted *prometheus.CounterVec
	flowsEnded   *prometheus.CounterVec
	transfers    *prometheus.CounterVec
	fallbacks    prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farmfin_turns_total",
				Help: "Total number of handled messages",
			},
			[]string{"mode"},
		),
		flowsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farmfin_flows_started_total",
				Help: "Total number of started flows",
			},
			[]string{"flow"},
		),
		flowsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farmfin_flows_ended_total",
				Help: "Total number of finished flows by outcome",
			},
			[]string{"flow", "outcome"},
		),
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farmfin_transfers_total",
				Help: "Total number of transfer attempts at confirmation",
			},
			[]string{"result"},
		),
		fallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "farmfin_generation_fallbacks_total",
				Help: "Educational replies served from canned text",
			},
		),
	}
	m.registry.MustRegister(m.turns, m.flowsStarted, m.flowsEnded, m.transfers, m.fallbacks)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Turn(mode string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(mode).Inc()
}

func (m *Metrics) FlowStarted(flow string) {
	if m == nil {
		return
	}
	m.flowsStarted.WithLabelValues(flow).Inc()
}

func (m *Metrics) FlowEnded(flow, outcome string) {
	if m == nil {
		return
	}
	m.flowsEnded.WithLabelValues(flow, outcome).Inc()
}

func (m *Metrics) Transfer(result string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(result).Inc()
}

func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}
