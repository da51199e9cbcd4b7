package report

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wavegen/wavegen/load"
)

const namespace = "wavegen"

// Metrics mirrors progress into Prometheus collectors registered on a
// private registry.
type Metrics struct {
	Registry *prometheus.Registry

	probes     *prometheus.CounterVec
	cycles     prometheus.Counter
	ticks      prometheus.Counter
	agents     prometheus.Gauge
	cycleIndex prometheus.Gauge
	active     prometheus.Gauge

	last load.Progress
}

// NewMetrics creates the collectors and registers them, together with the Go
// runtime collector, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Probes by outcome: attempted, sent, failed or dropped.",
		}, []string{"outcome"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_completed_total",
			Help:      "Active phases that ran to their full duration.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduler ticks.",
		}),
		agents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents",
			Help:      "Agent count of the latest tick.",
		}),
		cycleIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle_index",
			Help:      "Index of the current or last cycle.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active",
			Help:      "1 while an active phase is running.",
		}),
	}
	m.Registry.MustRegister(m.probes, m.cycles, m.ticks, m.agents, m.cycleIndex, m.active,
		collectors.NewGoCollector())
	return m
}

func (m *Metrics) Report(p load.Progress) {
	m.probes.WithLabelValues("attempted").Add(float64(p.ProbesAttempted - m.last.ProbesAttempted))
	m.probes.WithLabelValues("sent").Add(float64(p.ProbesSent - m.last.ProbesSent))
	m.probes.WithLabelValues("failed").Add(float64(p.ProbesFailed - m.last.ProbesFailed))
	m.probes.WithLabelValues("dropped").Add(float64(p.ProbesDropped - m.last.ProbesDropped))
	m.cycleIndex.Set(float64(p.CycleIndex))

	switch p.Event {
	case load.EventCycleStart:
		m.active.Set(1)
	case load.EventTick:
		m.ticks.Inc()
		m.agents.Set(float64(p.AgentCount))
	case load.EventCycleEnd:
		m.cycles.Inc()
		m.active.Set(0)
	case load.EventCompleted:
		m.active.Set(0)
	}
	m.last = p
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
