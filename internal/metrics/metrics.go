// Package metrics instruments the mutation path and the live query engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fintrack"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
	OutcomeCached   = "cached"
)

type Metrics struct {
	mutations           *prometheus.CounterVec
	mutationDuration    *prometheus.HistogramVec
	executions          *prometheus.CounterVec
	executionDuration   *prometheus.HistogramVec
	emissions           *prometheus.CounterVec
	coalescedSignals    *prometheus.CounterVec
	activeSubscriptions *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Mutations by table, operation and outcome",
			},
			[]string{"table", "operation", "outcome"},
		),
		mutationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mutation_duration_seconds",
				Help:      "Time from begin to commit or rollback",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"table", "operation"},
		),
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_executions_total",
				Help:      "Live query executions by query and outcome",
			},
			[]string{"query", "outcome"},
		),
		executionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_execution_duration_seconds",
				Help:      "Live query execution time",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"query"},
		),
		emissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscription_emissions_total",
				Help:      "Values delivered to subscribers",
			},
			[]string{"query"},
		),
		coalescedSignals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "coalesced_signals_total",
				Help:      "Re-run signals folded into an already pending re-run",
			},
			[]string{"query"},
		),
		activeSubscriptions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_subscriptions",
				Help:      "Live subscriptions currently registered",
			},
			[]string{"query"},
		),
	}
}

func (m *Metrics) ObserveMutation(table, op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(table, op, outcome).Inc()
	m.mutationDuration.WithLabelValues(table, op).Observe(d.Seconds())
}

func (m *Metrics) ObserveExecution(query, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(query, outcome).Inc()
	if outcome != OutcomeCached {
		m.executionDuration.WithLabelValues(query).Observe(d.Seconds())
	}
}

func (m *Metrics) Emitted(query string) {
	if m == nil {
		return
	}
	m.emissions.WithLabelValues(query).Inc()
}

func (m *Metrics) Coalesced(query string) {
	if m == nil {
		return
	}
	m.coalescedSignals.WithLabelValues(query).Inc()
}

func (m *Metrics) SubscriptionStarted(query string) {
	if m == nil {
		return
	}
	m.activeSubscriptions.WithLabelValues(query).Inc()
}

func (m *Metrics) SubscriptionEnded(query string) {
	if m == nil {
		return
	}
	m.activeSubscriptions.WithLabelValues(query).Dec()
}

// Handler serves the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
