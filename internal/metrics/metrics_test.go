package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveMutation("transactions", "insert", OutcomeOK, time.Millisecond)
	m.ObserveMutation("transactions", "insert", OutcomeOK, time.Millisecond)
	m.ObserveMutation("transactions", "update", OutcomeNotFound, time.Millisecond)
	m.Emitted("income_total")
	m.Coalesced("income_total")
	m.SubscriptionStarted("income_total")
	m.SubscriptionStarted("income_total")
	m.SubscriptionEnded("income_total")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("transactions", "insert", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("transactions", "update", OutcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emissions.WithLabelValues("income_total")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.coalescedSignals.WithLabelValues("income_total")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSubscriptions.WithLabelValues("income_total")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveMutation("t", "insert", OutcomeOK, 0)
	m.ObserveExecution("q", OutcomeOK, 0)
	m.Emitted("q")
	m.Coalesced("q")
	m.SubscriptionStarted("q")
	m.SubscriptionEnded("q")
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
