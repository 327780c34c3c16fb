package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/rolebot/pkg/rolebot/metrics"
)

func TestCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.Invocation("role", "addrole", metrics.OutcomeDispatch)
	m.Invocation("role", "addrole", metrics.OutcomeDispatch)
	m.Mutation("add", metrics.OutcomeApplied)
	m.Mutation("add", metrics.OutcomeFailed)
	m.Panic()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Invocations.WithLabelValues("role", "addrole", metrics.OutcomeDispatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("add", metrics.OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("add", metrics.OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Panics))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var m *metrics.Collector
	assert.NotPanics(t, func() {
		m.Invocation("a", "b", "c")
		m.Mutation("a", "b")
		m.Panic()
	})
}

func TestCollector_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	m.Mutation("create", metrics.OutcomeApplied)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `rolebot_mutations_total{op="create",outcome="applied"} 1`))
}
