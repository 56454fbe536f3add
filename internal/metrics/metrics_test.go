package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	m := New()

	m.CycleOutcome("acct-1", "success")
	m.CycleOutcome("acct-1", "success")
	m.Execution("buy_to_enter", "executed")
	m.QuoteServed("")
	m.QuoteServed("live")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cycles.WithLabelValues("acct-1", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues("buy_to_enter", "executed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Quotes.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Quotes.WithLabelValues("live")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CycleOutcome("a", "failed")
		m.Execution("hold", "info")
		m.QuoteServed("closing")
		m.ObserveOracle(1.5)
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveOracle(0.7)
	m.CycleOutcome("acct-1", "skipped")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "trader_oracle_seconds_count 1")
	assert.Contains(t, string(body), `trader_cycles_total{account="acct-1",outcome="skipped"} 1`)
}
