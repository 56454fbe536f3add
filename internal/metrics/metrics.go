package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trader"

// Metrics holds the trader's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Cycles        *prometheus.CounterVec
	Executions    *prometheus.CounterVec
	Quotes        *prometheus.CounterVec
	OracleLatency prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Trading cycles by account and outcome.",
		}, []string{"account", "outcome"}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Executed decisions by signal and status.",
		}, []string{"signal", "status"}),
		Quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Quotes served by freshness tier.",
		}, []string{"freshness"}),
		OracleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_seconds",
			Help:      "Decision oracle round trip latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
	}
	m.registry.MustRegister(m.Cycles, m.Executions, m.Quotes, m.OracleLatency)
	return m
}

func (m *Metrics) CycleOutcome(account, outcome string) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(account, outcome).Inc()
}

func (m *Metrics) Execution(signal, status string) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(signal, status).Inc()
}

func (m *Metrics) QuoteServed(freshness string) {
	if m == nil {
		return
	}
	if freshness == "" {
		freshness = "unknown"
	}
	m.Quotes.WithLabelValues(freshness).Inc()
}

func (m *Metrics) ObserveOracle(seconds float64) {
	if m == nil {
		return
	}
	m.OracleLatency.Observe(seconds)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
