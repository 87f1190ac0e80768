// Package metrics defines the Prometheus collectors of the retrieval engine.
// A Metrics value is an explicit observability context: it is created once,
// registered on a caller-supplied registry and handed to the components that
// report into it. A nil *Metrics is a valid no-op.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine and its service.
type Metrics struct {
	QueriesTotal         *prometheus.CounterVec
	QueryDuration        *prometheus.HistogramVec
	DocumentsScored      prometheus.Counter
	IteratorsBuilt       *prometheus.CounterVec
	IteratorCacheHits    prometheus.Counter
	CountAggregations    *prometheus.CounterVec
	AsyncFailures        prometheus.Counter
	ResultCacheRequests  *prometheus.CounterVec
	CircuitState         *prometheus.GaugeVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

// New creates all collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_queries_total",
				Help: "Evaluated queries by query type and outcome (ok, error).",
			},
			[]string{"querytype", "status"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrieval_query_duration_seconds",
				Help:    "Wall-clock evaluation time of a query.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"querytype"},
		),
		DocumentsScored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieval_documents_scored_total",
				Help: "Documents scored by ranked evaluation.",
			},
		),
		IteratorsBuilt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_iterators_built_total",
				Help: "Iterators realized while compiling query trees, by source (index, feature).",
			},
			[]string{"source"},
		),
		IteratorCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieval_iterator_cache_hits_total",
				Help: "Query nodes served from the per-build iterator cache.",
			},
		),
		CountAggregations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_count_aggregations_total",
				Help: "Count aggregations by evaluation path (aggregate, scan).",
			},
			[]string{"path"},
		),
		AsyncFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieval_async_failures_total",
				Help: "Asynchronous evaluations that ended in the error sink.",
			},
		),
		ResultCacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_cache_requests_total",
				Help: "Result cache lookups by result (hit, miss).",
			},
			[]string{"result"},
		),
		CircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "retrieval_circuit_state",
				Help: "Circuit breaker state per backend (0 closed, 1 open, 2 half-open).",
			},
			[]string{"backend"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
	}

	reg.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.DocumentsScored,
		m.IteratorsBuilt,
		m.IteratorCacheHits,
		m.CountAggregations,
		m.AsyncFailures,
		m.ResultCacheRequests,
		m.CircuitState,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
	)

	return m
}

// ObserveQuery records one finished evaluation.
func (m *Metrics) ObserveQuery(queryType string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.QueriesTotal.WithLabelValues(queryType, status).Inc()
	m.QueryDuration.WithLabelValues(queryType).Observe(elapsed.Seconds())
}

func (m *Metrics) DocumentScored() {
	if m == nil {
		return
	}
	m.DocumentsScored.Inc()
}

func (m *Metrics) IteratorBuilt(source string) {
	if m == nil {
		return
	}
	m.IteratorsBuilt.WithLabelValues(source).Inc()
}

func (m *Metrics) IteratorCacheHit() {
	if m == nil {
		return
	}
	m.IteratorCacheHits.Inc()
}

func (m *Metrics) CountAggregation(path string) {
	if m == nil {
		return
	}
	m.CountAggregations.WithLabelValues(path).Inc()
}

func (m *Metrics) AsyncFailure() {
	if m == nil {
		return
	}
	m.AsyncFailures.Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ResultCacheRequests.WithLabelValues(result).Inc()
}

// SetCircuitState records the breaker state of a backend.
func (m *Metrics) SetCircuitState(backend string, state int) {
	if m == nil {
		return
	}
	m.CircuitState.WithLabelValues(backend).Set(float64(state))
}

// Handler returns the scrape handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
