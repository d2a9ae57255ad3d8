package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type proxyMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	modelCallsTotal *prometheus.CounterVec
	modelRounds     prometheus.Histogram

	activeSessions        prometheus.Gauge
	sessionsEvictedTotal  prometheus.Counter
	weatherLookupsTotal   *prometheus.CounterVec
	streamChunksTotal     *prometheus.CounterVec
	streamErrorsTotal     *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *proxyMetrics
	registry    *prometheus.Registry
)

func getMetrics() *proxyMetrics {
	metricsOnce.Do(func() {
		registry = prometheus.NewRegistry()

		m := &proxyMetrics{
			requestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "humelink_requests_total",
					Help: "Total HTTP requests by endpoint and status.",
				},
				[]string{"endpoint", "status"},
			),
			requestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "humelink_request_duration_seconds",
					Help:    "HTTP request duration by endpoint.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"endpoint"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "humelink_tool_executions_total",
					Help: "Tool executions by tool name and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "humelink_tool_execution_duration_seconds",
					Help:    "Tool execution duration by tool name.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			modelCallsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "humelink_model_calls_total",
					Help: "Model backend calls by status.",
				},
				[]string{"status"},
			),
			modelRounds: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "humelink_model_rounds_per_request",
					Help:    "Tool-calling rounds consumed per request.",
					Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
				},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "humelink_sessions_active",
					Help: "Currently tracked sessions.",
				},
			),
			sessionsEvictedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "humelink_sessions_evicted_total",
					Help: "Sessions removed by the idle sweep.",
				},
			),
			weatherLookupsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "humelink_weather_lookups_total",
					Help: "Weather lookups by outcome (hit, fetch, stale, unavailable).",
				},
				[]string{"outcome"},
			),
			streamChunksTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "humelink_stream_chunks_total",
					Help: "Emitted stream chunks by transport.",
				},
				[]string{"transport"},
			),
			streamErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "humelink_stream_errors_total",
					Help: "In-band stream errors by transport.",
				},
				[]string{"transport"},
			),
		}

		registry.MustRegister(
			m.requestsTotal,
			m.requestDuration,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.modelCallsTotal,
			m.modelRounds,
			m.activeSessions,
			m.sessionsEvictedTotal,
			m.weatherLookupsTotal,
			m.streamChunksTotal,
			m.streamErrorsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered forces metric registration. Safe to call from any
// constructor; registration happens once.
func EnsureRegistered() {
	getMetrics()
}

// MetricsHandler returns the HTTP handler serving the metrics endpoint
func MetricsHandler() http.Handler {
	getMetrics()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed HTTP request
func RecordRequest(endpoint string, status int, duration time.Duration) {
	m := getMetrics()
	m.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordToolExecution records a tool dispatch
func RecordToolExecution(tool string, success bool, duration time.Duration) {
	m := getMetrics()
	status := "ok"
	if !success {
		status = "error"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordModelCall records a model backend call
func RecordModelCall(success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	getMetrics().modelCallsTotal.WithLabelValues(status).Inc()
}

// ObserveModelRounds records how many rounds a request consumed
func ObserveModelRounds(rounds int) {
	getMetrics().modelRounds.Observe(float64(rounds))
}

// SetActiveSessions sets the active session gauge
func SetActiveSessions(n int) {
	getMetrics().activeSessions.Set(float64(n))
}

// RecordEvictions counts sessions removed by the sweep
func RecordEvictions(n int) {
	getMetrics().sessionsEvictedTotal.Add(float64(n))
}

// RecordWeatherLookup records the outcome of a weather lookup
func RecordWeatherLookup(outcome string) {
	getMetrics().weatherLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordStreamChunk counts an emitted chunk on a transport (sse, ws)
func RecordStreamChunk(transport string) {
	getMetrics().streamChunksTotal.WithLabelValues(transport).Inc()
}

// RecordStreamError counts an in-band stream error on a transport
func RecordStreamError(transport string) {
	getMetrics().streamErrorsTotal.WithLabelValues(transport).Inc()
}
