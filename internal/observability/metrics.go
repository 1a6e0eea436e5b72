package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	queueSize    prometheus.Gauge
	enqueueTotal *prometheus.CounterVec
	claimTotal   prometheus.Counter
	resolveTotal *prometheus.CounterVec
	timeoutTotal *prometheus.CounterVec

	toolCallTotal    *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	pluginPollTotal       prometheus.Counter
	pluginCompletionTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			queueSize: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "relay_queue_size",
					Help: "Current number of live command records in the relay queue.",
				},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "relay_enqueue_total",
					Help: "Total commands enqueued by tool.",
				},
				[]string{"tool"},
			),
			claimTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "relay_claim_total",
					Help: "Total commands claimed by the dispatch endpoint.",
				},
			),
			resolveTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "relay_resolve_total",
					Help: "Total resolve operations by status.",
				},
				[]string{"status"},
			),
			timeoutTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "relay_await_timeout_total",
					Help: "Total awaits that timed out by tool.",
				},
				[]string{"tool"},
			),
			toolCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_call_total",
					Help: "Total tool calls by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_call_duration_seconds",
					Help:    "Tool call round-trip duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			pluginPollTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "plugin_poll_total",
					Help: "Total dispatch polls received from the Studio plugin.",
				},
			),
			pluginCompletionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "plugin_completion_total",
					Help: "Total completion posts received by match status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.queueSize,
			m.enqueueTotal,
			m.claimTotal,
			m.resolveTotal,
			m.timeoutTotal,
			m.toolCallTotal,
			m.toolCallDuration,
			m.pluginPollTotal,
			m.pluginCompletionTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordEnqueue(tool string, queueSize int) {
	m := getMetrics()
	m.enqueueTotal.WithLabelValues(tool).Inc()
	m.queueSize.Set(float64(queueSize))
}

func SetQueueSize(queueSize int) {
	getMetrics().queueSize.Set(float64(queueSize))
}

func RecordClaim(count int) {
	getMetrics().claimTotal.Add(float64(count))
}

func RecordResolve(status string) {
	getMetrics().resolveTotal.WithLabelValues(status).Inc()
}

func RecordAwaitTimeout(tool string, queueSize int) {
	m := getMetrics()
	m.timeoutTotal.WithLabelValues(tool).Inc()
	m.queueSize.Set(float64(queueSize))
}

func RecordToolCall(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "success"
	if !success {
		status = "failure"
	}
	m.toolCallTotal.WithLabelValues(tool, status).Inc()
	m.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordPluginPoll() {
	getMetrics().pluginPollTotal.Inc()
}

func RecordPluginCompletion(matched bool) {
	status := "matched"
	if !matched {
		status = "orphaned"
	}
	getMetrics().pluginCompletionTotal.WithLabelValues(status).Inc()
}
