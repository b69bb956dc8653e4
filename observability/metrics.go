package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording lending
// requests served over gRPC and HTTP.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "microlend",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total module requests segmented by transport, method, and outcome.",
			}, []string{"transport", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "microlend",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total module failures segmented by transport, method, and lending code.",
			}, []string{"transport", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "microlend",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"transport", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "microlend",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"transport", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. code identifies the failure, a
// lending code over HTTP or the status code over gRPC, and is empty on
// success.
func (m *moduleMetrics) Observe(transport, method, code string, duration time.Duration) {
	if m == nil {
		return
	}
	transport = labelOrUnknown(transport)
	method = labelOrUnknown(method)
	outcome := "success"
	if code = strings.TrimSpace(code); code != "" {
		outcome = "error"
		m.errors.WithLabelValues(transport, method, code).Inc()
	}
	m.requests.WithLabelValues(transport, method, outcome).Inc()
	m.latency.WithLabelValues(transport, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(transport, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(labelOrUnknown(transport), reason).Inc()
}

func labelOrUnknown(value string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return "unknown"
}
