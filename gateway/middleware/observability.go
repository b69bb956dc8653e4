package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"microlend/network"
	"microlend/observability"
	"microlend/observability/logging"
)

// ObservabilityConfig toggles gateway metrics, spans and access logs.
type ObservabilityConfig struct {
	ServiceName   string
	MetricsPrefix string
	LogRequests   bool
	Enabled       bool
}

// Observability records per-route HTTP metrics, spans and access logs. Each
// request is labelled with its route group, chi pattern and lending code.
type Observability struct {
	cfg       ObservabilityConfig
	logger    *slog.Logger
	tracer    trace.Tracer
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	registry  *prometheus.Registry
}

func NewObservability(cfg ObservabilityConfig, logger *slog.Logger) *Observability {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "microlend-gateway"
	}
	if cfg.MetricsPrefix == "" {
		cfg.MetricsPrefix = "gateway"
	}
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.MetricsPrefix,
		Name:      "requests_total",
		Help:      "Total HTTP requests processed by the gateway.",
	}, []string{"group", "pattern", "method", "status", "lending_code"})
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.MetricsPrefix,
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"group", "pattern"})
	registry.MustRegister(requests, durations)
	return &Observability{
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer(cfg.ServiceName),
		requests:  requests,
		durations: durations,
		registry:  registry,
	}
}

// Middleware records requests of one route group. The lending code written
// by the handler, if any, is forwarded to the module metrics.
func (o *Observability) Middleware(group string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if o == nil || !o.cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ctx, span := o.tracer.Start(r.Context(), "gateway."+group, trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("lending.route_group", group),
			))
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(ctx))

			pattern := routePattern(r)
			lendingCode := recorder.Header().Get(HeaderLendingCode)
			span.SetAttributes(
				attribute.String("http.route", pattern),
				attribute.Int("http.status_code", recorder.status),
				attribute.String("lending.code", lendingCode),
			)
			span.End()

			duration := time.Since(start)
			o.requests.WithLabelValues(group, pattern, r.Method, strconv.Itoa(recorder.status), lendingCode).Inc()
			o.durations.WithLabelValues(group, pattern).Observe(duration.Seconds())
			observability.ModuleMetrics().Observe("http", pattern, lendingCode, duration)
			if o.cfg.LogRequests {
				o.logger.Info("gateway request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", recorder.status),
					slog.String("code", lendingCode),
					logging.MaskField("caller", r.Header.Get(network.HeaderCaller)),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.Duration("duration", duration),
				)
			}
		})
	}
}

// routePattern returns the matched chi pattern, falling back to the raw path
// outside a chi router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// MetricsHandler exposes the gateway registry together with the process-wide
// default registry holding the engine metrics.
func (o *Observability) MetricsHandler() http.Handler {
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer}
	if o != nil && o.registry != nil {
		gatherers = append(gatherers, o.registry)
	}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
