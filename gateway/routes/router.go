package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"microlend/gateway/middleware"
	"microlend/network"
	"microlend/services/lending/engine"
	"microlend/services/lending/indexer"
)

// EventSource serves audit queries over indexed lending events.
type EventSource interface {
	Events(ctx context.Context, filter indexer.Filter) ([]indexer.EventRecord, error)
}

type Config struct {
	Engine   engine.Engine
	Verifier *network.CallerVerifier
	// Events is optional; the events route is not mounted without it.
	Events        EventSource
	Authenticator *middleware.Authenticator
	AdminScope    string
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Timeout       time.Duration
	Logger        *slog.Logger
}

// New builds the gateway handler.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("gateway: lending engine required")
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("gateway: caller verifier required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	lr := &lendingRoutes{
		engine:   cfg.Engine,
		verifier: cfg.Verifier,
		events:   cfg.Events,
		timeout:  cfg.Timeout,
		logger:   logger,
	}

	r.Route("/v1/lending", func(sr chi.Router) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware("lending"))
		}
		if obs != nil {
			sr.Use(obs.Middleware("lending"))
		}
		lr.mount(sr)
	})

	// Operator routes are only reachable behind an authenticator.
	if cfg.Authenticator != nil {
		r.Route("/v1/admin", func(sr chi.Router) {
			if cfg.RateLimiter != nil {
				sr.Use(cfg.RateLimiter.Middleware("admin"))
			}
			if cfg.AdminScope != "" {
				sr.Use(cfg.Authenticator.Middleware(cfg.AdminScope))
			} else {
				sr.Use(cfg.Authenticator.Middleware())
			}
			if obs != nil {
				sr.Use(obs.Middleware("admin"))
			}
			lr.mountAdmin(sr)
		})
	}

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return otelhttp.NewHandler(r, "microlend-gateway"), nil
}
