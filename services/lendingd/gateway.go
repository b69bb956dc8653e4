package main

import (
	"log/slog"
	"net/http"

	gatewaycfg "microlend/gateway/config"
	"microlend/gateway/middleware"
	"microlend/gateway/routes"
	"microlend/network"
	"microlend/services/lending/engine"
)

// EventSource is the audit query surface handed to the gateway.
type EventSource = routes.EventSource

func newGatewayHandler(cfg gatewaycfg.Config, eng engine.Engine, verifier *network.CallerVerifier, source EventSource, logger *slog.Logger) (http.Handler, error) {
	limits := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for _, limit := range cfg.RateLimits {
		limits[limit.ID] = middleware.RateLimit{
			RequestsPerMinute: limit.RequestsPerMinute,
			RatePerSecond:     limit.RatePerSecond,
			Burst:             limit.Burst,
		}
	}
	var limiter *middleware.RateLimiter
	if len(limits) > 0 {
		limiter = middleware.NewRateLimiter(limits, logger)
	}

	var authenticator *middleware.Authenticator
	if cfg.Auth.Enabled {
		authenticator = middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    true,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ScopeClaim: cfg.Auth.ScopeClaim,
			ClockSkew:  cfg.Auth.ClockSkew,
		}, logger)
	}

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   cfg.Observability.ServiceName,
		MetricsPrefix: cfg.Observability.MetricsPrefix,
		LogRequests:   cfg.Observability.LogRequests,
		Enabled:       cfg.Observability.Metrics || cfg.Observability.Tracing,
	}, logger)

	return routes.New(routes.Config{
		Engine:        eng,
		Verifier:      verifier,
		Events:        source,
		Authenticator: authenticator,
		AdminScope:    cfg.Auth.AdminScope,
		RateLimiter:   limiter,
		Observability: obs,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowCredentials: cfg.CORS.AllowCredentials,
		},
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
}

func newGatewayServer(cfg gatewaycfg.Config, eng engine.Engine, verifier *network.CallerVerifier, source EventSource, logger *slog.Logger) (*http.Server, error) {
	handler, err := newGatewayHandler(cfg, eng, verifier, source, logger)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}, nil
}
