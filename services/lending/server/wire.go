package server

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	lendingv1 "microlend/api/lending/v1"
	"microlend/network"
	"microlend/observability"
	"microlend/observability/logging"
)

// Config captures the settings required to construct gRPC server options.
type Config struct {
	TLS              network.TLSConfig
	BaseDir          string
	MTLSRequired     bool
	AllowedClientCNs []string
	RateLimitPerMin  int
	APITokens        []string
	// RequireSignedCaller rejects Msg RPCs whose caller envelope is not
	// signed by the caller's key.
	RequireSignedCaller bool
	CallerMaxSkew       time.Duration
	// Verifier overrides the verifier built from the two fields above so
	// several transports can share one replay window.
	Verifier *network.CallerVerifier
	Logger   *slog.Logger
}

// GrpcServerCreds builds the grpc.ServerOption configuring TLS credentials.
func GrpcServerCreds(cfg Config) (grpc.ServerOption, error) {
	creds, _, err := network.BuildServerSecurity(cfg.TLS, cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	return grpc.Creds(creds), nil
}

// Interceptors constructs the grpc.ServerOptions installing tracing,
// recovery, logging, metrics, rate-limiting, authentication and caller
// resolution middleware.
func Interceptors(cfg Config) ([]grpc.ServerOption, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	auth := NewAuthInterceptor(AuthConfig{
		APITokens:        cfg.APITokens,
		AllowedClientCNs: cfg.AllowedClientCNs,
		MTLSRequired:     cfg.MTLSRequired,
	})
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = network.NewCallerVerifier(network.VerifierConfig{
			RequireSignature: cfg.RequireSignedCaller,
			MaxSkew:          cfg.CallerMaxSkew,
		})
	}

	chain := []grpc.UnaryServerInterceptor{
		loggingInterceptor(logger),
		recoveryInterceptor(logger),
		metricsInterceptor(),
	}
	if limiter := newRequestLimiter(cfg.RateLimitPerMin); limiter != nil {
		chain = append(chain, limiter.interceptor())
	}
	chain = append(chain, auth, NewCallerInterceptor(verifier))

	options := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(chain...),
	}
	return options, nil
}

// loggingInterceptor records one line per call with the outcome and, for
// Msg RPCs, the claimed caller.
func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (_ interface{}, err error) {
		start := time.Now()
		defer func() {
			attrs := []any{
				logging.MaskField("method", info.FullMethod),
				slog.String("code", status.Code(err).String()),
				slog.Duration("duration", time.Since(start)),
			}
			if lendingv1.IsMsgMethod(info.FullMethod) {
				attrs = append(attrs, logging.MaskField("caller", incomingHeader(ctx, network.HeaderCaller)))
			}
			if err != nil {
				logger.Warn("lending rpc failed", append(attrs, slog.String("error", status.Convert(err).Message()))...)
				return
			}
			logger.Info("lending rpc", attrs...)
		}()
		return handler(ctx, req)
	}
}

func recoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (_ interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in lending handler", slog.String("method", info.FullMethod), slog.Any("panic", r))
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

func metricsInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (_ interface{}, err error) {
		start := time.Now()
		defer func() {
			code := ""
			if err != nil {
				code = status.Code(err).String()
			}
			observability.ModuleMetrics().Observe("grpc", info.FullMethod, code, time.Since(start))
		}()
		return handler(ctx, req)
	}
}

func incomingHeader(ctx context.Context, key string) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

type requestLimiter struct {
	limiter *rate.Limiter
}

func newRequestLimiter(perMinute int) *requestLimiter {
	if perMinute <= 0 {
		return nil
	}
	limit := rate.Every(time.Minute / time.Duration(perMinute))
	return &requestLimiter{limiter: rate.NewLimiter(limit, perMinute)}
}

func (r *requestLimiter) allow() bool {
	if r == nil || r.limiter == nil {
		return true
	}
	if r.limiter.Allow() {
		return true
	}
	observability.ModuleMetrics().RecordThrottle("grpc", "rate_limit")
	return false
}

func (r *requestLimiter) interceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !r.allow() {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

// InsecureServerOption exposes grpc insecure credentials for tests when TLS is disabled.
func InsecureServerOption() grpc.ServerOption {
	return grpc.Creds(insecure.NewCredentials())
}
