package server

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	lendingv1 "microlend/api/lending/v1"
	"microlend/native/lending"
	"microlend/network"
	"microlend/services/lending/engine"
)

// AuthConfig enumerates the credentials accepted on protected RPCs.
type AuthConfig struct {
	APITokens        []string
	AllowedClientCNs []string
	// MTLSRequired accepts verified client certificates as operator
	// credentials. The listener must be configured with a client CA.
	MTLSRequired bool
}

type authContextKey struct{}

// NewAuthInterceptor enforces operator credentials. Admin RPCs always
// require a configured API token or an allowed mTLS client certificate. Msg
// RPCs are held to the same check once any credential is configured.
func NewAuthInterceptor(cfg AuthConfig) grpc.UnaryServerInterceptor {
	return newAuthenticator(cfg).unaryInterceptor()
}

func markAuthenticated(ctx context.Context) context.Context {
	return context.WithValue(ctx, authContextKey{}, true)
}

func isAuthenticated(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	value, ok := ctx.Value(authContextKey{}).(bool)
	return ok && value
}

type authenticator struct {
	check network.Authenticator
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	tokens := network.NewTokenAuthenticator(network.NewTokenSet(cfg.APITokens...))
	var mtls network.Authenticator
	if cfg.MTLSRequired || len(cfg.AllowedClientCNs) > 0 {
		mtls = network.NewTLSAuthorizer(cfg.AllowedClientCNs)
	}
	return &authenticator{check: network.AnyAuthenticator(tokens, mtls)}
}

func (a *authenticator) protects(fullMethod string) bool {
	if lendingv1.IsAdminMethod(fullMethod) {
		return true
	}
	return lendingv1.IsMsgMethod(fullMethod) && a != nil && a.check != nil
}

func (a *authenticator) unaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !a.protects(info.FullMethod) {
			return handler(ctx, req)
		}
		ctx, err := a.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (a *authenticator) authenticate(ctx context.Context) (context.Context, error) {
	if a == nil {
		return ctx, status.Error(codes.Internal, "authenticator unavailable")
	}
	if a.check == nil {
		return ctx, status.Error(codes.PermissionDenied, "authentication is not configured")
	}
	if err := a.check.Authorize(ctx); err != nil {
		if _, ok := status.FromError(err); ok {
			return ctx, err
		}
		return ctx, status.Error(codes.Unauthenticated, "authentication required")
	}
	return markAuthenticated(ctx), nil
}

// NewCallerInterceptor resolves the caller envelope of Msg RPCs and installs
// the caller into the handler context. The envelope signature covers the
// request re-encoded with the service codec.
func NewCallerInterceptor(verifier *network.CallerVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !lendingv1.IsMsgMethod(info.FullMethod) {
			return handler(ctx, req)
		}
		if verifier == nil {
			return nil, status.Error(codes.Internal, "caller verifier unavailable")
		}
		body, err := lendingv1.Codec{}.Marshal(req)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "encode request")
		}
		caller, err := verifier.Verify(info.FullMethod, body, func(key string) string {
			return incomingHeader(ctx, key)
		})
		if err != nil {
			return nil, callerStatus(ctx, err)
		}
		return handler(engine.WithCaller(ctx, caller), req)
	}
}

// callerStatus maps caller resolution failures. A missing or malformed
// caller is the lending InvalidCaller outcome; signature failures are
// authentication errors.
func callerStatus(ctx context.Context, err error) error {
	if errors.Is(err, network.ErrCallerMissing) || errors.Is(err, network.ErrCallerInvalid) {
		setCodeTrailer(ctx, lending.CodeInvalidCaller)
		return status.Error(codes.InvalidArgument, strings.TrimPrefix(err.Error(), "network: "))
	}
	return status.Error(codes.Unauthenticated, strings.TrimPrefix(err.Error(), "network: "))
}
