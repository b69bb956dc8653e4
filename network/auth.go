package network

import (
	"context"
	"crypto/subtle"
	"crypto/x509"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Authenticator evaluates the incoming RPC context and returns an error when the
// request should be rejected.
type Authenticator interface {
	Authorize(ctx context.Context) error
}

type authenticatorFunc func(context.Context) error

func (f authenticatorFunc) Authorize(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}

// ChainAuthenticators combines multiple authenticators, short-circuiting on the
// first failure. When no authenticators are supplied the returned instance
// always authorizes the request.
func ChainAuthenticators(auths ...Authenticator) Authenticator {
	filtered := make([]Authenticator, 0, len(auths))
	for _, auth := range auths {
		if auth != nil {
			filtered = append(filtered, auth)
		}
	}
	if len(filtered) == 0 {
		return authenticatorFunc(func(context.Context) error { return nil })
	}
	return authenticatorFunc(func(ctx context.Context) error {
		for _, auth := range filtered {
			if err := auth.Authorize(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// TokenSet holds the static API tokens accepted by a service.
type TokenSet struct {
	tokens []string
}

// NewTokenSet drops blank entries from tokens.
func NewTokenSet(tokens ...string) TokenSet {
	cleaned := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return TokenSet{tokens: cleaned}
}

// Empty reports whether no token is configured.
func (s TokenSet) Empty() bool { return len(s.tokens) == 0 }

// Match reports whether value carries a configured token, either verbatim or
// as "Bearer <token>". Every candidate is compared in constant time.
func (s TokenSet) Match(value string) bool {
	token := strings.TrimSpace(value)
	if len(token) >= len("bearer ") && strings.EqualFold(token[:len("bearer ")], "bearer ") {
		token = strings.TrimSpace(token[len("bearer "):])
	}
	if token == "" {
		return false
	}
	matched := false
	for _, candidate := range s.tokens {
		if constantTimeEqual(token, candidate) {
			matched = true
		}
	}
	return matched
}

// NewTokenAuthenticator validates that one of the supplied metadata headers
// carries a configured token. Headers default to "authorization" and
// "x-api-token". A nil authenticator is returned when no token is set.
func NewTokenAuthenticator(tokens TokenSet, headers ...string) Authenticator {
	if tokens.Empty() {
		return nil
	}
	cleaned := make([]string, 0, len(headers))
	for _, header := range headers {
		if trimmed := strings.ToLower(strings.TrimSpace(header)); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{"authorization", "x-api-token"}
	}
	return authenticatorFunc(func(ctx context.Context) error {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return status.Error(codes.Unauthenticated, "network: missing metadata")
		}
		for _, header := range cleaned {
			for _, value := range md.Get(header) {
				if tokens.Match(value) {
					return nil
				}
			}
		}
		return status.Error(codes.Unauthenticated, "network: invalid or missing api token")
	})
}

// AnyAuthenticator accepts the request when at least one authenticator does.
// The last failure is returned otherwise.
func AnyAuthenticator(auths ...Authenticator) Authenticator {
	filtered := make([]Authenticator, 0, len(auths))
	for _, auth := range auths {
		if auth != nil {
			filtered = append(filtered, auth)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return authenticatorFunc(func(ctx context.Context) error {
		var lastErr error
		for _, auth := range filtered {
			if lastErr = auth.Authorize(ctx); lastErr == nil {
				return nil
			}
		}
		return lastErr
	})
}

// NewTLSAuthorizer ensures the peer negotiated TLS and, when a non-empty allow
// list is provided, that at least one presented client certificate matches the
// configured common names.
func NewTLSAuthorizer(allowed []string) Authenticator {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, cn := range allowed {
		normalized := normalizeIdentity(cn)
		if normalized == "" {
			continue
		}
		allowedSet[normalized] = struct{}{}
	}
	return authenticatorFunc(func(ctx context.Context) error {
		p, ok := peer.FromContext(ctx)
		if !ok {
			return status.Error(codes.Unauthenticated, "network: missing peer info")
		}
		info, ok := p.AuthInfo.(credentials.TLSInfo)
		if !ok {
			return status.Error(codes.Unauthenticated, "network: connection is not using TLS")
		}
		if len(info.State.PeerCertificates) == 0 {
			return status.Error(codes.Unauthenticated, "network: no client certificate presented")
		}
		if len(allowedSet) == 0 {
			return nil
		}
		for _, cert := range info.State.PeerCertificates {
			if certificateMatchesAllowlist(cert, allowedSet) {
				return nil
			}
		}
		return status.Error(codes.PermissionDenied, "network: client certificate not authorised")
	})
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func normalizeIdentity(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	return strings.ToLower(trimmed)
}

func certificateMatchesAllowlist(cert *x509.Certificate, allowed map[string]struct{}) bool {
	if cert == nil {
		return false
	}
	for _, dns := range cert.DNSNames {
		if _, ok := allowed[normalizeIdentity(dns)]; ok {
			return true
		}
	}
	for _, uri := range cert.URIs {
		if uri == nil {
			continue
		}
		if _, ok := allowed[normalizeIdentity(uri.String())]; ok {
			return true
		}
	}
	cn := normalizeIdentity(cert.Subject.CommonName)
	if _, ok := allowed[cn]; ok {
		return true
	}
	return false
}
