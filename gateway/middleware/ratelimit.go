package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"microlend/network"
	"microlend/observability"
)

const (
	defaultVisitorCapacity = 10_000
	defaultVisitorIdle     = 5 * time.Minute
)

// RateLimit is a token bucket for one route group. RatePerSecond wins over
// RequestsPerMinute when both are set.
type RateLimit struct {
	RequestsPerMinute float64
	RatePerSecond     float64
	Burst             int
}

func (l RateLimit) limiter() *rate.Limiter {
	perSecond := l.RatePerSecond
	if perSecond <= 0 {
		perSecond = l.RequestsPerMinute / 60.0
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := l.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// RateLimiter applies token buckets per route group and client. Requests that
// name a lending caller are bucketed by that caller so one account cannot
// spread its calls across addresses; others fall back to the client IP.
// Buckets idle for five minutes are dropped.
type RateLimiter struct {
	logger   *slog.Logger
	limits   map[string]RateLimit
	visitors *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter builds a limiter for the named route groups.
func NewRateLimiter(limits map[string]RateLimit, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		logger:   logger,
		limits:   limits,
		visitors: expirable.NewLRU[string, *rate.Limiter](defaultVisitorCapacity, nil, defaultVisitorIdle),
	}
}

// Middleware throttles the route group named group. Groups without a
// configured limit pass through.
func (r *RateLimiter) Middleware(group string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			limit, ok := r.limits[group]
			if !ok {
				next.ServeHTTP(w, req)
				return
			}
			client := clientID(req)
			limiter := r.bucket(group+"|"+client, limit)
			reservation := limiter.Reserve()
			if delay := reservation.Delay(); delay > 0 {
				reservation.Cancel()
				observability.ModuleMetrics().RecordThrottle("http", "rate_limit")
				r.logger.Debug("gateway rate limited", slog.String("group", group), slog.String("client", client))
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, 0, http.StatusText(http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// bucket returns the limiter for id, refreshing its idle timer.
func (r *RateLimiter) bucket(id string, cfg RateLimit) *rate.Limiter {
	if limiter, ok := r.visitors.Get(id); ok {
		r.visitors.Add(id, limiter)
		return limiter
	}
	limiter := cfg.limiter()
	r.visitors.Add(id, limiter)
	return limiter
}

func clientID(r *http.Request) string {
	if caller := strings.TrimSpace(r.Header.Get(network.HeaderCaller)); caller != "" {
		return "caller:" + caller
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
