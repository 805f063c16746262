package auth

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/CherryKingOne/WeiMeng/internal/observability"
)

const loginRateLimitKeyPrefix = "ratelimit:login:"

// Counter increments key inside a fixed window and reports the count and the
// time left in the window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// LoginRateLimiter is a fixed-window limiter per client IP. Counts live in the
// shared cache so every instance sees the same window.
type LoginRateLimiter struct {
	counter Counter
	logger  *observability.Logger
	maxHits int
	window  time.Duration
}

func NewLoginRateLimiter(counter Counter, logger *observability.Logger, maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		counter: counter,
		logger:  logger,
		maxHits: maxHits,
		window:  window,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := observability.ClientIP(r)

		allowed, retryAfter, err := l.allow(r.Context(), ip)
		if err != nil {
			// The limiter fails open; logins keep working while the cache is down.
			l.logger.ErrorContext(r.Context(), "login_rate_limit_unavailable", map[string]any{
				"ip":    ip,
				"error": err.Error(),
			})
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "too many login attempts", "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ctx context.Context, ip string) (bool, time.Duration, error) {
	hits, ttl, err := l.counter.Incr(ctx, loginRateLimitKeyPrefix+ip, l.window)
	if err != nil {
		return false, 0, err
	}
	if hits <= int64(l.maxHits) {
		return true, 0, nil
	}

	if ttl < time.Second {
		ttl = time.Second
	}
	return false, ttl, nil
}
