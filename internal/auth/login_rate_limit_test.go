package auth

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CherryKingOne/WeiMeng/internal/cache"
	"github.com/CherryKingOne/WeiMeng/internal/observability"
)

func newTestLimiter(t *testing.T, maxHits int, window time.Duration) (*LoginRateLimiter, *miniredis.Miniredis, *bytes.Buffer) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	logs := &bytes.Buffer{}
	return NewLoginRateLimiter(cache.NewRedisCache(client), observability.NewLoggerTo(logs), maxHits, window), mr, logs
}

func loginAttempt(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = ip + ":52000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginRateLimiter(t *testing.T) {
	limiter, mr, _ := newTestLimiter(t, 2, time.Minute)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, loginAttempt(h, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, loginAttempt(h, "10.0.0.1").Code)

	rec := loginAttempt(h, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, loginAttempt(h, "10.0.0.2").Code, "limits are per client ip")
	assert.True(t, mr.Exists("ratelimit:login:10.0.0.1"))

	mr.FastForward(61 * time.Second)
	assert.Equal(t, http.StatusOK, loginAttempt(h, "10.0.0.1").Code, "a new window starts after expiry")
}

func TestLoginRateLimiterFailsOpen(t *testing.T) {
	limiter, mr, logs := newTestLimiter(t, 1, time.Minute)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	mr.Close()

	rec := loginAttempt(h, "10.0.0.1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "login_rate_limit_unavailable")
}
