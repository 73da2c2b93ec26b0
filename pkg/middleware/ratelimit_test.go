package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/verdict/pkg/observability"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute})
	now := time.Now()
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limit, err := limiter.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, limit.Allowed, "request %d", i)
		assert.Equal(t, 2-i, limit.Remaining)
	}

	limit, err := limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, limit.Allowed)

	other, err := limiter.Allow(ctx, "ip:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")

	now = now.Add(time.Minute)
	limit, err = limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, limit.Allowed, "new window")
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, "")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		limit, err := limiter.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, limit.Allowed)
	}

	limit, err := limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, limit.Allowed)
	assert.Equal(t, 0, limit.Remaining)
	assert.Equal(t, time.Minute, limit.ResetIn)

	assert.Equal(t, time.Minute, mr.TTL("verdict:ratelimit:ip:1.2.3.4"))

	mr.FastForward(time.Minute + time.Second)
	limit, err = limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, limit.Allowed, "window expired")
	assert.True(t, mr.Exists("verdict:ratelimit:ip:1.2.3.4"))
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	limiter := NewDistributedRateLimiter(client, nil, "")
	limit, err := limiter.Allow(context.Background(), "ip:1.2.3.4")
	assert.Error(t, err)
	assert.True(t, limit.Allowed)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Limit, error) {
	return Limit{}, assert.AnError
}

func (failingLimiter) Config() *RateLimitConfig { return DefaultRateLimitConfig() }

func TestRateLimitMiddleware(t *testing.T) {
	logger := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	handler := NewRateLimitMiddleware(limiter, nil, logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send("10.0.0.1:5000")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := send("10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000").Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)
	handler := NewRateLimitMiddleware(failingLimiter{}, nil, logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), "rate limiter unavailable")
}

func TestRateLimitMiddleware_ForwardedHeaders(t *testing.T) {
	logger := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	send := func(handler http.Handler, remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("untrusted peer cannot rotate its key", func(t *testing.T) {
		limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
		handler := NewRateLimitMiddleware(limiter, nil, logger).Handler(ok)

		allowed := 0
		for i := 0; i < 50; i++ {
			if send(handler, "192.0.2.1:4000", fmt.Sprintf("10.0.0.%d", i)) == http.StatusOK {
				allowed++
			}
		}
		assert.Equal(t, 2, allowed)
	})

	t.Run("trusted proxy forwards distinct callers", func(t *testing.T) {
		proxies, err := ParseTrustedProxies([]string{"192.0.2.0/24"})
		require.NoError(t, err)
		limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
		handler := NewRateLimitMiddleware(limiter, proxies, logger).Handler(ok)

		assert.Equal(t, http.StatusOK, send(handler, "192.0.2.1:4000", "203.0.113.5"))
		assert.Equal(t, http.StatusOK, send(handler, "192.0.2.1:4000", "203.0.113.6"))
		assert.Equal(t, http.StatusTooManyRequests, send(handler, "192.0.2.1:4000", "203.0.113.5"))
	})
}

func TestParseTrustedProxies(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.7 ", "", "2001:db8::1"})
	require.NoError(t, err)
	assert.True(t, proxies.trusts("10.1.2.3"))
	assert.True(t, proxies.trusts("192.0.2.7"))
	assert.False(t, proxies.trusts("192.0.2.8"))
	assert.True(t, proxies.trusts("2001:db8::1"))
	assert.False(t, proxies.trusts("not-an-ip"))

	var none *TrustedProxies
	assert.False(t, none.trusts("10.1.2.3"))

	_, err = ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"proxy.local"})
	assert.Error(t, err)
}

func TestTrustedProxies_ClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		proxies   *TrustedProxies
		remote    string
		forwarded []string
		realIP    string
		want      string
	}{
		{name: "peer address", proxies: proxies, remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "untrusted peer ignores headers", proxies: proxies, remote: "192.0.2.1:1234",
			forwarded: []string{"203.0.113.5"}, realIP: "198.51.100.7", want: "192.0.2.1"},
		{name: "nil set trusts nobody", remote: "10.0.0.1:1234", forwarded: []string{"203.0.113.5"}, want: "10.0.0.1"},
		{name: "trusted peer real ip", proxies: proxies, remote: "10.0.0.1:1234", realIP: "198.51.100.7", want: "198.51.100.7"},
		{name: "rightmost untrusted hop", proxies: proxies, remote: "10.0.0.1:1234",
			forwarded: []string{"1.1.1.1, 203.0.113.5, 10.0.0.2"}, want: "203.0.113.5"},
		{name: "repeated headers", proxies: proxies, remote: "10.0.0.1:1234",
			forwarded: []string{"1.1.1.1", "203.0.113.9"}, want: "203.0.113.9"},
		{name: "all hops trusted", proxies: proxies, remote: "10.0.0.1:1234",
			forwarded: []string{"10.0.0.3, 10.0.0.2"}, want: "10.0.0.3"},
		{name: "remote without port", proxies: proxies, remote: "192.0.2.1", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.forwarded {
				req.Header.Add("X-Forwarded-For", v)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, tt.proxies.ClientIP(req))
		})
	}
}
