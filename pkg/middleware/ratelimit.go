package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/platinummonkey/verdict/pkg/httputil"
	"github.com/platinummonkey/verdict/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
}

// DefaultRateLimitConfig returns default rate limit settings for the auth endpoints
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 20,
		WindowDuration:    time.Minute,
	}
}

// Limit is the outcome of a rate limit check
type Limit struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Limiter decides whether the caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Limit, error)
	Config() *RateLimitConfig
}

// maxTrackedKeys bounds the in-memory limiter; the least recently seen callers are evicted first
const maxTrackedKeys = 10000

// RateLimiter implements fixed-window rate limiting in process memory
type RateLimiter struct {
	config  *RateLimitConfig
	buckets *lru.Cache[string, *bucket]
	now     func() time.Time
}

type bucket struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a new in-memory rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	buckets, err := lru.New[string, *bucket](maxTrackedKeys)
	if err != nil {
		panic(fmt.Sprintf("rate limiter cache: %v", err))
	}

	return &RateLimiter{
		config:  config,
		buckets: buckets,
		now:     time.Now,
	}
}

// Config returns the limiter configuration
func (rl *RateLimiter) Config() *RateLimitConfig {
	return rl.config
}

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(ctx context.Context, key string) (Limit, error) {
	now := rl.now()

	b, ok := rl.buckets.Get(key)
	if !ok {
		b = &bucket{windowStart: now}
		if existing, found, _ := rl.buckets.PeekOrAdd(key, b); found {
			b = existing
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.windowStart) >= rl.config.WindowDuration {
		b.windowStart = now
		b.count = 0
	}

	resetIn := rl.config.WindowDuration - now.Sub(b.windowStart)
	if b.count >= rl.config.RequestsPerWindow {
		return Limit{Allowed: false, Remaining: 0, ResetIn: resetIn}, nil
	}

	b.count++
	return Limit{Allowed: true, Remaining: rl.config.RequestsPerWindow - b.count, ResetIn: resetIn}, nil
}

// RateLimitMiddleware provides HTTP rate limiting keyed by client address
type RateLimitMiddleware struct {
	limiter Limiter
	proxies *TrustedProxies
	logger  *observability.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware. Forwarding headers are
// honoured only on requests whose peer is one of proxies; a nil proxies trusts nobody.
func NewRateLimitMiddleware(limiter Limiter, proxies *TrustedProxies, logger *observability.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		proxies: proxies,
		logger:  logger,
	}
}

// Handler wraps an HTTP handler with rate limiting. Limiter errors fail open.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + m.proxies.ClientIP(r)
		cfg := m.limiter.Config()

		limit, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			m.logger.WithError(err).WithField("key", key).Warn("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limit.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(limit.ResetIn).Unix(), 10))

		if !limit.Allowed {
			retryAfter := int(limit.ResetIn.Round(time.Second).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// TrustedProxies is the set of peers allowed to report the caller address through
// X-Forwarded-For or X-Real-IP
type TrustedProxies struct {
	nets []*net.IPNet
}

// ParseTrustedProxies accepts CIDR blocks and bare IP addresses
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	p := &TrustedProxies{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 8 * net.IPv4len
			if ip.To4() == nil {
				bits = 8 * net.IPv6len
			}
			p.nets = append(p.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		p.nets = append(p.nets, ipNet)
	}
	return p, nil
}

func (p *TrustedProxies) trusts(addr string) bool {
	if p == nil {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range p.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the address the request is throttled under. The peer address is
// used unless the peer is trusted, in which case X-Forwarded-For is walked from the
// right and the first untrusted hop wins.
func (p *TrustedProxies) ClientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if !p.trusts(peer) {
		return peer
	}

	if forwarded := r.Header.Values("X-Forwarded-For"); len(forwarded) > 0 {
		hops := strings.Split(strings.Join(forwarded, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !p.trusts(hop) || i == 0 {
				return hop
			}
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return peer
}
