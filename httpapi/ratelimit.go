package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pkt.systems/pslog"
)

// RateLimitConfig controls per-route request limits.
// GET routes use Max; POST routes use MaxPost.
type RateLimitConfig struct {
	Max        int
	MaxPost    int
	TimeWindow time.Duration
	Enabled    bool
}

// DefaultRateLimitConfig returns 100 GET / 30 POST requests per minute.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Max:        100,
		MaxPost:    30,
		TimeWindow: time.Minute,
		Enabled:    true,
	}
}

// normalized fills unset numeric fields from the defaults. Enabled is kept as given.
func (c RateLimitConfig) normalized() RateLimitConfig {
	def := DefaultRateLimitConfig()
	if c.Max <= 0 {
		c.Max = def.Max
	}
	if c.MaxPost <= 0 {
		c.MaxPost = def.MaxPost
	}
	if c.TimeWindow <= 0 {
		c.TimeWindow = def.TimeWindow
	}
	return c
}

// RouteRateLimit is the limit in effect for one registered route.
type RouteRateLimit struct {
	Max        int
	TimeWindow time.Duration
	Enabled    bool
}

const visitorIdleWindows = 3

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// routeLimiter is a token bucket per client IP for one route.
// The bucket holds max tokens and refills max tokens per window.
type routeLimiter struct {
	max    int
	window time.Duration
	limit  rate.Limit

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newRouteLimiter(max int, window time.Duration) *routeLimiter {
	return &routeLimiter{
		max:      max,
		window:   window,
		limit:    rate.Limit(float64(max) / window.Seconds()),
		visitors: make(map[string]*visitor),
	}
}

// allow reports whether the key may proceed and, if not, how long until it may.
func (l *routeLimiter) allow(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.max)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	res := v.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, l.window
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *routeLimiter) sweep(now time.Time) {
	idle := visitorIdleWindows * l.window
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > idle {
			delete(l.visitors, key)
		}
	}
}

func (l *routeLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (l *routeLimiter) middleware(route string, now func() time.Time, m *gatewayMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := l.allow(limiterKey(r), now())
			if !ok {
				m.rateLimited(route)
				pslog.Ctx(r.Context()).Warn("http rate limited", "route", route, "remote", clientIP(r), "retry_ms", retry.Milliseconds())
				secs := int((retry + time.Second - 1) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded, retry in "+strconv.Itoa(secs)+" seconds")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limiterKey keys buckets by the peer address. Forwarded headers are ignored
// so a client cannot pick its own bucket.
func limiterKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
