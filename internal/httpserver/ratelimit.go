package httpserver

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"redwhite/dashboard-bff/internal/config"
)

const (
	limiterIdleTTL    = 5 * time.Minute
	limiterSweepAbove = 1024
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles login attempts per client IP. A nil limiter allows
// everything.
type rateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	rate    rate.Limit
	burst   int
	nowFunc func() time.Time
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	if cfg.PerSecond <= 0 || cfg.Burst <= 0 {
		return nil
	}
	return &rateLimiter{
		entries: make(map[string]*limiterEntry),
		rate:    rate.Limit(cfg.PerSecond),
		burst:   cfg.Burst,
		nowFunc: time.Now,
	}
}

func (l *rateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > limiterSweepAbove {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(l.entries, k)
			}
		}
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// retryAfterSeconds is the wait for one token at the configured rate.
func (l *rateLimiter) retryAfterSeconds() int {
	if l == nil || l.rate <= 0 {
		return 1
	}
	return max(int(1.0/float64(l.rate)), 1)
}

// limiterKey identifies the client for throttling. The socket peer is the
// client unless it is a trusted proxy; then X-Forwarded-For is read from the
// right and the first hop that is not itself trusted wins. Headers sent by
// untrusted peers are ignored.
func limiterKey(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !isTrusted(peer, trusted) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	client := host
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			return hop
		}
		if !isTrusted(addr, trusted) {
			return addr.Unmap().String()
		}
		client = addr.Unmap().String()
	}
	return client
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
