package httpapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/antoniostano/sauti/internal/reliability"
)

const limiterIdleTTL = 10 * time.Minute

// ipLimiter holds one token bucket per client address.
type ipLimiter struct {
	mu        sync.Mutex
	perMinute int
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(perMinute int) *ipLimiter {
	if perMinute < 1 {
		perMinute = 10
	}
	return &ipLimiter{
		perMinute: perMinute,
		clients:   make(map[string]*clientLimiter),
		now:       time.Now,
	}
}

func (l *ipLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[key]
	if !ok {
		every := time.Minute / time.Duration(l.perMinute)
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Every(every), l.perMinute)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// allow spends one token for the client behind r.
func (s *Server) allow(r *http.Request) bool {
	if s.limiter.Allow(clientIP(r)) {
		return true
	}
	if s.metrics != nil {
		s.metrics.RateLimited.Inc()
	}
	return false
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.allow(r) {
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, string(reliability.RateLimited), reliability.RateLimitDetail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr, which RealIP has already rewritten
// from forwarding headers when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
