package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/maumercado/taskboard-go/internal/logger"
)

const limiterIdleTimeout = 5 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter maintains per-client rate limiters
type ClientRateLimiter struct {
	limiters map[string]*clientLimiter
	rps      int
	mu       sync.Mutex
	idle     time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewClientRateLimiter creates a per-client limiter allowing rps requests
// per second with a burst of rps.
func NewClientRateLimiter(rps int) *ClientRateLimiter {
	if rps <= 0 {
		rps = 10
	}
	crl := &ClientRateLimiter{
		limiters: make(map[string]*clientLimiter),
		rps:      rps,
		idle:     limiterIdleTimeout,
		stopCh:   make(chan struct{}),
	}
	go crl.cleanupLoop()
	return crl
}

// cleanupLoop forgets clients idle for longer than crl.idle.
func (crl *ClientRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(crl.idle)
	defer ticker.Stop()
	for {
		select {
		case <-crl.stopCh:
			return
		case now := <-ticker.C:
			crl.evict(now)
		}
	}
}

func (crl *ClientRateLimiter) evict(now time.Time) {
	crl.mu.Lock()
	defer crl.mu.Unlock()
	for id, l := range crl.limiters {
		if now.Sub(l.lastSeen) > crl.idle {
			delete(crl.limiters, id)
		}
	}
}

// Stop ends the cleanup goroutine.
func (crl *ClientRateLimiter) Stop() {
	crl.stopOnce.Do(func() { close(crl.stopCh) })
}

// GetLimiter returns the rate limiter for a client
func (crl *ClientRateLimiter) GetLimiter(clientID string) *rate.Limiter {
	crl.mu.Lock()
	defer crl.mu.Unlock()

	l, exists := crl.limiters[clientID]
	if !exists {
		l = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(crl.rps), crl.rps)}
		crl.limiters[clientID] = l
	}
	l.lastSeen = time.Now()
	return l.limiter
}

// Len returns the number of tracked clients.
func (crl *ClientRateLimiter) Len() int {
	crl.mu.Lock()
	defer crl.mu.Unlock()
	return len(crl.limiters)
}

// Middleware rejects requests from clients over their limit with 429.
func (crl *ClientRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := clientKey(r)

		if !crl.GetLimiter(clientID).Allow() {
			logger.Warn().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("client", clientID).
				Msg("client rate limit exceeded")

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Too Many Requests","message":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientRateLimit returns a middleware that enforces per-client rate limiting
func ClientRateLimit(rps int) func(next http.Handler) http.Handler {
	return NewClientRateLimiter(rps).Middleware
}

// clientKey identifies the caller by X-Forwarded-For or the remote host.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
