package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// client is the token bucket for a single IP address.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// rateLimiterState holds the shared state for a rate limiter instance.
type rateLimiterState struct {
	clients sync.Map // map[string]*client (IP -> client)
	rate    float64  // tokens added per second
	burst   int      // maximum tokens (bucket capacity)
	done    chan struct{}
}

// healthCheckPaths are endpoints exempt from rate limiting.
var healthCheckPaths = map[string]bool{
	"/api/v1/health": true,
	"/healthz":       true,
	"/health":        true,
	"/metrics":       true,
}

func (s *rateLimiterState) client(ip string) *client {
	val, _ := s.clients.LoadOrStore(ip, &client{
		limiter:  rate.NewLimiter(rate.Limit(s.rate), s.burst),
		lastSeen: time.Now(),
	})
	return val.(*client)
}

// allow consumes one token for ip if available.
// Returns (allowed, remaining, limit).
func (s *rateLimiterState) allow(ip string) (bool, int, int) {
	c := s.client(ip)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.lastSeen = now
	if !c.limiter.AllowN(now, 1) {
		return false, 0, s.burst
	}
	remaining := int(math.Floor(c.limiter.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, s.burst
}

// retryAfter estimates how many seconds until one token is available.
func (s *rateLimiterState) retryAfter(ip string) int {
	val, ok := s.clients.Load(ip)
	if !ok {
		return 1
	}
	c := val.(*client)

	c.mu.Lock()
	defer c.mu.Unlock()

	tokens := c.limiter.TokensAt(time.Now())
	if tokens >= 1.0 {
		return 0
	}
	return int(math.Ceil((1.0 - tokens) / s.rate))
}

// sweep drops clients idle since before threshold.
func (s *rateLimiterState) sweep(threshold time.Time) {
	s.clients.Range(func(key, value any) bool {
		c := value.(*client)
		c.mu.Lock()
		stale := c.lastSeen.Before(threshold)
		c.mu.Unlock()
		if stale {
			s.clients.Delete(key)
		}
		return true
	})
}

// startCleanup launches a background goroutine that removes clients idle for
// more than 10 minutes, every 5 minutes, until done is closed.
func (s *rateLimiterState) startCleanup() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep(time.Now().Add(-10 * time.Minute))
			case <-s.done:
				return
			}
		}
	}()
}

// RateLimiter creates middleware that limits requests per IP address using a
// token bucket with configurable rate and burst.
//
// Usage:
//
//	limited := middleware.RateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
//	mux.Handle("POST /api/v1/analyses", limited(analysisHandler))
func RateLimiter(rps float64, burst int) func(http.Handler) http.Handler {
	state := &rateLimiterState{
		rate:  rps,
		burst: burst,
		done:  make(chan struct{}),
	}
	state.startCleanup()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if healthCheckPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			ip := extractIP(r)

			allowed, remaining, limit := state.allow(ip)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(state.retryAfter(ip)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "rate limit exceeded",
					"message": "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractIP retrieves the client IP from the request, preferring
// X-Forwarded-For and X-Real-IP headers (for reverse proxy setups),
// and falling back to RemoteAddr.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Leftmost entry is the original client.
		parts := strings.SplitN(xff, ",", 2)
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
