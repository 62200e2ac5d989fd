package server

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/semdex/internal/logging"
)

const (
	// defaultRateLimit is the sustained per-IP request rate (requests/second)
	// when the config does not set one.
	defaultRateLimit = 10
	// defaultRateBurst allows short spikes without immediate 429s.
	defaultRateBurst = 20

	// visitorTTL is how long an idle IP keeps its token bucket before the
	// eviction sweep reclaims it.
	visitorTTL = 5 * time.Minute
	// evictInterval is how often the sweep runs.
	evictInterval = time.Minute
)

// visitor is one remote IP's token bucket plus its last-activity timestamp.
type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a per-IP token-bucket limit on the endpoints it wraps.
// Idle entries are swept periodically so the map stays bounded.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	log      *slog.Logger
}

// newRateLimiter constructs a rateLimiter and starts its eviction sweep.
// Calling the returned stop function ends the background goroutine.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(evictInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				rl.sweep(time.Now())
			}
		}
	}()

	return rl, func() { close(done) }
}

// allow reports whether a request from ip may proceed, creating the bucket
// on first sight and refreshing the activity timestamp.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.bucket.Allow()
}

// sweep drops visitors idle longer than visitorTTL.
func (rl *rateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(rl.visitors, ip)
		}
	}
}

// middleware wraps next with the rate check. Over-limit requests get 429
// with a Retry-After hint and a structured warning.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr ("host:port"). X-Forwarded-For is
// deliberately ignored: the server binds to localhost and forwarded headers
// are spoofable.
func clientIP(r *http.Request) string {
	if i := strings.LastIndexByte(r.RemoteAddr, ':'); i >= 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
