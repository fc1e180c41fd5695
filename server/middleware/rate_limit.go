package middleware

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// DefaultLimiterIdleTTL is how long a key's limiter is kept after its last request.
const DefaultLimiterIdleTTL = 10 * time.Minute

// RateLimiter provides per-key rate limiting.
type RateLimiter struct {
	mu     sync.RWMutex
	limits map[string]*limiterEntry
	rps    rate.Limit
	burst  int

	// Limiters idle for longer than idleTTL are dropped on the next sweep.
	// idleTTL is never shorter than a full refill, so a dropped limiter
	// would have had its whole burst available again anyway.
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanoseconds
}

// NewRateLimiter creates a new rate limiter allowing rps requests per second per key.
// A non-positive rps falls back to 10 requests per second.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = int(rps * 2)
		if burst < 1 {
			burst = 1
		}
	}
	idleTTL := DefaultLimiterIdleTTL
	if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idleTTL {
		idleTTL = refill
	}
	return &RateLimiter{
		limits:    make(map[string]*limiterEntry),
		rps:       rate.Limit(rps),
		burst:     burst,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.RLock()
	entry, ok := rl.limits[key]
	rl.mu.RUnlock()
	if ok {
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		rl.sweepLocked(now)
	}
	if entry, ok := rl.limits[key]; ok {
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}
	entry = &limiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
	entry.lastSeen.Store(now.UnixNano())
	rl.limits[key] = entry
	return entry.limiter
}

// sweepLocked drops idle limiters. rl.mu must be held for writing.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-rl.idleTTL).UnixNano()
	for key, entry := range rl.limits {
		if entry.lastSeen.Load() < cutoff {
			delete(rl.limits, key)
		}
	}
	rl.lastSweep = now
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(c echo.Context) string

// Middleware rejects requests with 429 once the key's budget is spent.
// Requests for which keyFn returns "" are keyed by the client IP.
func (rl *RateLimiter) Middleware(keyFn KeyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := ""
			if keyFn != nil {
				key = keyFn(c)
			}
			if key == "" {
				key = "ip:" + c.RealIP()
			}
			if !rl.Allow(key) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "Too many requests, please slow down",
				})
			}
			return next(c)
		}
	}
}
