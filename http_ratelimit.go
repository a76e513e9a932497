package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter hands out one token bucket per client IP. Buckets refill
// max tokens per window and idle buckets are dropped after a window.
type ipRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newIPRateLimiter(max int, window time.Duration) *ipRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &ipRateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Every(window / time.Duration(max)),
		burst:   max,
		window:  window,
		now:     time.Now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.window {
		for key, c := range l.clients {
			if now.Sub(c.lastSeen) > l.window {
				delete(l.clients, key)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now

	return c.limiter.AllowN(now, 1)
}

// signInLimiter rejects sign in attempts over max per window from one IP
func signInLimiter(max int, window time.Duration) router.MiddlewareFunc {
	limiter := newIPRateLimiter(max, window)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if limiter.allow(ctx.IP()) {
				return ctx.Next()
			}

			return ctx.JSON(http.StatusTooManyRequests, AuthResponse{
				Status:   http.StatusTooManyRequests,
				Error:    "Too many sign in attempts, please try again later",
				TextCode: errors.TextCodeTooManyAttempts,
			})
		}
	}
}
