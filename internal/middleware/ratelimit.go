package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/coursekit/evalserver/pkg/response"
)

// clientIdleEviction is how long a caller can go quiet before its limiter
// state is dropped.
const clientIdleEviction = 10 * time.Minute

// client tracks one caller's token bucket and when it was last seen.
type client struct {
	limiter *rate.Limiter
	seen    time.Time
}

// RateLimiter throttles requests per client IP. It fronts the public login
// route, where credential stuffing is the concern; authenticated routes are
// not limited.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rps     rate.Limit
	burst   int
}

// NewRateLimiter allows rps sustained requests per second per IP, with
// bursts up to burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*client),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go rl.evictIdle()
	return rl
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[ip]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[ip] = cl
	}
	cl.seen = time.Now()
	return cl.limiter.Allow()
}

// evictIdle drops quiet clients so the map does not grow with one entry per
// address ever seen.
func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(clientIdleEviction / 2)
	for range ticker.C {
		rl.mu.Lock()
		for ip, cl := range rl.clients {
			if time.Since(cl.seen) > clientIdleEviction {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware rejects over-limit requests with 429 before they reach the
// handler.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			response.TooManyRequests(c, "too many requests, retry later")
			c.Abort()
			return
		}
		c.Next()
	}
}
