package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/pkg/response"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 3 * time.Minute
	limiterIdleTTL       = 5 * time.Minute
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// ClientIPKey buckets requests by client IP.
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per key. Call Stop to end the background
// sweep of idle buckets.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	rps      rate.Limit
	burst    int
	key      KeyFunc
	stop     chan struct{}
	once     sync.Once
}

// NewRateLimiter allows rps requests per second per client IP with the given
// burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return NewKeyedRateLimiter(rps, burst, ClientIPKey)
}

func NewKeyedRateLimiter(rps float64, burst int, key KeyFunc) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*keyLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		key:      key,
		stop:     make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.limiters[key]
	if !ok {
		limiter := rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[key] = &keyLimiter{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.Sweep(limiterIdleTTL)
		}
	}
}

// Sweep drops buckets idle for longer than maxIdle and returns how many
// remain.
func (rl *RateLimiter) Sweep(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.limiters {
		if time.Since(v.lastSeen) > maxIdle {
			delete(rl.limiters, key)
		}
	}
	return len(rl.limiters)
}

func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getLimiter(rl.key(c)).Allow() {
			response.Error(c, &response.AppError{
				HTTPStatus: http.StatusTooManyRequests,
				Code:       429,
				Message:    "too many requests, please try again later",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
