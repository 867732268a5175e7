package middleware

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"radiance/backend/pkg/errors"
	"radiance/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterOptions configures the rate limiter
type RateLimiterOptions struct {
	// Limit defines requests per second
	Limit rate.Limit
	// Burst defines maximum burst size allowed
	Burst int
	// ExpiryDuration defines how long to keep client state in memory
	ExpiryDuration time.Duration
	// KeyFunc extracts the limiting key from a request
	KeyFunc func(*gin.Context) string
}

// DefaultRateLimiterOptions limits by participant when authenticated and by
// client IP otherwise
func DefaultRateLimiterOptions() RateLimiterOptions {
	return RateLimiterOptions{
		Limit:          5,
		Burst:          10,
		ExpiryDuration: time.Hour,
		KeyFunc: func(c *gin.Context) string {
			if id, ok := CurrentUserID(c); ok {
				return fmt.Sprintf("user:%d", id)
			}
			return "ip:" + c.ClientIP()
		},
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements token bucket rate limiting for Gin
type RateLimiter struct {
	mu      sync.Mutex
	options RateLimiterOptions
	clients map[string]*client
	logger  *logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(logger *logger.Logger, options ...RateLimiterOptions) *RateLimiter {
	opts := DefaultRateLimiterOptions()
	if len(options) > 0 {
		opts = options[0]
		if opts.KeyFunc == nil {
			opts.KeyFunc = DefaultRateLimiterOptions().KeyFunc
		}
		if opts.ExpiryDuration <= 0 {
			opts.ExpiryDuration = time.Hour
		}
	}

	return &RateLimiter{
		options: opts,
		clients: make(map[string]*client),
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// Middleware returns a Gin middleware for rate limiting
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	r.startOnce.Do(func() { go r.cleanup() })

	return func(c *gin.Context) {
		key := r.options.KeyFunc(c)
		if !r.Allow(key) {
			r.logger.Warn("Rate limit exceeded",
				"client", key,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)

			c.Header("Retry-After", "1")
			c.Header("X-RateLimit-Limit", strconv.Itoa(r.options.Burst))
			c.Error(errors.NewTooManyRequestsError(errors.CodeRateLimited, "Too many requests. Please try again later."))
			c.Abort()
			return
		}

		c.Next()
	}
}

// Allow reports whether the client identified by key may proceed
func (r *RateLimiter) Allow(key string) bool {
	return r.getLimiter(key).Allow()
}

// Stop ends the cleanup goroutine
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *RateLimiter) getLimiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, exists := r.clients[key]
	if !exists {
		limiter := rate.NewLimiter(r.options.Limit, r.options.Burst)
		r.clients[key] = &client{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (r *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle(time.Now())
		case <-r.stop:
			return
		}
	}
}

func (r *RateLimiter) evictIdle(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, v := range r.clients {
		if now.Sub(v.lastSeen) > r.options.ExpiryDuration {
			delete(r.clients, k)
		}
	}
}
