package ratelimit

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"verdict/pkg/metrics"
)

// Config defines rate limiting configuration
type Config struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
	ClientTTL         time.Duration
}

// DefaultConfig returns a default rate limit configuration
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupInterval:   5 * time.Minute,
		ClientTTL:         10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks per-client rate limiters keyed by IP
type Limiter struct {
	cfg     Config
	mu      sync.RWMutex
	clients map[string]*clientLimiter
}

// NewLimiter creates a rate limiter and starts background cleanup of stale clients
func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		clients: make(map[string]*clientLimiter),
	}
	go l.cleanupLoop()
	return l
}

func (l *Limiter) getLimiter(clientKey string) *rate.Limiter {
	l.mu.RLock()
	c, ok := l.clients[clientKey]
	l.mu.RUnlock()
	if ok {
		l.mu.Lock()
		c.lastSeen = time.Now()
		l.mu.Unlock()
		return c.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.clients[clientKey]; ok {
		c.lastSeen = time.Now()
		return c.limiter
	}
	limiter := rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)
	l.clients[clientKey] = &clientLimiter{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-l.cfg.ClientTTL)
		l.mu.Lock()
		for key, c := range l.clients {
			if c.lastSeen.Before(cutoff) {
				delete(l.clients, key)
			}
		}
		l.mu.Unlock()
	}
}

// Middleware returns a gin middleware enforcing the per-client rate limit
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := l.getLimiter(c.ClientIP())

		c.Header("X-RateLimit-Limit", formatRate(l.cfg.RequestsPerSecond))

		if !limiter.Allow() {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error_code": "RATE_LIMIT_EXCEEDED",
				"message":    "too many requests",
			})
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%.0f", limiter.Tokens()))
		c.Next()
	}
}

func formatRate(rps float64) string {
	if rps == float64(int64(rps)) {
		return fmt.Sprintf("%d", int64(rps))
	}
	return fmt.Sprintf("%.2f", rps)
}
