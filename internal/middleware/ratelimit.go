package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"partner-chat/internal/observability"
)

// UserLimiter hands out one token bucket per user.
type UserLimiter struct {
	mu    sync.Mutex
	m     map[int]*rate.Limiter
	rps   float64
	burst int
}

// NewUserLimiter builds a limiter pool. rps <= 0 disables limiting.
func NewUserLimiter(rps float64, burst int) *UserLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &UserLimiter{m: map[int]*rate.Limiter{}, rps: rps, burst: burst}
}

func (p *UserLimiter) get(userID int) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[userID]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[userID] = l
	return l
}

// Allow reports whether userID may proceed now.
func (p *UserLimiter) Allow(userID int) bool {
	if p == nil || p.rps <= 0 {
		return true
	}
	return p.get(userID).Allow()
}

// RateLimit rejects requests over the caller's budget with 429. It must run
// after AuthMiddleware.
func RateLimit(limiter *UserLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.GetInt(UserIDKey)) {
			observability.IncRateLimited(c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
