package api

import (
	"sync"

	"github.com/constituant/constituant/app/apperror"
	"github.com/constituant/constituant/app/vote"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// maxTrackedIPs bounds the limiter map; it is reset when full.
const maxTrackedIPs = 10000

var errTooManyRequests = apperror.ErrRateLimited.WithMessage("Trop de requêtes. Veuillez patienter quelques secondes.")

// ipLimiter keeps one token bucket per client address.
type ipLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	return l.get(ip).Allow()
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[ip]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double check after taking the write lock
	if limiter, exists = l.limiters[ip]; exists {
		return limiter
	}
	if len(l.limiters) >= maxTrackedIPs {
		l.limiters = make(map[string]*rate.Limiter)
	}

	limiter = rate.NewLimiter(l.limit, l.burst)
	l.limiters[ip] = limiter
	return limiter
}

// throttle rejects requests above the per-IP rate. A non-positive rate disables it.
func throttle(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := newIPLimiter(perSecond, burst)
	return func(c *gin.Context) {
		ip := vote.VoterIP(c.Request.Header, c.Request.RemoteAddr)
		if !limiter.allow(ip) {
			c.Header("Retry-After", "1")
			status, body := apperror.ToHTTP(errTooManyRequests)
			c.AbortWithStatusJSON(status, body)
			return
		}
		c.Next()
	}
}
