package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/etensports/chat-server/internal/core"
)

// rateLimiter throttles message sends with a token bucket. A nil limiter or a
// non-positive rate allows everything.
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if perSecond <= 0 {
		return &rateLimiter{}
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limiter == nil {
		return true
	}
	return r.limiter.Allow()
}

// limiterSet keeps one rateLimiter per authenticated user for REST sends.
// Entries idle for idleTTL are dropped; by then their bucket has refilled, so
// a fresh limiter behaves the same.
type limiterSet struct {
	perSecond float64
	burst     int
	idleTTL   time.Duration
	now       func() time.Time

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rateLimiter
	lastSeen time.Time
}

const minLimiterIdle = time.Minute

func newLimiterSet(perSecond float64, burst int) *limiterSet {
	idle := minLimiterIdle
	if perSecond > 0 {
		if refill := time.Duration(float64(burst) / perSecond * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &limiterSet{
		perSecond: perSecond,
		burst:     burst,
		idleTTL:   idle,
		now:       time.Now,
		limiters:  make(map[string]*limiterEntry),
	}
}

func (s *limiterSet) get(key string) *rateLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.idleTTL {
		s.evictLocked(now)
		s.lastSweep = now
	}

	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: newRateLimiter(s.perSecond, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (s *limiterSet) evictLocked(now time.Time) {
	for key, e := range s.limiters {
		if now.Sub(e.lastSeen) >= s.idleTTL {
			delete(s.limiters, key)
		}
	}
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimitMiddleware throttles requests per identity. It must run after AuthMiddleware.
func RateLimitMiddleware(set *limiterSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := identityFrom(c)
		if !set.get(identity.UID).allow() {
			abortWithError(c, http.StatusTooManyRequests, core.ErrCodeRateLimited, "too many messages")
			return
		}
		c.Next()
	}
}
