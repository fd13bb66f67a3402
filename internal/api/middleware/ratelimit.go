package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/api/shared"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused per-user limiter is kept.
const idleLimiterTTL = 30 * time.Minute

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per authenticated user with a token bucket.
// It must run after Authenticate.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[uuid.UUID]*userLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewRateLimiter allows perMinute requests per user per minute, with bursts
// of up to perMinute.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		limiters: make(map[uuid.UUID]*userLimiter),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
		now:      time.Now,
	}
}

// Limit rejects requests over the caller's budget with 429.
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		reservation := l.limiterFor(userID).ReserveN(l.now(), 1)
		if delay := reservation.DelayFrom(l.now()); delay > 0 {
			reservation.CancelAt(l.now())
			shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests, "Too many requests", nil,
				shared.WithErrorCode("rate_limited"),
				shared.WithRetryAfter(delay))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) limiterFor(userID uuid.UUID) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, ul := range l.limiters {
		if now.Sub(ul.lastSeen) > idleLimiterTTL {
			delete(l.limiters, id)
		}
	}

	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastSeen = now
	return ul.limiter
}
