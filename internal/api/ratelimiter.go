package api

import (
	"math"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// admitter decides whether a guarded request may proceed.
type admitter interface {
	Allow() bool
}

// bucket is a token bucket shared by every guarded route, so DB and Redis
// checks, file rewrites and archiving draw from one budget.
type bucket struct {
	limiter *rate.Limiter
}

// newBucket returns a bucket refilled at rps tokens per second. A
// non-positive burst defaults to one second worth of tokens.
func newBucket(rps float64, burst int) *bucket {
	if burst <= 0 {
		burst = max(1, int(math.Ceil(rps)))
	}
	return &bucket{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (b *bucket) Allow() bool {
	return b.limiter.Allow()
}

// guard admits requests to next while the limiter has capacity and answers
// 429 with a Retry-After hint otherwise. A nil limiter leaves next unguarded.
func guard(limiter admitter, logger *zap.Logger, next http.HandlerFunc) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			logger.Warn("request throttled",
				zap.String("route", r.Pattern),
				zap.String("request_id", requestIDFromContext(r.Context())),
			)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Too many requests", "checks and configuration changes are rate limited, retry shortly")
			return
		}
		next(w, r)
	})
}
