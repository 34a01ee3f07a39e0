package middleware

import (
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/and161185/dataexchange/internal/errs"
)

// RateLimit allows rps requests per second with a burst of the same size.
// rps <= 0 disables the limit.
func RateLimit(rps int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := rate.NewLimiter(rate.Limit(rps), rps)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				rateLimitRejects.Inc()
				w.Header().Set("Retry-After", "1")
				http.Error(w, errs.New(errs.APIError, "rate limit exceeded").Wire(), http.StatusTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rps))
			next.ServeHTTP(w, r)
		})
	}
}
