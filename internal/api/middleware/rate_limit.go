package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayo6706/booking-ledger/internal/api/problem"
	"github.com/ayo6706/booking-ledger/internal/observability"
	"github.com/go-chi/httprate"
)

// PublicRateLimiter limits guest routes per client IP and endpoint, so token
// requests and confirmations draw on separate budgets.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(limitExceeded("public", fmt.Sprintf("Rate limit of %d req/s exceeded for this IP", rps))),
	)
}

// AuthRateLimiter limits authenticated callers by subject, falling back to IP.
func AuthRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if subject := SubjectFromContext(r.Context()); subject != "" {
				return subject, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(limitExceeded("auth", fmt.Sprintf("Rate limit of %d req/s exceeded for this user", rps))),
	)
}

func limitExceeded(limiter, detail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		observability.IncrementRateLimited(limiter)
		problem.Write(
			w,
			r,
			http.StatusTooManyRequests,
			problem.Type("rate-limit-exceeded"),
			http.StatusText(http.StatusTooManyRequests),
			detail,
		)
	}
}
