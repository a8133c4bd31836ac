package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/ayo6706/booking-ledger/internal/api/problem"
	"github.com/ayo6706/booking-ledger/internal/observability"
	"go.uber.org/zap"
)

// RecoverMiddleware converts panics into RFC 7807 responses and logs the
// stack. http.ErrAbortHandler is re-raised so the server drops the
// connection as it would without this middleware.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				observability.IncrementPanic()
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("trace_id", TraceIDFromContext(r.Context())),
					zap.ByteString("stack", debug.Stack()),
				)

				problem.Write(
					w,
					r,
					http.StatusInternalServerError,
					problem.Type("internal-server-error"),
					http.StatusText(http.StatusInternalServerError),
					"unexpected server error",
				)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
