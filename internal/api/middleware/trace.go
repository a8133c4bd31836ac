package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const (
	TraceHeader   = "X-Trace-ID"
	requestHeader = "X-Request-ID"
)

// Client-supplied ids are echoed into logs and headers, so only short
// token-like values are accepted.
var traceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// TraceMiddleware ensures each request carries a trace id in its context and
// response headers. An upstream X-Trace-ID or X-Request-ID is reused when it
// looks sane.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := inboundTraceID(r)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := contextWithTraceID(r.Context(), traceID)
		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func inboundTraceID(r *http.Request) string {
	for _, h := range []string{TraceHeader, requestHeader} {
		if v := r.Header.Get(h); traceIDPattern.MatchString(v) {
			return v
		}
	}
	return ""
}

func contextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceContextKey, traceID)
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(traceContextKey).(string)
	return v
}
