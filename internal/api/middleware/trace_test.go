package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTraceMiddlewareReusesSaneInboundID(t *testing.T) {
	var seen string
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		value  string
		reused bool
	}{
		{"trace header", TraceHeader, "abc12345-trace", true},
		{"request header", requestHeader, "req.0001.xyz", true},
		{"too short", TraceHeader, "abc", false},
		{"bad characters", TraceHeader, "abc12345\nInjected: 1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(tt.header, tt.value)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(TraceHeader))
			if tt.reused {
				assert.Equal(t, tt.value, seen)
			} else {
				assert.NotEqual(t, tt.value, seen)
			}
		})
	}
}

func TestLoggingMiddlewareLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	respond := func(status int) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("ok"))
		})
	}

	for _, tc := range []struct {
		path   string
		status int
	}{
		{"/cancel", http.StatusOK},
		{"/cancel", http.StatusNotFound},
		{"/cancel", http.StatusBadGateway},
		{"/health/live", http.StatusOK},
	} {
		h := LoggingMiddleware(logger)(respond(tc.status))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, tc.path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.EqualValues(t, 2, entries[0].ContextMap()["bytes"])
}

func TestRecoverMiddlewareWritesProblem(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := TraceMiddleware(RecoverMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/accounts/x/balance", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), rec.Header().Get(TraceHeader))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["panic"])
}

func TestRecoverMiddlewareRepanicsOnAbort(t *testing.T) {
	h := RecoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
