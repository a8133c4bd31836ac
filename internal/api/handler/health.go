package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger is a dependency checked by readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler exposes Kubernetes-style liveness and readiness endpoints.
type HealthHandler struct {
	deps map[string]Pinger
}

// NewHealthHandler takes the named dependencies readiness depends on. Nil
// entries are skipped.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	clean := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			clean[name] = p
		}
	}
	return &HealthHandler{deps: clean}
}

// Live always reports OK – if the process is up, it's live.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready checks dependencies like DB and Redis.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	for name, p := range h.deps {
		if err := p.Ping(ctx); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "health/dependency-unavailable", name+" unavailable")
			return
		}
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
