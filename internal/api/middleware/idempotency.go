package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"regexp"

	"github.com/ayo6706/booking-ledger/internal/api/problem"
	"github.com/ayo6706/booking-ledger/internal/idempotency"
	"github.com/ayo6706/booking-ledger/internal/observability"
	"go.uber.org/zap"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayHeader      = "X-Idempotent-Replay"

	maxIdempotentBody = 64 << 10
)

var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,255}$`)

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key. Keys are scoped to the authenticated subject, so two
// callers reusing the same key never see each other's responses. A 5xx from
// the handler releases the key for a retry.
func IdempotencyMiddleware(store *idempotency.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			raw := r.Header.Get(IdempotencyHeader)
			if raw == "" {
				observability.IncrementIdempotencyEvent("missing_key")
				idempotencyProblem(w, r, http.StatusBadRequest, "idempotency/missing-key", "Idempotency-Key header is required")
				return
			}
			if !idempotencyKeyPattern.MatchString(raw) {
				observability.IncrementIdempotencyEvent("invalid_key")
				idempotencyProblem(w, r, http.StatusBadRequest, "idempotency/invalid-key", "Idempotency-Key must be 1-255 characters of [A-Za-z0-9._:-]")
				return
			}
			key := scopedKey(SubjectFromContext(r.Context()), raw)

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBody))
			if err != nil {
				idempotencyProblem(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))
			reqHash := hashRequest(r.Method, r.URL.Path, body)

			rec, err := store.Lookup(r.Context(), key, reqHash)
			switch {
			case err == nil:
				observability.IncrementIdempotencyEvent("replay")
				respondFromRecord(w, rec)
				return
			case errors.Is(err, idempotency.ErrHashMismatch):
				observability.IncrementIdempotencyEvent("hash_mismatch")
				idempotencyProblem(w, r, http.StatusConflict, "idempotency/key-conflict", "Idempotency-Key was used with a different request")
				return
			case errors.Is(err, idempotency.ErrInProgress):
				awaitReplay(w, r, store, logger, key, reqHash, "replay_after_wait")
				return
			case !errors.Is(err, idempotency.ErrNotFound):
				observability.IncrementIdempotencyEvent("lookup_error")
				logger.Warn("idempotency lookup failed", zap.Error(err))
			}

			reserved, err := store.Reserve(r.Context(), key, reqHash, r.Method, r.URL.Path)
			if err != nil {
				observability.IncrementIdempotencyEvent("reserve_error")
				logger.Error("idempotency reserve failed", zap.Error(err))
				idempotencyProblem(w, r, http.StatusInternalServerError, "idempotency/unavailable", "idempotency unavailable")
				return
			}
			if !reserved {
				awaitReplay(w, r, store, logger, key, reqHash, "replay_after_reserve")
				return
			}
			observability.IncrementIdempotencyEvent("reserved")

			recorder := &bodyRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)
			if recorder.status == 0 {
				recorder.status = http.StatusOK
			}

			if recorder.status >= http.StatusInternalServerError {
				if err := store.Release(r.Context(), key); err != nil {
					logger.Warn("idempotency release failed", zap.Error(err), zap.String("key", key))
				}
				observability.IncrementIdempotencyEvent("released")
				return
			}

			contentType := recorder.Header().Get("Content-Type")
			if contentType == "" {
				contentType = "application/json"
			}
			if _, err := store.Finalize(r.Context(), key, reqHash, recorder.status, recorder.body.Bytes(), contentType); err != nil {
				observability.IncrementIdempotencyEvent("finalize_error")
				logger.Warn("idempotency finalize failed", zap.Error(err), zap.String("key", key))
				return
			}
			observability.IncrementIdempotencyEvent("finalized")
		})
	}
}

// awaitReplay blocks on a concurrent request holding the same key.
func awaitReplay(w http.ResponseWriter, r *http.Request, store *idempotency.Store, logger *zap.Logger, key, reqHash, event string) {
	rec, err := store.WaitForCompletion(r.Context(), key, reqHash)
	if err == nil {
		observability.IncrementIdempotencyEvent(event)
		respondFromRecord(w, rec)
		return
	}
	observability.IncrementIdempotencyEvent("in_progress_conflict")
	logger.Warn("idempotency wait failed", zap.Error(err), zap.String("key", key))
	idempotencyProblem(w, r, http.StatusConflict, "idempotency/in-progress", "a request with this Idempotency-Key is still processing")
}

func idempotencyProblem(w http.ResponseWriter, r *http.Request, status int, slug, detail string) {
	problem.Write(w, r, status, problem.Type(slug), http.StatusText(status), detail)
}

func scopedKey(subject, key string) string {
	if subject == "" {
		return key
	}
	return subject + ":" + key
}

func hashRequest(method, path string, body []byte) string {
	sum := sha256.Sum256(append([]byte(method+"|"+path+"|"), body...))
	return hex.EncodeToString(sum[:])
}

type bodyRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (br *bodyRecorder) WriteHeader(code int) {
	br.status = code
	br.ResponseWriter.WriteHeader(code)
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
	if br.status == 0 {
		br.status = http.StatusOK
	}
	br.body.Write(b)
	return br.ResponseWriter.Write(b)
}

func respondFromRecord(w http.ResponseWriter, rec *idempotency.Record) {
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set(ReplayHeader, rec.ServedBy)
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}
