package problem

import (
	"encoding/json"
	"net/http"
)

const contentType = "application/problem+json"
const baseTypeURL = "https://errors.booking-ledger.dev/"

// Details represents RFC 7807 Problem Details. OK is always false so the
// storefront can branch on the same field it reads from success bodies.
type Details struct {
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Status        int            `json:"status"`
	Detail        string         `json:"detail"`
	Instance      string         `json:"instance"`
	RequestID     string         `json:"request_id"`
	OK            bool           `json:"ok"`
	InvalidParams []InvalidParam `json:"invalid_params,omitempty"`
}

// InvalidParam names one rejected request field.
type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func Type(slug string) string {
	return baseTypeURL + slug
}

// Write sends RFC 7807-compliant errors.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	write(w, r, Details{Type: problemType, Title: title, Status: status, Detail: detail})
}

// WriteInvalid sends a 400 listing each rejected field.
func WriteInvalid(w http.ResponseWriter, r *http.Request, detail string, params []InvalidParam) {
	write(w, r, Details{
		Type:          Type("request/validation-failed"),
		Status:        http.StatusBadRequest,
		Detail:        detail,
		InvalidParams: params,
	})
}

func write(w http.ResponseWriter, r *http.Request, d Details) {
	if d.Title == "" {
		d.Title = http.StatusText(d.Status)
	}
	if d.Type == "" {
		d.Type = "about:blank"
	}
	if r != nil {
		d.Instance = r.URL.Path
	}
	// The trace middleware sets the response header before handlers run.
	d.RequestID = w.Header().Get("X-Trace-ID")

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(d)
}
