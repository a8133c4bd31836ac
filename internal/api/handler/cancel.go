package handler

import (
	"net/http"
	"strings"

	"github.com/ayo6706/booking-ledger/internal/service"
)

// CancelHandler serves the guest cancellation flow. Neither endpoint needs
// a session; the emailed token is the credential.
type CancelHandler struct {
	svc *service.CancellationService
}

func NewCancelHandler(svc *service.CancellationService) *CancelHandler {
	return &CancelHandler{svc: svc}
}

type cancelTokenRequest struct {
	Email            string `json:"email" validate:"omitempty,email,max=254"`
	PaymentReference string `json:"paymentReference" validate:"omitempty,max=200"`
	Reference        string `json:"reference" validate:"omitempty,max=200"`
}

type cancelTokenResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

type cancelRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

type cancelResponse struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	BookingID string `json:"bookingId"`
}

// RequestToken handles POST /cancel-token.
func (h *CancelHandler) RequestToken(w http.ResponseWriter, r *http.Request) {
	var req cancelTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reference := strings.TrimSpace(req.PaymentReference)
	if reference == "" {
		reference = strings.TrimSpace(req.Reference)
	}

	res, err := h.svc.RequestToken(r.Context(), req.Email, reference)
	if err != nil {
		respondServiceError(w, r, err, "cancel token")
		return
	}
	RespondJSON(w, http.StatusOK, cancelTokenResponse{
		OK:      true,
		Message: "A cancellation link has been sent to the email on the booking.",
		Link:    res.Link,
	})
}

// Confirm handles POST /cancel. A replay of an already used token gets the
// same response as the first confirmation.
func (h *CancelHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Confirm(r.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		respondServiceError(w, r, err, "cancel confirm")
		return
	}
	RespondJSON(w, http.StatusOK, cancelResponse{
		OK:        true,
		Message:   "Booking cancelled",
		Category:  res.Category,
		BookingID: res.BookingID.String(),
	})
}
