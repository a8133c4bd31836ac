package handler

import (
	"net/http"

	"github.com/ayo6706/booking-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type BookingHandler struct {
	accruals *service.AccrualService
}

func NewBookingHandler(accruals *service.AccrualService) *BookingHandler {
	return &BookingHandler{accruals: accruals}
}

// Complete handles POST /v1/bookings/{category}/{id}/complete. Postings
// that failed are reported in the body; the request itself still succeeds
// so the caller does not retry postings that already landed.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-booking-id", "Invalid booking ID")
		return
	}

	res, err := h.accruals.Accrue(r.Context(), service.AccrualRequest{
		Category:  chi.URLParam(r, "category"),
		BookingID: bookingID,
	})
	if err != nil {
		respondServiceError(w, r, err, "complete booking")
		return
	}
	RespondJSON(w, http.StatusOK, res)
}
