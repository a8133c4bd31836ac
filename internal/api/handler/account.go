package handler

import (
	"net/http"
	"strconv"

	"github.com/ayo6706/booking-ledger/internal/api/middleware"
	"github.com/ayo6706/booking-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AccountHandler struct {
	svc *service.AccountService
}

func NewAccountHandler(svc *service.AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// authorize resolves the path account and checks the caller may read it.
func (h *AccountHandler) authorize(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	caller, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return uuid.Nil, false
	}

	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account ID")
		return uuid.Nil, false
	}
	if !caller.CanRead(accountID) {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return uuid.Nil, false
	}
	return accountID, true
}

func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	view, err := h.svc.GetBalance(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, r, err, "get balance")
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

func (h *AccountHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	entries, err := h.svc.GetStatement(r.Context(), accountID, page, pageSize)
	if err != nil {
		respondServiceError(w, r, err, "get entries")
		return
	}
	RespondJSON(w, http.StatusOK, entries)
}

// Rebuild recomputes the cached projection. Routed behind the admin role.
func (h *AccountHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	balance, err := h.svc.Rebuild(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, r, err, "rebuild account")
		return
	}
	RespondJSON(w, http.StatusOK, balance)
}
