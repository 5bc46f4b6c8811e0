package handler

import (
	"net/http"

	"github.com/atelier-api/internal/application/account"
	"github.com/atelier-api/internal/domain"
	"github.com/atelier-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

type AccountHandler struct {
	svc account.Service
}

func NewAccountHandler(svc account.Service) *AccountHandler { return &AccountHandler{svc: svc} }

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httpError(w, r, domain.ErrUnauthorized)
		return
	}
	a, err := h.svc.Get(r.Context(), claims.AccountID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Get looks up any account; mounted behind an admin role check.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AccountHandler) SetTwoFactor(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httpError(w, r, domain.ErrUnauthorized)
		return
	}
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, r, err)
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "field 'enabled' is required")
		return
	}
	a, err := h.svc.SetTwoFactor(r.Context(), claims.AccountID, *req.Enabled)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
