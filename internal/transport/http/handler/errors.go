package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/atelier-api/internal/domain"
)

var badBody = fmt.Errorf("invalid request body: %w", domain.ErrValidation)

var errorTable = []struct {
	target error
	status int
	code   string
}{
	{domain.ErrValidation, http.StatusUnprocessableEntity, "validation_error"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrInvalidOrExpiredCode, http.StatusBadRequest, "invalid_or_expired_otp"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrTooManyRequests, http.StatusTooManyRequests, "too_many_requests"},
	{domain.ErrDependency, http.StatusBadGateway, "dependency_error"},
}

// httpError maps err onto the response envelope. Unmapped errors are logged and
// reported without detail.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			writeError(w, e.status, e.code, err.Error())
			return
		}
	}
	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
