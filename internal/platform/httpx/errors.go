// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/modaboutique/backoffice/internal/shared"
)

// RespondError maps domain errors to the {error, message} envelope.
// State conflicts are reported as 400 like validation errors; only lock
// contention and replayed idempotency keys use 409.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Error(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Error(w, http.StatusBadRequest, "invalid_state", err.Error())
	case errors.Is(err, shared.ErrBusy):
		Error(w, http.StatusConflict, "busy", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Error(w, http.StatusConflict, "duplicate", err.Error())
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		// Upstream ERP failures land here; their message is passed through.
		Error(w, http.StatusInternalServerError, "upstream_error", err.Error())
	}
}
