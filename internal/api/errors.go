package api

import (
	"errors"
	"net/http"

	"vidshare/internal/auth"
	"vidshare/internal/observability/logging"
	"vidshare/internal/storage"
)

var (
	errAuthRequired = errors.New("authentication required")
	errForbidden    = errors.New("forbidden")
)

// statusForError maps storage and auth sentinels to HTTP status codes.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errAuthRequired),
		errors.Is(err, storage.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden), errors.Is(err, storage.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, storage.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeStoreError responds with the status for err. Server-side failures are
// logged and answered with a generic message.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), h.logger()).Error("request failed", "op", op, "error", err)
		if errors.Is(err, storage.ErrPersistence) {
			writeError(w, status, errors.New("the change could not be saved"))
			return
		}
		writeError(w, status, errors.New("internal server error"))
		return
	}
	writeError(w, status, err)
}
