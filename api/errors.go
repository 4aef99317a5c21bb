package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/harborline/authcore/auth"
)

// Client-facing messages are deliberately generic: a failed login never
// reveals whether the account exists or is locked, and internal faults never
// reveal what broke.
const (
	msgLoginFailed   = "invalid credentials or account locked"
	msgAuthRequired  = "authentication required"
	msgInternalError = "an internal error occurred; contact support with the error id"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeInternalError logs the fault with full detail under a fresh
// correlation id and answers with the fixed generic message carrying only
// that id.
func (a *API) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errorID := uuid.NewString()
	a.audit.Error(r.Context(), msg, err, a.requestMeta(r), slog.String("error_id", errorID))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   msgInternalError,
		ErrorID: errorID,
	})
}

// mapError converts auth package errors to HTTP responses.
func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *auth.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrLocked):
		writeError(w, http.StatusUnauthorized, msgLoginFailed)
	case errors.Is(err, auth.ErrInvalidSession), errors.Is(err, auth.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, msgAuthRequired)
	case errors.Is(err, auth.ErrBadCSRF):
		writeError(w, http.StatusForbidden, "invalid CSRF token")
	case errors.Is(err, auth.ErrDuplicateUser):
		writeError(w, http.StatusConflict, "username or email already registered")
	case errors.Is(err, auth.ErrWrongPassword):
		writeError(w, http.StatusBadRequest, "current password is incorrect")
	default:
		a.writeInternalError(w, r, "unhandled auth error", err)
	}
}
