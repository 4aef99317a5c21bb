package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/harborline/authcore/store"
)

// maxAuthBodySize caps request bodies on the auth endpoints. Credentials and
// passwords are small; anything larger is garbage or abuse.
const maxAuthBodySize = 16 << 10

// LoginRequest is the JSON body for POST /auth/login. Username may carry an
// email address instead.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned from POST /auth/login.
type LoginResponse struct {
	User         UserPayload `json:"user"`
	SessionToken string      `json:"session_token"`
	CSRFToken    string      `json:"csrf_token"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// RegisterResponse is returned from POST /auth/register.
type RegisterResponse struct {
	UserID int64 `json:"user_id"`
}

// ValidateResponse is returned from POST /auth/validate. Valid is false on
// the 401 path so clients can branch on it without inspecting the status.
type ValidateResponse struct {
	Valid     bool         `json:"valid"`
	User      *UserPayload `json:"user,omitempty"`
	CSRFToken string       `json:"csrf_token,omitempty"`
}

// ChangePasswordRequest is the JSON body for POST /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// UserPayload is the client-facing view of a user. It never carries the
// password hash.
type UserPayload struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	LastLogin string `json:"last_login,omitempty"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned for all error cases. ErrorID is set only for
// internal faults, as a correlation id into the error log.
type ErrorResponse struct {
	Error   string `json:"error"`
	ErrorID string `json:"error_id,omitempty"`
}

func userPayload(u *store.User) UserPayload {
	p := UserPayload{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Status:   u.Status,
	}
	if u.LastLogin != nil {
		p.LastLogin = u.LastLogin.UTC().Format(time.RFC3339)
	}
	return p
}

// decodeJSON reads and decodes a JSON body into T, rejecting unknown fields
// and bodies over maxSize. On failure it writes the 400 response itself and
// returns ok=false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxSize int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}
