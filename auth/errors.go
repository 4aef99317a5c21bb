package auth

import (
	"errors"
	"fmt"
)

// Authentication failures deliberately collapse to one generic client-facing
// message at the API boundary; these sentinels exist so the boundary and the
// audit log can still tell causes apart.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrLocked             = errors.New("auth: account locked")
	ErrInvalidSession     = errors.New("auth: invalid session")
	ErrSessionExpired     = errors.New("auth: session expired")
	ErrBadCSRF            = errors.New("auth: csrf token mismatch")
	ErrDuplicateUser      = errors.New("auth: username or email already exists")
	ErrWrongPassword      = errors.New("auth: current password is incorrect")
)

// ValidationError reports a malformed or missing input field. Its message is
// safe to return to clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
