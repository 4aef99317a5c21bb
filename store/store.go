// Package store defines the credential store: the relational records backing
// users, their sessions, and the login-attempt history used for lockout
// decisions. Implementations live in store/memory (tests, single-node dev)
// and store/postgres.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("store: duplicate")
)

// User is one account row. PasswordHash is only populated by lookups that
// explicitly need it for verification; callers hand users back to clients
// through views that never include it.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}

// StatusActive is the only status that permits authentication.
const StatusActive = "active"

// Session is the server-side record of one authenticated browser context.
// At most one row exists per user; a new login replaces the previous one.
type Session struct {
	UserID       int64
	Token        string
	CSRFToken    string
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
	LastActivity time.Time
}

// LoginAttempt is an append-only record used for lockout computation.
type LoginAttempt struct {
	Username    string
	IPAddress   string
	AttemptTime time.Time
	Success     bool
}

// Store is the credential store accessor. All methods take a context and
// express each mutation as a single atomic operation (or one transaction
// where two statements must stay consistent, e.g. RecordLoginSuccess).
type Store interface {
	// CreateUser inserts a new user and returns its assigned ID.
	// Returns ErrDuplicate if the username or email is already taken.
	CreateUser(ctx context.Context, u *User) (int64, error)
	// UserExists reports whether any user holds the given username or email.
	UserExists(ctx context.Context, username, email string) (bool, error)
	// ActiveUserByIdentifier finds an active user by username or email.
	// The password hash is populated. Returns ErrNotFound when absent.
	ActiveUserByIdentifier(ctx context.Context, identifier string) (*User, error)
	// UserByID finds a user by primary key, hash populated.
	UserByID(ctx context.Context, id int64) (*User, error)
	// UpdateLastLogin stamps the user's last successful login time.
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id int64, hash string, at time.Time) error

	// UpsertSession inserts the session, replacing any existing row for the
	// same user ("last login wins").
	UpsertSession(ctx context.Context, s *Session) error
	// SessionByToken finds a session by its token. Returns ErrNotFound.
	SessionByToken(ctx context.Context, token string) (*Session, error)
	// TouchSession refreshes last_activity for the sliding expiration window.
	TouchSession(ctx context.Context, token string, at time.Time) error
	// SetSessionCSRF persists a lazily generated CSRF token on the session.
	SetSessionCSRF(ctx context.Context, token, csrfToken string) error
	// DeleteSession removes the session row. Deleting an absent session is
	// not an error.
	DeleteSession(ctx context.Context, token string) error
	// DeleteSessionsIdleSince removes sessions whose last_activity is before
	// cutoff and returns how many were removed.
	DeleteSessionsIdleSince(ctx context.Context, cutoff time.Time) (int64, error)

	// CountFailedAttempts counts failed attempts from ip at or after since.
	CountFailedAttempts(ctx context.Context, ip string, since time.Time) (int, error)
	// RecordFailedAttempt appends a failed attempt row.
	RecordFailedAttempt(ctx context.Context, username, ip string, at time.Time) error
	// RecordLoginSuccess clears all prior failed attempts for ip and appends
	// a success row, atomically.
	RecordLoginSuccess(ctx context.Context, username, ip string, at time.Time) error
	// DeleteAttemptsBefore prunes attempt rows older than cutoff.
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
