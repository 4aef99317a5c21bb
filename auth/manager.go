// Package auth implements the authentication core: login with IP lockout,
// session lifecycle with sliding expiration and IP binding, CSRF token
// issuance, role checks, and user management. It consumes a credential store
// and emits audit events; HTTP concerns stay in the api package.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harborline/authcore/audit"
	"github.com/harborline/authcore/store"
	"github.com/harborline/authcore/validate"
)

const (
	defaultSessionTimeout   = time.Hour
	defaultMaxLoginAttempts = 5
	defaultLockoutWindow    = 15 * time.Minute
	attemptRetention        = 24 * time.Hour
)

// Manager orchestrates authentication state transitions.
type Manager struct {
	store  store.Store
	audit  *audit.Logger
	params Argon2Params

	sessionTimeout   time.Duration
	maxLoginAttempts int
	lockoutWindow    time.Duration

	// dummyHash is verified against when the user lookup misses, so a
	// missing user and a wrong password take the same time.
	dummyHash string

	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithSessionTimeout sets the sliding session expiration window.
func WithSessionTimeout(d time.Duration) Option {
	return func(m *Manager) { m.sessionTimeout = d }
}

// WithLockoutPolicy sets the failed-attempt threshold and the rolling window
// in which failures count toward a lockout.
func WithLockoutPolicy(maxAttempts int, window time.Duration) Option {
	return func(m *Manager) {
		m.maxLoginAttempts = maxAttempts
		m.lockoutWindow = window
	}
}

// WithArgon2Params overrides the password hashing cost parameters. Tests use
// this to keep hashing fast.
func WithArgon2Params(p Argon2Params) Option {
	return func(m *Manager) { m.params = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager over the given store and audit logger.
func New(st store.Store, logger *audit.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:            st,
		audit:            logger,
		params:           DefaultArgon2Params(),
		sessionTimeout:   defaultSessionTimeout,
		maxLoginAttempts: defaultMaxLoginAttempts,
		lockoutWindow:    defaultLockoutWindow,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	dummy, err := HashPassword("decoy.password.for.timing", m.params)
	if err != nil {
		// crypto/rand failing is unrecoverable.
		panic(fmt.Sprintf("auth: generating decoy hash: %v", err))
	}
	m.dummyHash = dummy
	return m
}

// SessionTimeout exposes the configured sliding window, used by cleanup.
func (m *Manager) SessionTimeout() time.Duration {
	return m.sessionTimeout
}

// Authenticate verifies identifier (username or email) and password from the
// client at meta.IP. A locked-out IP is rejected before any credential work
// and without touching the attempts table. Missing users and wrong passwords
// are indistinguishable to the caller. On success the user's last_login is
// stamped, prior failed attempts for the IP are cleared, and the returned
// user carries no password hash.
func (m *Manager) Authenticate(ctx context.Context, identifier, password string, meta audit.RequestMeta) (*store.User, error) {
	now := m.now()

	failures, err := m.store.CountFailedAttempts(ctx, meta.IP, now.Add(-m.lockoutWindow))
	if err != nil {
		return nil, fmt.Errorf("counting failed attempts: %w", err)
	}
	if failures >= m.maxLoginAttempts {
		m.audit.Security(ctx, audit.EventLockoutAttempt, meta, slog.String("identifier", identifier))
		return nil, ErrLocked
	}

	if identifier == "" || password == "" {
		m.recordFailure(ctx, identifier, meta)
		return nil, ErrInvalidCredentials
	}

	user, err := m.store.ActiveUserByIdentifier(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		// Burn the same hashing cost as a real verification.
		_, _ = VerifyPassword(password, m.dummyHash)
		m.recordFailure(ctx, identifier, meta)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		m.recordFailure(ctx, identifier, meta)
		return nil, ErrInvalidCredentials
	}

	if err := m.store.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("updating last login: %w", err)
	}
	if err := m.store.RecordLoginSuccess(ctx, user.Username, meta.IP, now); err != nil {
		return nil, fmt.Errorf("recording login success: %w", err)
	}
	m.audit.Security(ctx, audit.EventLoginSuccess, meta, slog.String("username", user.Username))

	user.PasswordHash = ""
	t := now
	user.LastLogin = &t
	return user, nil
}

func (m *Manager) recordFailure(ctx context.Context, identifier string, meta audit.RequestMeta) {
	// Attempt bookkeeping must complete even though the request fails, so
	// lockout state stays accurate; a store error here is logged, not
	// surfaced.
	if err := m.store.RecordFailedAttempt(ctx, identifier, meta.IP, m.now()); err != nil {
		m.audit.Error(ctx, "recording failed attempt", err, meta)
	}
	m.audit.Security(ctx, audit.EventLoginFailure, meta, slog.String("identifier", identifier))
}

// CreateSession mints a session for an authenticated user, bound to the
// request's IP and user agent. Any prior session for the user is replaced.
func (m *Manager) CreateSession(ctx context.Context, user *store.User, meta audit.RequestMeta) (*store.Session, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	now := m.now()
	sess := &store.Session{
		UserID:       user.ID,
		Token:        token,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := m.store.UpsertSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}
	m.audit.Security(ctx, audit.EventSessionCreated, meta, slog.String("username", user.Username))
	return sess, nil
}

// ValidateSession checks a presented token against the stored session. It
// fails — deleting the session — when the token is unknown, when it is
// presented from an IP other than the one bound at creation, or when the
// session has been idle past the timeout. On success last_activity is
// refreshed and the session's user is returned.
func (m *Manager) ValidateSession(ctx context.Context, token string, meta audit.RequestMeta) (*store.User, *store.Session, error) {
	if token == "" {
		return nil, nil, ErrInvalidSession
	}
	sess, err := m.store.SessionByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrInvalidSession
	}
	if err != nil {
		return nil, nil, fmt.Errorf("looking up session: %w", err)
	}

	if sess.IPAddress != meta.IP {
		_ = m.store.DeleteSession(ctx, token)
		m.audit.Security(ctx, audit.EventSessionIPChange, meta,
			slog.String("bound_ip", sess.IPAddress))
		return nil, nil, ErrInvalidSession
	}

	now := m.now()
	if now.Sub(sess.LastActivity) > m.sessionTimeout {
		_ = m.store.DeleteSession(ctx, token)
		m.audit.Security(ctx, audit.EventSessionExpired, meta)
		return nil, nil, ErrSessionExpired
	}

	if err := m.store.TouchSession(ctx, token, now); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, nil, fmt.Errorf("refreshing session: %w", err)
	}
	sess.LastActivity = now

	user, err := m.store.UserByID(ctx, sess.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading session user: %w", err)
	}
	user.PasswordHash = ""
	return user, sess, nil
}

// EnsureCSRFToken returns the session's CSRF token, minting and persisting
// one on first use. The token is stable for the session's lifetime.
func (m *Manager) EnsureCSRFToken(ctx context.Context, sess *store.Session) (string, error) {
	if sess.CSRFToken != "" {
		return sess.CSRFToken, nil
	}
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	if err := m.store.SetSessionCSRF(ctx, sess.Token, token); err != nil {
		return "", fmt.Errorf("persisting csrf token: %w", err)
	}
	sess.CSRFToken = token
	return token, nil
}

// ValidateCSRFToken compares a presented token against the session's stored
// token in constant time. A session that never issued a token rejects
// everything.
func (m *Manager) ValidateCSRFToken(ctx context.Context, sess *store.Session, presented string, meta audit.RequestMeta) error {
	if sess.CSRFToken == "" || !validate.TokensEqual(sess.CSRFToken, presented) {
		m.audit.Security(ctx, audit.EventCSRFRejected, meta)
		return ErrBadCSRF
	}
	return nil
}

// DestroySession removes the session. Destroying an absent session succeeds.
func (m *Manager) DestroySession(ctx context.Context, token string, meta audit.RequestMeta) error {
	if token == "" {
		return nil
	}
	if err := m.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	m.audit.Security(ctx, audit.EventSessionDestroyed, meta)
	return nil
}

// CreateUser registers a new account. Emails are normalised to lower case so
// uniqueness is case-insensitive; usernames are case-sensitive. The password
// is hashed with Argon2id before anything touches the store.
func (m *Manager) CreateUser(ctx context.Context, username, email, password, role string, meta audit.RequestMeta) (int64, error) {
	email = strings.ToLower(email)
	if role == "" {
		role = DefaultRole
	}
	if !ValidRole(role) {
		return 0, &ValidationError{Field: "role", Message: "unknown role"}
	}

	exists, err := m.store.UserExists(ctx, username, email)
	if err != nil {
		return 0, fmt.Errorf("checking user existence: %w", err)
	}
	if exists {
		return 0, ErrDuplicateUser
	}

	hash, err := HashPassword(password, m.params)
	if err != nil {
		return 0, err
	}
	now := m.now()
	id, err := m.store.CreateUser(ctx, &store.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       store.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// Lost the race with a concurrent registration.
		return 0, ErrDuplicateUser
	}
	if err != nil {
		return 0, fmt.Errorf("creating user: %w", err)
	}
	m.audit.Security(ctx, audit.EventUserCreated, meta, slog.String("username", username))
	return id, nil
}

// ChangePassword verifies the caller's current password and replaces it with
// a new hash. Returns ErrWrongPassword when the current password does not
// match.
func (m *Manager) ChangePassword(ctx context.Context, userID int64, current, newPassword string, meta audit.RequestMeta) error {
	user, err := m.store.UserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	ok, err := VerifyPassword(current, user.PasswordHash)
	if err != nil || !ok {
		return ErrWrongPassword
	}
	hash, err := HashPassword(newPassword, m.params)
	if err != nil {
		return err
	}
	if err := m.store.UpdatePassword(ctx, userID, hash, m.now()); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	m.audit.Security(ctx, audit.EventPasswordChanged, meta, slog.String("username", user.Username))
	return nil
}

// CleanupExpired removes sessions idle past the timeout and attempt rows
// older than 24 hours. Meant to run from a periodic task or an external
// scheduler, not on the request path.
func (m *Manager) CleanupExpired(ctx context.Context) (sessions, attempts int64, err error) {
	now := m.now()
	sessions, err = m.store.DeleteSessionsIdleSince(ctx, now.Add(-m.sessionTimeout))
	if err != nil {
		return 0, 0, fmt.Errorf("cleaning sessions: %w", err)
	}
	attempts, err = m.store.DeleteAttemptsBefore(ctx, now.Add(-attemptRetention))
	if err != nil {
		return sessions, 0, fmt.Errorf("cleaning login attempts: %w", err)
	}
	return sessions, attempts, nil
}
