// Package memory implements store.Store in process memory. It backs tests
// and single-node development runs; sessions and lockout state are lost on
// restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/harborline/authcore/store"
)

// Store is a thread-safe in-memory store.Store.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	users    map[int64]*store.User
	sessions map[string]*store.Session // keyed by token
	attempts []store.LoginAttempt
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		nextID:   1,
		users:    make(map[int64]*store.User),
		sessions: make(map[string]*store.Session),
	}
}

func cloneUser(u *store.User) *store.User {
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func cloneSession(s *store.Session) *store.Session {
	c := *s
	return &c
}

func (m *Store) CreateUser(ctx context.Context, u *store.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || strings.EqualFold(existing.Email, u.Email) {
			return 0, store.ErrDuplicate
		}
	}
	c := cloneUser(u)
	c.ID = m.nextID
	m.nextID++
	m.users[c.ID] = c
	return c.ID, nil
}

func (m *Store) UserExists(ctx context.Context, username, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username || strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Store) ActiveUserByIdentifier(ctx context.Context, identifier string) (*store.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Status != store.StatusActive {
			continue
		}
		if u.Username == identifier || strings.EqualFold(u.Email, identifier) {
			return cloneUser(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Store) UserByID(ctx context.Context, id int64) (*store.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *Store) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	t := at
	u.LastLogin = &t
	return nil
}

func (m *Store) UpdatePassword(ctx context.Context, id int64, hash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = at
	return nil
}

func (m *Store) UpsertSession(ctx context.Context, s *store.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Single active session per user: drop any existing row first.
	for token, existing := range m.sessions {
		if existing.UserID == s.UserID {
			delete(m.sessions, token)
		}
	}
	m.sessions[s.Token] = cloneSession(s)
	return nil
}

func (m *Store) SessionByToken(ctx context.Context, token string) (*store.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *Store) TouchSession(ctx context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return store.ErrNotFound
	}
	s.LastActivity = at
	return nil
}

func (m *Store) SetSessionCSRF(ctx context.Context, token, csrfToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return store.ErrNotFound
	}
	s.CSRFToken = csrfToken
	return nil
}

func (m *Store) DeleteSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *Store) DeleteSessionsIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, s := range m.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

func (m *Store) CountFailedAttempts(ctx context.Context, ip string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.attempts {
		if a.IPAddress == ip && !a.Success && !a.AttemptTime.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Store) RecordFailedAttempt(ctx context.Context, username, ip string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, store.LoginAttempt{
		Username:    username,
		IPAddress:   ip,
		AttemptTime: at,
	})
	return nil
}

func (m *Store) RecordLoginSuccess(ctx context.Context, username, ip string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.attempts[:0]
	for _, a := range m.attempts {
		if a.IPAddress != ip {
			kept = append(kept, a)
		}
	}
	m.attempts = append(kept, store.LoginAttempt{
		Username:    username,
		IPAddress:   ip,
		AttemptTime: at,
		Success:     true,
	})
	return nil
}

func (m *Store) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	kept := m.attempts[:0]
	for _, a := range m.attempts {
		if a.AttemptTime.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	m.attempts = kept
	return n, nil
}
