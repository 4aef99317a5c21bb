// Package ratelimit implements a sliding-window attempt limiter over a keyed
// counter store. The store is pluggable so counters can live in process
// memory (tests) or in a bbolt file that survives restarts.
package ratelimit

import (
	"sync"
	"time"
)

// CounterStore persists the attempt timestamps for each identifier.
type CounterStore interface {
	// Attempts returns the recorded timestamps for key, oldest first.
	// A missing key yields an empty slice.
	Attempts(key string) ([]time.Time, error)
	// SetAttempts replaces the recorded timestamps for key. An empty slice
	// removes the key.
	SetAttempts(key string, attempts []time.Time) error
}

// Limiter enforces a per-identifier cap on attempts within a sliding window.
type Limiter struct {
	mu    sync.Mutex
	store CounterStore
	now   func() time.Time
}

// New returns a Limiter over the given store.
func New(store CounterStore) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Allow checks whether another attempt is permitted for key under the given
// cap and window. Expired entries are pruned on every check. If the attempt
// is permitted it is recorded and Allow returns true; once the attempts
// within the window reach max, Allow returns false without recording.
func (l *Limiter) Allow(key string, max int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	attempts, err := l.store.Attempts(key)
	if err != nil {
		return false, err
	}

	cutoff := now.Add(-window)
	kept := attempts[:0]
	for _, at := range attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= max {
		// Persist the pruned window even when rejecting, so stale entries
		// do not accumulate for hot keys.
		if err := l.store.SetAttempts(key, kept); err != nil {
			return false, err
		}
		return false, nil
	}

	kept = append(kept, now)
	if err := l.store.SetAttempts(key, kept); err != nil {
		return false, err
	}
	return true, nil
}
