package ratelimit

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var counterBucket = []byte("rate_counters")

// BoltStore persists counters in a bbolt file so rate-limit state survives
// process restarts.
type BoltStore struct {
	db *bolt.DB
}

var _ CounterStore = (*BoltStore)(nil)

// NewBoltStore opens (or creates) the counter database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening rate counter db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(counterBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating counter bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Attempts(key string) ([]time.Time, error) {
	var attempts []time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(counterBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &attempts)
	})
	if err != nil {
		return nil, fmt.Errorf("reading counter %q: %w", key, err)
	}
	return attempts, nil
}

func (s *BoltStore) SetAttempts(key string, attempts []time.Time) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(counterBucket)
		if len(attempts) == 0 {
			return b.Delete([]byte(key))
		}
		raw, err := json.Marshal(attempts)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), raw)
	})
	if err != nil {
		return fmt.Errorf("writing counter %q: %w", key, err)
	}
	return nil
}
