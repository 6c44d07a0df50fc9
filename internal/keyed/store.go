package keyed

import (
	"sync"
	"time"
)

// Store is an in-process keyed map with per-entry expiry. It backs the
// ephemeral per-chat state (conversation sessions, AI history): values
// live only in process memory, at most one per key, and abandoned entries
// are evicted after the configured TTL instead of accumulating forever.
type Store[V any] struct {
	mu      sync.Mutex
	entries map[string]*storeEntry[V]
	ttl     time.Duration
	nowFunc func() time.Time
}

type storeEntry[V any] struct {
	value    V
	lastUsed time.Time
}

// NewStore creates a store whose entries expire ttl after their last
// access. A non-positive ttl disables expiry.
func NewStore[V any](ttl time.Duration) *Store[V] {
	return &Store[V]{
		entries: make(map[string]*storeEntry[V]),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Get returns the live value for key, evicting it first if expired.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	now := s.nowFunc()
	if s.expired(e, now) {
		delete(s.entries, key)
		var zero V
		return zero, false
	}
	e.lastUsed = now
	return e.value, true
}

// Set stores value under key, resetting its expiry.
func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &storeEntry[V]{value: value, lastUsed: s.nowFunc()}
}

// Delete removes key if present.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len reports the number of live (non-expired) entries.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	n := 0
	for key, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, key)
			continue
		}
		n++
	}
	return n
}

// Sweep evicts every expired entry. Call it periodically so abandoned keys
// are reclaimed even when never read again.
func (s *Store[V]) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	for key, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, key)
		}
	}
}

// StartSweeper runs Sweep every interval until stop is closed.
func (s *Store[V]) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

func (s *Store[V]) expired(e *storeEntry[V], now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastUsed) > s.ttl
}
