package keyed

import (
	"sync"
	"testing"
	"time"
)

func TestStore_SetGet(t *testing.T) {
	s := NewStore[int](time.Minute)

	s.Set("a", 1)
	s.Set("b", 2)

	if v, ok := s.Get("a"); !ok || v != 1 {
		t.Errorf("expected (1, true), got (%d, %v)", v, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("expected missing key to report absent")
	}

	s.Delete("a")
	if _, ok := s.Get("a"); ok {
		t.Error("expected deleted key to report absent")
	}
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	s := NewStore[string](10 * time.Minute)

	now := time.Now()
	s.nowFunc = func() time.Time { return now }
	s.Set("chat-1", "session")

	now = now.Add(5 * time.Minute)
	if _, ok := s.Get("chat-1"); !ok {
		t.Fatal("entry expired before TTL elapsed")
	}

	// the read above refreshed lastUsed
	now = now.Add(10*time.Minute + time.Second)
	if _, ok := s.Get("chat-1"); ok {
		t.Fatal("entry survived past TTL")
	}
}

func TestStore_SweepEvictsExpired(t *testing.T) {
	s := NewStore[string](time.Minute)

	now := time.Now()
	s.nowFunc = func() time.Time { return now }
	s.Set("a", "x")
	s.Set("b", "y")

	now = now.Add(2 * time.Minute)
	s.Sweep()

	if n := s.Len(); n != 0 {
		t.Errorf("expected 0 entries after sweep, got %d", n)
	}
}

func TestStore_ZeroTTLNeverExpires(t *testing.T) {
	s := NewStore[int](0)

	now := time.Now()
	s.nowFunc = func() time.Time { return now }
	s.Set("a", 1)

	now = now.Add(24 * time.Hour)
	if _, ok := s.Get("a"); !ok {
		t.Error("entry with disabled TTL expired")
	}
}

func TestMutex_SerializesPerKey(t *testing.T) {
	m := NewMutex()

	var mu sync.Mutex
	active := map[string]int{}
	maxActive := map[string]int{}

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b"} {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				m.Lock(key)
				mu.Lock()
				active[key]++
				if active[key] > maxActive[key] {
					maxActive[key] = active[key]
				}
				mu.Unlock()

				time.Sleep(time.Microsecond)

				mu.Lock()
				active[key]--
				mu.Unlock()
				m.Unlock(key)
			}(key)
		}
	}
	wg.Wait()

	for key, n := range maxActive {
		if n != 1 {
			t.Errorf("key %s: %d goroutines held the lock at once", key, n)
		}
	}
}

func TestMutex_ReleasesEntries(t *testing.T) {
	m := NewMutex()

	m.Lock("k")
	m.Unlock("k")

	m.mu.Lock()
	n := len(m.locks)
	m.mu.Unlock()
	if n != 0 {
		t.Errorf("expected lock table to be empty, found %d entries", n)
	}
}
