package keyed

import "sync"

// Mutex provides per-key mutual exclusion. Locks for distinct keys never
// contend; lock entries are reference counted and removed once the last
// holder releases them, so the map does not grow with the key space.
type Mutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewMutex() *Mutex {
	return &Mutex{locks: make(map[string]*lockEntry)}
}

// Lock acquires the lock for key, blocking while another goroutine holds it.
func (m *Mutex) Lock(key string) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &lockEntry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for key. It must pair with a prior Lock.
func (m *Mutex) Unlock(key string) {
	m.mu.Lock()
	e := m.locks[key]
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()

	e.mu.Unlock()
}
