// Package keyedmutex provides per-key mutual exclusion so concurrent
// operations on the same resource collapse into one at a time while
// operations on different resources proceed in parallel.
package keyedmutex

import "sync"

type lock struct {
	mu   sync.Mutex
	refs int
}

type KeyedMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*lock
}

func New[K comparable]() *KeyedMutex[K] {
	return &KeyedMutex[K]{
		locks: make(map[K]*lock),
	}
}

// Lock acquires the lock for key and returns the matching unlock function.
// The unlock function must be called exactly once, typically via defer, so
// the lock is released on all exit paths.
func (m *KeyedMutex[K]) Lock(key K) (unlock func()) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &lock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}
