package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

type memEntry struct {
	val       []byte
	expiresAt time.Time // zero means no expiry
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is a process-local Store used in tests and in deployments
// that run without Redis. Expired entries are reaped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if e.expired(time.Now()) {
		delete(m.entries, key)
		return nil, ErrMiss
	}
	// Copy out so callers cannot mutate the stored slice.
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	cp := make([]byte, len(val))
	copy(cp, val)
	e := memEntry{val: cp}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Del implements Store.
func (m *MemoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

// DelPattern implements Store using path.Match glob semantics, matching
// the subset of Redis glob syntax the repository layer relies on
// (trailing '*' namespace wipes).
func (m *MemoryStore) DelPattern(_ context.Context, pattern string) (int, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			continue
		}
		if ok, err := path.Match(pattern, k); err != nil {
			return n, err
		} else if ok {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

// Len reports the number of live entries; expired-but-unreaped entries
// are excluded.
func (m *MemoryStore) Len() int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}
