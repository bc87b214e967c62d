package session

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/flemzord/quill/internal/agent"
)

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry

	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an empty MemoryStore that reads time
// from now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     now,
	}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, s *agent.Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("session: put: missing session id")
	}
	snap := s.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[snap.ID] = Entry{Session: snap, LastActivity: m.now()}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (Entry, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()

	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return Entry{Session: e.Session.Clone(), LastActivity: e.LastActivity}, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.entries, id)
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.entries)
	clear(m.entries)
	return n, nil
}

// Sweep implements Store.
func (m *MemoryStore) Sweep(_ context.Context, maxIdle time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	swept := 0
	for id, e := range m.entries {
		if now.Sub(e.LastActivity) > maxIdle {
			delete(m.entries, id)
			swept++
		}
	}
	return swept, nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, Entry{Session: e.Session.Clone(), LastActivity: e.LastActivity})
	}
	m.mu.RUnlock()

	sortByActivity(out)
	return out, nil
}

// Len implements Store.
func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// sortByActivity orders entries newest first, breaking ties by id so the
// order is stable.
func sortByActivity(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := b.LastActivity.Compare(a.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(a.Session.ID, b.Session.ID)
	})
}

var _ Store = (*MemoryStore)(nil)
