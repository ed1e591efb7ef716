package store

import (
	"context"
	"maps"
	"sync"
	"time"

	"canlaw/internal/casefile"
	"canlaw/internal/slot"
	"canlaw/pkg/domain"
	"canlaw/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and DSN-less dev runs. Cases
// are deep-copied on the way in and out so callers cannot mutate stored
// state behind the lock.
type MemoryStore struct {
	mu    sync.RWMutex
	cases map[domain.CaseID]*casefile.Case
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cases: make(map[domain.CaseID]*casefile.Case)}
}

func (m *MemoryStore) Create(ctx context.Context, c *casefile.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cases[c.ID]; exists {
		return sentinel.ErrConflict
	}
	m.cases[c.ID] = copyCase(c)
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, id domain.CaseID) (*casefile.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyCase(c), nil
}

func (m *MemoryStore) Save(ctx context.Context, id domain.CaseID, values map[slot.Key]domain.Value, log []casefile.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.SlotValues = maps.Clone(values)
	c.Log = append([]casefile.LogEntry(nil), log...)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func copyCase(c *casefile.Case) *casefile.Case {
	out := *c
	out.SlotValues = maps.Clone(c.SlotValues)
	out.Log = append([]casefile.LogEntry(nil), c.Log...)
	return &out
}
