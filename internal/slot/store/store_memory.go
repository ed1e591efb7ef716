package store

import (
	"context"
	"sort"
	"sync"

	"canlaw/internal/slot"
	"canlaw/pkg/platform/sentinel"
)

// MemoryRegistry is an in-memory Registry for tests and DSN-less dev runs.
type MemoryRegistry struct {
	mu    sync.RWMutex
	slots map[slot.Key]*slot.Slot
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{slots: make(map[slot.Key]*slot.Slot)}
}

func (m *MemoryRegistry) GetSlot(ctx context.Context, key slot.Key) (*slot.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s, nil
}

func (m *MemoryRegistry) ListActive(ctx context.Context, filter ScopeFilter, categories ...slot.Category) ([]*slot.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*slot.Slot
	for _, s := range m.slots {
		if !s.Active {
			continue
		}
		if !s.InScope(filter.Jurisdiction, filter.Domain) {
			continue
		}
		if !categoryMatches(s, categories) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryRegistry) PutSlot(ctx context.Context, s *slot.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[s.Key] = s
	return nil
}
