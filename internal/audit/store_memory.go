package audit

import (
	"context"
	"sync"

	"canlaw/pkg/domain"
)

// MemoryStore keeps events in memory. Stands in for the outbox-backed store
// in tests and DSN-less dev runs.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListByCase(_ context.Context, caseID domain.CaseID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.CaseID == caseID {
			out = append(out, e)
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
