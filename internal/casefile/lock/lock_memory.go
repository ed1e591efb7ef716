package lock

import (
	"context"
	"sync"

	"canlaw/pkg/domain"
)

// MemoryLocker is a single-node Locker backed by per-case channel
// semaphores. Acquire waits for the holder to release, honoring context
// cancellation while waiting.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[domain.CaseID]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[domain.CaseID]chan struct{})}
}

func (m *MemoryLocker) Acquire(ctx context.Context, id domain.CaseID) (func(), error) {
	m.mu.Lock()
	sem, ok := m.locks[id]
	if !ok {
		sem = make(chan struct{}, 1)
		m.locks[id] = sem
	}
	m.mu.Unlock()

	select {
	case sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-sem })
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
