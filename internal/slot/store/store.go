// Package store provides the slot registry port and its implementations.
// The registry is read-mostly: the engine only reads, while the seeding and
// authoring pipelines write through PutSlot.
package store

import (
	"context"

	"canlaw/internal/slot"
)

// ScopeFilter narrows a listing to one case's jurisdiction and legal domain.
// Empty fields match everything; slots with global scope always match.
type ScopeFilter struct {
	Jurisdiction string
	Domain       string
}

// Registry is the slot configuration boundary. Implementations return
// sentinel.ErrNotFound (optionally wrapped) for unknown keys.
type Registry interface {
	// GetSlot returns one slot by key, active or not.
	GetSlot(ctx context.Context, key slot.Key) (*slot.Slot, error)
	// ListActive returns active slots matching the scope filter, optionally
	// restricted to the given categories. Order is deterministic (by key).
	ListActive(ctx context.Context, filter ScopeFilter, categories ...slot.Category) ([]*slot.Slot, error)
	// PutSlot inserts or replaces a slot configuration.
	PutSlot(ctx context.Context, s *slot.Slot) error
}

func categoryMatches(s *slot.Slot, categories []slot.Category) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if s.Category == c {
			return true
		}
	}
	return false
}
