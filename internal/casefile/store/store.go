// Package store provides the case storage port and its implementations.
package store

import (
	"context"

	"canlaw/internal/casefile"
	"canlaw/internal/slot"
	"canlaw/pkg/domain"
)

// Store is the case persistence boundary. Implementations return
// sentinel.ErrNotFound for unknown cases and sentinel.ErrConflict from
// Create on duplicate IDs.
//
// Save must be atomic over both the value map and the calculation log: a
// reader never observes new values with an old log or vice versa. Storage
// failures are returned as-is; retry policy belongs to the caller.
type Store interface {
	Create(ctx context.Context, c *casefile.Case) error
	Load(ctx context.Context, id domain.CaseID) (*casefile.Case, error)
	Save(ctx context.Context, id domain.CaseID, values map[slot.Key]domain.Value, log []casefile.LogEntry) error
}
