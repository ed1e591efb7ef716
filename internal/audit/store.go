package audit

import (
	"context"

	"canlaw/pkg/domain"
)

// Store is the audit persistence boundary. Append is the write path used by
// the publisher; ListByCase serves the operational trail queries.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCase(ctx context.Context, caseID domain.CaseID) ([]Event, error)
}
