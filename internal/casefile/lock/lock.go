// Package lock provides the case-scoped exclusive lock that keeps a case
// single-writer: one orchestration pass at a time, however many service
// nodes are running.
package lock

import (
	"context"

	"canlaw/pkg/domain"
)

// Locker serializes orchestration passes per case. Acquire blocks until the
// lock is held, ctx is done, or the implementation decides the lock is
// contended; the returned release function must be called on every exit
// path.
//
// Distinct cases are independent: holding one case's lock never blocks
// another case.
type Locker interface {
	Acquire(ctx context.Context, id domain.CaseID) (release func(), err error)
}
