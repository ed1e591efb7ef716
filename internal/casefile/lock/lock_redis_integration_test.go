//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canlaw/internal/casefile/lock"
	"canlaw/pkg/domain"
	"canlaw/pkg/testutil/containers"
)

func TestRedisLockerExclusivity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	locker := lock.NewRedisLocker(rc.Client, 30*time.Second)
	ctx := context.Background()
	id := domain.NewCaseID()

	release, err := locker.Acquire(ctx, id)
	require.NoError(t, err)

	// A second holder blocks until the first releases.
	acquired := make(chan struct{})
	go func() {
		second, err := locker.Acquire(ctx, id)
		if err == nil {
			close(acquired)
			second()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while lock was held")
	case <-time.After(150 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(3 * time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestRedisLockerIndependentCases(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	locker := lock.NewRedisLocker(rc.Client, 30*time.Second)
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, domain.NewCaseID())
	require.NoError(t, err)
	defer releaseA()

	done := make(chan error, 1)
	go func() {
		releaseB, err := locker.Acquire(ctx, domain.NewCaseID())
		if err == nil {
			releaseB()
		}
		done <- err
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("lock on a distinct case blocked")
	}
}

func TestRedisLockerReleaseAfterExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	id := domain.NewCaseID()

	shortLocker := lock.NewRedisLocker(rc.Client, 100*time.Millisecond)
	staleRelease, err := shortLocker.Acquire(ctx, id)
	require.NoError(t, err)

	// Let the first hold expire, then take the lock with a fresh holder.
	time.Sleep(200 * time.Millisecond)
	locker := lock.NewRedisLocker(rc.Client, 30*time.Second)
	release, err := locker.Acquire(ctx, id)
	require.NoError(t, err)
	defer release()

	// The stale holder's release must not free the new holder's lock.
	staleRelease()
	_, err = lock.NewRedisLocker(rc.Client, time.Second).Acquire(ctx, id)
	assert.Error(t, err)
}
