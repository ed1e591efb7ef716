//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canlaw/internal/slot"
	"canlaw/internal/slot/store"
	"canlaw/pkg/testutil/containers"
)

// countingRegistry counts how often reads fall through to the source of
// truth.
type countingRegistry struct {
	store.Registry
	gets int
}

func (c *countingRegistry) GetSlot(ctx context.Context, key slot.Key) (*slot.Slot, error) {
	c.gets++
	return c.Registry.GetSlot(ctx, key)
}

func TestCachedRegistryReadThrough(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	inner := &countingRegistry{Registry: store.NewMemoryRegistry()}
	cached := store.NewCachedRegistry(inner, rc.Client, time.Minute)

	in := &slot.Slot{Key: "annual_salary", Category: slot.CategoryInput, DataType: slot.DataTypeNumber, Active: true}
	require.NoError(t, cached.PutSlot(ctx, in))

	first, err := cached.GetSlot(ctx, "annual_salary")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.gets)

	second, err := cached.GetSlot(ctx, "annual_salary")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.gets, "second read should be served from cache")
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, first.DataType, second.DataType)
}

func TestCachedRegistryInvalidatesOnPut(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	inner := &countingRegistry{Registry: store.NewMemoryRegistry()}
	cached := store.NewCachedRegistry(inner, rc.Client, time.Minute)

	in := &slot.Slot{Key: "annual_salary", Category: slot.CategoryInput, DataType: slot.DataTypeNumber, Active: true}
	require.NoError(t, cached.PutSlot(ctx, in))
	_, err := cached.GetSlot(ctx, "annual_salary")
	require.NoError(t, err)

	// An authoring update must not serve the stale cached version.
	updated := *in
	updated.Active = false
	require.NoError(t, cached.PutSlot(ctx, &updated))

	got, err := cached.GetSlot(ctx, "annual_salary")
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, 2, inner.gets)
}
