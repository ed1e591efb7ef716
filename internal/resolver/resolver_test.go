package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canlaw/internal/slot"
	"canlaw/internal/slot/store"
	dErrors "canlaw/pkg/domain-errors"
)

func calcSlot(key string, deps ...string) *slot.Slot {
	depKeys := make([]slot.Key, 0, len(deps))
	for _, d := range deps {
		depKeys = append(depKeys, slot.Key(d))
	}
	return &slot.Slot{
		Key:      slot.Key(key),
		Category: slot.CategoryCalculated,
		DataType: slot.DataTypeNumber,
		Active:   true,
		Calculation: &slot.Calculation{
			Strategy:     slot.Formula{Expression: "0"},
			Dependencies: depKeys,
		},
	}
}

func inputSlot(key string) *slot.Slot {
	return &slot.Slot{
		Key:      slot.Key(key),
		Category: slot.CategoryInput,
		DataType: slot.DataTypeNumber,
		Active:   true,
	}
}

func registryWith(t *testing.T, slots ...*slot.Slot) *store.MemoryRegistry {
	t.Helper()
	reg := store.NewMemoryRegistry()
	for _, s := range slots {
		require.NoError(t, reg.PutSlot(context.Background(), s))
	}
	return reg
}

func indexOf(order []slot.Key, key slot.Key) int {
	for i, k := range order {
		if k == key {
			return i
		}
	}
	return -1
}

func TestResolveOrderTopological(t *testing.T) {
	reg := registryWith(t,
		inputSlot("annual_salary"),
		inputSlot("years_of_service"),
		calcSlot("weekly_salary", "annual_salary"),
		calcSlot("notice_weeks", "years_of_service"),
		calcSlot("severance", "weekly_salary", "notice_weeks"),
	)
	r := New(reg)

	order, err := r.ResolveOrder(context.Background(),
		[]slot.Key{"severance", "weekly_salary", "notice_weeks"})
	require.NoError(t, err)

	// Input dependencies are exogenous: never part of the order.
	assert.Equal(t, -1, indexOf(order, "annual_salary"))
	require.Len(t, order, 3)

	// severance follows both of its dependencies in every valid order.
	sev := indexOf(order, "severance")
	assert.Greater(t, sev, indexOf(order, "weekly_salary"))
	assert.Greater(t, sev, indexOf(order, "notice_weeks"))
}

func TestResolveOrderPullsTransitiveDependencies(t *testing.T) {
	reg := registryWith(t,
		calcSlot("base"),
		calcSlot("mid", "base"),
		calcSlot("top", "mid"),
	)
	r := New(reg)

	// Requesting only the top slot must pull in the full chain.
	order, err := r.ResolveOrder(context.Background(), []slot.Key{"top"})
	require.NoError(t, err)
	assert.Equal(t, []slot.Key{"base", "mid", "top"}, order)
}

func TestResolveOrderDeterministic(t *testing.T) {
	reg := registryWith(t,
		calcSlot("zeta"),
		calcSlot("alpha"),
		calcSlot("mike"),
	)
	r := New(reg)

	for range 5 {
		order, err := r.ResolveOrder(context.Background(), []slot.Key{"zeta", "mike", "alpha"})
		require.NoError(t, err)
		assert.Equal(t, []slot.Key{"alpha", "mike", "zeta"}, order, "ties break lexically")
	}
}

func TestResolveOrderCycle(t *testing.T) {
	reg := registryWith(t,
		calcSlot("a", "b"),
		calcSlot("b", "a"),
	)
	r := New(reg)

	_, err := r.ResolveOrder(context.Background(), []slot.Key{"a", "b"})
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.NotEmpty(t, cycle.Keys, "cycle error must name at least one slot on the cycle")
	assert.Subset(t, []slot.Key{"a", "b"}, cycle.Keys)
}

func TestResolveOrderCycleBehindChain(t *testing.T) {
	// head depends on a two-slot cycle further down; the cycle must still be
	// reported, never silently truncated.
	reg := registryWith(t,
		calcSlot("head", "x"),
		calcSlot("x", "y"),
		calcSlot("y", "x"),
	)
	r := New(reg)

	_, err := r.ResolveOrder(context.Background(), []slot.Key{"head"})
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	for _, k := range []slot.Key{"x", "y"} {
		assert.Contains(t, cycle.Keys, k)
	}
}

func TestResolveOrderUnknownSlot(t *testing.T) {
	r := New(registryWith(t))
	_, err := r.ResolveOrder(context.Background(), []slot.Key{"ghost"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestResolveOrderIgnoresInactiveDependency(t *testing.T) {
	retired := calcSlot("retired")
	retired.Active = false
	reg := registryWith(t,
		retired,
		calcSlot("live", "retired"),
	)
	r := New(reg)

	order, err := r.ResolveOrder(context.Background(), []slot.Key{"live"})
	require.NoError(t, err)
	assert.Equal(t, []slot.Key{"live"}, order)
}

func TestResolveOrderRejectsInactiveRequest(t *testing.T) {
	retired := calcSlot("retired")
	retired.Active = false
	r := New(registryWith(t, retired))

	_, err := r.ResolveOrder(context.Background(), []slot.Key{"retired"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestAnalyzeLayers(t *testing.T) {
	reg := registryWith(t,
		calcSlot("weekly_salary"),
		calcSlot("notice_weeks"),
		calcSlot("severance", "weekly_salary", "notice_weeks"),
		calcSlot("tax", "severance"),
	)
	r := New(reg)

	analysis, err := r.Analyze(context.Background(),
		[]slot.Key{"weekly_salary", "notice_weeks", "severance", "tax"})
	require.NoError(t, err)

	assert.Equal(t, 4, analysis.TotalSlots)
	assert.Equal(t, 3, analysis.MaxDepth)
	require.Len(t, analysis.Layers, 3)
	assert.Equal(t, []slot.Key{"notice_weeks", "weekly_salary"}, analysis.Layers[0])
	assert.Equal(t, []slot.Key{"severance"}, analysis.Layers[1])
	assert.Equal(t, []slot.Key{"tax"}, analysis.Layers[2])
}

func TestAnalyzeConsistentWithResolveOrder(t *testing.T) {
	reg := registryWith(t,
		calcSlot("a"),
		calcSlot("b", "a"),
		calcSlot("c", "a"),
		calcSlot("d", "b", "c"),
	)
	r := New(reg)
	keys := []slot.Key{"a", "b", "c", "d"}

	order, err := r.ResolveOrder(context.Background(), keys)
	require.NoError(t, err)

	analysis, err := r.Analyze(context.Background(), keys)
	require.NoError(t, err)

	var flattened []slot.Key
	for _, layer := range analysis.Layers {
		flattened = append(flattened, layer...)
	}
	assert.Equal(t, order, flattened, "concatenated layers must reproduce the resolve order")
}
