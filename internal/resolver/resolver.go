// Package resolver computes evaluation order over the slot dependency
// graph. An edge from A to B means "B's calculation requires A's value"; a
// valid order never places a slot before any of its dependencies.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"canlaw/internal/slot"
	dErrors "canlaw/pkg/domain-errors"
	"canlaw/pkg/platform/sentinel"
)

// Registry is the subset of the slot registry the resolver needs.
type Registry interface {
	GetSlot(ctx context.Context, key slot.Key) (*slot.Slot, error)
}

// CycleError reports a dependency cycle. Keys names every slot still locked
// in the cycle when resolution stalled, so at least one slot on each cycle
// is always named.
type CycleError struct {
	Keys []slot.Key
}

func (e *CycleError) Error() string {
	names := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		names = append(names, string(k))
	}
	return "dependency cycle involving: " + strings.Join(names, ", ")
}

// Analysis is the structural view of a dependency set. Layer i contains
// every slot whose dependencies lie entirely in layers < i; layer 0 is the
// slots with no dependencies inside the set.
type Analysis struct {
	TotalSlots int
	MaxDepth   int
	Layers     [][]slot.Key
}

// Resolver builds induced dependency subgraphs from registry configuration.
type Resolver struct {
	registry Registry
}

func New(registry Registry) *Resolver {
	return &Resolver{registry: registry}
}

// ResolveOrder returns every requested slot plus every transitive calculable
// dependency, ordered so a slot never precedes its dependencies. Ties within
// a layer break lexically, so the order is deterministic.
//
// Dependencies that are input slots, inactive, or unregistered are exogenous:
// they are not evaluated, so they join the graph as no nodes at all. Whether
// the case carries a value for them is the calculation engine's concern.
func (r *Resolver) ResolveOrder(ctx context.Context, keys []slot.Key) ([]slot.Key, error) {
	g, err := r.buildGraph(ctx, keys)
	if err != nil {
		return nil, err
	}
	layers, err := g.layer()
	if err != nil {
		return nil, err
	}
	var order []slot.Key
	for _, layer := range layers {
		order = append(order, layer...)
	}
	return order, nil
}

// Analyze returns the layer structure of the requested set. Concatenating
// the layers in order reproduces exactly what ResolveOrder returns.
func (r *Resolver) Analyze(ctx context.Context, keys []slot.Key) (*Analysis, error) {
	g, err := r.buildGraph(ctx, keys)
	if err != nil {
		return nil, err
	}
	layers, err := g.layer()
	if err != nil {
		return nil, err
	}
	total := 0
	for _, layer := range layers {
		total += len(layer)
	}
	return &Analysis{
		TotalSlots: total,
		MaxDepth:   len(layers),
		Layers:     layers,
	}, nil
}

// graph is the induced dependency subgraph: only calculable slots are nodes,
// and only edges between nodes count toward in-degree.
type graph struct {
	nodes map[slot.Key]*slot.Slot
	deps  map[slot.Key][]slot.Key // node -> its in-graph dependencies
}

func (r *Resolver) buildGraph(ctx context.Context, keys []slot.Key) (*graph, error) {
	g := &graph{
		nodes: make(map[slot.Key]*slot.Slot),
		deps:  make(map[slot.Key][]slot.Key),
	}

	// Requested keys must exist; there is no partial resolve.
	queue := make([]slot.Key, 0, len(keys))
	for _, key := range keys {
		if _, seen := g.nodes[key]; seen {
			continue
		}
		s, err := r.registry.GetSlot(ctx, key)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound,
					fmt.Sprintf("slot %s is not registered", key))
			}
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "slot registry unavailable")
		}
		if !s.Active {
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("slot %s is inactive", key))
		}
		g.nodes[key] = s
		queue = append(queue, key)
	}

	// Pull in transitive calculable dependencies breadth-first.
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		s := g.nodes[key]
		if !s.Calculable() {
			continue
		}
		for _, dep := range s.Calculation.Dependencies {
			if _, seen := g.nodes[dep]; seen {
				g.deps[key] = append(g.deps[key], dep)
				continue
			}
			depSlot, err := r.registry.GetSlot(ctx, dep)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					continue // exogenous: value must come from the case
				}
				return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "slot registry unavailable")
			}
			if !depSlot.Active || !depSlot.Calculable() {
				continue // exogenous: inputs and retired slots are not evaluated
			}
			g.nodes[dep] = depSlot
			g.deps[key] = append(g.deps[key], dep)
			queue = append(queue, dep)
		}
	}

	return g, nil
}

// layer runs Kahn's algorithm in waves. Each wave is one layer: the nodes
// whose remaining in-degree is zero, sorted lexically. A stalled run with
// nodes left over means a cycle; the leftovers are reported, never dropped.
func (g *graph) layer() ([][]slot.Key, error) {
	indegree := make(map[slot.Key]int, len(g.nodes))
	dependents := make(map[slot.Key][]slot.Key, len(g.nodes))
	for key := range g.nodes {
		indegree[key] = 0
	}
	for key, deps := range g.deps {
		for _, dep := range deps {
			indegree[key]++
			dependents[dep] = append(dependents[dep], key)
		}
	}

	var ready []slot.Key
	for key, deg := range indegree {
		if deg == 0 {
			ready = append(ready, key)
		}
	}

	var layers [][]slot.Key
	placed := 0
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		layer := ready
		ready = nil
		for _, key := range layer {
			placed++
			for _, dependent := range dependents[key] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					ready = append(ready, dependent)
				}
			}
		}
		layers = append(layers, layer)
	}

	if placed < len(g.nodes) {
		var stuck []slot.Key
		for key, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, key)
			}
		}
		sort.Slice(stuck, func(i, j int) bool { return stuck[i] < stuck[j] })
		return nil, &CycleError{Keys: stuck}
	}
	return layers, nil
}
