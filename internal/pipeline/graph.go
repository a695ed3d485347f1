// Package pipeline runs checkpointed state machines. A Graph is a set of named
// nodes over a JSON-serializable state S, joined by fixed or conditional edges.
// The state is persisted after every node, and a run can suspend before
// designated nodes and be resumed later, in another process if needed.
package pipeline

import (
	"context"
	"fmt"
	"sort"
)

// End is the terminal pseudo-node.
const End = "__end__"

// NodeFunc transforms the state in place. A returned error aborts the run.
type NodeFunc[S any] func(ctx context.Context, state *S) error

// Router picks the next node from the state after a node completes.
type Router[S any] func(state *S) string

// Graph describes a state machine. Build it once, then Compile it.
type Graph[S any] struct {
	name       string
	entry      string
	nodes      map[string]NodeFunc[S]
	edges      map[string]string
	routers    map[string]Router[S]
	targets    map[string][]string
	interrupts map[string]bool
}

// NewGraph creates an empty graph. The name namespaces its checkpoints.
func NewGraph[S any](name string) *Graph[S] {
	return &Graph[S]{
		name:       name,
		nodes:      make(map[string]NodeFunc[S]),
		edges:      make(map[string]string),
		routers:    make(map[string]Router[S]),
		targets:    make(map[string][]string),
		interrupts: make(map[string]bool),
	}
}

// Name returns the graph name.
func (g *Graph[S]) Name() string { return g.name }

// AddNode registers a node.
func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) *Graph[S] {
	g.nodes[name] = fn
	return g
}

// AddEdge adds an unconditional transition.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.edges[from] = to
	return g
}

// AddConditionalEdge routes from a node using router. targets lists every node
// the router may return and is checked at compile time and at run time.
func (g *Graph[S]) AddConditionalEdge(from string, router Router[S], targets ...string) *Graph[S] {
	g.routers[from] = router
	g.targets[from] = targets
	return g
}

// SetEntry sets the first node.
func (g *Graph[S]) SetEntry(name string) *Graph[S] {
	g.entry = name
	return g
}

// InterruptBefore marks nodes before which execution suspends and waits for Resume.
func (g *Graph[S]) InterruptBefore(names ...string) *Graph[S] {
	for _, n := range names {
		g.interrupts[n] = true
	}
	return g
}

// Nodes returns the registered node names, sorted.
func (g *Graph[S]) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (g *Graph[S]) validate() error {
	if g.name == "" {
		return fmt.Errorf("graph name is required")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("graph %s: entry node %q is not registered", g.name, g.entry)
	}

	for _, name := range g.Nodes() {
		if name == End {
			return fmt.Errorf("graph %s: %q is reserved", g.name, End)
		}
		to, hasEdge := g.edges[name]
		_, hasRouter := g.routers[name]
		switch {
		case hasEdge && hasRouter:
			return fmt.Errorf("graph %s: node %q has both an edge and a router", g.name, name)
		case !hasEdge && !hasRouter:
			return fmt.Errorf("graph %s: node %q has no outgoing edge", g.name, name)
		case hasEdge:
			if !g.known(to) {
				return fmt.Errorf("graph %s: edge %s -> %s targets an unknown node", g.name, name, to)
			}
		default:
			if len(g.targets[name]) == 0 {
				return fmt.Errorf("graph %s: router on %q declares no targets", g.name, name)
			}
			for _, to := range g.targets[name] {
				if !g.known(to) {
					return fmt.Errorf("graph %s: router %s -> %s targets an unknown node", g.name, name, to)
				}
			}
		}
	}

	for from := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("graph %s: edge from unknown node %q", g.name, from)
		}
	}
	for n := range g.interrupts {
		if _, ok := g.nodes[n]; !ok {
			return fmt.Errorf("graph %s: interrupt on unknown node %q", g.name, n)
		}
	}
	return nil
}

func (g *Graph[S]) known(name string) bool {
	if name == End {
		return true
	}
	_, ok := g.nodes[name]
	return ok
}

func (g *Graph[S]) next(from string, state *S) (string, error) {
	if router, ok := g.routers[from]; ok {
		to := router(state)
		for _, allowed := range g.targets[from] {
			if to == allowed {
				return to, nil
			}
		}
		return "", fmt.Errorf("router on %q returned undeclared target %q", from, to)
	}
	return g.edges[from], nil
}
