package graph

import (
	"context"
	"slices"
)

// Node is a unit of work in the graph. Invoke receives a read-only snapshot
// of the accumulated state and returns the keys it contributes. Collaborator
// failures should be returned as failure markers inside the Update; an error
// return is recorded by the executor as a NodeFailure for the whole node.
type Node interface {
	// Name is the node's unique identifier within the graph.
	Name() string

	// Dependencies lists the upstream node names this node waits for.
	Dependencies() []string

	// Invoke runs the node against a state snapshot.
	Invoke(ctx context.Context, state *State) (Update, error)
}

// NodeFunc is the function form of a node's work.
type NodeFunc func(ctx context.Context, state *State) (Update, error)

type funcNode struct {
	name string
	deps []string
	fn   NodeFunc
}

func (n *funcNode) Name() string           { return n.name }
func (n *funcNode) Dependencies() []string { return n.deps }

func (n *funcNode) Invoke(ctx context.Context, state *State) (Update, error) {
	return n.fn(ctx, state)
}

// Builder accumulates node declarations and validates them into a Graph.
type Builder struct {
	nodes []Node
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddNode declares a node by name, dependency list and work function.
func (b *Builder) AddNode(name string, deps []string, fn NodeFunc) *Builder {
	return b.Add(&funcNode{name: name, deps: slices.Clone(deps), fn: fn})
}

// Add declares a node implementing the Node interface.
func (b *Builder) Add(n Node) *Builder {
	b.nodes = append(b.nodes, n)
	return b
}

// Graph is a validated, immutable DAG. It has exactly one entry node (no
// dependencies) and exactly one terminal node (no dependents) that every
// other node leads to.
type Graph struct {
	nodes      map[string]Node
	order      []string
	dependents map[string][]string
	entry      string
	terminal   string
}

// Entry returns the name of the entry node.
func (g *Graph) Entry() string { return g.entry }

// Terminal returns the name of the terminal node.
func (g *Graph) Terminal() string { return g.terminal }

// Nodes returns the node names in declaration order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.order)
}

// Dependents returns the nodes that depend on name.
func (g *Graph) Dependents(name string) []string {
	return slices.Clone(g.dependents[name])
}

// Build validates the declared nodes and edges. It fails with *GraphError on
// a duplicate node name, a dependency on an unknown node, a cycle, zero or
// multiple entry candidates, or a missing or unreachable terminal node.
// Validation runs once; the executor assumes the returned Graph is sound.
func (b *Builder) Build() (*Graph, error) {
	if len(b.nodes) == 0 {
		return nil, &GraphError{Err: ErrEmptyGraph}
	}

	g := &Graph{
		nodes:      make(map[string]Node, len(b.nodes)),
		dependents: make(map[string][]string),
	}

	for _, n := range b.nodes {
		name := n.Name()
		if _, exists := g.nodes[name]; exists {
			return nil, &GraphError{Node: name, Err: ErrDuplicateNode}
		}
		g.nodes[name] = n
		g.order = append(g.order, name)
	}

	var entries []string
	for _, name := range g.order {
		deps := g.nodes[name].Dependencies()
		if len(deps) == 0 {
			entries = append(entries, name)
			continue
		}
		for _, dep := range deps {
			if _, known := g.nodes[dep]; !known {
				return nil, &GraphError{Node: name, Err: ErrUnknownDependency}
			}
			g.dependents[dep] = append(g.dependents[dep], name)
		}
	}

	switch len(entries) {
	case 0:
		return nil, &GraphError{Err: ErrNoEntry}
	case 1:
		g.entry = entries[0]
	default:
		return nil, &GraphError{Node: entries[1], Err: ErrAmbiguousEntry}
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}

	var terminals []string
	for _, name := range g.order {
		if len(g.dependents[name]) == 0 {
			terminals = append(terminals, name)
		}
	}
	switch len(terminals) {
	case 0:
		// With acyclicity already established this cannot happen, but the
		// contract names the condition explicitly.
		return nil, &GraphError{Err: ErrNoTerminal}
	case 1:
		g.terminal = terminals[0]
	default:
		return nil, &GraphError{Node: terminals[1], Err: ErrAmbiguousTerminal}
	}

	if err := g.checkTerminalReach(); err != nil {
		return nil, err
	}

	return g, nil
}

// checkAcyclic runs Kahn's algorithm over the dependency edges.
func (g *Graph) checkAcyclic() error {
	indegree := make(map[string]int, len(g.nodes))
	for _, name := range g.order {
		indegree[name] = len(g.nodes[name].Dependencies())
	}

	queue := []string{}
	for _, name := range g.order {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range g.dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited != len(g.nodes) {
		for _, name := range g.order {
			if indegree[name] > 0 {
				return &GraphError{Node: name, Err: ErrCycle}
			}
		}
		return &GraphError{Err: ErrCycle}
	}
	return nil
}

// checkTerminalReach verifies the terminal transitively depends on every
// other node, i.e. no branch dead-ends before the join point.
func (g *Graph) checkTerminalReach() error {
	reached := make(map[string]bool, len(g.nodes))
	stack := []string{g.terminal}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[name] {
			continue
		}
		reached[name] = true
		stack = append(stack, g.nodes[name].Dependencies()...)
	}

	for _, name := range g.order {
		if !reached[name] {
			return &GraphError{Node: name, Err: ErrUnreachableTerminal}
		}
	}
	return nil
}
