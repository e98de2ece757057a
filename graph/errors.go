package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateNode is returned when two nodes are declared with the same name.
	ErrDuplicateNode = errors.New("duplicate node name")

	// ErrUnknownDependency is returned when a node depends on a name that is not in the graph.
	ErrUnknownDependency = errors.New("dependency references unknown node")

	// ErrCycle is returned when the declared edges contain a cycle.
	ErrCycle = errors.New("cycle detected")

	// ErrNoEntry is returned when no node with zero dependencies exists.
	ErrNoEntry = errors.New("no entry node")

	// ErrAmbiguousEntry is returned when more than one node has zero dependencies.
	ErrAmbiguousEntry = errors.New("ambiguous entry: multiple nodes without dependencies")

	// ErrNoTerminal is returned when no node with zero outgoing edges exists.
	ErrNoTerminal = errors.New("no terminal node")

	// ErrAmbiguousTerminal is returned when more than one node has zero outgoing edges.
	ErrAmbiguousTerminal = errors.New("ambiguous terminal: multiple nodes without dependents")

	// ErrUnreachableTerminal is returned when some node cannot reach the terminal node.
	ErrUnreachableTerminal = errors.New("terminal node not reachable from all nodes")

	// ErrEmptyGraph is returned when Build is called without any nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")
)

// GraphError is a structural, construction-time error. A graph that fails
// validation is never executed.
type GraphError struct {
	// Node is the node the error refers to, when applicable.
	Node string

	// Err is the underlying validation failure.
	Err error
}

func (e *GraphError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("graph: node %q: %v", e.Node, e.Err)
	}
	return fmt.Sprintf("graph: %v", e.Err)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// NodeFailure records the failure of a single node. It is stored in the run
// state under the failing node's key instead of aborting sibling branches,
// so downstream nodes observe it as ordinary data.
type NodeFailure struct {
	// Node is the name of the node that failed.
	Node string

	// Cause is the error that made the node fail.
	Cause error
}

func (e *NodeFailure) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.Node, e.Cause)
}

func (e *NodeFailure) Unwrap() error {
	return e.Cause
}

// Failure builds a failure marker for a node. Nodes that call external
// collaborators return their errors as markers rather than as Go errors, so
// the executor records the failure without unwinding the branch.
func Failure(node string, cause error) *NodeFailure {
	return &NodeFailure{Node: node, Cause: cause}
}

// AsFailure reports whether a state value is a failure marker.
func AsFailure(v any) (*NodeFailure, bool) {
	f, ok := v.(*NodeFailure)
	return f, ok
}

// MergeConflict is returned when two nodes contribute the same state key in
// one run. It indicates a malformed graph definition, not a runtime error,
// and aborts the run immediately.
type MergeConflict struct {
	// Key is the state key that was written twice.
	Key string

	// Node is the node whose update collided with an existing value.
	Node string
}

func (e *MergeConflict) Error() string {
	return fmt.Sprintf("merge conflict: node %s rewrote state key %q", e.Node, e.Key)
}

// SynthesisError marks the failure of the terminal node. It is the only
// node-level failure that fails the whole run, since no answer was produced.
type SynthesisError struct {
	// Cause is the terminal node's error, if any.
	Cause error

	// FailedSources lists the upstream nodes that resolved to failure markers.
	FailedSources []string
}

func (e *SynthesisError) Error() string {
	msg := "synthesis failed"
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if len(e.FailedSources) > 0 {
		msg = fmt.Sprintf("%s (failed sources: %s)", msg, strings.Join(e.FailedSources, ", "))
	}
	return msg
}

func (e *SynthesisError) Unwrap() error {
	return e.Cause
}
