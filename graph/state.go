package graph

import (
	"maps"
	"slices"
)

// Update is the partial state one node contributes: the keys it introduces
// mapped to their values. Sibling branches own disjoint key sets by contract,
// which makes merging commutative.
type Update map[string]any

// State is the record threaded through every node of a run. The query is set
// once at run start and never mutated; every other key is append-only. Nodes
// receive read-only snapshots and return Updates; only the executor writes,
// through the Reducer.
type State struct {
	query  string
	values map[string]any
}

// NewState creates a state holding only the original user query.
func NewState(query string) *State {
	return &State{
		query:  query,
		values: make(map[string]any),
	}
}

// Query returns the original user request.
func (s *State) Query() string {
	return s.query
}

// Value returns the value stored under key, if any.
func (s *State) Value(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// StringValue returns the value under key if it is a string, or "".
func (s *State) StringValue(key string) string {
	if v, ok := s.values[key].(string); ok {
		return v
	}
	return ""
}

// Failure returns the failure marker recorded under key, if the key holds one.
func (s *State) Failure(key string) (*NodeFailure, bool) {
	f, ok := s.values[key].(*NodeFailure)
	return f, ok
}

// Keys returns the state keys in sorted order.
func (s *State) Keys() []string {
	keys := slices.Collect(maps.Keys(s.values))
	slices.Sort(keys)
	return keys
}

// Failures returns every failure marker in the state, keyed by state key.
func (s *State) Failures() map[string]*NodeFailure {
	failures := make(map[string]*NodeFailure)
	for k, v := range s.values {
		if f, ok := v.(*NodeFailure); ok {
			failures[k] = f
		}
	}
	return failures
}

// snapshot returns a read-only copy handed to a branch at dispatch time.
// Branches never observe merges that happen after their dependencies
// resolved, so concurrent siblings cannot race on the value map.
func (s *State) snapshot() *State {
	return &State{
		query:  s.query,
		values: maps.Clone(s.values),
	}
}
