package graph

import "slices"

// NodeUpdate pairs a completed node with the partial update it produced.
type NodeUpdate struct {
	Node   string
	Update Update
}

// Reducer merges partial updates into the run state. The merge is a disjoint
// union: every key may be written exactly once per run, so applying a batch
// of sibling updates in any order yields the same state. A duplicate key is
// a *MergeConflict and aborts the run.
type Reducer struct{}

// Apply merges one node's update into the state.
func (Reducer) Apply(st *State, node string, upd Update) error {
	keys := make([]string, 0, len(upd))
	for k := range upd {
		keys = append(keys, k)
	}
	// Sorted so a conflicting update reports the same key on every run.
	slices.Sort(keys)

	for _, k := range keys {
		if _, exists := st.values[k]; exists {
			return &MergeConflict{Key: k, Node: node}
		}
	}
	for _, k := range keys {
		st.values[k] = upd[k]
	}
	return nil
}

// MergeBatch merges a batch of concurrently produced updates. The result is
// independent of the batch order.
func (r Reducer) MergeBatch(st *State, batch []NodeUpdate) error {
	for _, nu := range batch {
		if err := r.Apply(st, nu.Node, nu.Update); err != nil {
			return err
		}
	}
	return nil
}
