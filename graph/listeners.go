package graph

import "context"

// Event represents the lifecycle events of a run.
type Event string

const (
	// EventRunStart indicates graph execution has started
	EventRunStart Event = "run_start"

	// EventRunEnd indicates graph execution has finished
	EventRunEnd Event = "run_end"

	// EventNodeStart indicates a node was dispatched
	EventNodeStart Event = "node_start"

	// EventNodeComplete indicates a node completed and was merged
	EventNodeComplete Event = "node_complete"

	// EventNodeError indicates a node resolved to a failure marker
	EventNodeError Event = "node_error"

	// EventNodeSkipped indicates a node was written off by the run deadline
	EventNodeSkipped Event = "node_skipped"
)

// Listener receives run lifecycle events from the executor. Events are
// emitted from the scheduler goroutine, never concurrently.
type Listener interface {
	OnEvent(ctx context.Context, event Event, node string, err error)
}

// ListenerFunc is a function adapter for Listener.
type ListenerFunc func(ctx context.Context, event Event, node string, err error)

// OnEvent implements the Listener interface.
func (f ListenerFunc) OnEvent(ctx context.Context, event Event, node string, err error) {
	f(ctx, event, node, err)
}
