package graph

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/multisearch/log"
)

// NodeStatus is the recorded outcome of one node within a run.
type NodeStatus string

const (
	StatusPending   NodeStatus = "pending"
	StatusRunning   NodeStatus = "running"
	StatusSucceeded NodeStatus = "succeeded"
	StatusFailed    NodeStatus = "failed"
	StatusSkipped   NodeStatus = "skipped"
)

// DefaultMaxConcurrency caps parallel node execution when no explicit limit
// is configured. Search branches hit rate-limited external APIs, so the cap
// is deliberately small.
const DefaultMaxConcurrency = 4

// RunOutcome is the result of one graph execution.
type RunOutcome struct {
	// RunID uniquely identifies this execution.
	RunID string

	// FinalState is the fully merged state, including failure markers.
	FinalState *State

	// NodeStatus records the per-node outcome.
	NodeStatus map[string]NodeStatus

	// OverallFailed is true only when the terminal node itself failed;
	// individual branch failures degrade into partial results instead.
	OverallFailed bool

	// Diagnostic explains which branches failed and why. Non-empty whenever
	// at least one node resolved to a failure marker.
	Diagnostic string

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// Executor runs a validated Graph once per call. It schedules nodes as their
// dependencies resolve, runs independent branches concurrently under a
// bounded worker pool, and merges their updates into a single State through
// the Reducer. Branch failures are captured as failure markers; only a
// terminal-node failure fails the run.
type Executor struct {
	graph          *Graph
	reducer        Reducer
	maxConcurrency int
	nodeTimeout    time.Duration
	runTimeout     time.Duration
	retryPolicy    *RetryPolicy
	listeners      []Listener
	logger         log.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxConcurrency caps the number of concurrently executing nodes.
func WithMaxConcurrency(n int) Option {
	return func(e *Executor) { e.maxConcurrency = n }
}

// WithNodeTimeout bounds each node invocation. On expiry the node resolves
// to a failure marker instead of hanging the run.
func WithNodeTimeout(d time.Duration) Option {
	return func(e *Executor) { e.nodeTimeout = d }
}

// WithRunTimeout bounds the whole run. On expiry pending branches are
// written off and the terminal node runs on whatever state accumulated.
func WithRunTimeout(d time.Duration) Option {
	return func(e *Executor) { e.runTimeout = d }
}

// WithRetryPolicy enables in-process retries for failed node invocations.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(e *Executor) { e.retryPolicy = p }
}

// WithListener registers a run lifecycle listener.
func WithListener(l Listener) Option {
	return func(e *Executor) { e.listeners = append(e.listeners, l) }
}

// WithLogger sets the executor's logger.
func WithLogger(l log.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor for a validated graph.
func NewExecutor(g *Graph, opts ...Option) *Executor {
	e := &Executor{
		graph:          g,
		maxConcurrency: DefaultMaxConcurrency,
		logger:         log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxConcurrency < 1 {
		e.maxConcurrency = 1
	}
	return e
}

// completion is one node's result delivered to the scheduler goroutine.
type completion struct {
	node    string
	update  Update
	failure *NodeFailure
}

// run owns the mutable execution state of a single invocation. All fields
// are touched only from the scheduler goroutine; branches communicate
// exclusively through the done channel.
type run struct {
	id        string
	state     *State
	status    map[string]NodeStatus
	remaining map[string]int
	done      chan completion
	sem       chan struct{}
	started   time.Time
}

// Run executes the graph once for the given query. The returned error is
// non-nil only for structural defects (*MergeConflict); collaborator and
// synthesis failures are reported through the RunOutcome.
func (e *Executor) Run(ctx context.Context, query string) (*RunOutcome, error) {
	names := e.graph.Nodes()

	r := &run{
		id:        uuid.New().String(),
		state:     NewState(query),
		status:    make(map[string]NodeStatus, len(names)),
		remaining: make(map[string]int, len(names)),
		done:      make(chan completion, len(names)),
		sem:       make(chan struct{}, e.maxConcurrency),
		started:   time.Now(),
	}
	for _, name := range names {
		r.status[name] = StatusPending
		r.remaining[name] = len(e.graph.nodes[name].Dependencies())
	}

	branchCtx, cancel := e.branchContext(ctx)
	defer cancel()

	e.emit(ctx, EventRunStart, "", nil)
	e.logger.Debug("run %s: %d nodes, query %q", r.id, len(names), query)

	e.dispatch(ctx, branchCtx, r, e.graph.entry)

	for {
		select {
		case c := <-r.done:
			if r.status[c.node] != StatusRunning {
				// Late completion of a branch already written off by the
				// run deadline.
				continue
			}
			if err := e.record(ctx, r, c); err != nil {
				cancel()
				e.emit(ctx, EventRunEnd, "", err)
				return nil, err
			}
			if c.node == e.graph.terminal {
				return e.finish(ctx, r, c), nil
			}
			for _, dep := range e.graph.dependents[c.node] {
				r.remaining[dep]--
				if r.remaining[dep] == 0 {
					e.dispatch(ctx, branchCtx, r, dep)
				}
			}

		case <-branchCtx.Done():
			return e.finishDeadline(ctx, branchCtx, r)
		}
	}
}

func (e *Executor) branchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.runTimeout > 0 {
		return context.WithTimeout(ctx, e.runTimeout)
	}
	return context.WithCancel(ctx)
}

// dispatch hands a ready node to the worker pool. The state snapshot is
// taken here, in the scheduler goroutine, so it already contains every
// merged dependency update but can never race with later merges.
func (e *Executor) dispatch(ctx, branchCtx context.Context, r *run, name string) {
	r.status[name] = StatusRunning
	e.emit(ctx, EventNodeStart, name, nil)

	node := e.graph.nodes[name]
	snap := r.state.snapshot()
	go func() {
		select {
		case r.sem <- struct{}{}:
		case <-branchCtx.Done():
			r.done <- completion{node: name, failure: Failure(name, branchCtx.Err())}
			return
		}
		defer func() { <-r.sem }()
		r.done <- e.invoke(branchCtx, node, snap)
	}()
}

// invoke runs one node with timeout, retry and panic isolation. It always
// returns a completion; branch failures never unwind past this point.
func (e *Executor) invoke(ctx context.Context, n Node, snap *State) completion {
	name := n.Name()

	attempts := 1
	if e.retryPolicy != nil {
		attempts = e.retryPolicy.MaxRetries + 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		upd, err := e.invokeOnce(ctx, n, snap)
		if err == nil {
			return completion{node: name, update: upd}
		}
		lastErr = err

		if e.retryPolicy != nil && attempt < attempts-1 && e.retryPolicy.retryable(err) {
			select {
			case <-time.After(e.retryPolicy.delay(attempt)):
				continue
			case <-ctx.Done():
				return completion{node: name, failure: Failure(name, ctx.Err())}
			}
		}
		break
	}
	return completion{node: name, failure: Failure(name, lastErr)}
}

// invokeOnce runs a single attempt. The node function executes in its own
// goroutine so a hung collaborator call turns into a deadline failure
// instead of stalling the scheduler; a late result is dropped through the
// buffered channel.
func (e *Executor) invokeOnce(ctx context.Context, n Node, snap *State) (Update, error) {
	nctx := ctx
	if e.nodeTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(ctx, e.nodeTimeout)
		defer cancel()
	}

	type result struct {
		update Update
		err    error
	}
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- result{err: fmt.Errorf("panic in node %s: %v", n.Name(), rec)}
			}
		}()
		upd, err := n.Invoke(nctx, snap)
		ch <- result{update: upd, err: err}
	}()

	select {
	case res := <-ch:
		return res.update, res.err
	case <-nctx.Done():
		return nil, nctx.Err()
	}
}

// record merges one completion into the run state. This is the single
// critical section of a run: merges happen one at a time, in the scheduler
// goroutine, before any dependent is marked ready.
func (e *Executor) record(ctx context.Context, r *run, c completion) error {
	if c.failure != nil {
		r.status[c.node] = StatusFailed
		e.emit(ctx, EventNodeError, c.node, c.failure)
		e.logger.Warn("run %s: node %s failed: %v", r.id, c.node, c.failure.Cause)
		return e.reducer.Apply(r.state, c.node, Update{c.node: c.failure})
	}

	if err := e.reducer.Apply(r.state, c.node, c.update); err != nil {
		r.status[c.node] = StatusFailed
		e.logger.Error("run %s: %v", r.id, err)
		return err
	}

	// A node may report a collaborator failure as a marker in its own
	// update; that still counts as a failed node.
	failed := false
	for _, v := range c.update {
		if _, ok := AsFailure(v); ok {
			failed = true
			break
		}
	}
	if failed {
		r.status[c.node] = StatusFailed
		e.emit(ctx, EventNodeError, c.node, nil)
	} else {
		r.status[c.node] = StatusSucceeded
		e.emit(ctx, EventNodeComplete, c.node, nil)
	}
	return nil
}

// finish builds the outcome after the terminal node resolved.
func (e *Executor) finish(ctx context.Context, r *run, terminal completion) *RunOutcome {
	outcome := &RunOutcome{
		RunID:      r.id,
		FinalState: r.state,
		NodeStatus: maps.Clone(r.status),
		Elapsed:    time.Since(r.started),
	}

	if terminal.failure != nil {
		outcome.OverallFailed = true
		outcome.Diagnostic = e.diagnose(r.state, terminal.failure)
		e.emit(ctx, EventRunEnd, "", terminal.failure)
		e.logger.Warn("run %s failed: %s", r.id, outcome.Diagnostic)
		return outcome
	}

	if failures := r.state.Failures(); len(failures) > 0 {
		outcome.Diagnostic = e.diagnose(r.state, nil)
	}
	e.emit(ctx, EventRunEnd, "", nil)
	e.logger.Debug("run %s finished in %s", r.id, outcome.Elapsed)
	return outcome
}

// finishDeadline handles run-deadline expiry: pending branches are written
// off with failure markers and the terminal node still runs, on whatever
// state accumulated, with a context detached from the expired deadline.
func (e *Executor) finishDeadline(ctx, branchCtx context.Context, r *run) (*RunOutcome, error) {
	cause := context.Cause(branchCtx)
	terminal := e.graph.terminal
	terminalRunning := r.status[terminal] == StatusRunning

	for _, name := range e.graph.order {
		if name == terminal {
			continue
		}
		switch r.status[name] {
		case StatusPending:
			r.status[name] = StatusSkipped
			e.emit(ctx, EventNodeSkipped, name, cause)
		case StatusRunning:
			r.status[name] = StatusFailed
			e.emit(ctx, EventNodeError, name, cause)
		default:
			continue
		}
		if err := e.reducer.Apply(r.state, name, Update{name: Failure(name, cause)}); err != nil {
			return nil, err
		}
	}
	e.logger.Warn("run %s: deadline expired, forcing best-effort synthesis", r.id)

	var c completion
	if terminalRunning {
		// The terminal was already in flight with the full upstream state;
		// take its result. Its context is cancelled, so it resolves soon.
		for c = range r.done {
			if c.node == terminal {
				break
			}
		}
	} else {
		r.status[terminal] = StatusRunning
		e.emit(ctx, EventNodeStart, terminal, nil)
		snap := r.state.snapshot()
		c = e.invoke(context.WithoutCancel(ctx), e.graph.nodes[terminal], snap)
	}

	if err := e.record(ctx, r, c); err != nil {
		return nil, err
	}
	return e.finish(ctx, r, c), nil
}

// diagnose renders the per-branch failure markers, and the terminal failure
// when present, into one human-readable line.
func (e *Executor) diagnose(state *State, terminal *NodeFailure) string {
	failures := state.Failures()
	keys := make([]string, 0, len(failures))
	for k := range failures {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	if terminal != nil {
		parts = append(parts, terminal.Error())
	}
	for _, k := range keys {
		if terminal != nil && k == terminal.Node {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", k, failures[k].Cause))
	}
	return strings.Join(parts, "; ")
}

func (e *Executor) emit(ctx context.Context, event Event, node string, err error) {
	for _, l := range e.listeners {
		l.OnEvent(ctx, event, node, err)
	}
}
