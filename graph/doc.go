// Package graph provides the DAG definition and execution engine that powers
// the multi-source research agent.
//
// A graph is declared through a Builder as a set of named nodes with explicit
// dependency lists, then validated once by Build into an immutable DAG with
// exactly one entry node and one terminal node. An Executor runs the graph
// once per query: independent branches execute concurrently under a bounded
// worker pool, each branch receives a read-only snapshot of the accumulated
// State and returns a partial Update, and the scheduler merges updates
// through a commutative, disjoint-union Reducer.
//
// Failure of one branch never aborts its siblings: the failure is recorded
// as a marker value under the failing node's state key and downstream nodes
// decide locally how to proceed. Only a failure of the terminal node marks
// the whole run as failed.
//
//	b := graph.NewBuilder()
//	b.AddNode("start", nil, startFn)
//	b.AddNode("web", []string{"start"}, webFn)
//	b.AddNode("bing", []string{"start"}, bingFn)
//	b.AddNode("synthesize", []string{"web", "bing"}, synthFn)
//	g, err := b.Build()
//	if err != nil {
//		// *GraphError: duplicate node, unknown dependency, cycle, ...
//	}
//
//	exec := graph.NewExecutor(g,
//		graph.WithMaxConcurrency(4),
//		graph.WithNodeTimeout(30*time.Second),
//	)
//	outcome, err := exec.Run(ctx, "why is the sky blue")
package graph
