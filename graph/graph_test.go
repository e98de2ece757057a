package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/multisearch/graph"
)

func noop(ctx context.Context, state *graph.State) (graph.Update, error) {
	return nil, nil
}

func TestBuild_ValidFanOutFanIn(t *testing.T) {
	b := graph.NewBuilder()
	b.AddNode("start", nil, noop)
	b.AddNode("web", []string{"start"}, noop)
	b.AddNode("bing", []string{"start"}, noop)
	b.AddNode("yandex", []string{"start"}, noop)
	b.AddNode("reddit", []string{"start"}, noop)
	b.AddNode("synthesize", []string{"web", "bing", "yandex", "reddit"}, noop)

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "start", g.Entry())
	assert.Equal(t, "synthesize", g.Terminal())
	assert.Len(t, g.Nodes(), 6)
	assert.ElementsMatch(t, []string{"web", "bing", "yandex", "reddit"}, g.Dependents("start"))
}

func TestBuild_EmptyGraph(t *testing.T) {
	_, err := graph.NewBuilder().Build()
	var ge *graph.GraphError
	require.ErrorAs(t, err, &ge)
	assert.ErrorIs(t, err, graph.ErrEmptyGraph)
}

func TestBuild_DuplicateNode(t *testing.T) {
	b := graph.NewBuilder()
	b.AddNode("start", nil, noop)
	b.AddNode("web", []string{"start"}, noop)
	b.AddNode("web", []string{"start"}, noop)

	_, err := b.Build()
	var ge *graph.GraphError
	require.ErrorAs(t, err, &ge)
	assert.ErrorIs(t, err, graph.ErrDuplicateNode)
	assert.Equal(t, "web", ge.Node)
}

func TestBuild_UnknownDependency(t *testing.T) {
	b := graph.NewBuilder()
	b.AddNode("start", nil, noop)
	b.AddNode("web", []string{"missing"}, noop)

	_, err := b.Build()
	assert.ErrorIs(t, err, graph.ErrUnknownDependency)
}

func TestBuild_Cycle(t *testing.T) {
	b := graph.NewBuilder()
	b.AddNode("start", nil, noop)
	b.AddNode("a", []string{"start", "b"}, noop)
	b.AddNode("b", []string{"a"}, noop)
	b.AddNode("end", []string{"b"}, noop)

	_, err := b.Build()
	assert.ErrorIs(t, err, graph.ErrCycle)
}

func TestBuild_SelfCycle(t *testing.T) {
	b := graph.NewBuilder()
	b.AddNode("start", nil, noop)
	b.AddNode("loop", []string{"start", "loop"}, noop)

	_, err := b.Build()
	assert.ErrorIs(t, err, graph.ErrCycle)
}

func TestBuild_AmbiguousEntry(t *testing.T) {
	b := graph.NewBuilder()
	b.AddNode("one", nil, noop)
	b.AddNode("two", nil, noop)
	b.AddNode("end", []string{"one", "two"}, noop)

	_, err := b.Build()
	assert.ErrorIs(t, err, graph.ErrAmbiguousEntry)
}

func TestBuild_AmbiguousTerminal(t *testing.T) {
	b := graph.NewBuilder()
	b.AddNode("start", nil, noop)
	b.AddNode("left", []string{"start"}, noop)
	b.AddNode("right", []string{"start"}, noop)

	_, err := b.Build()
	assert.ErrorIs(t, err, graph.ErrAmbiguousTerminal)
}

func TestBuild_SingleNode(t *testing.T) {
	b := graph.NewBuilder()
	b.AddNode("only", nil, noop)

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "only", g.Entry())
	assert.Equal(t, "only", g.Terminal())
}

type staticNode struct {
	name string
	deps []string
}

func (n *staticNode) Name() string           { return n.name }
func (n *staticNode) Dependencies() []string { return n.deps }

func (n *staticNode) Invoke(ctx context.Context, state *graph.State) (graph.Update, error) {
	return graph.Update{n.name: "done"}, nil
}

func TestBuild_NodeInterface(t *testing.T) {
	b := graph.NewBuilder()
	b.Add(&staticNode{name: "start"})
	b.Add(&staticNode{name: "end", deps: []string{"start"}})

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"end"}, g.Dependents("start"))
}

func TestExporter_Mermaid(t *testing.T) {
	b := graph.NewBuilder()
	b.AddNode("start", nil, noop)
	b.AddNode("web", []string{"start"}, noop)
	b.AddNode("synthesize", []string{"web"}, noop)

	g, err := b.Build()
	require.NoError(t, err)

	out := graph.NewExporter(g).DrawMermaid()
	assert.Contains(t, out, "flowchart TD")
	assert.Contains(t, out, "start --> web")
	assert.Contains(t, out, "web --> synthesize")
}

func TestExporter_DOT(t *testing.T) {
	b := graph.NewBuilder()
	b.AddNode("start", nil, noop)
	b.AddNode("end", []string{"start"}, noop)

	g, err := b.Build()
	require.NoError(t, err)

	out := graph.NewExporter(g).DrawDOT()
	assert.Contains(t, out, "digraph G {")
	assert.Contains(t, out, "start -> end;")
}
