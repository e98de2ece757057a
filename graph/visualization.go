package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Exporter renders a validated graph in diagram formats.
type Exporter struct {
	graph *Graph
}

// NewExporter creates an exporter for the given graph.
func NewExporter(g *Graph) *Exporter {
	return &Exporter{graph: g}
}

// MermaidOptions defines configuration for Mermaid diagram generation.
type MermaidOptions struct {
	// Direction of the flowchart (e.g. "TD", "LR")
	Direction string
}

// DrawMermaid generates a Mermaid flowchart of the graph, top-down.
func (ex *Exporter) DrawMermaid() string {
	return ex.DrawMermaidWithOptions(MermaidOptions{Direction: "TD"})
}

// DrawMermaidWithOptions generates a Mermaid flowchart with custom options.
func (ex *Exporter) DrawMermaidWithOptions(opts MermaidOptions) string {
	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("flowchart %s\n", direction))

	sb.WriteString(fmt.Sprintf("    %s[[\"%s\"]]\n", ex.graph.entry, ex.graph.entry))
	for _, name := range ex.sortedNodes() {
		if name == ex.graph.entry || name == ex.graph.terminal {
			continue
		}
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", name, name))
	}
	if ex.graph.terminal != ex.graph.entry {
		sb.WriteString(fmt.Sprintf("    %s([\"%s\"])\n", ex.graph.terminal, ex.graph.terminal))
	}

	for _, edge := range ex.edges() {
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", edge[0], edge[1]))
	}

	sb.WriteString(fmt.Sprintf("    style %s fill:#90EE90\n", ex.graph.entry))
	sb.WriteString(fmt.Sprintf("    style %s fill:#FFB6C1\n", ex.graph.terminal))
	return sb.String()
}

// DrawDOT generates a DOT (Graphviz) representation of the graph.
func (ex *Exporter) DrawDOT() string {
	var sb strings.Builder
	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TD;\n")
	sb.WriteString("    node [shape=box];\n")
	sb.WriteString(fmt.Sprintf("    %s [style=filled, fillcolor=lightgreen];\n", ex.graph.entry))
	sb.WriteString(fmt.Sprintf("    %s [style=filled, fillcolor=lightpink];\n", ex.graph.terminal))
	for _, edge := range ex.edges() {
		sb.WriteString(fmt.Sprintf("    %s -> %s;\n", edge[0], edge[1]))
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (ex *Exporter) sortedNodes() []string {
	names := ex.graph.Nodes()
	sort.Strings(names)
	return names
}

// edges lists dependency edges as [from, to] pairs in deterministic order.
func (ex *Exporter) edges() [][2]string {
	var edges [][2]string
	for _, name := range ex.sortedNodes() {
		deps := ex.graph.nodes[name].Dependencies()
		sorted := make([]string, len(deps))
		copy(sorted, deps)
		sort.Strings(sorted)
		for _, dep := range sorted {
			edges = append(edges, [2]string{dep, name})
		}
	}
	return edges
}
