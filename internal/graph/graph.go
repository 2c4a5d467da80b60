// Package graph builds the whole-program dependency graph.
//
// A Graph is read-only once Build returns: every accessor returns copies, so
// any number of goroutines may share one.
package graph

import (
	"github.com/mvp-joe/archlint/internal/model"
)

// Graph is the dependency graph of one scan.
type Graph struct {
	nodes     map[string]Node
	order     []string // node IDs, sorted
	edges     []model.Edge
	outgoing  map[string][]model.Edge
	units     []model.SourceUnit
	unitIndex map[string]int
}

// Nodes returns every node ordered by ID.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edges returns every edge ordered by unit, line, source, target and kind.
func (g *Graph) Edges() []model.Edge {
	return append([]model.Edge(nil), g.edges...)
}

// Successors returns the outgoing edges of a node.
func (g *Graph) Successors(id string) []model.Edge {
	return append([]model.Edge(nil), g.outgoing[id]...)
}

// Implements reports whether a node has an outgoing implements edge, whether
// declared or inferred from its method set.
func (g *Graph) Implements(id string) bool {
	for _, e := range g.outgoing[id] {
		if e.Kind == model.EdgeImplements {
			return true
		}
	}
	return false
}

// Units returns every unit ordered by path.
func (g *Graph) Units() []model.SourceUnit {
	return append([]model.SourceUnit(nil), g.units...)
}

// Unit returns the unit with the given path.
func (g *Graph) Unit(path string) (model.SourceUnit, bool) {
	i, ok := g.unitIndex[path]
	if !ok {
		return model.SourceUnit{}, false
	}
	return g.units[i], true
}

// EdgeLayers returns the layers an edge connects. The source layer is the
// layer of the unit the edge originates in; the target layer is that of the
// target node, unclassified for external nodes.
func (g *Graph) EdgeLayers(e model.Edge) (from, to model.Layer) {
	if i, ok := g.unitIndex[e.Unit]; ok {
		from = g.units[i].Layer
	}
	if n, ok := g.nodes[e.To]; ok {
		to = n.Layer
	}
	return from, to
}
