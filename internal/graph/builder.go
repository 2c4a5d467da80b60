package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	dgraph "github.com/dominikbraun/graph"

	"github.com/mvp-joe/archlint/internal/model"
)

// Builder merges source units into a Graph. It runs once per scan, after
// every unit has been extracted.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a new graph builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

type edgeKey struct {
	from, to, unit string
	kind           model.EdgeKind
}

// build holds the mutable state of one Build call.
type build struct {
	logger  *slog.Logger
	nodes   map[string]*Node
	owners  map[string]string // symbol FQN -> declaring unit path
	edges   map[edgeKey]model.Edge
	dropped int
}

// Build creates the graph for a complete set of units. Units are processed in
// path order so the result does not depend on the order they were supplied in.
func (b *Builder) Build(ctx context.Context, units []model.SourceUnit) (*Graph, error) {
	sorted := make([]model.SourceUnit, len(units))
	copy(sorted, units)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	st := &build{
		logger: b.logger,
		nodes:  make(map[string]*Node),
		owners: make(map[string]string),
		edges:  make(map[edgeKey]model.Edge),
	}

	// Pass 1: declare module and symbol nodes.
	for i := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 && sorted[i].Path == sorted[i-1].Path {
			return nil, fmt.Errorf("%w: unit %s listed twice", ErrDuplicateSymbol, sorted[i].Path)
		}
		if err := st.declare(&sorted[i]); err != nil {
			return nil, err
		}
	}

	// Pass 2: resolve references and imports.
	for i := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st.connect(&sorted[i])
	}

	// Pass 3: Go structural implements.
	inferred := newInterfaceMatcher(sorted).inferImplementations()
	for _, e := range inferred {
		st.addEdge(e)
	}

	g, err := st.finish(sorted)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("graph built",
		"units", len(sorted),
		"nodes", len(g.nodes),
		"edges", len(g.edges),
		"inferred_implements", len(inferred),
		"self_edges_dropped", st.dropped)
	return g, nil
}

func (st *build) declare(unit *model.SourceUnit) error {
	if unit.Module != "" {
		if _, exists := st.nodes[unit.Module]; !exists {
			st.nodes[unit.Module] = &Node{
				ID:    unit.Module,
				Kind:  NodeModule,
				Layer: unit.Layer,
				Unit:  unit.Path,
			}
		}
	}

	for _, sym := range unit.Symbols {
		if prev, exists := st.owners[sym.FQN]; exists {
			// Declaration merging lets a TypeScript file declare a name twice.
			if prev == unit.Path && isTypeScript(unit.Language) {
				continue
			}
			return fmt.Errorf("%w: %s declared in %s and %s", ErrDuplicateSymbol, sym.FQN, prev, unit.Path)
		}
		st.owners[sym.FQN] = unit.Path

		if n, exists := st.nodes[sym.FQN]; exists && n.Kind == NodeModule {
			st.logger.Debug("symbol shadows module node", "id", sym.FQN, "unit", unit.Path)
		}
		st.nodes[sym.FQN] = &Node{
			ID:     sym.FQN,
			Kind:   NodeSymbol,
			Symbol: sym.Kind,
			Layer:  unit.Layer,
			Unit:   unit.Path,
			Line:   sym.Line,
		}
	}
	return nil
}

func isTypeScript(lang model.Language) bool {
	return lang == model.LanguageTypeScript || lang == model.LanguageTSX
}

func (st *build) connect(unit *model.SourceUnit) {
	if unit.Module != "" {
		for _, imp := range unit.Imports {
			st.addEdge(model.Edge{
				From: unit.Module,
				To:   st.resolve(imp.Path),
				Kind: model.EdgeImports,
				Unit: unit.Path,
				Line: imp.Line,
			})
		}
	}

	for _, sym := range unit.Symbols {
		for _, ref := range sym.References {
			// Calls through local values cannot be resolved without types.
			if !ref.Qualified {
				continue
			}
			st.addEdge(model.Edge{
				From: sym.FQN,
				To:   st.resolve(ref.Target),
				Kind: ref.Kind,
				Unit: unit.Path,
				Line: ref.Line,
			})
		}
	}
}

// resolve maps a reference target to a node ID: an exact match first, then
// the longest suffix obtained by dropping leading path segments, so that
// "example.com/shop/internal/orders.Save" finds "internal/orders.Save".
// Suffixes never land on external nodes. Anything else becomes one.
func (st *build) resolve(target string) string {
	if _, ok := st.nodes[target]; ok {
		return target
	}
	for rest := target; ; {
		i := strings.Index(rest, "/")
		if i < 0 {
			break
		}
		rest = rest[i+1:]
		if n, ok := st.nodes[rest]; ok && n.Kind != NodeExternal {
			return rest
		}
	}

	st.nodes[target] = &Node{
		ID:    target,
		Kind:  NodeExternal,
		Layer: model.LayerUnclassified,
	}
	return target
}

func (st *build) addEdge(e model.Edge) {
	if e.From == e.To {
		st.dropped++
		st.logger.Warn("dropping self-edge", "node", e.From, "kind", e.Kind, "unit", e.Unit, "line", e.Line)
		return
	}
	key := edgeKey{from: e.From, to: e.To, unit: e.Unit, kind: e.Kind}
	if prev, exists := st.edges[key]; exists && prev.Line <= e.Line {
		return
	}
	st.edges[key] = e
}

func (st *build) finish(units []model.SourceUnit) (*Graph, error) {
	g := &Graph{
		nodes:     make(map[string]Node, len(st.nodes)),
		units:     units,
		unitIndex: make(map[string]int, len(units)),
		outgoing:  make(map[string][]model.Edge),
	}
	for i, u := range units {
		g.unitIndex[u.Path] = i
	}

	ids := make([]string, 0, len(st.nodes))
	for id := range st.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		g.nodes[id] = *st.nodes[id]
		g.order = append(g.order, id)
	}

	g.edges = make([]model.Edge, 0, len(st.edges))
	for _, e := range st.edges {
		g.edges = append(g.edges, e)
	}
	sortEdges(g.edges)

	implements := dgraph.New(dgraph.StringHash, dgraph.Directed(), dgraph.PreventCycles())
	for _, e := range g.edges {
		g.outgoing[e.From] = append(g.outgoing[e.From], e)

		if e.Kind != model.EdgeImplements {
			continue
		}
		for _, id := range []string{e.From, e.To} {
			if err := implements.AddVertex(id); err != nil && !errors.Is(err, dgraph.ErrVertexAlreadyExists) {
				return nil, fmt.Errorf("failed to add node %s: %w", id, err)
			}
		}
		err := implements.AddEdge(e.From, e.To)
		switch {
		case errors.Is(err, dgraph.ErrEdgeCreatesCycle):
			return nil, fmt.Errorf("%w: %s -> %s (%s:%d)", ErrImplementsCycle, e.From, e.To, e.Unit, e.Line)
		case err != nil && !errors.Is(err, dgraph.ErrEdgeAlreadyExists):
			return nil, fmt.Errorf("failed to add edge %s -> %s: %w", e.From, e.To, err)
		}
	}

	return g, nil
}

func sortEdges(edges []model.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Kind < b.Kind
	})
}
