package rules

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/archlint/internal/config"
	"github.com/mvp-joe/archlint/internal/coverage"
	"github.com/mvp-joe/archlint/internal/graph"
	"github.com/mvp-joe/archlint/internal/model"
	"github.com/mvp-joe/archlint/internal/testutil"
)

// Test Plan for Engine:
// - Layering: domain->infrastructure is an error, interface->application is allowed
// - Layering skips unclassified sources and external targets unless opted in;
//   inner layers may not reach unclassified code
// - Anti-pattern checks: side effects, params, components only, flags, immutability
// - Naming checks: pattern, hook prefix, service implementation layer (incl. inferred)
// - Coverage findings become violations; no coverage data means none
// - Rule independence: {R1,R2} equals {R1} union {R2}
// - Cancelled context yields no violations and the context error

func unit(path string, layer model.Layer, module string, syms ...model.Symbol) model.SourceUnit {
	for i := range syms {
		syms[i].Layer = layer
		if syms[i].FQN == "" {
			syms[i].FQN = module + "." + syms[i].Name
		}
	}
	return model.SourceUnit{Path: path, Language: model.LanguageGo, Module: module, Layer: layer, Symbols: syms}
}

func call(target string, line int) model.Reference {
	return model.Reference{Target: target, Kind: model.EdgeCalls, Line: line, Qualified: true}
}

func buildGraph(t *testing.T, units ...model.SourceUnit) *graph.Graph {
	t.Helper()
	g, err := graph.NewBuilder(testutil.NewTestLogger(t)).Build(context.Background(), units)
	require.NoError(t, err)
	return g
}

func evaluate(t *testing.T, defs []config.RuleDefinition, in Input) []model.Violation {
	t.Helper()
	rs, err := Compile(defs)
	require.NoError(t, err)
	vs, err := NewEngine(rs, 0, testutil.NewTestLogger(t)).Evaluate(context.Background(), in)
	require.NoError(t, err)
	return vs
}

func layeredGraph(t *testing.T) *graph.Graph {
	return buildGraph(t,
		unit("internal/domain/order.go", model.LayerDomain, "internal/domain",
			model.Symbol{Kind: model.KindFunction, Name: "Place", Line: 4,
				References: []model.Reference{call("internal/infrastructure.Save", 6), call("fmt.Errorf", 7)}},
		),
		unit("internal/infrastructure/db.go", model.LayerInfrastructure, "internal/infrastructure",
			model.Symbol{Kind: model.KindFunction, Name: "Save", Line: 3},
		),
		unit("internal/application/svc.go", model.LayerApplication, "internal/application",
			model.Symbol{Kind: model.KindFunction, Name: "Checkout", Line: 3},
		),
		unit("internal/interface/http.go", model.LayerInterface, "internal/interface",
			model.Symbol{Kind: model.KindFunction, Name: "Handle", Line: 9,
				References: []model.Reference{call("internal/application.Checkout", 11)}},
		),
		unit("cmd/main.go", model.LayerUnclassified, "cmd",
			model.Symbol{Kind: model.KindFunction, Name: "main", Line: 1,
				References: []model.Reference{call("internal/infrastructure.Save", 2)}},
		),
	)
}

func TestEngine_LayeringCorrectness(t *testing.T) {
	t.Parallel()
	vs := evaluate(t, []config.RuleDefinition{{ID: "layers", Check: CheckLayerDirection}}, Input{Graph: layeredGraph(t)})

	require.Len(t, vs, 1)
	v := vs[0]
	assert.Equal(t, "layers", v.RuleID)
	assert.Equal(t, model.SeverityError, v.Severity)
	assert.Equal(t, "internal/domain/order.go", v.Unit)
	assert.Equal(t, 6, v.Line)
	assert.Equal(t, "internal/domain.Place", v.Symbol)
	assert.Equal(t, "domain must not depend on infrastructure: internal/domain.Place calls internal/infrastructure.Save", v.Message)
}

func TestEngine_LayeringEdgeKinds(t *testing.T) {
	t.Parallel()
	domain := unit("internal/domain/order.go", model.LayerDomain, "internal/domain",
		model.Symbol{Kind: model.KindServiceImplementation, Name: "Order", Line: 2,
			References: []model.Reference{{Target: "internal/application.Port", Kind: model.EdgeImplements, Line: 2, Qualified: true}}},
	)
	domain.Imports = []model.Import{{Path: "example.com/x/internal/application", Line: 1}}
	app := unit("internal/application/port.go", model.LayerApplication, "internal/application",
		model.Symbol{Kind: model.KindServiceInterface, Name: "Port", Line: 1},
	)

	vs := evaluate(t, []config.RuleDefinition{{ID: "layers", Check: CheckLayerDirection}}, Input{Graph: buildGraph(t, domain, app)})
	require.Len(t, vs, 2, "imports and implements are both checked")
	assert.Equal(t, 1, vs[0].Line)
	assert.Equal(t, "internal/domain", vs[0].Symbol)
	assert.Equal(t, 2, vs[1].Line)
}

func TestEngine_LayeringUnclassifiedTarget(t *testing.T) {
	t.Parallel()
	g := buildGraph(t,
		unit("internal/domain/order.go", model.LayerDomain, "internal/domain",
			model.Symbol{Kind: model.KindFunction, Name: "Place", Line: 4,
				References: []model.Reference{call("legacy/db.Save", 5)}},
		),
		unit("internal/infrastructure/repo.go", model.LayerInfrastructure, "internal/infrastructure",
			model.Symbol{Kind: model.KindFunction, Name: "Load", Line: 2,
				References: []model.Reference{call("legacy/db.Save", 3)}},
		),
		unit("legacy/db/db.go", model.LayerUnclassified, "legacy/db",
			model.Symbol{Kind: model.KindFunction, Name: "Save", Line: 1,
				References: []model.Reference{call("internal/domain.Place", 2)}},
		),
	)

	vs := evaluate(t, []config.RuleDefinition{{ID: "layers", Check: CheckLayerDirection}}, Input{Graph: g})
	require.Len(t, vs, 1, "infrastructure may reach unclassified code and unclassified code is unchecked")
	assert.Equal(t, "internal/domain/order.go", vs[0].Unit)
	assert.Equal(t, 5, vs[0].Line)
	assert.Equal(t, "domain must not depend on unclassified: internal/domain.Place calls legacy/db.Save", vs[0].Message)
}

func TestEngine_LayeringExternal(t *testing.T) {
	t.Parallel()
	vs := evaluate(t, []config.RuleDefinition{{
		ID:    "pure-domain",
		Check: CheckLayerDirection,
		Params: map[string]any{
			"externalLayers": []any{"domain"},
			"externalAllow":  []any{"errors.*"},
		},
	}}, Input{Graph: layeredGraph(t)})

	require.Len(t, vs, 2)
	assert.Equal(t, 7, vs[1].Line)
	assert.Contains(t, vs[1].Message, "must not depend on external")
}

func TestEngine_AntiPatterns(t *testing.T) {
	t.Parallel()
	g := buildGraph(t,
		unit("web/src/interface/Card.tsx", model.LayerInterface, "web/src/interface/Card",
			model.Symbol{Kind: model.KindFunction, Name: "Card", Params: 7, Flags: model.FlagComponent, Line: 3},
			model.Symbol{Kind: model.KindFunction, Name: "format", Params: 7, Line: 20},
			model.Symbol{Kind: model.KindHook, Name: "loadOrders", SideEffects: 12, Flags: model.FlagRawAsyncCall, Line: 30},
		),
		unit("internal/domain/order.go", model.LayerDomain, "internal/domain",
			model.Symbol{Kind: model.KindTypeDeclaration, Name: "Order", Line: 5},
			model.Symbol{Kind: model.KindTypeDeclaration, Name: "Money", Flags: model.FlagImmutable, Line: 9},
			model.Symbol{Kind: model.KindTypeDeclaration, Name: "Status", Flags: model.FlagSealedVariant, Line: 12},
			model.Symbol{Kind: model.KindFunction, Name: "Find", Flags: model.FlagOptionalWrapper, Line: 15},
		),
	)

	vs := evaluate(t, []config.RuleDefinition{
		{ID: "effects", Check: CheckMaxSideEffects, Params: map[string]any{"max": 10}},
		{ID: "component-params", Check: CheckMaxParams, Params: map[string]any{"max": 5, "componentsOnly": true}},
		{ID: "raw", Check: CheckRawAsyncCall},
		{ID: "optional", Check: CheckOptionalWrapper},
		{ID: "immutable", Check: CheckPreferImmutable, Layers: []string{"domain"}},
	}, Input{Graph: g})

	got := map[string][]string{}
	for _, v := range vs {
		got[v.RuleID] = append(got[v.RuleID], v.Symbol)
	}
	assert.Equal(t, map[string][]string{
		"effects":          {"loadOrders"},
		"component-params": {"Card"},
		"raw":              {"loadOrders"},
		"optional":         {"Find"},
		"immutable":        {"Order"},
	}, got)

	for _, v := range vs {
		if v.RuleID == "effects" {
			assert.Equal(t, "loadOrders has 12 distinct side-effecting calls (max 10)", v.Message)
			assert.Equal(t, model.SeverityWarn, v.Severity)
		}
	}
}

func TestEngine_Naming(t *testing.T) {
	t.Parallel()
	port := unit("internal/application/port.go", model.LayerApplication, "internal/application",
		model.Symbol{Kind: model.KindServiceInterface, Name: "Store", Line: 2,
			Methods: []model.MethodSig{{Name: "Get", Params: 1, Returns: 2}}},
		model.Symbol{Kind: model.KindTypeDeclaration, Name: "memStore", Line: 8},
		model.Symbol{Kind: model.KindFunction, Name: "memStore.Get", Owner: "internal/application.memStore", Params: 1, Returns: 2, Line: 10},
	)
	infra := unit("internal/infrastructure/pg.go", model.LayerInfrastructure, "internal/infrastructure",
		model.Symbol{Kind: model.KindServiceImplementation, Name: "pgStore", Line: 4},
	)
	hooks := unit("web/src/shared/hooks.ts", model.LayerShared, "web/src/shared/hooks",
		model.Symbol{Kind: model.KindHook, Name: "useOrders", Line: 1},
		model.Symbol{Kind: model.KindHook, Name: "orders", Line: 5},
	)

	vs := evaluate(t, []config.RuleDefinition{
		{ID: "impl-layer", Check: CheckServiceImplLayer, Kinds: []string{"service-implementation"}},
		{ID: "hook-prefix", Check: CheckHookPrefix},
		{ID: "exported", Check: CheckNamePattern, Layers: []string{"infrastructure"}, Params: map[string]any{"pattern": "^[A-Z]"}},
	}, Input{Graph: buildGraph(t, port, infra, hooks)})

	require.Len(t, vs, 3)
	assert.Equal(t, "impl-layer", vs[0].RuleID)
	assert.Equal(t, "memStore", vs[0].Symbol, "inferred implementation outside infrastructure")
	assert.Equal(t, "service implementation memStore belongs in the infrastructure layer, not application", vs[0].Message)
	assert.Equal(t, "hook-prefix", vs[1].RuleID)
	assert.Equal(t, "orders", vs[1].Symbol)
	assert.Equal(t, `hook orders must begin with "use"`, vs[1].Message)
	assert.Equal(t, "exported", vs[2].RuleID)
	assert.Equal(t, "pgStore", vs[2].Symbol)
}

func TestEngine_Coverage(t *testing.T) {
	t.Parallel()
	order := unit("internal/domain/order.go", model.LayerDomain, "internal/domain",
		model.Symbol{Kind: model.KindFunction, Name: "Place", Statements: 4, Branches: 1, Line: 3},
	)
	g := buildGraph(t, order)
	defs := []config.RuleDefinition{{ID: "coverage", Check: CheckCoverageThreshold}}

	assert.Empty(t, evaluate(t, defs, Input{Graph: g}), "no coverage document")

	res := coverage.NewChecker(coverage.Thresholds{Domain: 0.9, Application: 0.9}).Check(
		g.Units(), []model.CoverageRecord{{Path: "internal/domain/order.go", LineRatio: 0.5}})
	vs := evaluate(t, defs, Input{Graph: g, Coverage: &res})
	require.Len(t, vs, 1)
	assert.Equal(t, model.SeverityError, vs[0].Severity)
	assert.Equal(t, "internal/domain/order.go", vs[0].Unit)
	assert.Equal(t, "line coverage 50.0% below 90.0% minimum for the domain layer", vs[0].Message)
}

func TestEngine_RuleIndependence(t *testing.T) {
	t.Parallel()
	g := layeredGraph(t)
	r1 := config.RuleDefinition{ID: "layers", Check: CheckLayerDirection}
	r2 := config.RuleDefinition{ID: "names", Check: CheckNamePattern, Params: map[string]any{"pattern": "^[A-Z]"}}

	both := evaluate(t, []config.RuleDefinition{r1, r2}, Input{Graph: g})
	union := append(evaluate(t, []config.RuleDefinition{r1}, Input{Graph: g}),
		evaluate(t, []config.RuleDefinition{r2}, Input{Graph: g})...)
	reversed := evaluate(t, []config.RuleDefinition{r2, r1}, Input{Graph: g})

	sortViolations(both)
	sortViolations(union)
	sortViolations(reversed)
	assert.Equal(t, union, both)
	assert.Equal(t, both, reversed)
	assert.Len(t, both, 2)
}

func sortViolations(vs []model.Violation) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].Unit != vs[j].Unit {
			return vs[i].Unit < vs[j].Unit
		}
		if vs[i].Line != vs[j].Line {
			return vs[i].Line < vs[j].Line
		}
		return vs[i].RuleID < vs[j].RuleID
	})
}

func TestEngine_Cancelled(t *testing.T) {
	t.Parallel()
	rs, err := Compile(config.DefaultRuleSet())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vs, err := NewEngine(rs, 2, testutil.NewTestLogger(t)).Evaluate(ctx, Input{Graph: layeredGraph(t)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, vs)
}

func TestAllowed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to model.Layer
		want     bool
	}{
		{model.LayerInterface, model.LayerApplication, true},
		{model.LayerInterface, model.LayerDomain, true},
		{model.LayerInterface, model.LayerInfrastructure, false},
		{model.LayerInfrastructure, model.LayerApplication, true},
		{model.LayerApplication, model.LayerDomain, true},
		{model.LayerApplication, model.LayerInfrastructure, false},
		{model.LayerDomain, model.LayerShared, true},
		{model.LayerDomain, model.LayerApplication, false},
		{model.LayerShared, model.LayerDomain, false},
		{model.LayerDomain, model.LayerUnclassified, false},
		{model.LayerApplication, model.LayerUnclassified, false},
		{model.LayerShared, model.LayerUnclassified, false},
		{model.LayerInfrastructure, model.LayerUnclassified, true},
		{model.LayerInterface, model.LayerUnclassified, true},
		{model.LayerUnclassified, model.LayerDomain, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Allowed(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
