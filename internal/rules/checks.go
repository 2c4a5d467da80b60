package rules

import (
	"strings"

	"github.com/mvp-joe/archlint/internal/graph"
	"github.com/mvp-joe/archlint/internal/model"
)

// allowedSuccessors is the inward dependency order. Only the outer layers
// may reach code that no layer mapping claims.
var allowedSuccessors = map[model.Layer]map[model.Layer]bool{
	model.LayerDomain: {
		model.LayerDomain: true,
		model.LayerShared: true,
	},
	model.LayerApplication: {
		model.LayerApplication: true,
		model.LayerDomain:      true,
		model.LayerShared:      true,
	},
	model.LayerInfrastructure: {
		model.LayerInfrastructure: true,
		model.LayerApplication:    true,
		model.LayerDomain:         true,
		model.LayerShared:         true,
		model.LayerUnclassified:   true,
	},
	model.LayerInterface: {
		model.LayerInterface:    true,
		model.LayerApplication:  true,
		model.LayerDomain:       true,
		model.LayerShared:       true,
		model.LayerUnclassified: true,
	},
	model.LayerShared: {
		model.LayerShared: true,
	},
}

// Allowed reports whether a dependency from one layer to another respects the
// inward order. Unclassified sources are unconstrained; an unclassified
// target is outside domain, application and shared.
func Allowed(from, to model.Layer) bool {
	if from == model.LayerUnclassified {
		return true
	}
	return allowedSuccessors[from][to]
}

// evalLayerDirection checks every edge regardless of its kind. The scope's
// layer predicate applies to the source layer; its kind predicate to the
// source symbol, so module import edges only count for unscoped rules.
func evalLayerDirection(r *Rule, in Input, emit func(model.Violation)) {
	g := in.Graph
	for _, e := range g.Edges() {
		from, to := g.EdgeLayers(e)
		if from == model.LayerUnclassified || !r.LayerInScope(from) {
			continue
		}

		src, ok := g.Node(e.From)
		if !ok {
			continue
		}
		if len(r.kinds) > 0 && (src.Kind != graph.NodeSymbol || !r.kinds[src.Symbol]) {
			continue
		}

		dst, _ := g.Node(e.To)
		data := MessageData{
			Symbol:      e.From,
			Kind:        src.Symbol.String(),
			Layer:       from.String(),
			TargetLayer: to.String(),
			Target:      e.To,
			Detail:      string(e.Kind),
		}

		if dst.External() {
			if r.externalLayers[from] && !r.allowedExternal(e.To) {
				data.TargetLayer = "external"
				emit(r.violation(e.Unit, e.Line, data))
			}
			continue
		}
		if !Allowed(from, to) {
			emit(r.violation(e.Unit, e.Line, data))
		}
	}
}

func (r *Rule) allowedExternal(target string) bool {
	for _, g := range r.externalAllow {
		if g.Match(target) {
			return true
		}
	}
	return false
}

// eachSymbol visits every in-scope symbol in unit then declaration order.
func eachSymbol(r *Rule, in Input, fn func(unit model.SourceUnit, sym model.Symbol)) {
	for _, unit := range in.Graph.Units() {
		for _, sym := range unit.Symbols {
			if r.InScope(sym.Kind, unit.Layer) {
				fn(unit, sym)
			}
		}
	}
}

func symbolData(unit model.SourceUnit, sym model.Symbol) MessageData {
	return MessageData{
		Symbol: sym.Name,
		Kind:   sym.Kind.String(),
		Layer:  unit.Layer.String(),
	}
}

func evalMaxSideEffects(r *Rule, in Input, emit func(model.Violation)) {
	limit := r.params.(*sideEffectParams).Max
	eachSymbol(r, in, func(unit model.SourceUnit, sym model.Symbol) {
		if sym.SideEffects > limit {
			data := symbolData(unit, sym)
			data.Value = float64(sym.SideEffects)
			data.Limit = float64(limit)
			emit(r.violation(unit.Path, sym.Line, data))
		}
	})
}

func evalMaxParams(r *Rule, in Input, emit func(model.Violation)) {
	p := r.params.(*maxParamsParams)
	eachSymbol(r, in, func(unit model.SourceUnit, sym model.Symbol) {
		if p.ComponentsOnly && !sym.Flags.Has(model.FlagComponent) {
			return
		}
		if sym.Params > p.Max {
			data := symbolData(unit, sym)
			data.Value = float64(sym.Params)
			data.Limit = float64(p.Max)
			emit(r.violation(unit.Path, sym.Line, data))
		}
	})
}

func flagCheck(flag model.Flags) evalFunc {
	return func(r *Rule, in Input, emit func(model.Violation)) {
		eachSymbol(r, in, func(unit model.SourceUnit, sym model.Symbol) {
			if sym.Flags.Has(flag) {
				emit(r.violation(unit.Path, sym.Line, symbolData(unit, sym)))
			}
		})
	}
}

func evalPreferImmutable(r *Rule, in Input, emit func(model.Violation)) {
	eachSymbol(r, in, func(unit model.SourceUnit, sym model.Symbol) {
		if sym.Kind != model.KindTypeDeclaration && sym.Kind != model.KindServiceImplementation {
			return
		}
		if sym.Flags.Has(model.FlagImmutable) || sym.Flags.Has(model.FlagSealedVariant) {
			return
		}
		emit(r.violation(unit.Path, sym.Line, symbolData(unit, sym)))
	})
}

func evalNamePattern(r *Rule, in Input, emit func(model.Violation)) {
	eachSymbol(r, in, func(unit model.SourceUnit, sym model.Symbol) {
		if !r.pattern.MatchString(sym.ShortName()) {
			data := symbolData(unit, sym)
			data.Detail = r.pattern.String()
			emit(r.violation(unit.Path, sym.Line, data))
		}
	})
}

func evalHookPrefix(r *Rule, in Input, emit func(model.Violation)) {
	prefix := r.params.(*hookPrefixParams).Prefix
	eachSymbol(r, in, func(unit model.SourceUnit, sym model.Symbol) {
		if sym.Kind != model.KindHook || strings.HasPrefix(sym.ShortName(), prefix) {
			return
		}
		data := symbolData(unit, sym)
		data.Detail = prefix
		emit(r.violation(unit.Path, sym.Line, data))
	})
}

// evalServiceImplLayer treats Go types with an inferred implements edge as
// service implementations too.
func evalServiceImplLayer(r *Rule, in Input, emit func(model.Violation)) {
	for _, unit := range in.Graph.Units() {
		for _, sym := range unit.Symbols {
			kind := sym.Kind
			if kind == model.KindTypeDeclaration && unit.Language == model.LanguageGo && in.Graph.Implements(sym.FQN) {
				kind = model.KindServiceImplementation
			}
			if kind != model.KindServiceImplementation || !r.InScope(kind, unit.Layer) {
				continue
			}
			if unit.Layer == r.layer {
				continue
			}
			data := symbolData(unit, sym)
			data.Kind = kind.String()
			data.Detail = r.layer.String()
			emit(r.violation(unit.Path, sym.Line, data))
		}
	}
}

// evalCoverage turns the coverage checker's findings into violations. Without
// coverage data there is nothing to check.
func evalCoverage(r *Rule, in Input, emit func(model.Violation)) {
	if in.Coverage == nil {
		return
	}
	for _, f := range in.Coverage.Findings {
		if !r.LayerInScope(f.Layer) {
			continue
		}
		data := MessageData{
			Layer:  f.Layer.String(),
			Detail: f.Metric,
			Value:  f.Ratio,
			Limit:  f.Min,
		}
		if f.Missing {
			data.Detail = "missing"
		}
		emit(r.violation(f.Unit, 0, data))
	}
}
