package graph

import (
	"sort"

	"github.com/mvp-joe/archlint/internal/model"
)

// interfaceMatcher infers Go implements edges via method-set matching.
//
// Go has no implements clause, so a type implements an interface when its
// method set covers the interface's. Matching is by name, parameter count
// and result count only. Limitations of this signature-based approach:
//
//   - Parameter and result types are not compared, so a method with the right
//     arity but different types still matches.
//
//   - Embedded interfaces are not flattened; only declared methods count.
//
//   - Pointer and value receivers are treated alike.
type interfaceMatcher struct {
	interfaces []*model.Symbol
	types      []*model.Symbol
	methods    map[string][]model.MethodSig // owner FQN -> methods
	units      map[string]string            // type FQN -> unit path
}

func newInterfaceMatcher(units []model.SourceUnit) *interfaceMatcher {
	m := &interfaceMatcher{
		methods: make(map[string][]model.MethodSig),
		units:   make(map[string]string),
	}
	for ui := range units {
		unit := &units[ui]
		if unit.Language != model.LanguageGo {
			continue
		}
		for si := range unit.Symbols {
			sym := &unit.Symbols[si]
			switch {
			case sym.Kind == model.KindServiceInterface && len(sym.Methods) > 0:
				m.interfaces = append(m.interfaces, sym)
			case sym.Owner != "":
				m.methods[sym.Owner] = append(m.methods[sym.Owner], model.MethodSig{
					Name:    sym.ShortName(),
					Params:  sym.Params,
					Returns: sym.Returns,
				})
			case sym.Kind == model.KindTypeDeclaration || sym.Kind == model.KindServiceImplementation:
				if !sym.Flags.Has(model.FlagSealedVariant) {
					m.types = append(m.types, sym)
					m.units[sym.FQN] = unit.Path
				}
			}
		}
	}
	return m
}

// inferImplementations finds all type->interface implementation relationships
// and returns them as implements edges, ordered by type then interface.
func (m *interfaceMatcher) inferImplementations() []model.Edge {
	var edges []model.Edge

	for _, typ := range m.types {
		methods := m.methods[typ.FQN]
		if len(methods) == 0 {
			continue
		}
		for _, iface := range m.interfaces {
			if typ.FQN == iface.FQN || !implementsInterface(methods, iface.Methods) {
				continue
			}
			edges = append(edges, model.Edge{
				From: typ.FQN,
				To:   iface.FQN,
				Kind: model.EdgeImplements,
				Unit: m.units[typ.FQN],
				Line: typ.Line,
			})
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// implementsInterface checks whether a method set covers an interface.
func implementsInterface(methods, ifaceMethods []model.MethodSig) bool {
	byName := make(map[string]model.MethodSig, len(methods))
	for _, method := range methods {
		byName[method.Name] = method
	}

	for _, want := range ifaceMethods {
		have, exists := byName[want.Name]
		if !exists {
			return false
		}
		if have.Params != want.Params || have.Returns != want.Returns {
			return false
		}
	}
	return true
}
