// Package extractor classifies front-end syntax into the structural model.
//
// Classification is purely syntactic: every flag and kind is derived from the
// shape of a declaration and the configured name criteria, never from
// executing or type-checking the code.
package extractor

import (
	"fmt"
	"strings"

	"github.com/mvp-joe/archlint/internal/config"
	"github.com/mvp-joe/archlint/internal/model"
)

// Extractor turns a model.SyntaxFile into a model.SourceUnit. It is safe for
// concurrent use once built.
type Extractor struct {
	layers           *LayerMap
	hookPrimitives   *NameSet
	rawAsyncTargets  *NameSet
	clientSymbols    *NameSet
	pureCalls        *NameSet
	optionalWrappers *NameSet
}

// New compiles the layer map and extraction criteria of a configuration.
func New(cfg *config.Config) (*Extractor, error) {
	layers, err := NewLayerMap(cfg.LayerMap)
	if err != nil {
		return nil, fmt.Errorf("%w: layerMap: %v", config.ErrInvalidConfig, err)
	}

	e := &Extractor{layers: layers}
	sets := []struct {
		field    string
		patterns []string
		dst      **NameSet
	}{
		{"extraction.hookPrimitives", cfg.Extraction.HookPrimitives, &e.hookPrimitives},
		{"extraction.rawAsyncTargets", cfg.Extraction.RawAsyncTargets, &e.rawAsyncTargets},
		{"extraction.clientSymbols", cfg.Extraction.ClientSymbols, &e.clientSymbols},
		{"extraction.pureCalls", cfg.Extraction.PureCalls, &e.pureCalls},
		{"extraction.optionalWrappers", cfg.Extraction.OptionalWrappers, &e.optionalWrappers},
	}
	for _, s := range sets {
		set, err := NewNameSet(s.patterns)
		if err != nil {
			return nil, config.NewFieldError(s.field, config.ErrInvalidPattern, "%v", err)
		}
		*s.dst = set
	}
	return e, nil
}

// Layer returns the layer assigned to a unit path.
func (e *Extractor) Layer(path string) model.Layer {
	return e.layers.Layer(path)
}

// Degraded builds the unit for a file that failed to parse: no symbols and a
// single info diagnostic.
func (e *Extractor) Degraded(path string, lang model.Language, cause error) model.SourceUnit {
	return model.SourceUnit{
		Path:     path,
		Language: lang,
		Layer:    e.Layer(path),
		Diagnostics: []model.Diagnostic{{
			Severity: model.SeverityInfo,
			Line:     1,
			Message:  fmt.Sprintf("parse error: %v", cause),
		}},
	}
}

// Extract classifies every declaration of a file.
func (e *Extractor) Extract(file *model.SyntaxFile) model.SourceUnit {
	unit := model.SourceUnit{
		Path:      file.Path,
		Language:  file.Language,
		Module:    file.Module,
		Layer:     e.Layer(file.Path),
		Generated: file.Generated,
		Imports:   append([]model.Import(nil), file.Imports...),
		Symbols:   make([]model.Symbol, 0, len(file.Decls)),
	}

	for _, decl := range file.Decls {
		var sym model.Symbol
		switch decl.Shape {
		case model.ShapeType, model.ShapeInterface:
			sym = e.classifyType(decl)
		case model.ShapeFunc, model.ShapeMethod:
			sym = e.classifyFunction(decl)
		default:
			continue
		}

		sym.Name = decl.Name
		if decl.Receiver != "" {
			sym.Name = decl.Receiver + "." + decl.Name
			sym.Owner = file.Module + "." + decl.Receiver
		}
		sym.FQN = file.Module + "." + sym.Name + decl.Overload
		sym.Layer = unit.Layer
		sym.Line = decl.Line
		sym.EndLine = decl.EndLine
		unit.Symbols = append(unit.Symbols, sym)
	}

	return unit
}

func (e *Extractor) classifyType(decl model.SyntaxDecl) model.Symbol {
	sym := model.Symbol{Kind: model.KindTypeDeclaration}

	switch {
	case decl.Sealed || len(decl.Permits) > 0:
		sym.Flags |= model.FlagSealedVariant
	case decl.Shape == model.ShapeInterface && len(decl.Methods) > 0:
		sym.Kind = model.KindServiceInterface
		sym.Methods = append([]model.MethodSig(nil), decl.Methods...)
	case len(decl.Implements) > 0 && !decl.Record:
		sym.Kind = model.KindServiceImplementation
	}

	if decl.Record || allImmutable(decl.Fields) {
		sym.Flags |= model.FlagImmutable
	}
	for _, f := range decl.Fields {
		if e.optionalWrappers.Match(baseType(f.Type)) {
			sym.Flags |= model.FlagOptionalWrapper
		}
	}

	for _, impl := range decl.Implements {
		sym.References = append(sym.References, model.Reference{
			Target:    impl,
			Kind:      model.EdgeImplements,
			Line:      decl.Line,
			Qualified: true,
		})
	}
	return sym
}

// allImmutable holds vacuously for types without fields.
func allImmutable(fields []model.SyntaxField) bool {
	for _, f := range fields {
		if f.Mutable {
			return false
		}
	}
	return true
}

func (e *Extractor) classifyFunction(decl model.SyntaxDecl) model.Symbol {
	sym := model.Symbol{
		Kind:       model.KindFunction,
		Params:     decl.Params,
		Returns:    decl.Returns,
		Statements: decl.Statements,
		Branches:   decl.Branches,
	}

	switch {
	case decl.IsTest:
		sym.Kind = model.KindTestCase
	case decl.ReturnsMarkup:
		sym.Flags |= model.FlagComponent
	case e.callsHook(decl.Calls):
		sym.Kind = model.KindHook
	}

	clientSide := e.clientSymbols.Match(decl.Name) || e.clientSymbols.Match(decl.Receiver)
	effects := make(map[string]bool)

	for _, call := range decl.Calls {
		target := call.Name
		if call.Qualified {
			target = call.Target
		}
		sym.References = append(sym.References, model.Reference{
			Target:    target,
			Kind:      model.EdgeCalls,
			Line:      call.Line,
			Qualified: call.Qualified,
		})

		if !clientSide && (e.rawAsyncTargets.Match(call.Name) || (call.Qualified && e.rawAsyncTargets.Match(call.Target))) {
			sym.Flags |= model.FlagRawAsyncCall
		}
		if !e.pureCalls.Match(call.Name) {
			effects[target] = true
		}
	}
	sym.SideEffects = len(effects)

	for _, t := range decl.ParamTypes {
		if e.optionalWrappers.Match(baseType(t)) {
			sym.Flags |= model.FlagOptionalWrapper
		}
	}
	return sym
}

// baseType strips pointers, arrays, generics and qualifiers from a type
// expression: "*java.util.Optional<String>" -> "Optional".
func baseType(expr string) string {
	expr = strings.TrimSpace(expr)
	expr = strings.TrimLeft(expr, "*&[]")
	if i := strings.IndexAny(expr, "<["); i >= 0 {
		expr = expr[:i]
	}
	expr = strings.TrimSuffix(strings.TrimSpace(expr), "?")
	if i := strings.LastIndex(expr, "."); i >= 0 {
		expr = expr[i+1:]
	}
	return expr
}

func (e *Extractor) callsHook(calls []model.SyntaxCall) bool {
	for _, c := range calls {
		if e.hookPrimitives.MatchCall(c.Name) {
			return true
		}
	}
	return false
}
