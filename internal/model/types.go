// Package model defines the language-neutral structural model shared by every
// stage of a conformance scan: units, symbols, edges, violations and coverage.
//
// All enumerations in this package are closed. Consumers switch over them
// exhaustively; the String/Parse pairs are the only place where their textual
// forms are defined.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsoundModel marks internal invariant violations (duplicate symbols,
// impossible cycles). Such errors abort a scan without a partial report.
var ErrUnsoundModel = errors.New("unsound model")

// Language identifies the front-end that produced a unit.
type Language string

const (
	LanguageGo         Language = "go"
	LanguageJava       Language = "java"
	LanguageTypeScript Language = "typescript"
	LanguageTSX        Language = "tsx"
)

// Layer is an architectural stratum. Every unit has exactly one.
type Layer int

const (
	LayerUnclassified Layer = iota
	LayerDomain
	LayerApplication
	LayerInfrastructure
	LayerInterface
	LayerShared
)

// Layers lists every layer in declaration order.
var Layers = []Layer{
	LayerUnclassified,
	LayerDomain,
	LayerApplication,
	LayerInfrastructure,
	LayerInterface,
	LayerShared,
}

// String returns the configuration name of the layer.
func (l Layer) String() string {
	switch l {
	case LayerDomain:
		return "domain"
	case LayerApplication:
		return "application"
	case LayerInfrastructure:
		return "infrastructure"
	case LayerInterface:
		return "interface"
	case LayerShared:
		return "shared"
	case LayerUnclassified:
		return "unclassified"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// ParseLayer converts a configuration name into a Layer.
func ParseLayer(s string) (Layer, bool) {
	for _, l := range Layers {
		if strings.EqualFold(strings.TrimSpace(s), l.String()) {
			return l, true
		}
	}
	return LayerUnclassified, false
}

// MarshalText implements encoding.TextMarshaler.
func (l Layer) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// SymbolKind classifies a declaration.
type SymbolKind int

const (
	KindTypeDeclaration SymbolKind = iota
	KindFunction
	KindHook
	KindServiceInterface
	KindServiceImplementation
	KindTestCase
)

// SymbolKinds lists every kind in declaration order.
var SymbolKinds = []SymbolKind{
	KindTypeDeclaration,
	KindFunction,
	KindHook,
	KindServiceInterface,
	KindServiceImplementation,
	KindTestCase,
}

// String returns the configuration name of the kind.
func (k SymbolKind) String() string {
	switch k {
	case KindTypeDeclaration:
		return "type-declaration"
	case KindFunction:
		return "function"
	case KindHook:
		return "hook-like-function"
	case KindServiceInterface:
		return "service-interface"
	case KindServiceImplementation:
		return "service-implementation"
	case KindTestCase:
		return "test-case"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseSymbolKind converts a configuration name into a SymbolKind.
func ParseSymbolKind(s string) (SymbolKind, bool) {
	for _, k := range SymbolKinds {
		if strings.EqualFold(strings.TrimSpace(s), k.String()) {
			return k, true
		}
	}
	return KindFunction, false
}

// MarshalText implements encoding.TextMarshaler.
func (k SymbolKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Behavioral reports whether symbols of this kind carry executable bodies.
func (k SymbolKind) Behavioral() bool {
	switch k {
	case KindFunction, KindHook, KindServiceImplementation:
		return true
	case KindTypeDeclaration, KindServiceInterface, KindTestCase:
		return false
	default:
		return false
	}
}

// Severity orders findings. The zero value means "nothing observed".
type Severity int

const (
	SeverityNone Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// String returns the report name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity accepts "info", "warn"/"warning" and "error".
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo, true
	case "warn", "warning":
		return SeverityWarn, true
	case "error":
		return SeverityError, true
	default:
		return SeverityNone, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It also accepts "none".
func (s *Severity) UnmarshalText(text []byte) error {
	if strings.EqualFold(strings.TrimSpace(string(text)), "none") {
		*s = SeverityNone
		return nil
	}
	sev, ok := ParseSeverity(string(text))
	if !ok {
		return fmt.Errorf("unknown severity %q", text)
	}
	*s = sev
	return nil
}

// Flags are syntactic properties of a symbol.
type Flags uint8

const (
	FlagSealedVariant Flags = 1 << iota
	FlagImmutable
	FlagOptionalWrapper
	FlagRawAsyncCall
	FlagComponent
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagSealedVariant, "sealed-variant"},
	{FlagImmutable, "immutable"},
	{FlagOptionalWrapper, "optional-wrapper"},
	{FlagRawAsyncCall, "raw-async-call"},
	{FlagComponent, "component"},
}

// Has reports whether all bits of f are set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// Names returns the set flags in a stable order.
func (fl Flags) Names() []string {
	var names []string
	for _, fn := range flagNames {
		if fl.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return names
}

// EdgeKind is the relationship an edge records.
type EdgeKind string

const (
	EdgeCalls      EdgeKind = "calls"
	EdgeImplements EdgeKind = "implements"
	EdgeImports    EdgeKind = "imports"
)
