package model

import "strings"

// Reference is an outgoing name a symbol depends on. Qualified references
// carry a fully-qualified target the graph builder can try to resolve;
// unqualified ones (calls on local values) only count toward side effects.
type Reference struct {
	Target    string   `json:"target"`
	Kind      EdgeKind `json:"kind"`
	Line      int      `json:"line"`
	Qualified bool     `json:"qualified"`
}

// MethodSig is the arity-level signature used for structural implements
// inference.
type MethodSig struct {
	Name    string `json:"name"`
	Params  int    `json:"params"`
	Returns int    `json:"returns"`
}

// Symbol is one named declaration inside a unit.
type Symbol struct {
	Kind       SymbolKind  `json:"kind"`
	Name       string      `json:"name"`
	FQN        string      `json:"fqn"`
	Owner      string      `json:"owner,omitempty"` // FQN of the receiver/enclosing type for methods
	Layer      Layer       `json:"layer"`
	Line       int         `json:"line"`
	EndLine    int         `json:"end_line"`
	References []Reference `json:"references,omitempty"`
	Methods    []MethodSig `json:"methods,omitempty"` // interface method set, or Go type method set after building
	Params     int         `json:"params"`
	Returns    int         `json:"returns"`
	Statements int         `json:"statements"`
	Branches   int         `json:"branches"`
	// SideEffects counts distinct call targets that are not known-pure.
	SideEffects int   `json:"side_effects"`
	Flags       Flags `json:"flags"`
}

// ShortName is the name without its owner: "OrderService.find" -> "find".
func (s Symbol) ShortName() string {
	if i := strings.LastIndex(s.Name, "."); i >= 0 {
		return s.Name[i+1:]
	}
	return s.Name
}

// NonTrivial reports whether the symbol carries custom logic: a behavioral
// kind whose body has more than one statement or any branch.
func (s Symbol) NonTrivial() bool {
	if !s.Kind.Behavioral() {
		return false
	}
	return s.Statements > 1 || s.Branches > 0
}

// Import is a raw dependency reference at module level.
type Import struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// Diagnostic is a non-fatal problem recorded on a unit, such as a parse error.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Line     int      `json:"line"`
	Message  string   `json:"message"`
}

// SourceUnit is the structural model of one source file. It must not be
// modified after the extractor returns it; a re-scan builds new units.
type SourceUnit struct {
	Path        string       `json:"path"`
	Language    Language     `json:"language"`
	Module      string       `json:"module"`
	Layer       Layer        `json:"layer"`
	Generated   bool         `json:"generated"`
	Symbols     []Symbol     `json:"symbols"`
	Imports     []Import     `json:"imports,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Degraded reports whether the unit failed to parse.
func (u SourceUnit) Degraded() bool {
	return len(u.Diagnostics) > 0 && len(u.Symbols) == 0
}

// NonTrivialSymbols counts symbols carrying custom logic.
func (u SourceUnit) NonTrivialSymbols() int {
	n := 0
	for _, s := range u.Symbols {
		if s.NonTrivial() {
			n++
		}
	}
	return n
}

// DataCarrier reports whether the unit is a hand-written pure data carrier:
// not generated and without any non-trivial symbol. Such units are exempt
// from coverage thresholds and excluded from the coverage denominator.
func (u SourceUnit) DataCarrier() bool {
	return !u.Generated && u.NonTrivialSymbols() == 0
}

// Edge is a directed dependency between two graph nodes.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
	Unit string   `json:"unit"`
	Line int      `json:"line"`
}

// Violation is a single rule failure. Violations are facts: they are filtered
// and sorted, never modified.
type Violation struct {
	RuleID   string   `json:"ruleId"`
	Severity Severity `json:"severity"`
	Unit     string   `json:"unit"`
	Line     int      `json:"line"`
	Symbol   string   `json:"symbol,omitempty"`
	Message  string   `json:"message"`
}

// CoverageRecord is externally produced coverage for one unit path.
// BranchRatio is nil when the producer has no branch data.
type CoverageRecord struct {
	Path        string   `json:"path" yaml:"path"`
	LineRatio   float64  `json:"lineRatio" yaml:"lineRatio"`
	BranchRatio *float64 `json:"branchRatio,omitempty" yaml:"branchRatio,omitempty"`
}
