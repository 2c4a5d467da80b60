// Package rules compiles declarative rule definitions and evaluates them over
// a finished dependency graph.
package rules

import (
	"sort"

	"github.com/mvp-joe/archlint/internal/model"
)

// Family groups checks by evaluation policy.
type Family string

const (
	FamilyLayering    Family = "layering"
	FamilyAntiPattern Family = "anti-pattern"
	FamilyNaming      Family = "naming"
	FamilyCoverage    Family = "coverage"
)

// Check names.
const (
	CheckLayerDirection    = "layer-direction"
	CheckMaxSideEffects    = "max-side-effects"
	CheckMaxParams         = "max-params"
	CheckRawAsyncCall      = "raw-async-call"
	CheckOptionalWrapper   = "optional-wrapper"
	CheckPreferImmutable   = "prefer-immutable"
	CheckNamePattern       = "name-pattern"
	CheckHookPrefix        = "hook-prefix"
	CheckServiceImplLayer  = "service-impl-layer"
	CheckCoverageThreshold = "coverage-threshold"
)

// checkDef describes one built-in check.
type checkDef struct {
	name        string
	family      Family
	description string
	severity    model.Severity
	message     string
	// params returns a fresh parameter struct holding the defaults; nil when
	// the check takes no parameters.
	params func() any
	eval   evalFunc
}

// evalFunc emits the violations of one compiled rule.
type evalFunc func(r *Rule, in Input, emit func(model.Violation))

var catalog = map[string]*checkDef{}

func register(def *checkDef) {
	catalog[def.name] = def
}

func init() {
	register(&checkDef{
		name:        CheckLayerDirection,
		family:      FamilyLayering,
		description: "Dependencies point inward: interface and infrastructure to application, application to domain",
		severity:    model.SeverityError,
		message:     "{{.Layer}} must not depend on {{.TargetLayer}}: {{.Symbol}} {{.Detail}} {{.Target}}",
		params:      func() any { return &layerDirectionParams{} },
		eval:        evalLayerDirection,
	})
	register(&checkDef{
		name:        CheckMaxSideEffects,
		family:      FamilyAntiPattern,
		description: "A symbol performs at most max distinct side-effecting calls",
		severity:    model.SeverityWarn,
		message:     "{{.Symbol}} has {{.Value}} distinct side-effecting calls (max {{.Limit}})",
		params:      func() any { return &sideEffectParams{Max: 10} },
		eval:        evalMaxSideEffects,
	})
	register(&checkDef{
		name:        CheckMaxParams,
		family:      FamilyAntiPattern,
		description: "A function (or only components) receives at most max parameters",
		severity:    model.SeverityWarn,
		message:     "{{.Symbol}} receives {{.Value}} parameters (max {{.Limit}})",
		params:      func() any { return &maxParamsParams{Max: 5} },
		eval:        evalMaxParams,
	})
	register(&checkDef{
		name:        CheckRawAsyncCall,
		family:      FamilyAntiPattern,
		description: "Network and storage calls go through a designated client symbol",
		severity:    model.SeverityWarn,
		message:     "{{.Symbol}} performs a raw async call outside a client",
		eval:        flagCheck(model.FlagRawAsyncCall),
	})
	register(&checkDef{
		name:        CheckOptionalWrapper,
		family:      FamilyAntiPattern,
		description: "Optional wrappers are not used as fields or parameters",
		severity:    model.SeverityWarn,
		message:     "{{.Symbol}} uses an optional wrapper as a field or parameter",
		eval:        flagCheck(model.FlagOptionalWrapper),
	})
	register(&checkDef{
		name:        CheckPreferImmutable,
		family:      FamilyAntiPattern,
		description: "Type declarations are immutable (final/readonly fields or records)",
		severity:    model.SeverityInfo,
		message:     "{{.Symbol}} declares mutable state",
		eval:        evalPreferImmutable,
	})
	register(&checkDef{
		name:        CheckNamePattern,
		family:      FamilyNaming,
		description: "Symbol names match a regular expression",
		severity:    model.SeverityWarn,
		message:     "{{.Symbol}} does not match {{.Detail}}",
		params:      func() any { return &namePatternParams{} },
		eval:        evalNamePattern,
	})
	register(&checkDef{
		name:        CheckHookPrefix,
		family:      FamilyNaming,
		description: "Hook-like functions begin with the designated prefix",
		severity:    model.SeverityWarn,
		message:     "hook {{.Symbol}} must begin with {{printf \"%q\" .Detail}}",
		params:      func() any { return &hookPrefixParams{Prefix: "use"} },
		eval:        evalHookPrefix,
	})
	register(&checkDef{
		name:        CheckServiceImplLayer,
		family:      FamilyNaming,
		description: "Service implementations reside in the designated layer",
		severity:    model.SeverityWarn,
		message:     "service implementation {{.Symbol}} belongs in the {{.Detail}} layer, not {{.Layer}}",
		params:      func() any { return &serviceImplLayerParams{Layer: "infrastructure"} },
		eval:        evalServiceImplLayer,
	})
	register(&checkDef{
		name:        CheckCoverageThreshold,
		family:      FamilyCoverage,
		description: "Domain and application units meet the configured coverage minimum",
		severity:    model.SeverityError,
		message:     "{{.Detail}} coverage {{percent .Value}} below {{percent .Limit}} minimum for the {{.Layer}} layer",
		eval:        evalCoverage,
	})
}

// CheckInfo describes a built-in check for listings.
type CheckInfo struct {
	Name        string         `json:"name"`
	Family      Family         `json:"family"`
	Severity    model.Severity `json:"severity"`
	Description string         `json:"description"`
	Params      []string       `json:"params,omitempty"`
}

// Catalog lists every built-in check ordered by family then name.
func Catalog() []CheckInfo {
	out := make([]CheckInfo, 0, len(catalog))
	for _, def := range catalog {
		info := CheckInfo{
			Name:        def.name,
			Family:      def.family,
			Severity:    def.severity,
			Description: def.description,
		}
		if def.params != nil {
			info.Params = paramNames(def.params())
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return familyOrder(out[i].Family) < familyOrder(out[j].Family)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func familyOrder(f Family) int {
	switch f {
	case FamilyLayering:
		return 0
	case FamilyAntiPattern:
		return 1
	case FamilyNaming:
		return 2
	default:
		return 3
	}
}

type layerDirectionParams struct {
	// ExternalLayers opts source layers into checking edges to external
	// nodes; ExternalAllow lists the external targets they may still use.
	ExternalLayers []string `mapstructure:"externalLayers"`
	ExternalAllow  []string `mapstructure:"externalAllow"`
}

type sideEffectParams struct {
	Max int `mapstructure:"max"`
}

type maxParamsParams struct {
	Max            int  `mapstructure:"max"`
	ComponentsOnly bool `mapstructure:"componentsOnly"`
}

type namePatternParams struct {
	Pattern string `mapstructure:"pattern"`
}

type hookPrefixParams struct {
	Prefix string `mapstructure:"prefix"`
}

type serviceImplLayerParams struct {
	Layer string `mapstructure:"layer"`
}
