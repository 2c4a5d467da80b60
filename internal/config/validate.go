package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrInvalidConfig is wrapped by every configuration error.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidThreshold indicates a coverage floor outside [0, 1]
	ErrInvalidThreshold = errors.New("invalid coverage threshold")

	// ErrInvalidLayer indicates an unknown layer name
	ErrInvalidLayer = errors.New("invalid layer")

	// ErrInvalidPattern indicates a glob that does not compile
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrInvalidConcurrency indicates a negative concurrency limit
	ErrInvalidConcurrency = errors.New("invalid concurrency limit")

	// ErrInvalidFormat indicates an unsupported output format
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrMissingField indicates a required field left empty
	ErrMissingField = errors.New("missing required field")
)

// knownLayers mirrors the closed layer set. It is duplicated here so the
// configuration layer stays independent of the model.
var knownLayers = map[string]bool{
	"domain":         true,
	"application":    true,
	"infrastructure": true,
	"interface":      true,
	"shared":         true,
	"unclassified":   true,
}

// FieldError is a configuration error attributed to one field path,
// e.g. "ruleSet[2].params.max". It matches ErrInvalidConfig and Err
// under errors.Is.
type FieldError struct {
	Field string
	Err   error
}

// NewFieldError builds a FieldError, formatting an optional detail onto err.
func NewFieldError(field string, err error, format string, args ...any) *FieldError {
	if format != "" {
		err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	return &FieldError{Field: field, Err: err}
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.Err}
}

// Validate checks that the configuration is valid and complete. Rule
// parameters are checked later, when the rule set is compiled.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateThreshold("minCoverageDomain", cfg.MinCoverageDomain)...)
	errs = append(errs, validateThreshold("minCoverageApplication", cfg.MinCoverageApplication)...)
	errs = append(errs, validateLayerMap(cfg.LayerMap)...)
	errs = append(errs, validateRuleSet(cfg.RuleSet)...)
	errs = append(errs, validatePatterns("paths.include", cfg.Paths.Include)...)
	errs = append(errs, validatePatterns("paths.ignore", cfg.Paths.Ignore)...)
	errs = append(errs, validateExtraction(&cfg.Extraction)...)

	if cfg.ConcurrencyLimit < 0 {
		errs = append(errs, NewFieldError("concurrencyLimit", ErrInvalidConcurrency, "cannot be negative, got %d", cfg.ConcurrencyLimit))
	}

	switch strings.ToLower(cfg.Output.Format) {
	case FormatText, FormatJSON, FormatMarkdown:
	default:
		errs = append(errs, NewFieldError("output.format", ErrInvalidFormat, "must be 'text', 'json' or 'markdown', got '%s'", cfg.Output.Format))
	}

	return joinErrors(errs)
}

func validateThreshold(field string, v float64) []error {
	if v < 0 || v > 1 {
		return []error{NewFieldError(field, ErrInvalidThreshold, "must be within [0, 1], got %g", v)}
	}
	return nil
}

func validateLayerMap(mappings []LayerMapping) []error {
	var errs []error
	for i, m := range mappings {
		field := fmt.Sprintf("layerMap[%d]", i)
		if strings.TrimSpace(m.Pattern) == "" {
			errs = append(errs, NewFieldError(field+".pattern", ErrMissingField, ""))
		} else if _, err := glob.Compile(m.Pattern, '/'); err != nil {
			errs = append(errs, NewFieldError(field+".pattern", ErrInvalidPattern, "%v", err))
		}
		if !knownLayers[strings.ToLower(strings.TrimSpace(m.Layer))] {
			errs = append(errs, NewFieldError(field+".layer", ErrInvalidLayer, "'%s'", m.Layer))
		}
	}
	return errs
}

func validateRuleSet(defs []RuleDefinition) []error {
	var errs []error
	for i, d := range defs {
		field := fmt.Sprintf("ruleSet[%d]", i)
		if strings.TrimSpace(d.ID) == "" {
			errs = append(errs, NewFieldError(field+".id", ErrMissingField, ""))
		}
		if strings.TrimSpace(d.Check) == "" {
			errs = append(errs, NewFieldError(field+".check", ErrMissingField, ""))
		}
	}
	return errs
}

func validateExtraction(cfg *ExtractionConfig) []error {
	var errs []error
	errs = append(errs, validatePatterns("extraction.hookPrimitives", cfg.HookPrimitives)...)
	errs = append(errs, validatePatterns("extraction.rawAsyncTargets", cfg.RawAsyncTargets)...)
	errs = append(errs, validatePatterns("extraction.clientSymbols", cfg.ClientSymbols)...)
	errs = append(errs, validatePatterns("extraction.pureCalls", cfg.PureCalls)...)
	errs = append(errs, validatePatterns("extraction.optionalWrappers", cfg.OptionalWrappers)...)
	return errs
}

func validatePatterns(field string, patterns []string) []error {
	var errs []error
	for i, p := range patterns {
		if _, err := glob.Compile(p, '/'); err != nil {
			errs = append(errs, NewFieldError(fmt.Sprintf("%s[%d]", field, i), ErrInvalidPattern, "%v", err))
		}
	}
	return errs
}

// validationErrors keeps every collected error reachable by errors.Is/As.
type validationErrors []error

func (v validationErrors) Error() string {
	var msgs []string
	for _, err := range v {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (v validationErrors) Unwrap() []error {
	return v
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	return validationErrors(errs)
}
