// Package report merges the violations of one scan into a deterministic
// report, assigns its status and exit code, and renders it.
package report

import (
	"sort"

	"github.com/mvp-joe/archlint/internal/coverage"
	"github.com/mvp-joe/archlint/internal/model"
)

// Report statuses.
const (
	StatusOK          = "ok"
	StatusViolations  = "violations"
	StatusInterrupted = "interrupted"
)

// RuleParseError is the rule id given to unit diagnostics folded into a report.
const RuleParseError = "parse-error"

// Process exit codes.
const (
	ExitOK          = 0
	ExitViolations  = 1
	ExitConfig      = 2
	ExitInterrupted = 3
	ExitUnsound     = 4
)

// Summary counts violations per severity.
type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

// Report is the outcome of one scan. It is built once and never modified.
type Report struct {
	Status     string                  `json:"status"`
	Highest    model.Severity          `json:"highest"`
	Violations []model.Violation       `json:"violations"`
	Summary    Summary                 `json:"summary"`
	Coverage   []coverage.LayerSummary `json:"coverage,omitempty"`
	Units      int                     `json:"units"`
	Degraded   int                     `json:"degraded"`
}

// Build aggregates rule violations and unit diagnostics into a report. An
// interrupted scan reports no violations, whatever was passed in.
func Build(violations []model.Violation, units []model.SourceUnit, layers []coverage.LayerSummary, interrupted bool) *Report {
	r := &Report{
		Violations: []model.Violation{},
		Coverage:   layers,
		Units:      len(units),
	}
	if interrupted {
		r.Status = StatusInterrupted
		r.Coverage = nil
		return r
	}

	all := make([]model.Violation, 0, len(violations))
	all = append(all, violations...)
	for _, u := range units {
		if u.Degraded() {
			r.Degraded++
		}
		for _, d := range u.Diagnostics {
			all = append(all, model.Violation{
				RuleID:   RuleParseError,
				Severity: d.Severity,
				Unit:     u.Path,
				Line:     d.Line,
				Message:  d.Message,
			})
		}
	}
	Sort(all)
	r.Violations = all

	for _, v := range all {
		switch v.Severity {
		case model.SeverityError:
			r.Summary.Errors++
		case model.SeverityWarn:
			r.Summary.Warnings++
		case model.SeverityInfo:
			r.Summary.Infos++
		}
		if v.Severity > r.Highest {
			r.Highest = v.Severity
		}
	}

	r.Status = StatusOK
	if len(all) > 0 {
		r.Status = StatusViolations
	}
	return r
}

// Sort orders violations by unit, line, rule id, symbol then message.
func Sort(vs []model.Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Message < b.Message
	})
}

// ExitCode maps a report to a process exit code, failing on error severity.
func ExitCode(r *Report) int {
	return ExitCodeAt(r, model.SeverityError)
}

// ExitCodeAt fails when the highest observed severity reaches failOn.
func ExitCodeAt(r *Report, failOn model.Severity) int {
	switch {
	case r == nil:
		return ExitViolations
	case r.Status == StatusInterrupted:
		return ExitInterrupted
	case failOn != model.SeverityNone && r.Highest >= failOn:
		return ExitViolations
	default:
		return ExitOK
	}
}
