package coverage

import (
	"sort"
	"strings"

	"github.com/mvp-joe/archlint/internal/model"
)

// Metrics a finding can refer to.
const (
	MetricLine   = "line"
	MetricBranch = "branch"
)

// Layer statuses.
const (
	StatusOK         = "ok"
	StatusViolations = "violations"
)

// Thresholds are the minimum ratios per gated layer.
type Thresholds struct {
	Domain      float64
	Application float64
}

// Finding is one unit below its layer's minimum. Missing means the unit had
// no coverage record at all and was counted as zero.
type Finding struct {
	Unit    string
	Layer   model.Layer
	Metric  string
	Ratio   float64
	Min     float64
	Missing bool
}

// LayerSummary is the coverage picture of one gated layer. Units is the
// denominator: exempt units are counted separately and never enter it.
type LayerSummary struct {
	Layer    model.Layer `json:"layer"`
	Units    int         `json:"units"`
	Exempt   int         `json:"exempt"`
	Missing  int         `json:"missing"`
	MeanLine float64     `json:"meanLine"`
	Min      float64     `json:"min"`
	Status   string      `json:"status"`
}

// Result is the outcome of one Check.
type Result struct {
	Findings []Finding
	Layers   []LayerSummary
}

// Checker applies per-layer thresholds to coverage records.
type Checker struct {
	gated []gate
}

type gate struct {
	layer model.Layer
	min   float64
}

// NewChecker creates a checker gating the domain and application layers.
func NewChecker(t Thresholds) *Checker {
	return &Checker{gated: []gate{
		{layer: model.LayerDomain, min: t.Domain},
		{layer: model.LayerApplication, min: t.Application},
	}}
}

// Check joins records to units by path and applies the thresholds. A unit is
// below threshold iff its line ratio, or its branch ratio when present, is
// strictly less than the minimum. Pure data carriers are exempt.
func (c *Checker) Check(units []model.SourceUnit, records []model.CoverageRecord) Result {
	idx := newIndex(records)

	sorted := make([]model.SourceUnit, len(units))
	copy(sorted, units)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var res Result
	for _, g := range c.gated {
		sum := LayerSummary{Layer: g.layer, Min: g.min, Status: StatusOK}
		var total float64

		for _, u := range sorted {
			if u.Layer != g.layer {
				continue
			}
			if u.DataCarrier() {
				sum.Exempt++
				continue
			}
			sum.Units++

			rec, ok := idx.lookup(u.Path)
			if !ok {
				sum.Missing++
				res.Findings = append(res.Findings, Finding{Unit: u.Path, Layer: g.layer, Metric: MetricLine, Min: g.min, Missing: true})
				continue
			}
			total += rec.LineRatio

			// Negated so a NaN ratio fails the gate.
			if !(rec.LineRatio >= g.min) {
				res.Findings = append(res.Findings, Finding{Unit: u.Path, Layer: g.layer, Metric: MetricLine, Ratio: rec.LineRatio, Min: g.min})
			}
			if rec.BranchRatio != nil && !(*rec.BranchRatio >= g.min) {
				res.Findings = append(res.Findings, Finding{Unit: u.Path, Layer: g.layer, Metric: MetricBranch, Ratio: *rec.BranchRatio, Min: g.min})
			}
		}

		if sum.Units > 0 {
			sum.MeanLine = total / float64(sum.Units)
		}
		for _, f := range res.Findings {
			if f.Layer == g.layer {
				sum.Status = StatusViolations
				break
			}
		}
		res.Layers = append(res.Layers, sum)
	}
	return res
}

// index finds records by exact path, or by a record path that ends in the
// unit path (profiles carry import-path-prefixed file names).
type index struct {
	exact  map[string]model.CoverageRecord
	suffix map[string]model.CoverageRecord
}

func newIndex(records []model.CoverageRecord) *index {
	idx := &index{
		exact:  make(map[string]model.CoverageRecord, len(records)),
		suffix: make(map[string]model.CoverageRecord),
	}
	for _, r := range records {
		if _, dup := idx.exact[r.Path]; !dup {
			idx.exact[r.Path] = r
		}
		for rest := r.Path; ; {
			i := strings.Index(rest, "/")
			if i < 0 {
				break
			}
			rest = rest[i+1:]
			// The first record claiming a suffix keeps it.
			if _, taken := idx.suffix[rest]; !taken {
				idx.suffix[rest] = r
			}
		}
	}
	return idx
}

func (idx *index) lookup(path string) (model.CoverageRecord, bool) {
	if r, ok := idx.exact[path]; ok {
		return r, true
	}
	r, ok := idx.suffix[path]
	return r, ok
}
