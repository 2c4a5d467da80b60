package coverage

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/archlint/internal/model"
)

// Test Plan for coverage:
// - Boundary: exactly the minimum passes, just below (or NaN) violates
// - Branch ratio is checked only when present
// - Pure data carriers are exempt and excluded from the denominator
// - A layer of only data carriers is ok with an empty denominator
// - Units without a record count as missing
// - Profile file names join by path suffix
// - Only domain and application layers are gated
// - Load reads YAML, JSON, record objects and Go profiles; rejects bad ratios
//   including NaN and infinities

func logicUnit(path string, layer model.Layer) model.SourceUnit {
	return model.SourceUnit{
		Path:  path,
		Layer: layer,
		Symbols: []model.Symbol{
			{Kind: model.KindFunction, Name: "Run", Statements: 3, Branches: 1},
		},
	}
}

func dataUnit(path string, layer model.Layer) model.SourceUnit {
	return model.SourceUnit{
		Path:  path,
		Layer: layer,
		Symbols: []model.Symbol{
			{Kind: model.KindTypeDeclaration, Name: "Money"},
			{Kind: model.KindFunction, Name: "Money.Cents", Statements: 1},
		},
	}
}

func ratio(v float64) *float64 { return &v }

func TestChecker_Boundary(t *testing.T) {
	t.Parallel()
	c := NewChecker(Thresholds{Domain: 0.90, Application: 0.90})

	tests := []struct {
		name    string
		line    float64
		wantHit bool
	}{
		{"exactly minimum", 0.90, false},
		{"just below", 0.899999, true},
		{"full", 1.0, false},
		{"not a number", math.NaN(), true},
	}
	for _, tt := range tests {
		res := c.Check(
			[]model.SourceUnit{logicUnit("internal/domain/order.go", model.LayerDomain)},
			[]model.CoverageRecord{{Path: "internal/domain/order.go", LineRatio: tt.line}},
		)
		assert.Equal(t, tt.wantHit, len(res.Findings) == 1, tt.name)
	}
}

func TestChecker_BranchRatio(t *testing.T) {
	t.Parallel()
	c := NewChecker(Thresholds{Domain: 0.9, Application: 0.8})

	res := c.Check(
		[]model.SourceUnit{logicUnit("internal/application/place.go", model.LayerApplication)},
		[]model.CoverageRecord{{Path: "internal/application/place.go", LineRatio: 0.95, BranchRatio: ratio(0.5)}},
	)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, MetricBranch, res.Findings[0].Metric)
	assert.Equal(t, 0.8, res.Findings[0].Min)
	assert.Equal(t, 0.5, res.Findings[0].Ratio)
}

func TestChecker_Exemption(t *testing.T) {
	t.Parallel()
	c := NewChecker(Thresholds{Domain: 0.9, Application: 0.9})

	units := []model.SourceUnit{
		dataUnit("internal/domain/money.go", model.LayerDomain),
		logicUnit("internal/domain/order.go", model.LayerDomain),
	}
	records := []model.CoverageRecord{
		{Path: "internal/domain/money.go", LineRatio: 0},
		{Path: "internal/domain/order.go", LineRatio: 0.96},
	}
	res := c.Check(units, records)

	assert.Empty(t, res.Findings)
	domain := res.Layers[0]
	assert.Equal(t, model.LayerDomain, domain.Layer)
	assert.Equal(t, 1, domain.Units)
	assert.Equal(t, 1, domain.Exempt)
	assert.InDelta(t, 0.96, domain.MeanLine, 1e-9, "exempt units do not drag the mean")
	assert.Equal(t, StatusOK, domain.Status)
}

func TestChecker_OnlyDataCarriers(t *testing.T) {
	t.Parallel()
	c := NewChecker(Thresholds{Domain: 0.9, Application: 0.9})

	res := c.Check([]model.SourceUnit{
		dataUnit("internal/domain/money.go", model.LayerDomain),
		dataUnit("internal/domain/address.go", model.LayerDomain),
	}, nil)

	assert.Empty(t, res.Findings)
	domain := res.Layers[0]
	assert.Equal(t, 0, domain.Units)
	assert.Equal(t, 2, domain.Exempt)
	assert.Equal(t, 0.0, domain.MeanLine)
	assert.Equal(t, StatusOK, domain.Status)
}

func TestChecker_GeneratedUnitsAreCounted(t *testing.T) {
	t.Parallel()
	c := NewChecker(Thresholds{Domain: 0.9, Application: 0.9})

	gen := dataUnit("internal/domain/order.pb.go", model.LayerDomain)
	gen.Generated = true
	res := c.Check([]model.SourceUnit{gen}, []model.CoverageRecord{{Path: gen.Path, LineRatio: 0.1}})
	require.Len(t, res.Findings, 1)
	assert.Equal(t, 1, res.Layers[0].Units)
}

func TestChecker_MissingAndSuffixJoin(t *testing.T) {
	t.Parallel()
	c := NewChecker(Thresholds{Domain: 0.9, Application: 0.9})

	units := []model.SourceUnit{
		logicUnit("internal/application/a.go", model.LayerApplication),
		logicUnit("internal/application/b.go", model.LayerApplication),
		logicUnit("internal/infrastructure/db.go", model.LayerInfrastructure),
	}
	records := []model.CoverageRecord{
		{Path: "example.com/shop/internal/application/a.go", LineRatio: 0.92},
		{Path: "example.com/shop/internal/infrastructure/db.go", LineRatio: 0.0},
	}
	res := c.Check(units, records)

	require.Len(t, res.Findings, 1)
	assert.Equal(t, "internal/application/b.go", res.Findings[0].Unit)
	assert.True(t, res.Findings[0].Missing)

	require.Len(t, res.Layers, 2)
	app := res.Layers[1]
	assert.Equal(t, model.LayerApplication, app.Layer)
	assert.Equal(t, 2, app.Units)
	assert.Equal(t, 1, app.Missing)
	assert.Equal(t, StatusViolations, app.Status)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Formats(t *testing.T) {
	t.Parallel()

	yamlPath := writeFile(t, "coverage.yaml", `
- path: internal/domain/order.go
  lineRatio: 0.9
  branchRatio: 0.75
- path: ./internal/domain/money.go
  lineRatio: 1
`)
	records, err := Load(yamlPath)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 0.9, records[0].LineRatio)
	require.NotNil(t, records[0].BranchRatio)
	assert.Equal(t, 0.75, *records[0].BranchRatio)
	assert.Equal(t, "internal/domain/money.go", records[1].Path)
	assert.Nil(t, records[1].BranchRatio)

	jsonPath := writeFile(t, "coverage.json", `{"records": [{"path": "a.ts", "lineRatio": 0.5}]}`)
	records, err = Load(jsonPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a.ts", records[0].Path)

	profPath := writeFile(t, "cover.out", `mode: set
example.com/shop/internal/domain/order.go:10.2,12.3 3 1
example.com/shop/internal/domain/order.go:14.2,15.3 1 0
example.com/shop/internal/domain/empty.go:1.1,1.2 0 0
`)
	records, err = Load(profPath)
	require.NoError(t, err)
	require.Len(t, records, 2)
	byPath := map[string]float64{}
	for _, r := range records {
		byPath[r.Path] = r.LineRatio
		assert.Nil(t, r.BranchRatio)
	}
	assert.Equal(t, 0.75, byPath["example.com/shop/internal/domain/order.go"])
	assert.Equal(t, 1.0, byPath["example.com/shop/internal/domain/empty.go"])
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Load(writeFile(t, "c.yaml", "- path: a.go\n  lineRatio: 1.5\n"))
	assert.ErrorIs(t, err, ErrInvalidCoverage)

	_, err = Load(writeFile(t, "c.yaml", "- lineRatio: 0.5\n"))
	assert.ErrorIs(t, err, ErrInvalidCoverage)

	for _, doc := range []string{
		"- path: internal/domain/a.go\n  lineRatio: .nan\n",
		"- path: internal/domain/a.go\n  lineRatio: .inf\n",
		"- path: internal/domain/a.go\n  lineRatio: 1\n  branchRatio: .nan\n",
		"- path: internal/domain/a.go\n  lineRatio: 1\n  branchRatio: -.inf\n",
	} {
		_, err = Parse([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidCoverage, doc)
	}

	_, err = Load(writeFile(t, "c.yaml", "just: [unbalanced"))
	assert.ErrorIs(t, err, ErrInvalidCoverage)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCoverage)
}
