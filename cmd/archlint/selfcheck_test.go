package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/archlint/internal/config"
	"github.com/mvp-joe/archlint/internal/frontend"
	"github.com/mvp-joe/archlint/internal/model"
	"github.com/mvp-joe/archlint/internal/report"
	"github.com/mvp-joe/archlint/internal/scanner"
	"github.com/mvp-joe/archlint/internal/testutil"
)

// Test Plan for the self check:
// - archlint's own packages obey the layering they are mapped to:
//   model is domain, the engine packages are application, frontend is
//   infrastructure and cli is the interface layer
// - anti-pattern findings stay below error severity
// - every non-test Go file in the module parses without degradation

func TestSelfCheck(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.LayerMap = []config.LayerMapping{
		{Pattern: "internal/model/**", Layer: "domain"},
		{Pattern: "internal/extractor/**", Layer: "application"},
		{Pattern: "internal/graph/**", Layer: "application"},
		{Pattern: "internal/rules/**", Layer: "application"},
		{Pattern: "internal/coverage/**", Layer: "application"},
		{Pattern: "internal/report/**", Layer: "application"},
		{Pattern: "internal/scanner/**", Layer: "application"},
		{Pattern: "internal/config/**", Layer: "application"},
		{Pattern: "internal/frontend/**", Layer: "infrastructure"},
		{Pattern: "internal/cli/**", Layer: "interface"},
	}
	cfg.RuleSet = nil
	for _, def := range config.DefaultRuleSet() {
		if def.Check != "coverage-threshold" {
			cfg.RuleSet = append(cfg.RuleSet, def)
		}
	}
	cfg.Paths.Include = []string{"**/*.go"}
	cfg.Paths.Ignore = append(cfg.Paths.Ignore, "_examples/**", "**/testdata/**", "**/*_test.go")
	cfg.CoverageFile = ""

	s, err := scanner.New(scanner.Options{
		Config:  cfg,
		Parsers: []scanner.Parser{frontend.NewGoParser()},
		Logger:  testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	res, err := s.Scan(context.Background(), os.DirFS("../.."))
	require.NoError(t, err)

	rep := res.Report
	assert.Greater(t, rep.Units, 20)
	assert.Zero(t, rep.Degraded)
	for _, v := range rep.Violations {
		if v.Severity >= model.SeverityError {
			t.Errorf("%s:%d %s", v.Unit, v.Line, v.Message)
		}
	}
	assert.NotEqual(t, report.StatusInterrupted, rep.Status)
	assert.Zero(t, rep.Summary.Errors)
}
