// Package coverage joins externally produced coverage data to source units
// and applies the per-layer thresholds.
package coverage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/cover"
	"gopkg.in/yaml.v3"

	"github.com/mvp-joe/archlint/internal/model"
)

// ErrInvalidCoverage marks a coverage document that cannot be used.
var ErrInvalidCoverage = errors.New("invalid coverage document")

// document is the record-list form. A bare list is accepted as well.
type document struct {
	Records []model.CoverageRecord `yaml:"records"`
}

// Load reads a coverage document. Three forms are recognized:
//   - a Go coverage profile ("mode: set|count|atomic" header)
//   - a YAML or JSON list of records
//   - a YAML or JSON object with a "records" list
//
// Paths use forward slashes.
func Load(path string) ([]model.CoverageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read coverage file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a coverage document held in memory; see Load for the
// accepted forms.
func Parse(data []byte) ([]model.CoverageRecord, error) {
	if isProfile(data) {
		return fromProfile(data)
	}
	return fromRecords(data)
}

func isProfile(data []byte) bool {
	line, _, _ := bytes.Cut(bytes.TrimLeft(data, " \t\r\n"), []byte("\n"))
	return bytes.HasPrefix(line, []byte("mode:"))
}

// fromProfile converts statement blocks into per-file line ratios. Go
// profiles carry no branch data.
func fromProfile(data []byte) ([]model.CoverageRecord, error) {
	profiles, err := cover.ParseProfilesFromReader(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCoverage, err)
	}

	records := make([]model.CoverageRecord, 0, len(profiles))
	for _, p := range profiles {
		var total, covered int
		for _, b := range p.Blocks {
			total += b.NumStmt
			if b.Count > 0 {
				covered += b.NumStmt
			}
		}
		ratio := 1.0
		if total > 0 {
			ratio = float64(covered) / float64(total)
		}
		records = append(records, model.CoverageRecord{
			Path:      filepath.ToSlash(p.FileName),
			LineRatio: ratio,
		})
	}
	return records, nil
}

// YAML is a superset of JSON, so one decoder serves both.
func fromRecords(data []byte) ([]model.CoverageRecord, error) {
	var records []model.CoverageRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		var doc document
		if derr := yaml.Unmarshal(data, &doc); derr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCoverage, err)
		}
		records = doc.Records
	}

	for i := range records {
		r := &records[i]
		r.Path = filepath.ToSlash(strings.TrimPrefix(r.Path, "./"))
		if r.Path == "" {
			return nil, fmt.Errorf("%w: records[%d].path is empty", ErrInvalidCoverage, i)
		}
		if !validRatio(r.LineRatio) {
			return nil, fmt.Errorf("%w: records[%d].lineRatio %v out of range [0,1]", ErrInvalidCoverage, i, r.LineRatio)
		}
		if r.BranchRatio != nil && !validRatio(*r.BranchRatio) {
			return nil, fmt.Errorf("%w: records[%d].branchRatio %v out of range [0,1]", ErrInvalidCoverage, i, *r.BranchRatio)
		}
	}
	return records, nil
}

// validRatio rejects NaN explicitly since it fails every comparison.
func validRatio(r float64) bool {
	return !math.IsNaN(r) && r >= 0 && r <= 1
}
