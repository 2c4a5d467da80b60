// Package scanner runs a full conformance scan: discovery, per-file parsing
// and extraction on a bounded worker pool, then graph building, coverage,
// rule evaluation and reporting.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/archlint/internal/config"
	"github.com/mvp-joe/archlint/internal/coverage"
	"github.com/mvp-joe/archlint/internal/extractor"
	"github.com/mvp-joe/archlint/internal/graph"
	"github.com/mvp-joe/archlint/internal/model"
	"github.com/mvp-joe/archlint/internal/report"
	"github.com/mvp-joe/archlint/internal/rules"
)

// Parser is a language front-end. Parse returns nil, nil when the file is
// excluded (for example by build constraints).
type Parser interface {
	Language() model.Language
	Extensions() []string
	Parse(ctx context.Context, relPath string, src []byte) (*model.SyntaxFile, error)
}

// ProgressReporter receives scan progress. OnFileProcessed is called from
// worker goroutines.
type ProgressReporter interface {
	OnDiscoveryComplete(files int)
	OnFileProcessed(path string)
	OnScanComplete(rep *report.Report, duration time.Duration)
}

type noopProgress struct{}

func (noopProgress) OnDiscoveryComplete(int)                      {}
func (noopProgress) OnFileProcessed(string)                       {}
func (noopProgress) OnScanComplete(*report.Report, time.Duration) {}

// Options configures a Scanner.
type Options struct {
	Config   *config.Config
	Parsers  []Parser
	Logger   *slog.Logger
	Progress ProgressReporter
}

// Scanner holds everything compiled from the configuration. It is never
// modified after New, so one Scanner serves every rescan of a watch loop.
type Scanner struct {
	cfg       *config.Config
	discovery *Discovery
	extractor *extractor.Extractor
	builder   *graph.Builder
	engine    *rules.Engine
	checker   *coverage.Checker
	parsers   map[string]Parser
	limit     int
	logger    *slog.Logger
	progress  ProgressReporter
}

// Result is one finished (or interrupted) scan.
type Result struct {
	Report *report.Report
	Units  []model.SourceUnit
	// Graph is nil when the scan was interrupted.
	Graph *graph.Graph
}

// New compiles the configuration. Every configuration problem is reported
// here, before any file is read, wrapped in config.ErrInvalidConfig.
func New(opts Options) (*Scanner, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := opts.Progress
	if progress == nil {
		progress = noopProgress{}
	}

	discovery, err := NewDiscovery(cfg.Paths.Include, cfg.Paths.Ignore)
	if err != nil {
		return nil, config.NewFieldError("paths", config.ErrInvalidPattern, "%v", err)
	}

	ex, err := extractor.New(cfg)
	if err != nil {
		return nil, err
	}

	ruleSet, err := rules.Compile(cfg.RuleSet)
	if err != nil {
		return nil, err
	}

	limit := cfg.ConcurrencyLimit
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	parsers := make(map[string]Parser)
	for _, p := range opts.Parsers {
		for _, ext := range p.Extensions() {
			parsers[ext] = p
		}
	}

	return &Scanner{
		cfg:       cfg,
		discovery: discovery,
		extractor: ex,
		builder:   graph.NewBuilder(logger),
		engine:    rules.NewEngine(ruleSet, limit, logger),
		checker: coverage.NewChecker(coverage.Thresholds{
			Domain:      cfg.MinCoverageDomain,
			Application: cfg.MinCoverageApplication,
		}),
		parsers:  parsers,
		limit:    limit,
		logger:   logger,
		progress: progress,
	}, nil
}

// Scan runs one wholesale scan over fsys. A cancelled context yields an
// interrupted report and a nil error; unsound models and unreadable coverage
// documents are errors with no report.
func (s *Scanner) Scan(ctx context.Context, fsys fs.FS) (*Result, error) {
	start := time.Now()

	if ctx.Err() != nil {
		return s.interrupted(start), nil
	}

	files, err := s.discovery.Discover(fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	s.progress.OnDiscoveryComplete(len(files))
	s.logger.Debug("files discovered", "count", len(files))

	records, err := s.loadCoverage(fsys)
	if err != nil {
		return nil, err
	}

	units, err := s.extractAll(ctx, fsys, files)
	if err != nil {
		if isInterrupt(ctx, err) {
			return s.interrupted(start), nil
		}
		return nil, err
	}

	g, err := s.builder.Build(ctx, units)
	if err != nil {
		if isInterrupt(ctx, err) {
			return s.interrupted(start), nil
		}
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}

	in := rules.Input{Graph: g}
	var layers []coverage.LayerSummary
	if records != nil {
		res := s.checker.Check(g.Units(), records)
		in.Coverage = &res
		layers = res.Layers
	}

	violations, err := s.engine.Evaluate(ctx, in)
	if err != nil {
		if isInterrupt(ctx, err) {
			return s.interrupted(start), nil
		}
		return nil, fmt.Errorf("failed to evaluate rules: %w", err)
	}

	rep := report.Build(violations, g.Units(), layers, false)
	s.logger.Info("scan complete",
		"units", rep.Units,
		"degraded", rep.Degraded,
		"errors", rep.Summary.Errors,
		"warnings", rep.Summary.Warnings,
		"infos", rep.Summary.Infos,
		"duration", time.Since(start))
	s.progress.OnScanComplete(rep, time.Since(start))

	return &Result{Report: rep, Units: g.Units(), Graph: g}, nil
}

func (s *Scanner) interrupted(start time.Time) *Result {
	rep := report.Build(nil, nil, nil, true)
	s.logger.Warn("scan interrupted", "duration", time.Since(start))
	s.progress.OnScanComplete(rep, time.Since(start))
	return &Result{Report: rep}
}

func isInterrupt(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// loadCoverage reads the configured coverage document, relative paths from
// fsys. No configured document means nil records.
func (s *Scanner) loadCoverage(fsys fs.FS) ([]model.CoverageRecord, error) {
	name := s.cfg.CoverageFile
	if name == "" {
		return nil, nil
	}

	var (
		records []model.CoverageRecord
		err     error
	)
	if filepath.IsAbs(name) {
		records, err = coverage.Load(name)
	} else {
		var data []byte
		data, err = fs.ReadFile(fsys, filepath.ToSlash(filepath.Clean(name)))
		if err == nil {
			records, err = coverage.Parse(data)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load coverage %s: %w", name, err)
	}
	if records == nil {
		records = []model.CoverageRecord{}
	}
	s.logger.Debug("coverage loaded", "file", name, "records", len(records))
	return records, nil
}

// extractAll parses and extracts every file on a bounded pool. Each task
// writes only its own slot; a file that fails to read or parse becomes a
// degraded unit rather than failing the scan.
func (s *Scanner) extractAll(ctx context.Context, fsys fs.FS, files []string) ([]model.SourceUnit, error) {
	slots := make([]*model.SourceUnit, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)

	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			unit, err := s.extractFile(gctx, fsys, file)
			if err != nil {
				return err
			}
			slots[i] = unit
			s.progress.OnFileProcessed(file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	units := make([]model.SourceUnit, 0, len(files))
	for _, u := range slots {
		if u != nil {
			units = append(units, *u)
		}
	}
	return units, nil
}

// extractFile returns nil, nil for files no front-end handles or that the
// front-end excludes. Only cancellation is returned as an error.
func (s *Scanner) extractFile(ctx context.Context, fsys fs.FS, file string) (*model.SourceUnit, error) {
	p, ok := s.parsers[path.Ext(file)]
	if !ok {
		s.logger.Debug("no front-end for file", "path", file)
		return nil, nil
	}

	src, err := fs.ReadFile(fsys, file)
	if err != nil {
		s.logger.Warn("failed to read file", "path", file, "error", err)
		unit := s.extractor.Degraded(file, p.Language(), err)
		return &unit, nil
	}

	syntax, err := p.Parse(ctx, file, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Debug("degrading unit", "path", file, "error", err)
		unit := s.extractor.Degraded(file, p.Language(), err)
		return &unit, nil
	}
	if syntax == nil {
		s.logger.Debug("file excluded by front-end", "path", file)
		return nil, nil
	}

	unit := s.extractor.Extract(syntax)
	return &unit, nil
}
