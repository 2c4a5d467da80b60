package rules

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/archlint/internal/coverage"
	"github.com/mvp-joe/archlint/internal/graph"
	"github.com/mvp-joe/archlint/internal/model"
)

// Input is everything a rule may read. All of it is shared, read-only.
type Input struct {
	Graph *graph.Graph

	// Coverage is nil when no coverage document was supplied.
	Coverage *coverage.Result
}

// Engine evaluates a rule set over one scan's graph.
type Engine struct {
	rules  *RuleSet
	limit  int
	logger *slog.Logger
}

// NewEngine creates an engine running at most limit rules at once; a limit
// of zero or less means GOMAXPROCS.
func NewEngine(rules *RuleSet, limit int, logger *slog.Logger) *Engine {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{rules: rules, limit: limit, logger: logger}
}

// Evaluate runs every rule concurrently. Rules never see each other's
// output, so the result is the union of running each alone; it is returned
// in rule order. A cancelled context yields no violations.
func (e *Engine) Evaluate(ctx context.Context, in Input) ([]model.Violation, error) {
	if in.Graph == nil {
		return nil, fmt.Errorf("rule evaluation requires a graph")
	}

	rules := e.rules.Rules()
	results := make([][]model.Violation, len(rules))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)

	for i, r := range rules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()

			var out []model.Violation
			r.eval(r, in, func(v model.Violation) {
				out = append(out, v)
			})
			results[i] = out

			e.logger.Debug("rule evaluated",
				"rule", r.ID,
				"check", r.Check,
				"violations", len(out),
				"duration", time.Since(start))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []model.Violation
	for _, vs := range results {
		all = append(all, vs...)
	}
	return all, nil
}
