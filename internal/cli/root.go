// Package cli provides the archlint command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/archlint/internal/config"
	"github.com/mvp-joe/archlint/internal/coverage"
	"github.com/mvp-joe/archlint/internal/model"
	"github.com/mvp-joe/archlint/internal/report"
	"github.com/mvp-joe/archlint/internal/scanner"
)

// Dependencies are the collaborators the composition root supplies.
type Dependencies struct {
	Parsers []scanner.Parser
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	verbose    bool
	quiet      bool
}

// exitError carries a non-zero exit code without an error message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// NewRootCmd creates the archlint command tree.
func NewRootCmd(deps Dependencies) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "archlint",
		Short: "archlint - architectural conformance checks for Go, Java and TypeScript",
		Long: `archlint parses a codebase into a structural model, evaluates declarative
rules against it (layering direction, anti-patterns, naming, coverage minimums)
and reports violations precisely enough to gate a build.

Exit codes:
  0  no error-severity violations
  1  error-severity violations (or another failure)
  2  invalid configuration or coverage document
  3  interrupted
  4  unsound model (duplicate symbols, implements cycles)`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default: <path>/archlint.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose (debug) logging")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "disable progress bars and non-error output")

	rootCmd.AddCommand(newCheckCmd(opts, deps))
	rootCmd.AddCommand(newWatchCmd(opts, deps))
	rootCmd.AddCommand(newRulesCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, deps Dependencies, args []string) int {
	rootCmd := NewRootCmd(deps)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	code := ExitCode(err)
	var ee *exitError
	if err != nil && !errors.As(err, &ee) {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return code
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	var ee *exitError
	switch {
	case err == nil:
		return report.ExitOK
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, coverage.ErrInvalidCoverage):
		return report.ExitConfig
	case errors.Is(err, model.ErrUnsoundModel):
		return report.ExitUnsound
	case errors.Is(err, context.Canceled):
		return report.ExitInterrupted
	default:
		return report.ExitViolations
	}
}

// newLogger builds the stderr logger: warnings by default, debug with
// --verbose, errors only with --quiet.
func newLogger(w io.Writer, opts *globalOptions) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case opts.verbose:
		level = slog.LevelDebug
	case opts.quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig loads the configuration rooted at dir.
func loadConfig(dir string, opts *globalOptions, logger *slog.Logger) (*config.Config, error) {
	if opts.configFile != "" {
		if _, err := os.Stat(opts.configFile); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
	}
	cfg, err := config.NewLoader(dir, opts.configFile).Load()
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded",
		"root", dir,
		"rules", len(cfg.RuleSet),
		"layerMap", len(cfg.LayerMap),
		"coverageFile", cfg.CoverageFile)
	return cfg, nil
}
