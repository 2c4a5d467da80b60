package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/archlint/internal/config"
	"github.com/mvp-joe/archlint/internal/model"
	"github.com/mvp-joe/archlint/internal/report"
	"github.com/mvp-joe/archlint/internal/scanner"
)

// scanOptions are the flags check and watch share.
type scanOptions struct {
	format       string
	output       string
	coverageFile string
	concurrency  int
}

func (o *scanOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "report format: text, json, markdown (default from config)")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringVar(&o.coverageFile, "coverage", "", "coverage document (Go coverprofile, or YAML/JSON records)")
	cmd.Flags().IntVar(&o.concurrency, "concurrency", 0, "maximum parallel file tasks (0 = GOMAXPROCS)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.FormatText, config.FormatJSON, config.FormatMarkdown}, cobra.ShellCompDirectiveNoFileComp
	})
}

// apply overrides configuration values with the flags that were set.
func (o *scanOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = o.format
	}
	if flags.Changed("output") {
		cfg.Output.File = o.output
	}
	if flags.Changed("coverage") {
		cfg.CoverageFile = o.coverageFile
	}
	if flags.Changed("concurrency") {
		cfg.ConcurrencyLimit = o.concurrency
	}
	return config.Validate(cfg)
}

// session is everything one check or watch invocation needs.
type session struct {
	root     string
	cfg      *config.Config
	logger   *slog.Logger
	scanner  *scanner.Scanner
	renderer *report.Renderer
}

func newSession(cmd *cobra.Command, args []string, global *globalOptions, opts *scanOptions, deps Dependencies) (*session, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", config.ErrInvalidConfig, root)
	}

	stderr := cmd.ErrOrStderr()
	logger := newLogger(stderr, global)

	cfg, err := loadConfig(root, global, logger)
	if err != nil {
		return nil, err
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return nil, err
	}

	color := cfg.Output.File == "" && report.IsTerminal(cmd.OutOrStdout())
	renderer, err := report.NewRenderer(cfg.Output.Format, color)
	if err != nil {
		return nil, err
	}

	var progress scanner.ProgressReporter
	if !global.quiet && report.IsTerminal(stderr) {
		progress = NewCLIProgressReporter(stderr, global.quiet)
	}

	s, err := scanner.New(scanner.Options{
		Config:   cfg,
		Parsers:  deps.Parsers,
		Logger:   logger,
		Progress: progress,
	})
	if err != nil {
		return nil, err
	}

	return &session{root: root, cfg: cfg, logger: logger, scanner: s, renderer: renderer}, nil
}

// emit writes a report to the configured file or to stdout.
func (s *session) emit(cmd *cobra.Command, rep *report.Report) error {
	if s.cfg.Output.File != "" {
		path := s.cfg.Output.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.root, path)
		}
		if err := s.renderer.WriteFile(path, rep); err != nil {
			return err
		}
		s.logger.Debug("report written", "file", path)
		return nil
	}
	return s.renderer.Render(cmd.OutOrStdout(), rep)
}

// parseFailOn accepts a severity name or "none".
func parseFailOn(s string) (model.Severity, error) {
	if strings.EqualFold(strings.TrimSpace(s), "none") {
		return model.SeverityNone, nil
	}
	sev, ok := model.ParseSeverity(s)
	if !ok {
		return model.SeverityNone, config.NewFieldError("--fail-on", config.ErrInvalidConfig, "must be info, warn, error or none, got '%s'", s)
	}
	return sev, nil
}

func newCheckCmd(global *globalOptions, deps Dependencies) *cobra.Command {
	opts := &scanOptions{}
	var failOn string

	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Scan a codebase once and report conformance violations",
		Long: `Check parses every source file under path (default: the current directory),
builds the dependency graph, evaluates the configured rule set and prints a report.

The command exits non-zero when a violation at or above --fail-on exists,
which makes it suitable as a build gate.`,
		Example: `  # Check the current directory
  archlint check

  # Gate on warnings too, with coverage data
  archlint check --fail-on warn --coverage coverage.out

  # Machine-readable report written atomically to a file
  archlint check ./service -f json -o build/archlint.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, err := parseFailOn(failOn)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := newSession(cmd, args, global, opts, deps)
			if err != nil {
				return err
			}

			res, err := sess.scanner.Scan(ctx, os.DirFS(sess.root))
			if err != nil {
				return err
			}
			if err := sess.emit(cmd, res.Report); err != nil {
				return err
			}

			if code := report.ExitCodeAt(res.Report, threshold); code != report.ExitOK {
				return &exitError{code: code}
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&failOn, "fail-on", "error", "lowest severity that fails the check: info, warn, error, none")

	return cmd
}
