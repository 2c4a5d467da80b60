package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/archlint/internal/report"
	"github.com/mvp-joe/archlint/internal/scanner"
)

func newWatchCmd(global *globalOptions, deps Dependencies) *cobra.Command {
	opts := &scanOptions{}
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Re-run the conformance scan whenever sources change",
		Long: `Watch performs a full scan, then rescans the whole tree after every change to
a discovered source file or to the coverage document. Every rescan rebuilds the
model from scratch. Stop with Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := newSession(cmd, args, global, opts, deps)
			if err != nil {
				return err
			}

			return sess.scanner.Watch(ctx, sess.root, debounce, func(res *scanner.Result, err error) {
				if err != nil {
					sess.logger.Error("scan failed", "error", err)
					return
				}
				if res.Report.Status == report.StatusInterrupted {
					return
				}
				if err := sess.emit(cmd, res.Report); err != nil {
					sess.logger.Error("failed to write report", "error", err)
				}
			})
		},
	}

	opts.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", scanner.DefaultDebounce, "quiet period after a change before rescanning")

	return cmd
}
