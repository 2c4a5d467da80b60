package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/archlint/internal/report"
)

// CLIProgressReporter shows a progress bar while files are parsed.
type CLIProgressReporter struct {
	w       io.Writer
	quiet   bool
	mu      sync.Mutex
	fileBar *progressbar.ProgressBar
}

// NewCLIProgressReporter creates a progress reporter writing to w.
func NewCLIProgressReporter(w io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{w: w, quiet: quiet}
}

func (c *CLIProgressReporter) OnDiscoveryComplete(files int) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Finish any existing progress bar
	if c.fileBar != nil {
		c.fileBar.Finish()
	}
	c.fileBar = progressbar.NewOptions(files,
		progressbar.OptionSetWriter(c.w),
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (c *CLIProgressReporter) OnFileProcessed(string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fileBar != nil {
		c.fileBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnScanComplete(rep *report.Report, duration time.Duration) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fileBar != nil {
		c.fileBar.Finish()
		c.fileBar = nil
	}
	fmt.Fprintf(c.w, "Scanned %d units in %.1fs\n", rep.Units, duration.Seconds())
}
