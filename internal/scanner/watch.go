package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a rescan.
const DefaultDebounce = 500 * time.Millisecond

// Watch scans root once, then rescans it wholesale whenever a discovered
// file or the coverage document changes, until ctx is done. Every result is
// passed to onResult on the calling goroutine. There is no incremental
// state: each rescan builds new units and a new graph.
func (s *Scanner) Watch(ctx context.Context, root string, debounce time.Duration, onResult func(*Result, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := s.addDirectories(watcher, root, root); err != nil {
		return err
	}

	fsys := os.DirFS(root)
	onResult(s.Scan(ctx, fsys))

	// A stopped timer with a drained channel; armed by the first change.
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := s.addDirectories(watcher, root, event.Name); err != nil {
						s.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}

			if !s.shouldRescan(root, event) {
				continue
			}
			s.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			timer.Reset(debounce)

		case <-timer.C:
			onResult(s.Scan(ctx, fsys))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("file watcher error", "error", err)
		}
	}
}

// shouldRescan filters events to writes, creations, removals and renames of
// files the scan would read.
func (s *Scanner) shouldRescan(root string, event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, event.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	if cov := coverageRel(root, s.cfg.CoverageFile); cov != "" && cov == rel {
		return true
	}
	if _, ok := s.parsers[filepath.Ext(rel)]; !ok {
		return false
	}
	return s.discovery.Included(rel)
}

// coverageRel returns the coverage file as a slash path relative to root.
// Relative paths are taken as already root-relative.
func coverageRel(root, cov string) string {
	if cov == "" {
		return ""
	}
	if filepath.IsAbs(cov) {
		rel, err := filepath.Rel(root, cov)
		if err != nil {
			return ""
		}
		cov = rel
	}
	return filepath.ToSlash(filepath.Clean(cov))
}

// addDirectories adds dir and every non-ignored directory below it.
func (s *Scanner) addDirectories(watcher *fsnotify.Watcher, root, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			s.logger.Warn("failed to access directory", "path", path, "error", err)
			return nil
		}
		if !entry.IsDir() {
			return nil
		}

		if rel, err := filepath.Rel(root, path); err == nil && rel != "." && s.discovery.Ignored(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			s.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}
