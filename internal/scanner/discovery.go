package scanner

import (
	"io/fs"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Discovery selects source files with include and ignore globs.
type Discovery struct {
	include []compiledPattern
	ignore  []compiledPattern
}

// NewDiscovery compiles the include and ignore patterns.
func NewDiscovery(include, ignore []string) (*Discovery, error) {
	d := &Discovery{}
	var err error
	if d.include, err = compilePatterns(include); err != nil {
		return nil, err
	}
	if d.ignore, err = compilePatterns(ignore); err != nil {
		return nil, err
	}
	return d, nil
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		out = append(out, compiledPattern{pattern: pattern, glob: g})
	}
	return out, nil
}

// Discover walks fsys and returns the slash-separated paths of every file
// that matches an include pattern and no ignore pattern, sorted.
func (d *Discovery) Discover(fsys fs.FS) ([]string, error) {
	files := []string{}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == "." {
			return nil
		}

		if entry.IsDir() {
			if d.Ignored(path) {
				return fs.SkipDir
			}
			return nil
		}

		if d.Ignored(path) || !matchesAnyPattern(path, d.include) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// Included reports whether a relative path would be discovered.
func (d *Discovery) Included(path string) bool {
	return !d.Ignored(path) && matchesAnyPattern(path, d.include)
}

// Ignored reports whether path, or the directory it names, is ignored.
func (d *Discovery) Ignored(path string) bool {
	if matchesAnyPattern(path, d.ignore) {
		return true
	}

	// A directory "node_modules" matches the pattern "node_modules/**".
	return matchesAnyPattern(path+"/**", d.ignore)
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	// Root files: "**/*.go" also matches "main.go".
	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if strings.HasPrefix(cp.pattern, "**/") {
				if g, err := glob.Compile(strings.TrimPrefix(cp.pattern, "**/"), '/'); err == nil && g.Match(path) {
					return true
				}
			}
		}
	}

	return false
}
