package extractor

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mvp-joe/archlint/internal/config"
	"github.com/mvp-joe/archlint/internal/model"
)

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// NameSet matches call targets and symbol names against globs. Patterns are
// compiled without separators, so "*" also spans dots.
type NameSet struct {
	patterns []compiledPattern
}

// NewNameSet compiles a list of name globs.
func NewNameSet(patterns []string) (*NameSet, error) {
	s := &NameSet{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		s.patterns = append(s.patterns, compiledPattern{pattern: p, glob: g})
	}
	return s, nil
}

// Match reports whether any pattern matches name.
func (s *NameSet) Match(name string) bool {
	if s == nil || name == "" {
		return false
	}
	for _, cp := range s.patterns {
		if cp.glob.Match(name) {
			return true
		}
	}
	return false
}

// MatchCall matches the callee as written, then its last segment, so that
// "useState" also matches "React.useState".
func (s *NameSet) MatchCall(name string) bool {
	if s.Match(name) {
		return true
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		return s.Match(name[i+1:])
	}
	return false
}

type layerRule struct {
	compiledPattern
	// root matches the pattern without its leading "**/", so that
	// "**/domain/**" also covers "domain/order.go".
	root  glob.Glob
	layer model.Layer
}

// LayerMap assigns layers by path. Rules are ordered and the first match
// wins; paths matching nothing are unclassified.
type LayerMap struct {
	rules []layerRule
}

// NewLayerMap compiles an ordered layer map.
func NewLayerMap(mappings []config.LayerMapping) (*LayerMap, error) {
	lm := &LayerMap{}
	for _, m := range mappings {
		layer, ok := model.ParseLayer(m.Layer)
		if !ok {
			return nil, fmt.Errorf("unknown layer %q for pattern %q", m.Layer, m.Pattern)
		}
		g, err := glob.Compile(m.Pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid layer pattern %q: %w", m.Pattern, err)
		}
		rule := layerRule{compiledPattern: compiledPattern{pattern: m.Pattern, glob: g}, layer: layer}
		if rest, ok := strings.CutPrefix(m.Pattern, "**/"); ok {
			if rule.root, err = glob.Compile(rest, '/'); err != nil {
				return nil, fmt.Errorf("invalid layer pattern %q: %w", m.Pattern, err)
			}
		}
		lm.rules = append(lm.rules, rule)
	}
	return lm, nil
}

// Layer returns the layer of a slash-separated relative path.
func (lm *LayerMap) Layer(path string) model.Layer {
	if lm == nil {
		return model.LayerUnclassified
	}
	for _, r := range lm.rules {
		if r.glob.Match(path) || (r.root != nil && r.root.Match(path)) {
			return r.layer
		}
	}
	return model.LayerUnclassified
}
