package frontend

import (
	"errors"
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrSyntax is wrapped by every front-end parse failure.
var ErrSyntax = errors.New("syntax error")

// treeSitterParser provides common tree-sitter parsing functionality.
type treeSitterParser struct {
	language *sitter.Language
	lang     string
}

// newTreeSitterParser creates a new tree-sitter parser for the given language.
func newTreeSitterParser(language *sitter.Language, lang string) *treeSitterParser {
	return &treeSitterParser{
		language: language,
		lang:     lang,
	}
}

// parse returns a syntax tree the caller must Close. Trees containing error
// or missing nodes are rejected with the line of the first one.
func (p *treeSitterParser) parse(relPath string, source []byte) (*sitter.Tree, error) {
	// sitter.Parser is not safe for concurrent use; one per file.
	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(p.language); err != nil {
		return nil, fmt.Errorf("failed to set %s language: %w", p.lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("%w: failed to parse %s file: %s", ErrSyntax, p.lang, relPath)
	}

	root := tree.RootNode()
	if root.HasError() {
		line := firstErrorLine(root)
		tree.Close()
		return nil, fmt.Errorf("%w: %s:%d", ErrSyntax, relPath, line)
	}

	return tree, nil
}

func firstErrorLine(root *sitter.Node) int {
	line := int(root.StartPosition().Row) + 1
	found := false
	walkTree(root, func(n *sitter.Node) bool {
		if found {
			return false
		}
		if n.IsError() || n.IsMissing() {
			line = nodeLine(n)
			found = true
			return false
		}
		return n.HasError()
	})
	return line
}

// extractNodeText extracts the text content of a tree-sitter node.
func extractNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

func nodeLine(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

func nodeEndLine(node *sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}

// walkTree recursively walks a tree-sitter tree and calls the visitor for each node.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		walkTree(child, visitor)
	}
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// findChildrenByType finds all child nodes with the given type.
func findChildrenByType(node *sitter.Node, nodeType string) []*sitter.Node {
	var results []*sitter.Node
	if node == nil {
		return results
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == nodeType {
			results = append(results, child)
		}
	}
	return results
}

// namedChildren returns the named children of a node.
func namedChildren(node *sitter.Node) []*sitter.Node {
	var results []*sitter.Node
	if node == nil {
		return results
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		results = append(results, node.NamedChild(uint(i)))
	}
	return results
}

// bodyMetrics counts statements and decision points below a body node.
type bodyMetrics struct {
	branchKinds map[string]bool
	// declKinds are declarations that count as statements.
	declKinds map[string]bool
	// caseLabel reports whether a node is a non-default switch arm.
	caseLabel func(*sitter.Node) bool
}

func (m bodyMetrics) count(body *sitter.Node) (statements, branches int) {
	walkTree(body, func(n *sitter.Node) bool {
		kind := n.Kind()
		if strings.HasSuffix(kind, "_statement") || m.declKinds[kind] {
			statements++
		}
		if m.branchKinds[kind] || (m.caseLabel != nil && m.caseLabel(n)) {
			branches++
		}
		return true
	})
	return statements, branches
}

// isGeneratedHeader inspects the leading comments of a file.
func isGeneratedHeader(root *sitter.Node, source []byte) bool {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(uint(i))
		if !strings.Contains(child.Kind(), "comment") {
			break
		}
		text := extractNodeText(child, source)
		if strings.Contains(text, "@generated") ||
			strings.Contains(text, "Code generated") ||
			strings.Contains(text, "DO NOT EDIT") {
			return true
		}
	}
	return false
}

// baseTypeName strips generics, arrays and qualification from a type:
// "java.util.Optional<String>[]" -> "Optional".
func baseTypeName(typ string) string {
	typ = strings.TrimSpace(typ)
	if i := strings.IndexAny(typ, "<["); i >= 0 {
		typ = typ[:i]
	}
	if i := strings.LastIndex(typ, "."); i >= 0 {
		typ = typ[i+1:]
	}
	return strings.TrimSpace(typ)
}

// overloadSuffixes returns an Overload suffix per index for names that repeat.
func overloadSuffixes(names []string, paramTypes [][]string) []string {
	seen := make(map[string]int)
	for _, n := range names {
		seen[n]++
	}
	suffixes := make([]string, len(names))
	for i, n := range names {
		if seen[n] > 1 {
			var parts []string
			for _, t := range paramTypes[i] {
				parts = append(parts, baseTypeName(t))
			}
			suffixes[i] = "(" + strings.Join(parts, ",") + ")"
		}
	}
	return suffixes
}
