// Package frontend holds the language front-ends. Each one turns the bytes of
// a single source file into a model.SyntaxFile; none of them classify.
package frontend

import (
	"context"
	"fmt"
	"go/ast"
	"go/build/constraint"
	"go/parser"
	"go/token"
	"go/types"
	"path"
	"runtime"
	"strings"
	"unicode"

	"github.com/mvp-joe/archlint/internal/model"
)

// GoParser extracts declarations from Go files using go/ast.
type GoParser struct {
	goos   string
	goarch string
}

// NewGoParser creates a Go front-end that honours build constraints for the
// host platform.
func NewGoParser() *GoParser {
	return &GoParser{goos: runtime.GOOS, goarch: runtime.GOARCH}
}

// NewGoParserFor creates a Go front-end evaluating build constraints for the
// given platform.
func NewGoParserFor(goos, goarch string) *GoParser {
	return &GoParser{goos: goos, goarch: goarch}
}

// Language implements the scanner's parser contract.
func (p *GoParser) Language() model.Language { return model.LanguageGo }

// Extensions lists the file extensions this front-end handles.
func (p *GoParser) Extensions() []string { return []string{".go"} }

// Parse parses one Go file. It returns nil, nil when the file is excluded by
// its build constraints.
func (p *GoParser) Parse(ctx context.Context, relPath string, src []byte) (*model.SyntaxFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.matchFileName(path.Base(relPath)) {
		return nil, nil
	}

	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, relPath, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Go file: %w", err)
	}
	if !p.matchBuildConstraint(node) {
		return nil, nil
	}

	file := &model.SyntaxFile{
		Path:      relPath,
		Language:  model.LanguageGo,
		Module:    goModule(relPath, node.Name.Name),
		Generated: ast.IsGenerated(node),
	}

	for _, imp := range node.Imports {
		file.Imports = append(file.Imports, model.Import{
			Path: strings.Trim(imp.Path.Value, `"`),
			Line: fset.Position(imp.Pos()).Line,
		})
	}

	w := &goWalker{
		fset:    fset,
		module:  file.Module,
		imports: buildImportMap(node),
		isTest:  strings.HasSuffix(relPath, "_test.go"),
		asserts: make(map[string][]string),
	}

	// Walk package-level declarations only (skip function-scoped types)
	for _, decl := range node.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			switch d.Tok {
			case token.TYPE:
				for _, spec := range d.Specs {
					if ts, ok := spec.(*ast.TypeSpec); ok {
						w.extractType(ts)
					}
				}
			case token.VAR:
				w.extractAssertions(d)
			}
		case *ast.FuncDecl:
			w.extractFunction(d)
		}
	}

	w.resolveSealed()
	w.attachAssertions()
	file.Decls = w.decls

	return file, nil
}

// goModule derives the module key from the relative file path.
// For example: "internal/graph/builder.go" -> "internal/graph".
// External test packages get a "_test" suffix so their symbols never
// collide with the package under test.
func goModule(relPath, pkgName string) string {
	dir := path.Dir(relPath)
	if dir == "." {
		dir = pkgName
	}
	if strings.HasSuffix(pkgName, "_test") {
		return dir + "_test"
	}
	return dir
}

// buildImportMap builds a map of import aliases to full import paths.
func buildImportMap(node *ast.File) map[string]string {
	imports := make(map[string]string)

	for _, imp := range node.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)

		var alias string
		if imp.Name != nil {
			// Explicit alias: import foo "path/to/package"
			alias = imp.Name.Name
		} else {
			alias = defaultImportName(importPath)
		}
		if alias == "_" || alias == "." {
			continue
		}

		imports[alias] = importPath
	}

	return imports
}

// defaultImportName guesses the package name of an import path: the last
// element, skipping major-version suffixes ("v2") and a "go-" prefix.
func defaultImportName(importPath string) string {
	parts := strings.Split(importPath, "/")
	name := parts[len(parts)-1]
	if len(parts) > 1 && isMajorVersion(name) {
		name = parts[len(parts)-2]
	}
	name = strings.TrimPrefix(name, "go-")
	name = strings.TrimSuffix(name, ".go")
	return strings.ReplaceAll(name, "-", "")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

type goWalker struct {
	fset    *token.FileSet
	module  string
	imports map[string]string
	isTest  bool
	decls   []model.SyntaxDecl
	asserts map[string][]string // type name -> asserted interfaces
}

func (w *goWalker) line(pos token.Pos) int {
	return w.fset.Position(pos).Line
}

// extractType records interface, struct and other named type declarations.
func (w *goWalker) extractType(ts *ast.TypeSpec) {
	decl := model.SyntaxDecl{
		Shape:   model.ShapeType,
		Name:    ts.Name.Name,
		Line:    w.line(ts.Pos()),
		EndLine: w.line(ts.End()),
	}

	switch t := ts.Type.(type) {
	case *ast.InterfaceType:
		decl.Shape = model.ShapeInterface
		decl.Methods = interfaceMethods(t)
	case *ast.StructType:
		for _, f := range t.Fields.List {
			typ := types.ExprString(f.Type)
			if len(f.Names) == 0 {
				// Embedded field
				decl.Fields = append(decl.Fields, model.SyntaxField{Name: typ, Type: typ, Mutable: true})
				continue
			}
			for _, n := range f.Names {
				decl.Fields = append(decl.Fields, model.SyntaxField{Name: n.Name, Type: typ, Mutable: true})
			}
		}
	}

	w.decls = append(w.decls, decl)
}

func interfaceMethods(iface *ast.InterfaceType) []model.MethodSig {
	var methods []model.MethodSig
	for _, m := range iface.Methods.List {
		ft, ok := m.Type.(*ast.FuncType)
		if !ok {
			// Embedded interface or type constraint
			continue
		}
		for _, n := range m.Names {
			methods = append(methods, model.MethodSig{
				Name:    n.Name,
				Params:  countFields(ft.Params),
				Returns: countFields(ft.Results),
			})
		}
	}
	return methods
}

// countFields counts declared entries, expanding "a, b int" to two.
func countFields(fl *ast.FieldList) int {
	if fl == nil {
		return 0
	}
	n := 0
	for _, f := range fl.List {
		if len(f.Names) == 0 {
			n++
			continue
		}
		n += len(f.Names)
	}
	return n
}

// extractAssertions records compile-time interface assertions of the form
// var _ I = (*T)(nil), var _ I = T{} or var _ I = &T{}.
func (w *goWalker) extractAssertions(d *ast.GenDecl) {
	for _, spec := range d.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok || vs.Type == nil || len(vs.Names) != 1 || vs.Names[0].Name != "_" || len(vs.Values) != 1 {
			continue
		}
		iface := w.qualifyType(vs.Type)
		typ := assertedType(vs.Values[0])
		if iface == "" || typ == "" {
			continue
		}
		w.asserts[typ] = append(w.asserts[typ], iface)
	}
}

func assertedType(expr ast.Expr) string {
	switch v := expr.(type) {
	case *ast.CallExpr:
		// (*T)(nil)
		if paren, ok := v.Fun.(*ast.ParenExpr); ok {
			if star, ok := paren.X.(*ast.StarExpr); ok {
				return identName(star.X)
			}
		}
	case *ast.CompositeLit:
		return identName(v.Type)
	case *ast.UnaryExpr:
		if v.Op == token.AND {
			if lit, ok := v.X.(*ast.CompositeLit); ok {
				return identName(lit.Type)
			}
		}
	}
	return ""
}

func identName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return identName(t.X)
	case *ast.IndexListExpr:
		return identName(t.X)
	}
	return ""
}

// qualifyType resolves a type expression to module.Name or importpath.Name.
func (w *goWalker) qualifyType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return w.module + "." + t.Name
	case *ast.SelectorExpr:
		if pkg, ok := t.X.(*ast.Ident); ok {
			if importPath, ok := w.imports[pkg.Name]; ok {
				return importPath + "." + t.Sel.Name
			}
		}
	}
	return ""
}

// extractFunction records functions and methods with their body metrics.
func (w *goWalker) extractFunction(fn *ast.FuncDecl) {
	name := fn.Name.Name
	if name == "init" || name == "_" {
		// May repeat within a package and cannot be referenced
		return
	}

	decl := model.SyntaxDecl{
		Shape:   model.ShapeFunc,
		Name:    name,
		Line:    w.line(fn.Pos()),
		EndLine: w.line(fn.End()),
		Params:  countFields(fn.Type.Params),
		Returns: countFields(fn.Type.Results),
	}
	if fn.Type.Params != nil {
		for _, f := range fn.Type.Params.List {
			typ := types.ExprString(f.Type)
			for range max(1, len(f.Names)) {
				decl.ParamTypes = append(decl.ParamTypes, typ)
			}
		}
	}

	recvName := ""
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		decl.Shape = model.ShapeMethod
		decl.Receiver = extractReceiverType(fn.Recv.List[0].Type)
		if names := fn.Recv.List[0].Names; len(names) > 0 {
			recvName = names[0].Name
		}
	}

	decl.IsTest = w.isTest && decl.Shape == model.ShapeFunc && isTestFuncName(name)

	if fn.Body != nil {
		locals := collectLocals(fn)
		decl.Statements, decl.Branches = countBody(fn.Body)
		decl.Calls = w.extractCalls(fn.Body, recvName, decl.Receiver, locals)
	}

	w.decls = append(w.decls, decl)
}

// extractReceiverType extracts the type name from a receiver expression.
func extractReceiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		// (*T) receiver
		return extractReceiverType(t.X)
	case *ast.Ident, *ast.IndexExpr, *ast.IndexListExpr:
		// (T) or generic (T[K]) receiver
		return identName(t)
	}
	return "unknown"
}

func isTestFuncName(name string) bool {
	for _, prefix := range []string{"Test", "Benchmark", "Fuzz", "Example"} {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		if rest == "" || rest[0] == '_' || !unicode.IsLower(rune(rest[0])) {
			return true
		}
	}
	return false
}

// collectLocals gathers identifiers bound inside a function so calls through
// them are not mistaken for package-level functions.
func collectLocals(fn *ast.FuncDecl) map[string]bool {
	locals := make(map[string]bool)
	addFields := func(fl *ast.FieldList) {
		if fl == nil {
			return
		}
		for _, f := range fl.List {
			for _, n := range f.Names {
				locals[n.Name] = true
			}
		}
	}
	addFields(fn.Recv)
	addFields(fn.Type.Params)
	addFields(fn.Type.Results)

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.AssignStmt:
			if s.Tok == token.DEFINE {
				for _, lhs := range s.Lhs {
					if id, ok := lhs.(*ast.Ident); ok {
						locals[id.Name] = true
					}
				}
			}
		case *ast.ValueSpec:
			for _, id := range s.Names {
				locals[id.Name] = true
			}
		case *ast.RangeStmt:
			for _, e := range []ast.Expr{s.Key, s.Value} {
				if id, ok := e.(*ast.Ident); ok {
					locals[id.Name] = true
				}
			}
		case *ast.FuncLit:
			addFields(s.Type.Params)
			addFields(s.Type.Results)
		}
		return true
	})
	// Receiver stays qualifiable even though it is a bound name.
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		for _, n := range fn.Recv.List[0].Names {
			delete(locals, n.Name)
		}
	}
	return locals
}

// countBody counts statements and decision points in a function body.
func countBody(body *ast.BlockStmt) (statements, branches int) {
	ast.Inspect(body, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.BlockStmt, *ast.LabeledStmt, *ast.EmptyStmt:
		case *ast.CaseClause:
			if s.List != nil {
				branches++
			}
		case *ast.CommClause:
			if s.Comm != nil {
				branches++
			}
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt:
			statements++
			branches++
		case ast.Stmt:
			statements++
		}
		return true
	})
	return statements, branches
}

// extractCalls extracts call sites from a function body.
func (w *goWalker) extractCalls(body *ast.BlockStmt, recvName, recvType string, locals map[string]bool) []model.SyntaxCall {
	var calls []model.SyntaxCall

	ast.Inspect(body, func(n ast.Node) bool {
		callExpr, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		call, ok := w.callee(callExpr.Fun, recvName, recvType, locals)
		if !ok {
			return true
		}
		call.Line = w.line(callExpr.Pos())
		calls = append(calls, call)
		return true
	})

	return calls
}

func (w *goWalker) callee(fun ast.Expr, recvName, recvType string, locals map[string]bool) (model.SyntaxCall, bool) {
	switch f := fun.(type) {
	case *ast.Ident:
		// Direct call: foo()
		if isBuiltin(f.Name) {
			return model.SyntaxCall{}, false
		}
		if locals[f.Name] {
			return model.SyntaxCall{Name: f.Name}, true
		}
		// Qualify with module for same-package calls
		return model.SyntaxCall{Name: f.Name, Target: w.module + "." + f.Name, Qualified: true}, true

	case *ast.SelectorExpr:
		if ident, ok := f.X.(*ast.Ident); ok {
			name := ident.Name + "." + f.Sel.Name
			switch {
			case recvName != "" && ident.Name == recvName:
				return model.SyntaxCall{Name: name, Target: w.module + "." + recvType + "." + f.Sel.Name, Qualified: true}, true
			case !locals[ident.Name] && w.imports[ident.Name] != "":
				return model.SyntaxCall{Name: name, Target: w.imports[ident.Name] + "." + f.Sel.Name, Qualified: true}, true
			default:
				return model.SyntaxCall{Name: name}, true
			}
		}
		// Nested selector: obj.field.Method()
		if chain := extractSelectorChain(f); chain != "" {
			return model.SyntaxCall{Name: chain}, true
		}

	case *ast.IndexExpr:
		// Explicit instantiation: Map[int](xs)
		return w.callee(f.X, recvName, recvType, locals)
	case *ast.IndexListExpr:
		return w.callee(f.X, recvName, recvType, locals)
	}

	return model.SyntaxCall{}, false
}

// extractSelectorChain extracts a chain of selectors like "a.b.c".
func extractSelectorChain(expr *ast.SelectorExpr) string {
	var parts []string

	// Walk backwards through selector chain
	for {
		parts = append([]string{expr.Sel.Name}, parts...)

		switch x := expr.X.(type) {
		case *ast.Ident:
			parts = append([]string{x.Name}, parts...)
			return strings.Join(parts, ".")
		case *ast.SelectorExpr:
			expr = x
		default:
			// Complex expression, give up
			return ""
		}
	}
}

var builtins = map[string]bool{
	"append": true, "cap": true, "clear": true, "close": true, "complex": true,
	"copy": true, "delete": true, "imag": true, "len": true, "make": true,
	"max": true, "min": true, "new": true, "panic": true, "print": true,
	"println": true, "real": true, "recover": true,
	// Conversions to predeclared types
	"bool": true, "byte": true, "rune": true, "int": true, "int8": true,
	"int16": true, "int32": true, "int64": true, "uint": true, "uint8": true,
	"uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
	"string": true, "error": true, "any": true,
}

func isBuiltin(name string) bool {
	return builtins[name]
}

// resolveSealed marks interfaces whose method set is a single unexported
// marker as sealed, and lists the file's types implementing the marker.
func (w *goWalker) resolveSealed() {
	markers := make(map[string][]string) // marker method -> receiver types
	for _, d := range w.decls {
		if d.Shape == model.ShapeMethod && d.Params == 0 && d.Returns == 0 && !ast.IsExported(d.Name) {
			markers[d.Name] = append(markers[d.Name], d.Receiver)
		}
	}

	for i := range w.decls {
		d := &w.decls[i]
		if d.Shape != model.ShapeInterface || len(d.Methods) == 0 {
			continue
		}
		for _, m := range d.Methods {
			if m.Params != 0 || m.Returns != 0 || ast.IsExported(m.Name) {
				continue
			}
			d.Sealed = true
			d.Permits = append(d.Permits, markers[m.Name]...)
		}
		if d.Sealed {
			d.Shape = model.ShapeType
			d.Methods = nil
		}
	}
}

func (w *goWalker) attachAssertions() {
	for i := range w.decls {
		d := &w.decls[i]
		if d.Shape == model.ShapeType {
			d.Implements = append(d.Implements, w.asserts[d.Name]...)
		}
	}
}

// matchFileName applies the _GOOS, _GOARCH and _GOOS_GOARCH file name rules.
func (p *GoParser) matchFileName(name string) bool {
	name = strings.TrimSuffix(name, ".go")
	name = strings.TrimSuffix(name, "_test")
	parts := strings.Split(name, "_")
	n := len(parts)
	if n < 2 {
		return true
	}
	last := parts[n-1]
	if n >= 3 && knownOS[parts[n-2]] && knownArch[last] {
		return parts[n-2] == p.goos && last == p.goarch
	}
	if knownOS[last] {
		return last == p.goos
	}
	if knownArch[last] {
		return last == p.goarch
	}
	return true
}

// matchBuildConstraint evaluates a //go:build line, if any.
func (p *GoParser) matchBuildConstraint(node *ast.File) bool {
	for _, group := range node.Comments {
		if group.Pos() >= node.Package {
			break
		}
		for _, c := range group.List {
			if !constraint.IsGoBuild(c.Text) {
				continue
			}
			expr, err := constraint.Parse(c.Text)
			if err != nil {
				return true
			}
			return expr.Eval(p.matchTag)
		}
	}
	return true
}

func (p *GoParser) matchTag(tag string) bool {
	switch {
	case tag == p.goos, tag == p.goarch:
		return true
	case tag == "unix":
		return unixOS[p.goos]
	case tag == "gc", tag == "cgo":
		return true
	case strings.HasPrefix(tag, "go1."):
		return true
	}
	return false
}

var knownOS = map[string]bool{
	"aix": true, "android": true, "darwin": true, "dragonfly": true, "freebsd": true,
	"hurd": true, "illumos": true, "ios": true, "js": true, "linux": true,
	"nacl": true, "netbsd": true, "openbsd": true, "plan9": true, "solaris": true,
	"wasip1": true, "windows": true, "zos": true,
}

var unixOS = map[string]bool{
	"aix": true, "android": true, "darwin": true, "dragonfly": true, "freebsd": true,
	"hurd": true, "illumos": true, "ios": true, "linux": true, "netbsd": true,
	"openbsd": true, "solaris": true,
}

var knownArch = map[string]bool{
	"386": true, "amd64": true, "arm": true, "arm64": true, "loong64": true,
	"mips": true, "mipsle": true, "mips64": true, "mips64le": true,
	"ppc64": true, "ppc64le": true, "riscv64": true, "s390x": true, "wasm": true,
}
