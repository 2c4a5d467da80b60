package frontend

import (
	"context"
	"path"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/mvp-joe/archlint/internal/model"
)

// TypeScriptParser parses TypeScript and TSX files. The grammar is chosen by
// file extension since TSX is not a superset of TypeScript.
type TypeScriptParser struct {
	ts  *treeSitterParser
	tsx *treeSitterParser
}

// NewTypeScriptParser creates a new TypeScript parser.
func NewTypeScriptParser() *TypeScriptParser {
	return &TypeScriptParser{
		ts:  newTreeSitterParser(sitter.NewLanguage(typescript.LanguageTypescript()), "typescript"),
		tsx: newTreeSitterParser(sitter.NewLanguage(typescript.LanguageTSX()), "tsx"),
	}
}

// Language implements the scanner's parser contract.
func (p *TypeScriptParser) Language() model.Language { return model.LanguageTypeScript }

// Extensions lists the file extensions this front-end handles.
func (p *TypeScriptParser) Extensions() []string { return []string{".ts", ".tsx"} }

var tsMetrics = bodyMetrics{
	branchKinds: map[string]bool{
		"if_statement":       true,
		"for_statement":      true,
		"for_in_statement":   true,
		"while_statement":    true,
		"do_statement":       true,
		"catch_clause":       true,
		"ternary_expression": true,
		"switch_case":        true,
	},
	declKinds: map[string]bool{
		"lexical_declaration":  true,
		"variable_declaration": true,
	},
}

// Parse parses a TypeScript source file.
func (p *TypeScriptParser) Parse(ctx context.Context, relPath string, source []byte) (*model.SyntaxFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, lang := p.ts, model.LanguageTypeScript
	if strings.HasSuffix(relPath, ".tsx") {
		base, lang = p.tsx, model.LanguageTSX
	}

	tree, err := base.parse(relPath, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()

	w := &tsWalker{
		source:     source,
		relPath:    relPath,
		module:     tsModule(relPath),
		named:      make(map[string]string),
		namespaces: make(map[string]string),
		locals:     make(map[string]bool),
	}

	file := &model.SyntaxFile{
		Path:      relPath,
		Language:  lang,
		Module:    w.module,
		Generated: isGeneratedHeader(root, source),
	}

	// Imports and top-level names first; calls refer to them.
	for _, child := range namedChildren(root) {
		switch child.Kind() {
		case "import_statement":
			file.Imports = append(file.Imports, w.extractImport(child))
		case "export_statement":
			if src := child.ChildByFieldName("source"); src != nil {
				file.Imports = append(file.Imports, model.Import{Path: w.resolve(unquote(w.text(src))), Line: nodeLine(child)})
			}
		}
		w.collectLocal(unwrapExport(child))
	}

	for _, child := range namedChildren(root) {
		w.extractTopLevel(unwrapExport(child))
	}
	file.Decls = w.decls

	return file, nil
}

// tsModule derives the module key from the file path: the path without its
// extension, or the directory for index files.
func tsModule(relPath string) string {
	ext := path.Ext(relPath)
	mod := strings.TrimSuffix(relPath, ext)
	if path.Base(mod) == "index" {
		return path.Dir(mod)
	}
	return mod
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}

func unwrapExport(n *sitter.Node) *sitter.Node {
	if n.Kind() != "export_statement" {
		return n
	}
	if decl := n.ChildByFieldName("declaration"); decl != nil {
		return decl
	}
	return n
}

type tsWalker struct {
	source     []byte
	relPath    string
	module     string
	named      map[string]string // local name -> resolved module + "." + exported name
	namespaces map[string]string // namespace alias -> resolved module
	locals     map[string]bool   // top-level names declared in this file
	decls      []model.SyntaxDecl
}

func (w *tsWalker) text(n *sitter.Node) string {
	return extractNodeText(n, w.source)
}

// resolve turns a relative import specifier into a module key.
func (w *tsWalker) resolve(spec string) string {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return spec
	}
	resolved := path.Clean(path.Join(path.Dir(w.relPath), spec))
	for _, ext := range []string{".js", ".jsx", ".ts", ".tsx"} {
		resolved = strings.TrimSuffix(resolved, ext)
	}
	if path.Base(resolved) == "index" {
		resolved = path.Dir(resolved)
	}
	return resolved
}

func (w *tsWalker) extractImport(n *sitter.Node) model.Import {
	mod := w.resolve(unquote(w.text(n.ChildByFieldName("source"))))

	if clause := findChildByType(n, "import_clause"); clause != nil {
		for _, c := range namedChildren(clause) {
			switch c.Kind() {
			case "identifier":
				// Default import
				w.named[w.text(c)] = mod + ".default"
			case "namespace_import":
				if id := findChildByType(c, "identifier"); id != nil {
					w.namespaces[w.text(id)] = mod
				}
			case "named_imports":
				for _, spec := range findChildrenByType(c, "import_specifier") {
					name := w.text(spec.ChildByFieldName("name"))
					local := name
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						local = w.text(alias)
					}
					w.named[local] = mod + "." + name
				}
			}
		}
	}

	return model.Import{Path: mod, Line: nodeLine(n)}
}

func (w *tsWalker) collectLocal(n *sitter.Node) {
	switch n.Kind() {
	case "function_declaration", "generator_function_declaration", "class_declaration",
		"abstract_class_declaration", "interface_declaration", "type_alias_declaration", "enum_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			w.locals[w.text(name)] = true
		}
	case "lexical_declaration", "variable_declaration":
		for _, d := range findChildrenByType(n, "variable_declarator") {
			if name := d.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
				w.locals[w.text(name)] = true
			}
		}
	}
}

func (w *tsWalker) extractTopLevel(n *sitter.Node) {
	switch n.Kind() {
	case "function_declaration", "generator_function_declaration":
		w.extractFunction(n, w.text(n.ChildByFieldName("name")), n)
	case "lexical_declaration", "variable_declaration":
		for _, d := range findChildrenByType(n, "variable_declarator") {
			value := d.ChildByFieldName("value")
			name := d.ChildByFieldName("name")
			if value == nil || name == nil || name.Kind() != "identifier" {
				continue
			}
			switch value.Kind() {
			case "arrow_function", "function_expression", "function":
				w.extractFunction(value, w.text(name), d)
			}
		}
	case "class_declaration", "abstract_class_declaration":
		w.extractClass(n)
	case "interface_declaration":
		w.extractInterface(n)
	case "type_alias_declaration":
		w.extractTypeAlias(n)
	case "enum_declaration":
		w.decls = append(w.decls, model.SyntaxDecl{
			Shape:   model.ShapeType,
			Name:    w.text(n.ChildByFieldName("name")),
			Line:    nodeLine(n),
			EndLine: nodeEndLine(n),
			Record:  true,
		})
	}
}

// extractFunction records a top-level function. span is the node whose lines
// the declaration covers (the declarator for arrow functions).
func (w *tsWalker) extractFunction(fn *sitter.Node, name string, span *sitter.Node) {
	if name == "" {
		return
	}
	decl := w.functionDecl(fn, name, "")
	decl.Line = nodeLine(span)
	decl.EndLine = nodeEndLine(span)
	w.decls = append(w.decls, decl)
}

func (w *tsWalker) functionDecl(fn *sitter.Node, name, owner string) model.SyntaxDecl {
	decl := model.SyntaxDecl{
		Shape:    model.ShapeFunc,
		Name:     name,
		Receiver: owner,
		Line:     nodeLine(fn),
		EndLine:  nodeEndLine(fn),
		Returns:  1,
	}
	if owner != "" {
		decl.Shape = model.ShapeMethod
	}

	if params := fn.ChildByFieldName("parameters"); params != nil {
		decl.Params, decl.ParamTypes = w.params(params)
	} else if param := fn.ChildByFieldName("parameter"); param != nil {
		// x => ...
		decl.Params, decl.ParamTypes = 1, []string{""}
	}
	if rt := fn.ChildByFieldName("return_type"); rt != nil {
		if t := strings.TrimSpace(strings.TrimPrefix(w.text(rt), ":")); t == "void" || t == "Promise<void>" {
			decl.Returns = 0
		}
	}

	body := fn.ChildByFieldName("body")
	if body == nil {
		return decl
	}
	if body.Kind() == "statement_block" {
		decl.Statements, decl.Branches = tsMetrics.count(body)
	} else {
		// Expression body
		_, decl.Branches = tsMetrics.count(body)
		decl.Statements = 1
	}
	decl.Calls = w.extractCalls(body, owner)
	decl.ReturnsMarkup = containsMarkup(body)
	return decl
}

// params counts parameters. A single destructured object parameter counts
// its properties, which is how component props are declared.
func (w *tsWalker) params(params *sitter.Node) (int, []string) {
	var types []string
	var patterns []*sitter.Node
	for _, p := range namedChildren(params) {
		switch p.Kind() {
		case "required_parameter", "optional_parameter":
			typ := ""
			if t := p.ChildByFieldName("type"); t != nil {
				typ = strings.TrimSpace(strings.TrimPrefix(w.text(t), ":"))
			}
			types = append(types, typ)
			patterns = append(patterns, p.ChildByFieldName("pattern"))
		}
	}
	if len(patterns) == 1 && patterns[0] != nil && patterns[0].Kind() == "object_pattern" {
		n := 0
		for _, prop := range namedChildren(patterns[0]) {
			if prop.Kind() != "comment" {
				n++
			}
		}
		return n, types
	}
	return len(types), types
}

func containsMarkup(body *sitter.Node) bool {
	found := false
	walkTree(body, func(n *sitter.Node) bool {
		if found {
			return false
		}
		if strings.HasPrefix(n.Kind(), "jsx_") {
			found = true
			return false
		}
		return true
	})
	return found
}

// extractCalls extracts call and construction sites.
func (w *tsWalker) extractCalls(body *sitter.Node, owner string) []model.SyntaxCall {
	var calls []model.SyntaxCall
	walkTree(body, func(n *sitter.Node) bool {
		var callee *sitter.Node
		switch n.Kind() {
		case "call_expression":
			callee = n.ChildByFieldName("function")
		case "new_expression":
			callee = n.ChildByFieldName("constructor")
		default:
			return true
		}
		if call, ok := w.callee(callee, owner); ok {
			call.Line = nodeLine(n)
			calls = append(calls, call)
		}
		return true
	})
	return calls
}

func (w *tsWalker) callee(n *sitter.Node, owner string) (model.SyntaxCall, bool) {
	if n == nil {
		return model.SyntaxCall{}, false
	}
	switch n.Kind() {
	case "identifier":
		name := w.text(n)
		call := model.SyntaxCall{Name: name}
		if target, ok := w.named[name]; ok {
			call.Target, call.Qualified = target, true
		} else if w.locals[name] {
			call.Target, call.Qualified = w.module+"."+name, true
		}
		return call, true

	case "member_expression":
		obj := n.ChildByFieldName("object")
		prop := w.text(n.ChildByFieldName("property"))
		if obj == nil {
			return model.SyntaxCall{}, false
		}
		switch obj.Kind() {
		case "this":
			call := model.SyntaxCall{Name: "this." + prop}
			if owner != "" {
				call.Target, call.Qualified = w.module+"."+owner+"."+prop, true
			}
			return call, true
		case "identifier":
			id := w.text(obj)
			call := model.SyntaxCall{Name: id + "." + prop}
			if mod, ok := w.namespaces[id]; ok {
				call.Target, call.Qualified = mod+"."+prop, true
			} else if target, ok := w.named[id]; ok {
				call.Target, call.Qualified = target+"."+prop, true
			} else if w.locals[id] {
				call.Target, call.Qualified = w.module+"."+id+"."+prop, true
			}
			return call, true
		}
		text := w.text(n)
		if strings.ContainsAny(text, "([ \n") {
			return model.SyntaxCall{Name: prop}, true
		}
		return model.SyntaxCall{Name: text}, true
	}
	return model.SyntaxCall{}, false
}

func (w *tsWalker) extractClass(n *sitter.Node) {
	name := w.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	decl := model.SyntaxDecl{
		Shape:   model.ShapeType,
		Name:    name,
		Line:    nodeLine(n),
		EndLine: nodeEndLine(n),
	}

	if heritage := findChildByType(n, "class_heritage"); heritage != nil {
		if impl := findChildByType(heritage, "implements_clause"); impl != nil {
			for _, t := range namedChildren(impl) {
				decl.Implements = append(decl.Implements, w.qualifyType(w.text(t)))
			}
		}
	}

	body := n.ChildByFieldName("body")
	var methods []model.SyntaxDecl
	var names []string
	var paramTypes [][]string

	for _, member := range namedChildren(body) {
		switch member.Kind() {
		case "public_field_definition":
			decl.Fields = append(decl.Fields, model.SyntaxField{
				Name:    w.text(member.ChildByFieldName("name")),
				Type:    strings.TrimSpace(strings.TrimPrefix(w.text(member.ChildByFieldName("type")), ":")),
				Mutable: findChildByType(member, "readonly") == nil,
			})
		case "method_definition":
			mname := w.text(member.ChildByFieldName("name"))
			if mname == "constructor" {
				decl.Fields = append(decl.Fields, w.parameterProperties(member)...)
			}
			m := w.functionDecl(member, mname, name)
			methods = append(methods, m)
			names = append(names, m.Name)
			paramTypes = append(paramTypes, m.ParamTypes)
		}
	}
	for i, suffix := range overloadSuffixes(names, paramTypes) {
		methods[i].Overload = suffix
	}

	w.addTypeDecl(decl)
	w.decls = append(w.decls, methods...)
}

// parameterProperties returns fields declared through constructor
// parameters such as "private readonly repo: Repo".
func (w *tsWalker) parameterProperties(ctor *sitter.Node) []model.SyntaxField {
	var fields []model.SyntaxField
	for _, p := range namedChildren(ctor.ChildByFieldName("parameters")) {
		if findChildByType(p, "accessibility_modifier") == nil && findChildByType(p, "readonly") == nil {
			continue
		}
		fields = append(fields, model.SyntaxField{
			Name:    w.text(p.ChildByFieldName("pattern")),
			Type:    strings.TrimSpace(strings.TrimPrefix(w.text(p.ChildByFieldName("type")), ":")),
			Mutable: findChildByType(p, "readonly") == nil,
		})
	}
	return fields
}

func (w *tsWalker) extractInterface(n *sitter.Node) {
	decl := model.SyntaxDecl{
		Shape:   model.ShapeInterface,
		Name:    w.text(n.ChildByFieldName("name")),
		Line:    nodeLine(n),
		EndLine: nodeEndLine(n),
	}
	if ext := findChildByType(n, "extends_type_clause"); ext != nil {
		for _, t := range namedChildren(ext) {
			decl.Implements = append(decl.Implements, w.qualifyType(w.text(t)))
		}
	}
	for _, member := range namedChildren(n.ChildByFieldName("body")) {
		switch member.Kind() {
		case "method_signature":
			count, _ := w.params(member.ChildByFieldName("parameters"))
			returns := 1
			if rt := member.ChildByFieldName("return_type"); rt != nil && strings.TrimSpace(strings.TrimPrefix(w.text(rt), ":")) == "void" {
				returns = 0
			}
			decl.Methods = append(decl.Methods, model.MethodSig{
				Name:    w.text(member.ChildByFieldName("name")),
				Params:  count,
				Returns: returns,
			})
		case "property_signature":
			decl.Fields = append(decl.Fields, model.SyntaxField{
				Name:    w.text(member.ChildByFieldName("name")),
				Type:    strings.TrimSpace(strings.TrimPrefix(w.text(member.ChildByFieldName("type")), ":")),
				Mutable: findChildByType(member, "readonly") == nil,
			})
		}
	}
	w.addTypeDecl(decl)
}

// addTypeDecl applies declaration merging: a repeated interface folds its
// members into the first one, and a class absorbs an interface of the same
// name, so every merged name yields a single declaration.
func (w *tsWalker) addTypeDecl(decl model.SyntaxDecl) {
	for i := range w.decls {
		prev := &w.decls[i]
		if prev.Name != decl.Name || prev.Receiver != "" || (prev.Shape != model.ShapeInterface && prev.Shape != model.ShapeType) {
			continue
		}
		switch {
		case prev.Shape == model.ShapeInterface && decl.Shape == model.ShapeInterface:
			prev.Methods = append(prev.Methods, decl.Methods...)
			prev.Fields = append(prev.Fields, decl.Fields...)
			prev.Implements = append(prev.Implements, decl.Implements...)
		case prev.Shape == model.ShapeInterface:
			decl.Fields = append(decl.Fields, prev.Fields...)
			*prev = decl
		default:
			prev.Fields = append(prev.Fields, decl.Fields...)
		}
		return
	}
	w.decls = append(w.decls, decl)
}

// extractTypeAlias records aliases; a union alias is a closed set of variants.
func (w *tsWalker) extractTypeAlias(n *sitter.Node) {
	decl := model.SyntaxDecl{
		Shape:   model.ShapeType,
		Name:    w.text(n.ChildByFieldName("name")),
		Line:    nodeLine(n),
		EndLine: nodeEndLine(n),
	}
	if value := n.ChildByFieldName("value"); value != nil && value.Kind() == "union_type" {
		decl.Sealed = true
		decl.Permits = w.unionMembers(value)
	}
	w.decls = append(w.decls, decl)
}

func (w *tsWalker) unionMembers(n *sitter.Node) []string {
	var members []string
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "union_type":
			members = append(members, w.unionMembers(c)...)
		case "type_identifier", "generic_type", "nested_type_identifier":
			members = append(members, baseTypeName(w.text(c)))
		}
	}
	return members
}

func (w *tsWalker) qualifyType(typ string) string {
	typ = strings.TrimSpace(typ)
	if i := strings.Index(typ, "<"); i >= 0 {
		typ = typ[:i]
	}
	if target, ok := w.named[typ]; ok {
		return target
	}
	if dot := strings.Index(typ, "."); dot > 0 {
		if mod, ok := w.namespaces[typ[:dot]]; ok {
			return mod + typ[dot:]
		}
	}
	return w.module + "." + typ
}
