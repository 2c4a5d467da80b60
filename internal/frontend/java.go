package frontend

import (
	"context"
	"path"
	"strings"
	"unicode"

	sitter "github.com/tree-sitter/go-tree-sitter"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"github.com/mvp-joe/archlint/internal/model"
)

// JavaParser parses Java files.
type JavaParser struct {
	*treeSitterParser
}

// NewJavaParser creates a new Java parser.
func NewJavaParser() *JavaParser {
	lang := sitter.NewLanguage(java.Language())
	return &JavaParser{
		treeSitterParser: newTreeSitterParser(lang, "java"),
	}
}

// Language implements the scanner's parser contract.
func (p *JavaParser) Language() model.Language { return model.LanguageJava }

// Extensions lists the file extensions this front-end handles.
func (p *JavaParser) Extensions() []string { return []string{".java"} }

var javaMetrics = bodyMetrics{
	branchKinds: map[string]bool{
		"if_statement":           true,
		"for_statement":          true,
		"enhanced_for_statement": true,
		"while_statement":        true,
		"do_statement":           true,
		"catch_clause":           true,
		"ternary_expression":     true,
	},
	declKinds: map[string]bool{
		"local_variable_declaration": true,
	},
	caseLabel: func(n *sitter.Node) bool {
		return n.Kind() == "switch_label" && n.ChildCount() > 0 && n.Child(0).Kind() == "case"
	},
}

// java.lang types are never imported explicitly.
var javaLang = map[string]bool{
	"Boolean": true, "Byte": true, "Character": true, "Class": true, "Double": true,
	"Enum": true, "Exception": true, "Float": true, "IllegalArgumentException": true,
	"IllegalStateException": true, "Integer": true, "Iterable": true, "Long": true,
	"Math": true, "Object": true, "Record": true, "Runtime": true,
	"RuntimeException": true, "Short": true, "String": true, "StringBuilder": true,
	"System": true, "Thread": true, "UnsupportedOperationException": true,
}

// Parse parses a Java source file.
func (p *JavaParser) Parse(ctx context.Context, relPath string, source []byte) (*model.SyntaxFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tree, err := p.parse(relPath, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()

	w := &javaWalker{
		source:     source,
		imports:    make(map[string]string),
		localTypes: make(map[string]bool),
	}

	file := &model.SyntaxFile{
		Path:      relPath,
		Language:  model.LanguageJava,
		Generated: isGeneratedHeader(root, source),
	}

	for _, child := range namedChildren(root) {
		switch child.Kind() {
		case "package_declaration":
			w.pkg = w.extractPackageName(child)
		case "import_declaration":
			if imp, ok := w.extractImport(child); ok {
				file.Imports = append(file.Imports, imp)
			}
		}
	}
	if w.pkg == "" {
		w.pkg = path.Dir(relPath)
	}
	file.Module = w.pkg

	// Local type names first so references resolve regardless of order.
	walkTree(root, func(n *sitter.Node) bool {
		if isJavaTypeDecl(n.Kind()) {
			if name := n.ChildByFieldName("name"); name != nil {
				w.localTypes[extractNodeText(name, source)] = true
			}
		}
		return true
	})

	for _, child := range namedChildren(root) {
		if isJavaTypeDecl(child.Kind()) {
			w.extractTypeDecl(child, "")
		}
	}

	if w.generated {
		file.Generated = true
	}
	file.Decls = w.decls

	return file, nil
}

func isJavaTypeDecl(kind string) bool {
	switch kind {
	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
		return true
	}
	return false
}

type javaWalker struct {
	source     []byte
	pkg        string
	imports    map[string]string // simple name -> qualified name
	localTypes map[string]bool
	decls      []model.SyntaxDecl
	generated  bool
}

func (w *javaWalker) text(n *sitter.Node) string {
	return extractNodeText(n, w.source)
}

func (w *javaWalker) extractPackageName(n *sitter.Node) string {
	nameNode := findChildByType(n, "scoped_identifier")
	if nameNode == nil {
		nameNode = findChildByType(n, "identifier")
	}
	return w.text(nameNode)
}

// extractImport records single-type, wildcard and static imports.
func (w *javaWalker) extractImport(n *sitter.Node) (model.Import, bool) {
	nameNode := findChildByType(n, "scoped_identifier")
	if nameNode == nil {
		nameNode = findChildByType(n, "identifier")
	}
	if nameNode == nil {
		return model.Import{}, false
	}
	name := w.text(nameNode)
	isStatic := findChildByType(n, "static") != nil
	isWildcard := findChildByType(n, "asterisk") != nil

	if !isStatic && !isWildcard {
		w.imports[name[strings.LastIndex(name, ".")+1:]] = name
	}
	if isStatic && !isWildcard {
		// import static a.b.C.member depends on a.b.C
		if i := strings.LastIndex(name, "."); i > 0 {
			name = name[:i]
		}
	}
	return model.Import{Path: name, Line: nodeLine(n)}, true
}

// qualifyType resolves a type name through imports, then the current package.
func (w *javaWalker) qualifyType(typ string) string {
	typ = strings.TrimSpace(typ)
	if i := strings.Index(typ, "<"); i >= 0 {
		typ = typ[:i]
	}
	if strings.Contains(typ, ".") {
		return typ
	}
	if q, ok := w.imports[typ]; ok {
		return q
	}
	return w.pkg + "." + typ
}

type javaModifiers struct {
	final       bool
	static      bool
	sealed      bool
	annotations []string
}

func (w *javaWalker) modifiers(n *sitter.Node) javaModifiers {
	var mods javaModifiers
	m := findChildByType(n, "modifiers")
	if m == nil {
		return mods
	}
	for i := 0; i < int(m.ChildCount()); i++ {
		c := m.Child(uint(i))
		switch c.Kind() {
		case "final":
			mods.final = true
		case "static":
			mods.static = true
		case "sealed":
			mods.sealed = true
		case "marker_annotation", "annotation":
			mods.annotations = append(mods.annotations, baseTypeName(w.text(c.ChildByFieldName("name"))))
		}
	}
	return mods
}

func (w *javaWalker) typeList(n *sitter.Node) []string {
	var out []string
	if n == nil {
		return out
	}
	list := findChildByType(n, "type_list")
	if list == nil {
		list = n
	}
	for _, t := range namedChildren(list) {
		out = append(out, w.text(t))
	}
	return out
}

// extractTypeDecl records a class, interface, enum or record and its members.
func (w *javaWalker) extractTypeDecl(node *sitter.Node, prefix string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := prefix + w.text(nameNode)
	mods := w.modifiers(node)

	decl := model.SyntaxDecl{
		Shape:   model.ShapeType,
		Name:    name,
		Line:    nodeLine(node),
		EndLine: nodeEndLine(node),
		Sealed:  mods.sealed,
	}
	for _, a := range mods.annotations {
		if a == "Generated" {
			w.generated = true
		}
	}

	if permits := findChildByType(node, "permits"); permits != nil {
		for _, t := range w.typeList(permits) {
			decl.Permits = append(decl.Permits, baseTypeName(t))
		}
		decl.Sealed = true
	}
	for _, t := range w.typeList(node.ChildByFieldName("interfaces")) {
		decl.Implements = append(decl.Implements, w.qualifyType(t))
	}

	body := node.ChildByFieldName("body")

	switch node.Kind() {
	case "interface_declaration":
		decl.Shape = model.ShapeInterface
		for _, t := range w.typeList(findChildByType(node, "extends_interfaces")) {
			decl.Implements = append(decl.Implements, w.qualifyType(t))
		}
		for _, m := range findChildrenByType(body, "method_declaration") {
			decl.Methods = append(decl.Methods, model.MethodSig{
				Name:    w.text(m.ChildByFieldName("name")),
				Params:  len(w.paramTypes(m)),
				Returns: javaReturns(w.text(m.ChildByFieldName("type"))),
			})
		}
	case "record_declaration":
		decl.Record = true
		for _, t := range w.formalParams(node.ChildByFieldName("parameters")) {
			decl.Fields = append(decl.Fields, model.SyntaxField{Name: t[0], Type: t[1]})
		}
	case "enum_declaration":
		decl.Record = true
	default:
		decl.Fields = w.fields(body)
	}

	w.decls = append(w.decls, decl)
	w.extractMembers(body, name)
}

// fields collects instance fields; static state is not part of the value.
func (w *javaWalker) fields(body *sitter.Node) []model.SyntaxField {
	var fields []model.SyntaxField
	for _, f := range findChildrenByType(body, "field_declaration") {
		mods := w.modifiers(f)
		if mods.static {
			continue
		}
		typ := w.text(f.ChildByFieldName("type"))
		for _, d := range findChildrenByType(f, "variable_declarator") {
			fields = append(fields, model.SyntaxField{
				Name:    w.text(d.ChildByFieldName("name")),
				Type:    typ,
				Mutable: !mods.final,
			})
		}
	}
	return fields
}

// extractMembers emits method and constructor declarations and recurses
// into nested types.
func (w *javaWalker) extractMembers(body *sitter.Node, owner string) {
	if body == nil {
		return
	}

	var methods []model.SyntaxDecl
	var names []string
	var params [][]string

	for _, child := range namedChildren(body) {
		kind := child.Kind()
		switch {
		case kind == "method_declaration" || kind == "constructor_declaration" || kind == "compact_constructor_declaration":
			m, ok := w.extractMethod(child, owner)
			if !ok {
				continue
			}
			methods = append(methods, m)
			names = append(names, m.Name)
			params = append(params, m.ParamTypes)
		case isJavaTypeDecl(kind):
			w.extractTypeDecl(child, owner+".")
		case kind == "enum_body_declarations":
			w.extractMembers(child, owner)
		}
	}

	for i, suffix := range overloadSuffixes(names, params) {
		methods[i].Overload = suffix
	}
	w.decls = append(w.decls, methods...)
}

func (w *javaWalker) extractMethod(node *sitter.Node, owner string) (model.SyntaxDecl, bool) {
	body := node.ChildByFieldName("body")
	if body == nil {
		// Abstract and interface methods have no body.
		return model.SyntaxDecl{}, false
	}

	name := w.text(node.ChildByFieldName("name"))
	if name == "" {
		name = owner[strings.LastIndex(owner, ".")+1:]
	}
	mods := w.modifiers(node)

	decl := model.SyntaxDecl{
		Shape:      model.ShapeMethod,
		Name:       name,
		Receiver:   owner,
		Line:       nodeLine(node),
		EndLine:    nodeEndLine(node),
		ParamTypes: w.paramTypes(node),
		Returns:    javaReturns(w.text(node.ChildByFieldName("type"))),
	}
	decl.Params = len(decl.ParamTypes)
	for _, a := range mods.annotations {
		switch a {
		case "Test", "ParameterizedTest", "RepeatedTest", "TestFactory":
			decl.IsTest = true
		}
	}

	decl.Statements, decl.Branches = javaMetrics.count(body)
	decl.Calls = w.extractCalls(body, owner)
	return decl, true
}

func javaReturns(typ string) int {
	if typ == "" || typ == "void" {
		return 0
	}
	return 1
}

func (w *javaWalker) paramTypes(method *sitter.Node) []string {
	var types []string
	for _, p := range w.formalParams(method.ChildByFieldName("parameters")) {
		types = append(types, p[1])
	}
	return types
}

// formalParams returns (name, type) pairs.
func (w *javaWalker) formalParams(params *sitter.Node) [][2]string {
	var out [][2]string
	for _, p := range namedChildren(params) {
		switch p.Kind() {
		case "formal_parameter":
			out = append(out, [2]string{w.text(p.ChildByFieldName("name")), w.text(p.ChildByFieldName("type"))})
		case "spread_parameter":
			typ := ""
			for _, c := range namedChildren(p) {
				if strings.HasSuffix(c.Kind(), "type") || c.Kind() == "type_identifier" {
					typ = w.text(c)
					break
				}
			}
			out = append(out, [2]string{"", typ + "..."})
		}
	}
	return out
}

// extractCalls extracts method invocations and object creations.
func (w *javaWalker) extractCalls(body *sitter.Node, owner string) []model.SyntaxCall {
	var calls []model.SyntaxCall
	walkTree(body, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "method_invocation":
			calls = append(calls, w.invocation(n, owner))
		case "object_creation_expression":
			if call, ok := w.creation(n); ok {
				calls = append(calls, call)
			}
		}
		return true
	})
	return calls
}

func (w *javaWalker) invocation(n *sitter.Node, owner string) model.SyntaxCall {
	name := w.text(n.ChildByFieldName("name"))
	call := model.SyntaxCall{Name: name, Line: nodeLine(n)}

	obj := n.ChildByFieldName("object")
	switch {
	case obj == nil:
		call.Target = w.pkg + "." + owner + "." + name
		call.Qualified = true
	case obj.Kind() == "this":
		call.Name = "this." + name
		call.Target = w.pkg + "." + owner + "." + name
		call.Qualified = true
	case obj.Kind() == "identifier":
		id := w.text(obj)
		call.Name = id + "." + name
		switch {
		case w.imports[id] != "":
			call.Target = w.imports[id] + "." + name
			call.Qualified = true
		case javaLang[id]:
		case w.localTypes[id] || startsUpper(id):
			call.Target = w.pkg + "." + id + "." + name
			call.Qualified = true
		}
	case obj.Kind() == "field_access":
		call.Name = w.text(obj) + "." + name
	}
	return call
}

func (w *javaWalker) creation(n *sitter.Node) (model.SyntaxCall, bool) {
	typ := w.text(n.ChildByFieldName("type"))
	if typ == "" {
		return model.SyntaxCall{}, false
	}
	base := baseTypeName(typ)
	call := model.SyntaxCall{Name: base, Line: nodeLine(n)}
	if !javaLang[base] {
		call.Target = w.qualifyType(typ)
		call.Qualified = true
	}
	return call, true
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
