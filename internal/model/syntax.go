package model

// DeclShape is the syntactic form of a declaration, before classification.
type DeclShape int

const (
	ShapeType DeclShape = iota
	ShapeInterface
	ShapeFunc
	ShapeMethod
)

func (s DeclShape) String() string {
	switch s {
	case ShapeType:
		return "type"
	case ShapeInterface:
		return "interface"
	case ShapeFunc:
		return "func"
	case ShapeMethod:
		return "method"
	default:
		return "unknown"
	}
}

// SyntaxCall is one call site. Name is the callee as written
// ("strings.ToLower", "fetch", "s.repo.Save"); Target is the front-end's best
// fully-qualified guess and is only meaningful when Qualified is set.
type SyntaxCall struct {
	Name      string
	Target    string
	Qualified bool
	Line      int
}

// SyntaxField is a field of a type declaration.
type SyntaxField struct {
	Name    string
	Type    string
	Mutable bool
}

// SyntaxDecl is a language-neutral declaration as emitted by a front-end.
type SyntaxDecl struct {
	Shape    DeclShape
	Name     string
	Receiver string // enclosing type name for methods
	Overload string // disambiguating suffix for overloaded methods, e.g. "(int,String)"
	Line     int
	EndLine  int

	// Type and interface declarations.
	Sealed     bool     // closed hierarchy, even when Permits is empty
	Permits    []string // closed set of permitted subtypes
	Implements []string // declared supertypes, qualified where the front-end could
	Fields     []SyntaxField
	Record     bool
	Methods    []MethodSig

	// Function and method declarations.
	Params        int
	ParamTypes    []string
	Returns       int
	Statements    int
	Branches      int
	Calls         []SyntaxCall
	IsTest        bool
	ReturnsMarkup bool
}

// SyntaxFile is everything a front-end extracted from one source file.
type SyntaxFile struct {
	Path      string
	Language  Language
	Module    string
	Generated bool
	Imports   []Import
	Decls     []SyntaxDecl
}
