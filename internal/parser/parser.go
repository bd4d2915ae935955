// Package parser implements the Parser Dispatch component (§4.A): given a
// file path and its contents, produce a language-neutral ParsedFile record.
// The parser never touches the graph or the search index.
package parser

// Visibility is public or private, used when a language marks
// visibility explicitly.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Function is a language-neutral function/method record.
type Function struct {
	Name      string
	Signature string
	Line      int
	IsPublic  bool
	IsAsync   bool
	Docstring string
	// Receiver is the owning type name for methods (Go receiver, Python/TS
	// class), empty for free functions.
	Receiver string
}

// TypeKind distinguishes struct/enum/trait/interface/class declarations.
type TypeKind string

const (
	TypeKindStruct    TypeKind = "struct"
	TypeKindEnum      TypeKind = "enum"
	TypeKindTrait     TypeKind = "trait"
	TypeKindInterface TypeKind = "interface"
	TypeKindClass     TypeKind = "class"
)

// TypeDecl is a language-neutral struct/enum/trait/interface/class record.
type TypeDecl struct {
	Name      string
	Kind      TypeKind
	Line      int
	IsPublic  bool
	Docstring string
}

// Import is a raw import/use statement plus a hint to aid resolution.
type Import struct {
	RawPath string
	Line    int
	// Hint carries a language-specific resolution aid, e.g. "relative" for
	// "./foo" style imports, or a module alias.
	Hint string
}

// ImplBlock associates a type with an optional trait/interface it
// implements (Rust impl, Go interface satisfaction inferred from
// signatures is out of scope — only explicit impls are captured).
type ImplBlock struct {
	TypeName   string
	TraitName  string
	Line       int
	IsExternal bool   // trait/interface is defined outside this project (§4.D.6)
	ExternalSrc string // crate/package/module the external trait comes from
}

// CallEdge is an intra-file call from Caller to a callee identified by name
// (cross-file call resolution happens downstream, in the sync engine via
// the graph store, not here).
type CallEdge struct {
	Caller string
	Callee string
	Line   int
}

// ParseError represents a non-fatal parsing issue; Parse still returns
// whatever was successfully recovered alongside these (§4.A "Partial
// extraction is acceptable").
type ParseError struct {
	Line    int
	Message string
}

// ParsedFile is the language-neutral record a CodeParser produces.
type ParsedFile struct {
	Language   string
	Functions  []Function
	Types      []TypeDecl
	Imports    []Import
	Impls      []ImplBlock
	Calls      []CallEdge
	Errors     []ParseError
}

// CodeParser is the per-language extraction contract (§4.A).
type CodeParser interface {
	// Parse extracts a ParsedFile from source content. path is used for
	// error messages and, by a parser covering several grammars (the
	// TypeScript/JavaScript parser), to pick the grammar by extension;
	// content is the raw file bytes.
	Parse(path string, content []byte) (ParsedFile, error)

	// SupportedExtensions returns the file extensions this parser handles,
	// each with a leading dot. The first is the canonical extension.
	SupportedExtensions() []string

	// Language returns the short language identifier (e.g. "go", "py").
	Language() string
}
