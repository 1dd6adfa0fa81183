// Package jsast is the syntax-tree contract between a JavaScript front end
// and the rewrite engine: the module-level statements the engine visits,
// the binding queries it needs, and the edits it produces.
package jsast

// Span is a half-open byte range [Start, End) in the source.
type Span struct {
	Start int
	End   int
}

// Len returns the byte length of the span.
func (span Span) Len() int {
	return span.End - span.Start
}

// Contains reports whether other lies within span.
func (span Span) Contains(other Span) bool {
	return other.Start >= span.Start && other.End <= span.End
}

// Pos is a source position. Line and Column are 1-based; Column counts bytes.
type Pos struct {
	Offset int
	Line   int
	Column int
}

// SpecifierKind classifies import and export specifiers.
type SpecifierKind int

// Specifier kinds.
const (
	// Default is `import X from` or, for exports, never produced.
	Default SpecifierKind = iota
	// Named is `{ a }` or `{ a as b }`.
	Named
	// Namespace is `* as X`.
	Namespace
)

func (kind SpecifierKind) String() string {
	switch kind {
	case Default:
		return "default"
	case Named:
		return "named"
	case Namespace:
		return "namespace"
	default:
		return "unknown"
	}
}

// Ident is an identifier occurrence.
type Ident struct {
	Name string
	Span Span
}

// ImportSpecifier is one binding introduced by an import statement.
type ImportSpecifier struct {
	// Imported is the foreign export name: "default" for Default, empty for Namespace.
	Imported string
	// Local is the declared binding.
	Local Ident
	// Raw is the specifier's source text, e.g. "b as c".
	Raw  string
	Span Span
	Pos  Pos
	Kind SpecifierKind
}

// ExportSpecifier is one entry of `export { ... } from M` or `export * as X from M`.
type ExportSpecifier struct {
	// Local is the foreign name being re-exported; empty for Namespace.
	Local string
	// Exported is the name this file exports it under.
	Exported string
	Raw      string
	Span     Span
	Pos      Pos
	Kind     SpecifierKind
}

// Statement is a module-level statement the engine visits.
type Statement interface {
	StmtSpan() Span
	StmtPos() Pos
}

// Source is the module path literal of an import or re-export.
type Source struct {
	Value string
	// Raw keeps the literal with its quotes.
	Raw string
}

// ImportDecl is `import ... from 'M'` or a side-effect `import 'M'`.
type ImportDecl struct {
	Source     Source
	Specifiers []ImportSpecifier
	Span       Span
	Pos        Pos
	// TypeOnly marks TypeScript `import type` declarations.
	TypeOnly bool
}

// ExportFrom is `export { ... } from 'M'` or `export * as X from 'M'`.
type ExportFrom struct {
	Source     Source
	Specifiers []ExportSpecifier
	Span       Span
	Pos        Pos
	TypeOnly   bool
}

// ExportAll is `export * from 'M'`.
type ExportAll struct {
	Source Source
	Span   Span
	Pos    Pos
}

// StmtSpan implements Statement.
func (decl *ImportDecl) StmtSpan() Span { return decl.Span }

// StmtPos implements Statement.
func (decl *ImportDecl) StmtPos() Pos { return decl.Pos }

// StmtSpan implements Statement.
func (decl *ExportFrom) StmtSpan() Span { return decl.Span }

// StmtPos implements Statement.
func (decl *ExportFrom) StmtPos() Pos { return decl.Pos }

// StmtSpan implements Statement.
func (decl *ExportAll) StmtSpan() Span { return decl.Span }

// StmtPos implements Statement.
func (decl *ExportAll) StmtPos() Pos { return decl.Pos }

// File is one parsed source file.
type File struct {
	Scope Scope
	Name  string
	// Statements holds the module-level import and re-export statements in source order.
	Statements []Statement
	Source     []byte
	// Prologue is the offset new leading statements are inserted at (after a hashbang line).
	Prologue int
}

// Text returns the source bytes of span.
func (file *File) Text(span Span) string {
	return string(file.Source[span.Start:span.End])
}
