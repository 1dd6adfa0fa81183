package jsast

// RefKind classifies the syntactic context of a reference.
type RefKind int

// Reference kinds.
const (
	// RefPlain is an ordinary expression position.
	RefPlain RefKind = iota
	// RefShorthand is a shorthand object property `{ x }`, which reads x under key "x".
	RefShorthand
	// RefExportName is the name position of a local export specifier `export { x }`.
	RefExportName
)

func (kind RefKind) String() string {
	switch kind {
	case RefPlain:
		return "plain"
	case RefShorthand:
		return "shorthand"
	case RefExportName:
		return "export-name"
	default:
		return "unknown"
	}
}

// Reference is one read or write of a binding.
type Reference struct {
	// Alias is the exported name of a RefExportName with an `as` clause; empty otherwise.
	Alias string
	Span  Span
	Kind  RefKind
}

// Scope answers binding queries for one file.
type Scope interface {
	// References returns every reference resolving to the binding declared
	// at decl, in source order. Shadowed occurrences and the declaration
	// itself are excluded.
	References(decl Span) []Reference
}

// ExportedByName reports whether any reference is a local export specifier name.
func ExportedByName(refs []Reference) bool {
	for _, ref := range refs {
		if ref.Kind == RefExportName {
			return true
		}
	}

	return false
}
