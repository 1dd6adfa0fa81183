package rewrite

// FileState is the per-file traversal state. Rewrite creates one per call;
// it is never shared between files.
type FileState struct {
	// HasCanonicalImport is set when the file default-imports the canonical module.
	HasCanonicalImport bool
	// HasAnyRewrite is set when any specifier was bound to a global.
	HasAnyRewrite bool
}

// NeedsCanonicalImport reports whether the injector must add the canonical import.
func (state FileState) NeedsCanonicalImport() bool {
	return state.HasAnyRewrite && !state.HasCanonicalImport
}
