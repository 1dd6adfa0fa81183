package rewrite

import "fmt"

// inject adds the canonical default import as the first statement when a
// rewrite introduced references to the global and none is in scope.
func (run *fileRewrite) inject() bool {
	if !run.state.NeedsCanonicalImport() {
		return false
	}

	run.edits.Insert(run.file.Prologue, fmt.Sprintf("import %s from '%s';\n", run.engine.name, run.engine.module))

	return true
}
