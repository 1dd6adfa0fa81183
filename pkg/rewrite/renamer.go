package rewrite

import (
	"fmt"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsast"
)

// bindGlobal points every reference of local at global. When the binding is
// exported by name a rename would change the file's exports, so the name is
// kept and the returned declaration binds it instead.
func (run *fileRewrite) bindGlobal(local jsast.Ident, global string) (string, Strategy) {
	refs := run.references(local.Span)

	if jsast.ExportedByName(refs) {
		return fmt.Sprintf("var %s = %s;", local.Name, global), StrategyDeclare
	}

	for _, ref := range refs {
		switch ref.Kind {
		case jsast.RefShorthand:
			run.edits.Replace(ref.Span, local.Name+": "+global)
		case jsast.RefPlain, jsast.RefExportName:
			run.edits.Replace(ref.Span, global)
		}
	}

	return "", StrategyRename
}

// renameCanonical renames the local default binding of the canonical module,
// its declaration included, to the canonical name.
func (run *fileRewrite) renameCanonical(local jsast.Ident) {
	name := run.engine.name

	run.edits.Replace(local.Span, name)

	for _, ref := range run.references(local.Span) {
		switch ref.Kind {
		case jsast.RefPlain:
			run.edits.Replace(ref.Span, name)
		case jsast.RefShorthand:
			run.edits.Replace(ref.Span, local.Name+": "+name)
		case jsast.RefExportName:
			if ref.Alias != "" {
				run.edits.Replace(ref.Span, name)

				continue
			}

			run.edits.Replace(ref.Span, name+" as "+local.Name)
		}
	}
}
