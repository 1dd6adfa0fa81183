package rewrite

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsast"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/mapping"
)

func (run *fileRewrite) exportFrom(decl *jsast.ExportFrom) error {
	module := decl.Source.Value

	if decl.TypeOnly || !run.engine.reverse.HasModule(module) {
		return nil
	}

	var (
		kept  []jsast.ExportSpecifier
		decls []string
	)

	for _, spec := range decl.Specifiers {
		switch spec.Kind {
		case jsast.Namespace:
			return namespaceExportError(module, spec.Exported, spec.Pos)
		case jsast.Default, jsast.Named:
		}

		if run.engine.disallowed.IsDisallowed(module, spec.Local) {
			kept = append(kept, spec)

			continue
		}

		global, ok := run.engine.reverse.Lookup(module, spec.Local)
		if !ok {
			return unknownExportError(module, spec.Local, spec.Pos)
		}

		run.state.HasAnyRewrite = true

		if spec.Exported == mapping.DefaultExport {
			decls = append(decls, fmt.Sprintf("export default %s;", global))
		} else {
			decls = append(decls, fmt.Sprintf("export var %s = %s;", spec.Exported, global))
		}

		run.rewrites = append(run.rewrites, Rewritten{
			Module:   module,
			Export:   spec.Local,
			Global:   global,
			Local:    spec.Exported,
			Pos:      spec.Pos,
			Strategy: StrategyExport,
		})
	}

	switch {
	case len(kept) == 0:
		run.edits.ReplaceStatement(decl.Span, strings.Join(decls, "\n"))
	case len(kept) < len(decl.Specifiers):
		lines := append([]string{exportStatement(kept, decl.Source.Raw)}, decls...)
		run.edits.ReplaceStatement(decl.Span, strings.Join(lines, "\n"))
	}

	return nil
}

// exportAll rejects `export * from M` for a mapped M; the table cannot
// enumerate every export of a module.
func (run *fileRewrite) exportAll(decl *jsast.ExportAll) error {
	if run.engine.reverse.HasModule(decl.Source.Value) {
		return wildcardExportError(decl.Source.Value, decl.Pos)
	}

	return nil
}

func exportStatement(specs []jsast.ExportSpecifier, source string) string {
	raws := make([]string, 0, len(specs))
	for _, spec := range specs {
		raws = append(raws, spec.Raw)
	}

	return "export { " + strings.Join(raws, ", ") + " } from " + source + ";"
}
