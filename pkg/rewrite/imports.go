package rewrite

import (
	"strings"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsast"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/mapping"
)

func (run *fileRewrite) importDecl(decl *jsast.ImportDecl) error {
	if decl.TypeOnly {
		return nil
	}

	module := decl.Source.Value

	if module == run.engine.module {
		return run.canonicalImport(decl)
	}

	if !run.engine.reverse.HasModule(module) {
		return nil
	}

	var (
		kept  []jsast.ImportSpecifier
		decls []string
	)

	for _, spec := range decl.Specifiers {
		var export string

		switch spec.Kind {
		case jsast.Namespace:
			return namespaceImportError(module, spec.Local.Name, spec.Pos)
		case jsast.Default:
			export = mapping.DefaultExport
		case jsast.Named:
			export = spec.Imported
		}

		if run.engine.disallowed.IsDisallowed(module, export) {
			kept = append(kept, spec)

			continue
		}

		global, ok := run.engine.reverse.Lookup(module, export)
		if !ok {
			return unknownExportError(module, export, spec.Pos)
		}

		run.state.HasAnyRewrite = true

		varDecl, strategy := run.bindGlobal(spec.Local, global)
		if varDecl != "" {
			decls = append(decls, varDecl)
		}

		run.rewrites = append(run.rewrites, Rewritten{
			Module:   module,
			Export:   export,
			Global:   global,
			Local:    spec.Local.Name,
			Pos:      spec.Pos,
			Strategy: strategy,
		})
	}

	switch {
	case len(kept) == 0:
		run.edits.ReplaceStatement(decl.Span, strings.Join(decls, "\n"))
	case len(kept) < len(decl.Specifiers):
		lines := append([]string{importStatement(kept, decl.Source.Raw)}, decls...)
		run.edits.ReplaceStatement(decl.Span, strings.Join(lines, "\n"))
	}

	return nil
}

// canonicalImport checks an import of the canonical module and renames its
// default binding to the canonical name.
func (run *fileRewrite) canonicalImport(decl *jsast.ImportDecl) error {
	var local *jsast.Ident

	for idx := range decl.Specifiers {
		spec := &decl.Specifiers[idx]
		if spec.Kind != jsast.Default {
			return canonicalImportError(run.engine.module, spec.Imported, spec.Pos)
		}

		local = &spec.Local
	}

	if local == nil {
		return nil
	}

	run.state.HasCanonicalImport = true

	if local.Name != run.engine.name {
		run.renameCanonical(*local)
	}

	return nil
}

// importStatement prints an import of the kept specifiers.
func importStatement(specs []jsast.ImportSpecifier, source string) string {
	var (
		defaultRaw string
		named      []string
	)

	for _, spec := range specs {
		if spec.Kind == jsast.Default {
			defaultRaw = spec.Raw

			continue
		}

		named = append(named, spec.Raw)
	}

	var builder strings.Builder

	builder.WriteString("import ")

	if defaultRaw != "" {
		builder.WriteString(defaultRaw)

		if len(named) > 0 {
			builder.WriteString(", ")
		}
	}

	if len(named) > 0 {
		builder.WriteString("{ ")
		builder.WriteString(strings.Join(named, ", "))
		builder.WriteString(" }")
	}

	builder.WriteString(" from ")
	builder.WriteString(source)
	builder.WriteString(";")

	return builder.String()
}
