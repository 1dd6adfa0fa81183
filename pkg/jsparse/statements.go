package jsparse

import (
	"strconv"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsast"
)

// Node types of the javascript and typescript grammars.
const (
	nodeProgram         = "program"
	nodeHashBang        = "hash_bang_line"
	nodeImport          = "import_statement"
	nodeImportClause    = "import_clause"
	nodeNamespaceImport = "namespace_import"
	nodeNamedImports    = "named_imports"
	nodeImportSpecifier = "import_specifier"
	nodeExport          = "export_statement"
	nodeExportClause    = "export_clause"
	nodeExportSpecifier = "export_specifier"
	nodeNamespaceExport = "namespace_export"
	nodeIdentifier      = "identifier"
	nodeString          = "string"
	nodeStringFragment  = "string_fragment"
	nodeEscapeSequence  = "escape_sequence"
)

const (
	fieldSource = "source"
	fieldName   = "name"
	fieldAlias  = "alias"
	fieldType   = "type"
)

type statementCollector struct {
	file   *jsast.File
	source []byte
}

func (collector *statementCollector) collect(root sitter.Node) {
	for idx := range root.NamedChildCount() {
		child := root.NamedChild(idx)

		switch child.Type() {
		case nodeHashBang:
			collector.file.Prologue = lineEnd(collector.source, int(child.EndByte()))
		case nodeImport:
			if decl := collector.importDecl(child); decl != nil {
				collector.file.Statements = append(collector.file.Statements, decl)
			}
		case nodeExport:
			if stmt := collector.exportDecl(child); stmt != nil {
				collector.file.Statements = append(collector.file.Statements, stmt)
			}
		}
	}
}

// lineEnd returns the offset just past the line break at or after offset.
func lineEnd(source []byte, offset int) int {
	if offset < len(source) && source[offset] == '\r' {
		offset++
	}

	if offset < len(source) && source[offset] == '\n' {
		offset++
	}

	return offset
}

func (collector *statementCollector) importDecl(node sitter.Node) *jsast.ImportDecl {
	sourceNode := node.ChildByFieldName(fieldSource)
	if sourceNode.IsNull() {
		// import x = require('m') and friends.
		return nil
	}

	decl := &jsast.ImportDecl{
		Source:   collector.sourceLiteral(sourceNode),
		Span:     span(node),
		Pos:      position(node),
		TypeOnly: hasKeyword(node, "type") || hasKeyword(node, "typeof"),
	}

	for idx := range node.NamedChildCount() {
		child := node.NamedChild(idx)
		if child.Type() == nodeImportClause {
			decl.Specifiers = collector.importClause(child)
		}
	}

	return decl
}

func (collector *statementCollector) importClause(clause sitter.Node) []jsast.ImportSpecifier {
	var specs []jsast.ImportSpecifier

	for idx := range clause.NamedChildCount() {
		child := clause.NamedChild(idx)

		switch child.Type() {
		case nodeIdentifier:
			specs = append(specs, jsast.ImportSpecifier{
				Kind:     jsast.Default,
				Imported: "default",
				Local:    collector.ident(child),
				Raw:      text(child, collector.source),
				Span:     span(child),
				Pos:      position(child),
			})
		case nodeNamespaceImport:
			local := lastNamedOfType(child, nodeIdentifier)
			if local.IsNull() {
				continue
			}

			specs = append(specs, jsast.ImportSpecifier{
				Kind:  jsast.Namespace,
				Local: collector.ident(local),
				Raw:   text(child, collector.source),
				Span:  span(child),
				Pos:   position(child),
			})
		case nodeNamedImports:
			for jdx := range child.NamedChildCount() {
				specNode := child.NamedChild(jdx)
				if specNode.Type() != nodeImportSpecifier {
					continue
				}

				specs = append(specs, collector.importSpecifier(specNode))
			}
		}
	}

	return specs
}

func (collector *statementCollector) importSpecifier(node sitter.Node) jsast.ImportSpecifier {
	name := node.ChildByFieldName(fieldName)
	alias := node.ChildByFieldName(fieldAlias)

	local := alias
	if local.IsNull() {
		local = name
	}

	return jsast.ImportSpecifier{
		Kind:     jsast.Named,
		Imported: collector.moduleExportName(name),
		Local:    collector.ident(local),
		Raw:      text(node, collector.source),
		Span:     span(node),
		Pos:      position(node),
	}
}

func (collector *statementCollector) exportDecl(node sitter.Node) jsast.Statement {
	sourceNode := node.ChildByFieldName(fieldSource)
	if sourceNode.IsNull() {
		return nil
	}

	src := collector.sourceLiteral(sourceNode)
	typeOnly := hasKeyword(node, "type")

	for idx := range node.NamedChildCount() {
		child := node.NamedChild(idx)

		switch child.Type() {
		case nodeExportClause:
			decl := &jsast.ExportFrom{Source: src, Span: span(node), Pos: position(node), TypeOnly: typeOnly}

			for jdx := range child.NamedChildCount() {
				specNode := child.NamedChild(jdx)
				if specNode.Type() != nodeExportSpecifier {
					continue
				}

				decl.Specifiers = append(decl.Specifiers, collector.exportSpecifier(specNode))
			}

			return decl
		case nodeNamespaceExport:
			exported := lastNamedChild(child)

			return &jsast.ExportFrom{
				Source: src,
				Span:   span(node),
				Pos:    position(node),
				Specifiers: []jsast.ExportSpecifier{{
					Kind:     jsast.Namespace,
					Exported: collector.moduleExportName(exported),
					Raw:      text(child, collector.source),
					Span:     span(child),
					Pos:      position(child),
				}},
			}
		}
	}

	if hasKeyword(node, "*") {
		return &jsast.ExportAll{Source: src, Span: span(node), Pos: position(node)}
	}

	return nil
}

func (collector *statementCollector) exportSpecifier(node sitter.Node) jsast.ExportSpecifier {
	name := node.ChildByFieldName(fieldName)
	alias := node.ChildByFieldName(fieldAlias)

	local := collector.moduleExportName(name)
	exported := local

	if !alias.IsNull() {
		exported = collector.moduleExportName(alias)
	}

	return jsast.ExportSpecifier{
		Kind:     jsast.Named,
		Local:    local,
		Exported: exported,
		Raw:      text(node, collector.source),
		Span:     span(node),
		Pos:      position(node),
	}
}

func (collector *statementCollector) ident(node sitter.Node) jsast.Ident {
	return jsast.Ident{Name: text(node, collector.source), Span: span(node)}
}

// moduleExportName reads an identifier or a string export name.
func (collector *statementCollector) moduleExportName(node sitter.Node) string {
	if node.IsNull() {
		return ""
	}

	if node.Type() == nodeString {
		return stringValue(node, collector.source)
	}

	return text(node, collector.source)
}

func (collector *statementCollector) sourceLiteral(node sitter.Node) jsast.Source {
	return jsast.Source{
		Value: stringValue(node, collector.source),
		Raw:   text(node, collector.source),
	}
}

// stringValue decodes a string literal node from its fragments and escapes.
func stringValue(node sitter.Node, source []byte) string {
	var builder strings.Builder

	for idx := range node.NamedChildCount() {
		child := node.NamedChild(idx)

		switch child.Type() {
		case nodeStringFragment:
			builder.WriteString(text(child, source))
		case nodeEscapeSequence:
			builder.WriteString(unescape(text(child, source)))
		}
	}

	return builder.String()
}

func unescape(seq string) string {
	switch seq {
	case `\'`:
		return "'"
	case `\"`:
		return `"`
	}

	decoded, err := strconv.Unquote(`"` + seq + `"`)
	if err != nil {
		return strings.TrimPrefix(seq, `\`)
	}

	return decoded
}

func hasKeyword(node sitter.Node, keyword string) bool {
	for idx := range node.ChildCount() {
		child := node.Child(idx)
		if !child.IsNamed() && child.Type() == keyword {
			return true
		}
	}

	return false
}

func lastNamedChild(node sitter.Node) sitter.Node {
	count := node.NamedChildCount()
	if count == 0 {
		return sitter.Node{}
	}

	return node.NamedChild(count - 1)
}

func lastNamedOfType(node sitter.Node, nodeType string) sitter.Node {
	found := sitter.Node{}

	for idx := range node.NamedChildCount() {
		child := node.NamedChild(idx)
		if child.Type() == nodeType {
			found = child
		}
	}

	return found
}
