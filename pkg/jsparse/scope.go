package jsparse

import (
	"sort"
	"unicode"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsast"
)

type binding struct {
	refs []jsast.Reference
	decl jsast.Span
}

type lexicalScope struct {
	parent   *lexicalScope
	names    map[string]*binding
	function bool
}

func (scope *lexicalScope) functionScope() *lexicalScope {
	for current := scope; current != nil; current = current.parent {
		if current.function {
			return current
		}
	}

	return scope
}

func (scope *lexicalScope) lookup(name string) *binding {
	for current := scope; current != nil; current = current.parent {
		if found, ok := current.names[name]; ok {
			return found
		}
	}

	return nil
}

type pendingRef struct {
	scope *lexicalScope
	name  string
	ref   jsast.Reference
}

// resolver implements jsast.Scope. Declarations are gathered over the whole
// tree before references resolve, so hoisted names bind correctly.
type resolver struct {
	program *lexicalScope
	byDecl  map[int]*binding
	pending []pendingRef
	source  []byte
}

func resolve(root sitter.Node, source []byte) *resolver {
	res := &resolver{
		program: &lexicalScope{names: map[string]*binding{}, function: true},
		byDecl:  map[int]*binding{},
		source:  source,
	}

	res.walkChildren(root, res.program)

	for _, item := range res.pending {
		if found := item.scope.lookup(item.name); found != nil {
			found.refs = append(found.refs, item.ref)
		}
	}

	res.pending = nil

	for _, found := range res.byDecl {
		sort.SliceStable(found.refs, func(i, j int) bool {
			return found.refs[i].Span.Start < found.refs[j].Span.Start
		})
	}

	return res
}

// References implements jsast.Scope.
func (res *resolver) References(decl jsast.Span) []jsast.Reference {
	found, ok := res.byDecl[decl.Start]
	if !ok {
		return nil
	}

	out := make([]jsast.Reference, len(found.refs))
	copy(out, found.refs)

	return out
}

func (res *resolver) newScope(parent *lexicalScope, function bool) *lexicalScope {
	return &lexicalScope{parent: parent, names: map[string]*binding{}, function: function}
}

func (res *resolver) declare(scope *lexicalScope, node sitter.Node) {
	name := text(node, res.source)

	// Redeclarations (var, overload signatures) share the first binding.
	found, ok := scope.names[name]
	if !ok {
		found = &binding{decl: span(node)}
		scope.names[name] = found
	}

	res.byDecl[int(node.StartByte())] = found
}

func (res *resolver) reference(scope *lexicalScope, node sitter.Node, kind jsast.RefKind, alias string) {
	res.pending = append(res.pending, pendingRef{
		scope: scope,
		name:  text(node, res.source),
		ref:   jsast.Reference{Span: span(node), Kind: kind, Alias: alias},
	})
}

func (res *resolver) walkChildren(node sitter.Node, scope *lexicalScope) {
	for idx := range node.NamedChildCount() {
		res.walk(node.NamedChild(idx), scope)
	}
}

// walkExcept walks the named children of node other than skip.
func (res *resolver) walkExcept(node, skip sitter.Node, scope *lexicalScope) {
	for idx := range node.NamedChildCount() {
		child := node.NamedChild(idx)
		if !skip.IsNull() && sameNode(child, skip) {
			continue
		}

		res.walk(child, scope)
	}
}

//nolint:cyclop,funlen,gocyclo // one case per binding-relevant node type.
func (res *resolver) walk(node sitter.Node, scope *lexicalScope) {
	switch node.Type() {
	case nodeIdentifier:
		res.reference(scope, node, jsast.RefPlain, "")
	case "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		res.reference(scope, node, jsast.RefShorthand, "")
	case nodeImport:
		res.declareImports(node)
	case nodeExport:
		res.walkExport(node, scope)
	case "variable_declaration":
		res.walkDeclarators(node, scope.functionScope(), scope)
	case "lexical_declaration":
		res.walkDeclarators(node, scope, scope)
	case "function_declaration", "generator_function_declaration", "function_signature":
		if name := node.ChildByFieldName(fieldName); !name.IsNull() {
			res.declare(scope, name)
		}

		res.walkFunction(node, scope)
	case "function_expression", "function", "generator_function":
		inner := scope

		if name := node.ChildByFieldName(fieldName); !name.IsNull() {
			inner = res.newScope(scope, false)
			res.declare(inner, name)
		}

		res.walkFunction(node, inner)
	case "arrow_function":
		res.walkFunction(node, scope)
	case "method_definition":
		res.walkDecorators(node, scope)

		if name := node.ChildByFieldName(fieldName); !name.IsNull() && name.Type() == "computed_property_name" {
			res.walk(name, scope)
		}

		res.walkFunction(node, scope)
	case "class_declaration", "abstract_class_declaration":
		name := node.ChildByFieldName(fieldName)
		if !name.IsNull() {
			res.declare(scope, name)
		}

		res.walkExcept(node, name, scope)
	case "class":
		inner := res.newScope(scope, false)

		name := node.ChildByFieldName(fieldName)
		if !name.IsNull() {
			res.declare(inner, name)
		}

		res.walkExcept(node, name, inner)
	case "statement_block", "switch_body", "for_statement":
		res.walkChildren(node, res.newScope(scope, false))
	case "for_in_statement":
		res.walkForIn(node, scope)
	case "catch_clause":
		inner := res.newScope(scope, false)

		if param := node.ChildByFieldName("parameter"); !param.IsNull() {
			res.declarePattern(param, inner, inner)
		}

		if body := node.ChildByFieldName("body"); !body.IsNull() {
			res.walkChildren(body, inner)
		}
	case "formal_parameters":
		// Parameters of type-level signatures bind nothing outside themselves.
		throwaway := res.newScope(scope, true)
		for idx := range node.NamedChildCount() {
			res.declarePattern(node.NamedChild(idx), throwaway, throwaway)
		}
	case "enum_declaration":
		name := node.ChildByFieldName(fieldName)
		if !name.IsNull() {
			res.declare(scope, name)
		}

		res.walkExcept(node, name, scope)
	case "type_annotation", "type_predicate_annotation", "asserts_annotation",
		"type_alias_declaration", "interface_declaration":
		res.walkTypes(node, scope)
	case "jsx_opening_element", "jsx_closing_element", "jsx_self_closing_element":
		name := node.ChildByFieldName(fieldName)
		if !name.IsNull() && name.Type() == nodeIdentifier && intrinsicTag(text(name, res.source)) {
			res.walkExcept(node, name, scope)

			return
		}

		res.walkChildren(node, scope)
	default:
		res.walkChildren(node, scope)
	}
}

func (res *resolver) declareImports(node sitter.Node) {
	for idx := range node.NamedChildCount() {
		clause := node.NamedChild(idx)
		if clause.Type() != nodeImportClause {
			continue
		}

		for jdx := range clause.NamedChildCount() {
			child := clause.NamedChild(jdx)

			switch child.Type() {
			case nodeIdentifier:
				res.declare(res.program, child)
			case nodeNamespaceImport:
				if local := lastNamedOfType(child, nodeIdentifier); !local.IsNull() {
					res.declare(res.program, local)
				}
			case nodeNamedImports:
				for kdx := range child.NamedChildCount() {
					spec := child.NamedChild(kdx)
					if spec.Type() != nodeImportSpecifier {
						continue
					}

					local := spec.ChildByFieldName(fieldAlias)
					if local.IsNull() {
						local = spec.ChildByFieldName(fieldName)
					}

					if !local.IsNull() && local.Type() == nodeIdentifier {
						res.declare(res.program, local)
					}
				}
			}
		}
	}
}

func (res *resolver) walkExport(node sitter.Node, scope *lexicalScope) {
	if !node.ChildByFieldName(fieldSource).IsNull() {
		return
	}

	for idx := range node.NamedChildCount() {
		child := node.NamedChild(idx)
		if child.Type() != nodeExportClause {
			res.walk(child, scope)

			continue
		}

		for jdx := range child.NamedChildCount() {
			spec := child.NamedChild(jdx)
			if spec.Type() != nodeExportSpecifier {
				continue
			}

			name := spec.ChildByFieldName(fieldName)
			if name.IsNull() || name.Type() != nodeIdentifier {
				continue
			}

			alias := ""

			if aliasNode := spec.ChildByFieldName(fieldAlias); !aliasNode.IsNull() {
				if aliasNode.Type() == nodeString {
					alias = stringValue(aliasNode, res.source)
				} else {
					alias = text(aliasNode, res.source)
				}
			}

			res.reference(scope, name, jsast.RefExportName, alias)
		}
	}
}

func (res *resolver) walkDeclarators(node sitter.Node, target, scope *lexicalScope) {
	for idx := range node.NamedChildCount() {
		declarator := node.NamedChild(idx)
		if declarator.Type() != "variable_declarator" {
			res.walk(declarator, scope)

			continue
		}

		if name := declarator.ChildByFieldName(fieldName); !name.IsNull() {
			res.declarePattern(name, target, scope)
		}

		if typ := declarator.ChildByFieldName(fieldType); !typ.IsNull() {
			res.walk(typ, scope)
		}

		if value := declarator.ChildByFieldName("value"); !value.IsNull() {
			res.walk(value, scope)
		}
	}
}

// walkFunction opens the function scope of node, binds its parameters and
// walks its body. Parameter decorators resolve in the enclosing scope.
func (res *resolver) walkFunction(node sitter.Node, scope *lexicalScope) {
	fnScope := res.newScope(scope, true)

	if param := node.ChildByFieldName("parameter"); !param.IsNull() {
		res.declarePattern(param, fnScope, fnScope)
	}

	if params := node.ChildByFieldName("parameters"); !params.IsNull() {
		for idx := range params.NamedChildCount() {
			param := params.NamedChild(idx)

			res.walkDecorators(param, scope)
			res.declarePattern(param, fnScope, fnScope)
		}
	}

	if returnType := node.ChildByFieldName("return_type"); !returnType.IsNull() {
		res.walk(returnType, fnScope)
	}

	body := node.ChildByFieldName("body")
	if body.IsNull() {
		return
	}

	if body.Type() == "statement_block" {
		res.walkChildren(body, fnScope)

		return
	}

	res.walk(body, fnScope)
}

func (res *resolver) walkForIn(node sitter.Node, scope *lexicalScope) {
	loop := res.newScope(scope, false)
	left := node.ChildByFieldName("left")

	if kind := node.ChildByFieldName("kind"); !kind.IsNull() && !left.IsNull() {
		target := loop
		if text(kind, res.source) == "var" {
			target = scope.functionScope()
		}

		res.declarePattern(left, target, loop)
	} else if !left.IsNull() {
		res.walk(left, scope)
	}

	if right := node.ChildByFieldName("right"); !right.IsNull() {
		res.walk(right, scope)
	}

	if body := node.ChildByFieldName("body"); !body.IsNull() {
		res.walk(body, loop)
	}
}

// declarePattern binds the names of a binding pattern into target; default
// values and computed keys are walked as expressions in exprScope.
func (res *resolver) declarePattern(node sitter.Node, target, exprScope *lexicalScope) {
	switch node.Type() {
	case nodeIdentifier, "shorthand_property_identifier_pattern":
		res.declare(target, node)
	case "object_pattern", "array_pattern", "rest_pattern":
		for idx := range node.NamedChildCount() {
			res.declarePattern(node.NamedChild(idx), target, exprScope)
		}
	case "pair_pattern":
		if key := node.ChildByFieldName("key"); !key.IsNull() && key.Type() == "computed_property_name" {
			res.walk(key, exprScope)
		}

		if value := node.ChildByFieldName("value"); !value.IsNull() {
			res.declarePattern(value, target, exprScope)
		}
	case "object_assignment_pattern", "assignment_pattern":
		if left := node.ChildByFieldName("left"); !left.IsNull() {
			res.declarePattern(left, target, exprScope)
		}

		if right := node.ChildByFieldName("right"); !right.IsNull() {
			res.walk(right, exprScope)
		}
	case "required_parameter", "optional_parameter":
		if pattern := node.ChildByFieldName("pattern"); !pattern.IsNull() {
			res.declarePattern(pattern, target, exprScope)
		}

		if typ := node.ChildByFieldName(fieldType); !typ.IsNull() {
			res.walk(typ, exprScope)
		}

		if value := node.ChildByFieldName("value"); !value.IsNull() {
			res.walk(value, exprScope)
		}
	default:
		res.walk(node, exprScope)
	}
}

// walkDecorators walks the decorator children of node.
func (res *resolver) walkDecorators(node sitter.Node, scope *lexicalScope) {
	for idx := range node.NamedChildCount() {
		if child := node.NamedChild(idx); child.Type() == "decorator" {
			res.walk(child, scope)
		}
	}
}

// walkTypes looks for `typeof x` queries inside a type; every other
// identifier in type position names a type or a signature parameter.
func (res *resolver) walkTypes(node sitter.Node, scope *lexicalScope) {
	if node.Type() == "type_query" {
		res.walkChildren(node, scope)

		return
	}

	for idx := range node.NamedChildCount() {
		res.walkTypes(node.NamedChild(idx), scope)
	}
}

func sameNode(left, right sitter.Node) bool {
	return left.StartByte() == right.StartByte() &&
		left.EndByte() == right.EndByte() &&
		left.Type() == right.Type()
}

// intrinsicTag reports whether a JSX tag name is a host element such as div.
func intrinsicTag(name string) bool {
	for _, r := range name {
		return unicode.IsLower(r)
	}

	return false
}
