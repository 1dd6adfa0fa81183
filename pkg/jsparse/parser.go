// Package jsparse builds jsast files from JavaScript and TypeScript sources
// with tree-sitter, resolves module-scope bindings, and prints edited
// sources back out.
package jsparse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsast"
)

// Sentinel errors for parsing.
var (
	ErrSyntax         = errors.New("syntax error")
	ErrUnsupported    = errors.New("not a JavaScript or TypeScript source")
	errNoRootNode     = errors.New("jsparse: no root node")
	errPoolType       = errors.New("jsparse: pool returned unexpected type")
	errNoGrammar      = errors.New("jsparse: tree-sitter language not available")
	errUnknownGrammar = errors.New("jsparse: unknown grammar")
)

// SyntaxError reports the first error node of a source.
type SyntaxError struct {
	File string
	Pos  jsast.Pos
}

func (serr *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", serr.File, serr.Pos.Line, serr.Pos.Column, ErrSyntax)
}

func (serr *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// Parser turns sources into jsast files. It is safe for concurrent use;
// tree-sitter parsers are pooled per grammar.
type Parser struct {
	pools map[Grammar]*sync.Pool
}

// NewParser creates a Parser for every supported grammar.
func NewParser() (*Parser, error) {
	parser := &Parser{pools: make(map[Grammar]*sync.Pool, len(grammarFuncs))}

	for grammar := range grammarFuncs {
		lang := language(grammar)
		if lang == nil {
			return nil, fmt.Errorf("%w: %s", errNoGrammar, grammar)
		}

		parser.pools[grammar] = &sync.Pool{
			New: func() any {
				tsParser := sitter.NewParser()
				tsParser.SetLanguage(lang)

				return tsParser
			},
		}
	}

	return parser, nil
}

// Parse detects the grammar from filename and content and parses source.
func (parser *Parser) Parse(ctx context.Context, filename string, source []byte) (*jsast.File, error) {
	grammar, ok := Detect(filename, source)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filename)
	}

	return parser.ParseGrammar(ctx, grammar, filename, source)
}

// ParseGrammar parses source with an explicit grammar.
func (parser *Parser) ParseGrammar(ctx context.Context, grammar Grammar, filename string, source []byte) (*jsast.File, error) {
	pool, ok := parser.pools[grammar]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownGrammar, grammar)
	}

	tsParser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("jsparse: failed to parse %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, errNoRootNode
	}

	if errNode := firstError(root); !errNode.IsNull() {
		return nil, &SyntaxError{File: filename, Pos: position(errNode)}
	}

	file := &jsast.File{Name: filename, Source: source}

	collector := &statementCollector{source: source, file: file}
	collector.collect(root)

	file.Scope = resolve(root, source)

	return file, nil
}

// firstError finds the first ERROR node or the first token tree-sitter
// inserted to recover, such as a missing closing brace.
func firstError(node sitter.Node) sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}

	for idx := range node.ChildCount() {
		found := firstError(node.Child(idx))
		if !found.IsNull() {
			return found
		}
	}

	return sitter.Node{}
}

func position(node sitter.Node) jsast.Pos {
	start := node.StartPoint()

	return jsast.Pos{
		Offset: int(node.StartByte()),
		Line:   int(start.Row) + 1,
		Column: int(start.Column) + 1,
	}
}

func span(node sitter.Node) jsast.Span {
	return jsast.Span{Start: int(node.StartByte()), End: int(node.EndByte())}
}

func text(node sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
