package lsp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/mapping"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/rewrite"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/transform"
)

const testURI = "file:///project/app/component.js"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	records, err := mapping.Default()
	require.NoError(t, err)

	tr, err := transform.New(transform.Options{Engine: rewrite.New(records, rewrite.Options{})})
	require.NoError(t, err)

	srv, err := NewServer(tr, nil)
	require.NoError(t, err)

	return srv
}

type notification struct {
	method string
	params any
}

func recordingContext(sink *[]notification) *glsp.Context {
	return &glsp.Context{
		Notify: func(method string, params any) {
			*sink = append(*sink, notification{method: method, params: params})
		},
	}
}

func TestDocumentStore(t *testing.T) {
	t.Parallel()

	store := NewDocumentStore()

	store.Set(testURI, "one")
	store.Set(testURI, "two")

	got, ok := store.Get(testURI)
	require.True(t, ok)
	assert.Equal(t, "two", got)

	store.Delete(testURI)

	_, ok = store.Get(testURI)
	assert.False(t, ok)
}

func TestDiagnostics_Unsupported(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	text := "import a from 'a';\nimport * as run from '@ember/runloop';\n"

	diagnostics := srv.Diagnostics(context.Background(), testURI, text)
	require.Len(t, diagnostics, 1)

	diag := diagnostics[0]
	assert.Equal(t, "Using `import * as run from '@ember/runloop'` is not supported.", diag.Message)
	assert.Equal(t, protocol.UInteger(1), diag.Range.Start.Line)
	assert.Equal(t, protocol.UInteger(len("import * as run from '@ember/runloop';")), diag.Range.End.Character)
	require.NotNil(t, diag.Severity)
	assert.Equal(t, protocol.DiagnosticSeverityError, *diag.Severity)
	require.NotNil(t, diag.Source)
	assert.Equal(t, "modpolyfill", *diag.Source)
}

func TestDiagnostics_CleanAndForeignFiles(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	assert.Empty(t, srv.Diagnostics(context.Background(), testURI, "import { later } from '@ember/runloop';\n"))
	assert.Empty(t, srv.Diagnostics(context.Background(), "file:///project/README.md", "# readme\n"))
}

func TestDidOpenPublishesDiagnostics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	var sent []notification

	err := srv.didOpen(recordingContext(&sent), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:  testURI,
			Text: "export * from '@ember/object';\n",
		},
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, publishDiagnosticsMethod, sent[0].method)

	params, ok := sent[0].params.(*protocol.PublishDiagnosticsParams)
	require.True(t, ok)
	require.Len(t, params.Diagnostics, 1)
	assert.Equal(t, "Wildcard exports from @ember/object are currently not possible", params.Diagnostics[0].Message)

	err = srv.didChange(recordingContext(&sent), &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: testURI},
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: "const a = 1;\n"}},
	})
	require.NoError(t, err)
	require.Len(t, sent, 2)

	params, ok = sent[1].params.(*protocol.PublishDiagnosticsParams)
	require.True(t, ok)
	assert.Empty(t, params.Diagnostics)

	err = srv.didClose(recordingContext(&sent), &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	})
	require.NoError(t, err)

	_, ok = srv.store.Get(testURI)
	assert.False(t, ok)
}

func TestHoverText(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	text := "import Ember from 'ember';\nimport { later as l } from '@ember/runloop';\nexport { camelize } from '@ember/string';\n"

	value, ok := srv.HoverText(context.Background(), testURI, text, 1, 11)
	require.True(t, ok)
	assert.Equal(t, "`later` from `'@ember/runloop'` is available as `Ember.run.later`.", value)

	value, ok = srv.HoverText(context.Background(), testURI, text, 2, 10)
	require.True(t, ok)
	assert.Equal(t, "`camelize` from `'@ember/string'` is available as `Ember.String.camelize`.", value)

	value, ok = srv.HoverText(context.Background(), testURI, text, 0, 8)
	require.True(t, ok)
	assert.Contains(t, value, "canonical")

	_, ok = srv.HoverText(context.Background(), testURI, text, 1, 40)
	assert.False(t, ok)
}

func TestHoverHandler(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.store.Set(testURI, "import Component from '@ember/component';\n")

	hover, err := srv.hover(nil, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
			Position:     protocol.Position{Line: 0, Character: 9},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, hover)

	content, ok := hover.Contents.(protocol.MarkupContent)
	require.True(t, ok)
	assert.Contains(t, content.Value, "Ember.Component")
}

func TestRewriteAction(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	text := "import { A } from '@ember/array';\nA();\n"

	action, ok := srv.RewriteAction(context.Background(), testURI, text)
	require.True(t, ok)
	require.NotNil(t, action.Edit)

	edits := action.Edit.Changes[testURI]
	require.Len(t, edits, 1)
	assert.Equal(t, "import Ember from 'ember';\nEmber.A();\n", edits[0].NewText)
	assert.Equal(t, protocol.UInteger(2), edits[0].Range.End.Line)

	_, ok = srv.RewriteAction(context.Background(), testURI, "const a = 1;\n")
	assert.False(t, ok)
}

func TestPositionConversions(t *testing.T) {
	t.Parallel()

	text := "const s = 'é';\nfoo();\n"

	assert.Equal(t, 0, byteOffset(text, 0, 0))
	assert.Equal(t, len("const s = 'é"), byteOffset(text, 0, 12))
	assert.Equal(t, len("const s = 'é';\nfo"), byteOffset(text, 1, 2))
	assert.Equal(t, 12, utf16Column("const s = 'é';", len("const s = 'é")))
	assert.Equal(t, "/project/a.ts", uriFilename("file:///project/a.ts"))
}
