// Package lsp serves rewrite diagnostics, mapping hovers and a rewrite
// code action to editors over the Language Server Protocol.
package lsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsast"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsparse"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/observability"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/transform"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/version"
)

const (
	serverName       = "modpolyfill"
	diagnosticSource = "modpolyfill"
	rewriteTitle     = "Rewrite module imports to the global"

	publishDiagnosticsMethod = "textDocument/publishDiagnostics"
)

// Server is the modpolyfill language server.
type Server struct {
	store       *DocumentStore
	transformer *transform.Transformer
	parser      *jsparse.Parser
	logger      *slog.Logger
	handler     protocol.Handler
}

// NewServer creates a language server backed by transformer.
func NewServer(transformer *transform.Transformer, logger *slog.Logger) (*Server, error) {
	parser, err := jsparse.NewParser()
	if err != nil {
		return nil, fmt.Errorf("lsp: %w", err)
	}

	if logger == nil {
		logger = observability.Discard()
	}

	srv := &Server{
		store:       NewDocumentStore(),
		transformer: transformer,
		parser:      parser,
		logger:      logger,
	}

	srv.handler = protocol.Handler{
		Initialize:             srv.initialize,
		Initialized:            srv.initialized,
		Shutdown:               srv.shutdown,
		SetTrace:               srv.setTrace,
		TextDocumentDidOpen:    srv.didOpen,
		TextDocumentDidChange:  srv.didChange,
		TextDocumentDidSave:    srv.didSave,
		TextDocumentDidClose:   srv.didClose,
		TextDocumentHover:      srv.hover,
		TextDocumentCodeAction: srv.codeAction,
	}

	return srv, nil
}

// Run serves on stdio until the client disconnects.
func (srv *Server) Run() error {
	lspServer := server.NewServer(&srv.handler, serverName, false)

	err := lspServer.RunStdio()
	if err != nil {
		return fmt.Errorf("lsp: %w", err)
	}

	return nil
}

func (srv *Server) initialize(_ *glsp.Context, _ *protocol.InitializeParams) (any, error) {
	capabilities := srv.handler.CreateServerCapabilities()

	openClose := true
	change := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = protocol.TextDocumentSyncOptions{
		OpenClose: &openClose,
		Change:    &change,
	}

	ver := version.Get().Version

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &ver,
		},
	}, nil
}

func (srv *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	return nil
}

func (srv *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)

	return nil
}

func (srv *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)

	return nil
}

func (srv *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI

	srv.store.Set(uri, params.TextDocument.Text)
	srv.publishDiagnostics(ctx, uri)

	return nil
}

func (srv *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// Full sync: the last change carries the whole document.
	for idx := len(params.ContentChanges) - 1; idx >= 0; idx-- {
		text, ok := changeText(params.ContentChanges[idx])
		if !ok {
			continue
		}

		srv.store.Set(uri, text)
		srv.publishDiagnostics(ctx, uri)

		break
	}

	return nil
}

func changeText(change any) (string, bool) {
	switch typed := change.(type) {
	case protocol.TextDocumentContentChangeEventWhole:
		return typed.Text, true
	case protocol.TextDocumentContentChangeEvent:
		return typed.Text, typed.Range == nil
	case map[string]any:
		text, ok := typed["text"].(string)

		return text, ok
	default:
		return "", false
	}
}

func (srv *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI

	if params.Text != nil {
		srv.store.Set(uri, *params.Text)
	}

	if _, ok := srv.store.Get(uri); ok {
		srv.publishDiagnostics(ctx, uri)
	}

	return nil
}

func (srv *Server) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	srv.store.Delete(uri)

	ctx.Notify(publishDiagnosticsMethod, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})

	return nil
}

func (srv *Server) publishDiagnostics(ctx *glsp.Context, uri string) {
	text, ok := srv.store.Get(uri)
	if !ok {
		return
	}

	ctx.Notify(publishDiagnosticsMethod, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: srv.Diagnostics(context.Background(), uri, text),
	})
}

// Diagnostics rewrites text and reports the failure, if any, as a single
// error diagnostic. Files that are not JavaScript or TypeScript get none.
func (srv *Server) Diagnostics(ctx context.Context, uri, text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	_, err := srv.transformer.File(ctx, uriFilename(uri), []byte(text))
	if err == nil || errors.Is(err, jsparse.ErrUnsupported) {
		return diagnostics
	}

	diag, ok := transform.AsDiagnostic(err)
	if !ok {
		srv.logger.WarnContext(ctx, "lsp: transform failed", "uri", uri, "error", err)

		return diagnostics
	}

	line := max(diag.Line-1, 0)
	content := lineText(text, line)
	severity := protocol.DiagnosticSeverityError
	source := diagnosticSource

	return append(diagnostics, protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{
				Line:      protocol.UInteger(line),
				Character: protocol.UInteger(utf16Column(content, max(diag.Column-1, 0))),
			},
			End: protocol.Position{
				Line:      protocol.UInteger(line),
				Character: protocol.UInteger(utf16Column(content, len(content))),
			},
		},
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: diag.Kind},
		Source:   &source,
		Message:  diag.Message,
	})
}

func (srv *Server) hover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := srv.store.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil //nolint:nilnil // LSP expects a nil hover for unknown documents.
	}

	value, found := srv.HoverText(context.Background(), params.TextDocument.URI, text,
		int(params.Position.Line), int(params.Position.Character))
	if !found {
		return nil, nil //nolint:nilnil // LSP expects a nil hover when nothing is mapped.
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}, nil
}

// HoverText describes the global a specifier under the cursor maps to.
// line and character are 0-based, character in UTF-16 units.
func (srv *Server) HoverText(ctx context.Context, uri, text string, line, character int) (string, bool) {
	file, err := srv.parser.Parse(ctx, uriFilename(uri), []byte(text))
	if err != nil {
		return "", false
	}

	offset := byteOffset(text, line, character)
	cursor := jsast.Span{Start: offset, End: offset}
	engine := srv.transformer.Engine()

	for _, stmt := range file.Statements {
		module, export, found := specifierAt(stmt, cursor)
		if !found {
			continue
		}

		if module == engine.CanonicalModule() {
			return fmt.Sprintf("`%s` is the canonical global import.", engine.CanonicalName()), true
		}

		global, mapped := engine.Lookup(module, export)
		if !mapped {
			return "", false
		}

		return fmt.Sprintf("`%s` from `'%s'` is available as `%s`.", export, module, global), true
	}

	return "", false
}

func specifierAt(stmt jsast.Statement, cursor jsast.Span) (module, export string, found bool) {
	if !stmt.StmtSpan().Contains(cursor) {
		return "", "", false
	}

	switch decl := stmt.(type) {
	case *jsast.ImportDecl:
		for _, spec := range decl.Specifiers {
			if spec.Kind != jsast.Namespace && spec.Span.Contains(cursor) {
				return decl.Source.Value, spec.Imported, true
			}
		}
	case *jsast.ExportFrom:
		for _, spec := range decl.Specifiers {
			if spec.Kind != jsast.Namespace && spec.Span.Contains(cursor) {
				return decl.Source.Value, spec.Local, true
			}
		}
	}

	return "", "", false
}

func (srv *Server) codeAction(_ *glsp.Context, params *protocol.CodeActionParams) (any, error) {
	text, ok := srv.store.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	action, found := srv.RewriteAction(context.Background(), params.TextDocument.URI, text)
	if !found {
		return []protocol.CodeAction{}, nil
	}

	return []protocol.CodeAction{action}, nil
}

// RewriteAction offers the rewritten document as a single whole-file edit.
// found is false when the file cannot be rewritten or nothing changes.
func (srv *Server) RewriteAction(ctx context.Context, uri, text string) (protocol.CodeAction, bool) {
	out, err := srv.transformer.File(ctx, uriFilename(uri), []byte(text))
	if err != nil || !out.Changed {
		return protocol.CodeAction{}, false
	}

	lastLine := strings.Count(text, "\n")

	kind := protocol.CodeActionKindQuickFix

	return protocol.CodeAction{
		Title: rewriteTitle,
		Kind:  &kind,
		Edit: &protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentUri][]protocol.TextEdit{
				uri: {{
					Range: protocol.Range{
						Start: protocol.Position{Line: 0, Character: 0},
						End: protocol.Position{
							Line:      protocol.UInteger(lastLine),
							Character: protocol.UInteger(utf16Column(lineText(text, lastLine), len(text))),
						},
					},
					NewText: string(out.Code),
				}},
			},
		},
	}, true
}
