package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/mapping"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/rewrite"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/transform"
)

// Tool name constants.
const (
	ToolNameRewrite = "modpolyfill_rewrite"
	ToolNameLookup  = "modpolyfill_lookup"
)

// MaxCodeInputBytes is the maximum allowed size for inline code input (1 MB).
const MaxCodeInputBytes = 1 << 20

// defaultFilename is used when the rewrite input names no file.
const defaultFilename = "input.js"

// Sentinel errors for tool input validation.
var (
	// ErrEmptyCode indicates the code parameter is empty.
	ErrEmptyCode = errors.New("code parameter is required and must not be empty")
	// ErrCodeTooLarge indicates the code input exceeds the size limit.
	ErrCodeTooLarge = errors.New("code input exceeds maximum size")
	// ErrEmptyQuery indicates the lookup names neither a module nor a global.
	ErrEmptyQuery = errors.New("module or global parameter is required")
	// ErrNotMapped indicates the looked up export has no global.
	ErrNotMapped = errors.New("export is not mapped")
)

// RewriteInput is the input schema for the modpolyfill_rewrite tool.
type RewriteInput struct {
	Code     string `json:"code"               jsonschema:"JavaScript or TypeScript source to rewrite"`
	Filename string `json:"filename,omitempty" jsonschema:"file name used to pick the grammar (default: input.js)"`
}

// LookupInput is the input schema for the modpolyfill_lookup tool.
type LookupInput struct {
	Module string `json:"module,omitempty" jsonschema:"module path, e.g. @ember/runloop"`
	Export string `json:"export,omitempty" jsonschema:"export name; omit to list every export of module"`
	Global string `json:"global,omitempty" jsonschema:"global path to reverse, e.g. Ember.run.later"`
}

// RewriteResult is the structured outcome of a rewrite.
type RewriteResult struct {
	Code       string                `json:"code,omitempty"`
	Diagnostic *transform.Diagnostic `json:"diagnostic,omitempty"`
	Rewrites   []rewrite.Rewritten   `json:"rewrites,omitempty"`
	Changed    bool                  `json:"changed"`
	Injected   bool                  `json:"injected"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any, isError bool) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
		IsError: isError,
	}, ToolOutput{Data: value}, nil
}

func (s *Server) handleRewrite(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input RewriteInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Code == "" {
		return errorResult(ErrEmptyCode)
	}

	if len(input.Code) > MaxCodeInputBytes {
		return errorResult(fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(input.Code), MaxCodeInputBytes))
	}

	filename := input.Filename
	if filename == "" {
		filename = defaultFilename
	}

	out, err := s.transformer.File(ctx, filename, []byte(input.Code))
	if err != nil {
		if diag, ok := transform.AsDiagnostic(err); ok {
			return jsonResult(RewriteResult{Diagnostic: diag}, true)
		}

		return errorResult(err)
	}

	return jsonResult(RewriteResult{
		Code:     string(out.Code),
		Rewrites: out.Rewrites,
		Changed:  out.Changed,
		Injected: out.Injected,
	}, false)
}

func (s *Server) handleLookup(
	_ context.Context, _ *mcpsdk.CallToolRequest, input LookupInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	engine := s.transformer.Engine()

	switch {
	case input.Global != "":
		return jsonResult(nonNil(engine.Reverse().Find(input.Global)), false)
	case input.Module != "" && input.Export != "":
		global, ok := engine.Lookup(input.Module, input.Export)
		if !ok {
			return errorResult(fmt.Errorf("%w: %s from %s", ErrNotMapped, input.Export, input.Module))
		}

		return jsonResult([]mapping.Entry{{Module: input.Module, Export: input.Export, Global: global}}, false)
	case input.Module != "":
		var entries []mapping.Entry

		for _, export := range engine.Reverse().Exports(input.Module) {
			if global, ok := engine.Lookup(input.Module, export); ok {
				entries = append(entries, mapping.Entry{Module: input.Module, Export: export, Global: global})
			}
		}

		return jsonResult(nonNil(entries), false)
	default:
		return errorResult(ErrEmptyQuery)
	}
}

func nonNil(entries []mapping.Entry) []mapping.Entry {
	if entries == nil {
		return []mapping.Entry{}
	}

	return entries
}
