// Package mcp exposes the rewrite engine as Model Context Protocol tools
// over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/observability"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/transform"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/version"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "modpolyfill"

	// toolCount is the number of registered tools.
	toolCount = 2
)

// ErrNoTransformer is returned when ServerDeps lacks a Transformer.
var ErrNoTransformer = errors.New("mcp: transformer is required")

// ServerDeps holds injectable dependencies for the MCP server.
// Only Transformer is required.
type ServerDeps struct {
	Transformer *transform.Transformer

	// Logger is an optional structured logger. Nil uses the SDK default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with the modpolyfill tools.
type Server struct {
	inner       *mcpsdk.Server
	transformer *transform.Transformer
	metrics     *observability.REDMetrics
	tracer      trace.Tracer
	tools       []string
	mu          sync.RWMutex
}

// NewServer creates an MCP server with all tools registered.
func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Transformer == nil {
		return nil, ErrNoTransformer
	}

	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Get().Version,
		},
		opts,
	)

	srv := &Server{
		inner:       inner,
		transformer: deps.Transformer,
		tools:       make([]string, 0, toolCount),
		metrics:     deps.Metrics,
		tracer:      deps.Tracer,
	}

	srv.registerRewriteTool()
	srv.registerLookupTool()

	return srv, nil
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run serves on stdio until ctx is cancelled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport until ctx is cancelled or the
// connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerRewriteTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameRewrite,
		Description: rewriteToolDescription,
	}, withMetrics(s.metrics, ToolNameRewrite, withTracing(s.tracer, ToolNameRewrite, s.handleRewrite)))

	s.trackTool(ToolNameRewrite)
}

func (s *Server) registerLookupTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameLookup,
		Description: lookupToolDescription,
	}, withMetrics(s.metrics, ToolNameLookup, withTracing(s.tracer, ToolNameLookup, s.handleLookup)))

	s.trackTool(ToolNameLookup)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

type toolHandler[Input any] func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error)

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](tracer trace.Tracer, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](metrics *observability.REDMetrics, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	rewriteToolDescription = "Rewrite Ember module imports (e.g. `import { later } from '@ember/runloop'`) " +
		"to references on the Ember global (`Ember.run.later`). Accepts inline JavaScript or TypeScript " +
		"and returns the rewritten code, the rewritten specifiers and any diagnostic."

	lookupToolDescription = "Look up the global path of a module export, or list the exports of a module, " +
		"or find the module paths that map to a global."
)
