// Package transform runs the rewrite engine over source files: parse,
// rewrite, print, with caching, batching, diagnostics and telemetry.
package transform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsparse"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/observability"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/rewrite"
)

// Sentinel errors.
var (
	ErrTooLarge  = errors.New("file exceeds the maximum size")
	ErrNoEngine  = errors.New("transform: engine is required")
	errCacheSize = errors.New("transform: invalid cache size")
)

// Options configure a Transformer. Only Engine is required.
type Options struct {
	Engine  *rewrite.Engine
	Parser  *jsparse.Parser
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.TransformMetrics
	// CacheSize is the number of results kept by content hash; zero disables caching.
	CacheSize int
	// MaxFileSize rejects larger sources; zero means no limit.
	MaxFileSize int64
	// Workers bounds batch concurrency; zero or less means one per CPU.
	Workers int
}

// Output is the rewritten form of one file.
type Output struct {
	File     string              `json:"file"`
	Code     []byte              `json:"-"`
	Rewrites []rewrite.Rewritten `json:"rewrites"`
	Injected bool                `json:"injected"`
	Changed  bool                `json:"changed"`
}

// Transformer rewrites files. It is safe for concurrent use.
type Transformer struct {
	engine  *rewrite.Engine
	parser  *jsparse.Parser
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.TransformMetrics
	cache   *lru.Cache[string, *Output]
	maxSize int64
	workers int
}

// New builds a Transformer.
func New(opts Options) (*Transformer, error) {
	if opts.Engine == nil {
		return nil, ErrNoEngine
	}

	tr := &Transformer{
		engine:  opts.Engine,
		parser:  opts.Parser,
		logger:  opts.Logger,
		tracer:  opts.Tracer,
		metrics: opts.Metrics,
		maxSize: opts.MaxFileSize,
		workers: opts.Workers,
	}

	if tr.parser == nil {
		parser, err := jsparse.NewParser()
		if err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}

		tr.parser = parser
	}

	if tr.logger == nil {
		tr.logger = observability.Discard()
	}

	if tr.tracer == nil {
		tr.tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	if opts.CacheSize < 0 {
		return nil, fmt.Errorf("%w: %d", errCacheSize, opts.CacheSize)
	}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, *Output](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("transform: create cache: %w", err)
		}

		tr.cache = cache
	}

	return tr, nil
}

// Engine returns the rewrite engine.
func (tr *Transformer) Engine() *rewrite.Engine {
	return tr.engine
}

// File rewrites one source. Rewrite and syntax failures are returned as
// *Diagnostic.
func (tr *Transformer) File(ctx context.Context, name string, source []byte) (*Output, error) {
	ctx, span := tr.tracer.Start(ctx, "transform.file", trace.WithAttributes(
		attribute.String("file", name),
		attribute.Int("bytes", len(source)),
	))
	defer span.End()

	start := time.Now()

	out, err := tr.file(ctx, name, source)

	stats := observability.FileStats{Duration: time.Since(start)}

	switch {
	case err != nil:
		stats.Outcome = observability.OutcomeFailed
		if errors.Is(err, ErrTooLarge) || errors.Is(err, jsparse.ErrUnsupported) {
			stats.Outcome = observability.OutcomeSkipped
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		tr.logger.WarnContext(ctx, "transform failed", "file", name, "error", err)
	case out.Changed:
		stats.Outcome = observability.OutcomeRewritten
		stats.Rewrites = len(out.Rewrites)
		stats.Injected = out.Injected

		span.SetAttributes(attribute.Int("rewrites", len(out.Rewrites)))
		tr.logger.DebugContext(ctx, "file rewritten",
			"file", name, "rewrites", len(out.Rewrites), "injected", out.Injected, "duration", stats.Duration)
	default:
		stats.Outcome = observability.OutcomeUnchanged
	}

	tr.metrics.RecordFile(ctx, stats)

	return out, err
}

func (tr *Transformer) file(ctx context.Context, name string, source []byte) (*Output, error) {
	if tr.maxSize > 0 && int64(len(source)) > tr.maxSize {
		return nil, fmt.Errorf("%s: %w (%d > %d bytes)", name, ErrTooLarge, len(source), tr.maxSize)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("transform %s: %w", name, err)
	}

	key := cacheKey(name, source)

	if tr.cache != nil {
		cached, ok := tr.cache.Get(key)
		tr.metrics.RecordCache(ctx, ok)

		if ok {
			return cached, nil
		}
	}

	file, err := tr.parser.Parse(ctx, name, source)
	if err != nil {
		return nil, diagnose(name, source, err)
	}

	result, err := tr.engine.Rewrite(file)
	if err != nil {
		return nil, diagnose(name, source, err)
	}

	code, err := jsparse.Apply(source, result.Edits)
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", name, err)
	}

	out := &Output{
		File:     name,
		Code:     code,
		Rewrites: result.Rewrites,
		Injected: result.Injected,
		Changed:  result.Edits.Len() > 0,
	}

	if tr.cache != nil {
		tr.cache.Add(key, out)
	}

	return out, nil
}

// cacheKey hashes the name with the content; the name picks the grammar.
func cacheKey(name string, source []byte) string {
	hash := sha256.New()
	hash.Write([]byte(name))
	hash.Write([]byte{0})
	hash.Write(source)

	return hex.EncodeToString(hash.Sum(nil))
}
