package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "modpolyfill.requests.total"
	metricRequestDuration  = "modpolyfill.request.duration.seconds"
	metricErrorsTotal      = "modpolyfill.errors.total"
	metricInflightRequests = "modpolyfill.inflight.requests"

	metricFilesTotal     = "modpolyfill.transform.files.total"
	metricRewritesTotal  = "modpolyfill.transform.rewrites.total"
	metricInjectedTotal  = "modpolyfill.transform.injected.total"
	metricFileDuration   = "modpolyfill.transform.file.duration.seconds"
	metricCacheHitsTotal = "modpolyfill.transform.cache.hits.total"
	metricCacheMisses    = "modpolyfill.transform.cache.misses.total"

	attrOp      = "op"
	attrStatus  = "status"
	attrOutcome = "outcome"

	// StatusOK and StatusError label request outcomes.
	StatusOK    = "ok"
	StatusError = "error"
)

// Request latencies for rewrite calls range from sub-millisecond cache hits
// to whole-directory batches.
var durationBucketBoundaries = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// REDMetrics holds the Rate, Error, Duration instruments of request-serving
// front ends.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates the RED instruments on mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	b := newMetricBuilder(mt)

	red := &REDMetrics{
		requestsTotal:    b.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration:  b.histogram(metricRequestDuration, "Request duration in seconds", "s", durationBucketBoundaries...),
		errorsTotal:      b.counter(metricErrorsTotal, "Total number of errors", "{error}"),
		inflightRequests: b.upDownCounter(metricInflightRequests, "Number of in-flight requests", "{request}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return red, nil
}

// RecordRequest records a completed request. Safe on a nil receiver.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	if rm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge and returns its decrement.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	if rm == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// Outcomes of one file transformation.
const (
	OutcomeRewritten = "rewritten"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// TransformMetrics holds the per-file instruments of the rewrite pipeline.
type TransformMetrics struct {
	filesTotal    metric.Int64Counter
	rewritesTotal metric.Int64Counter
	injectedTotal metric.Int64Counter
	fileDuration  metric.Float64Histogram
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
}

// FileStats describes one transformed file.
type FileStats struct {
	Outcome  string
	Duration time.Duration
	Rewrites int
	Injected bool
}

// NewTransformMetrics creates the pipeline instruments on mt.
func NewTransformMetrics(mt metric.Meter) (*TransformMetrics, error) {
	b := newMetricBuilder(mt)

	tm := &TransformMetrics{
		filesTotal:    b.counter(metricFilesTotal, "Files processed by outcome", "{file}"),
		rewritesTotal: b.counter(metricRewritesTotal, "Specifiers bound to the global", "{specifier}"),
		injectedTotal: b.counter(metricInjectedTotal, "Canonical imports injected", "{import}"),
		fileDuration:  b.histogram(metricFileDuration, "Per-file transform duration in seconds", "s", durationBucketBoundaries...),
		cacheHits:     b.counter(metricCacheHitsTotal, "Result cache hits", "{hit}"),
		cacheMisses:   b.counter(metricCacheMisses, "Result cache misses", "{miss}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return tm, nil
}

// RecordFile records one file. Safe on a nil receiver.
func (tm *TransformMetrics) RecordFile(ctx context.Context, stats FileStats) {
	if tm == nil {
		return
	}

	tm.filesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, stats.Outcome)))
	tm.fileDuration.Record(ctx, stats.Duration.Seconds())
	tm.rewritesTotal.Add(ctx, int64(stats.Rewrites))

	if stats.Injected {
		tm.injectedTotal.Add(ctx, 1)
	}
}

// RecordCache records a cache lookup. Safe on a nil receiver.
func (tm *TransformMetrics) RecordCache(ctx context.Context, hit bool) {
	if tm == nil {
		return
	}

	if hit {
		tm.cacheHits.Add(ctx, 1)

		return
	}

	tm.cacheMisses.Add(ctx, 1)
}
