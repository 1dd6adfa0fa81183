package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/observability"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.Mode = observability.ModeServe

	logger := observability.NewLogger(&buf, cfg)

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "rewritten", "file", "app.js")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "modpolyfill", record["service"])
	assert.Equal(t, "serve", record["mode"])
	assert.Equal(t, "app.js", record["file"])
}

func TestTracingHandler_GroupKeepsServiceTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "svc", observability.ModeLSP)).WithGroup("req")

	logger.Info("hello", "id", 1)

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "svc", record["service"])
	assert.Equal(t, "lsp", record["mode"])
	assert.NotContains(t, record, "trace_id")

	group, ok := record["req"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 1, group["id"], 0)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	level, err := observability.ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = observability.ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = observability.ParseLevel("loud")
	require.Error(t, err)
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("garbage"))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, observability.ParseOTLPHeaders("a=1, b = 2,broken"))
}

func TestInit_NoEndpointIsNoop(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	providers, err := observability.Init(observability.DefaultConfig(), observability.Options{LogWriter: &buf})
	require.NoError(t, err)

	_, span := providers.Tracer.Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	providers.Logger.Info("ready")
	assert.Contains(t, buf.String(), "ready")
	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestREDMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	red, err := observability.NewREDMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()
	red.RecordRequest(ctx, "rewrite", observability.StatusOK, 2*time.Millisecond)
	red.RecordRequest(ctx, "rewrite", observability.StatusError, time.Millisecond)

	done := red.TrackInflight(ctx, "rewrite")
	done()

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "modpolyfill.requests.total")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "modpolyfill.errors.total")))
	assert.Equal(t, int64(0), sumOf(t, findMetric(rm, "modpolyfill.inflight.requests")))
}

func TestTransformMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	tm, err := observability.NewTransformMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()
	tm.RecordFile(ctx, observability.FileStats{Outcome: observability.OutcomeRewritten, Rewrites: 3, Injected: true})
	tm.RecordFile(ctx, observability.FileStats{Outcome: observability.OutcomeUnchanged})
	tm.RecordCache(ctx, true)
	tm.RecordCache(ctx, false)
	tm.RecordCache(ctx, false)

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "modpolyfill.transform.files.total")))
	assert.Equal(t, int64(3), sumOf(t, findMetric(rm, "modpolyfill.transform.rewrites.total")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "modpolyfill.transform.injected.total")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "modpolyfill.transform.cache.hits.total")))
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "modpolyfill.transform.cache.misses.total")))
}

func TestNilMetricsAreNoop(t *testing.T) {
	t.Parallel()

	var (
		red *observability.REDMetrics
		tm  *observability.TransformMetrics
	)

	ctx := context.Background()

	assert.NotPanics(t, func() {
		red.RecordRequest(ctx, "x", observability.StatusOK, time.Second)
		red.TrackInflight(ctx, "x")()
		tm.RecordFile(ctx, observability.FileStats{})
		tm.RecordCache(ctx, true)
	})
}

func TestHTTPMiddleware(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	reader := sdkmetric.NewManualReader()

	red, err := observability.NewREDMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	require.NoError(t, err)

	handler := observability.HTTPMiddleware(tp.Tracer("test"), red, http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		assert.True(t, trace.SpanContextFromContext(hr.Context()).IsValid())
		rw.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rewrite", http.NoBody))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/rewrite", spans[0].Name)
	assert.Equal(t, int64(1), sumOf(t, findMetric(collect(t, reader), "modpolyfill.errors.total")))
}

func TestPrometheus_ServesRecordedMetrics(t *testing.T) {
	t.Parallel()

	prom, err := observability.NewPrometheus()
	require.NoError(t, err)

	tm, err := observability.NewTransformMetrics(prom.Provider.Meter("test"))
	require.NoError(t, err)

	tm.RecordFile(context.Background(), observability.FileStats{Outcome: observability.OutcomeRewritten, Rewrites: 1})

	rec := httptest.NewRecorder()
	prom.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "modpolyfill_transform_files")
}
