package transform_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsparse"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/mapping"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/observability"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/rewrite"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/transform"
)

func newTransformer(t *testing.T, opts transform.Options) *transform.Transformer {
	t.Helper()

	records, err := mapping.Default()
	require.NoError(t, err)

	opts.Engine = rewrite.New(records, rewrite.Options{})

	tr, err := transform.New(opts)
	require.NoError(t, err)

	return tr
}

func TestNewRequiresEngine(t *testing.T) {
	t.Parallel()

	_, err := transform.New(transform.Options{})
	require.ErrorIs(t, err, transform.ErrNoEngine)
}

func TestFile_Rewrites(t *testing.T) {
	t.Parallel()

	tr := newTransformer(t, transform.Options{})

	out, err := tr.File(context.Background(), "app.js", []byte("import Component from '@ember/component';\nComponent.extend();\n"))
	require.NoError(t, err)

	assert.True(t, out.Changed)
	assert.True(t, out.Injected)
	assert.Equal(t, "import Ember from 'ember';\nEmber.Component.extend();\n", string(out.Code))
	require.Len(t, out.Rewrites, 1)
	assert.Equal(t, "Ember.Component", out.Rewrites[0].Global)
}

func TestFile_Unchanged(t *testing.T) {
	t.Parallel()

	tr := newTransformer(t, transform.Options{})
	src := "import lodash from 'lodash';\nlodash.map([]);\n"

	out, err := tr.File(context.Background(), "app.js", []byte(src))
	require.NoError(t, err)

	assert.False(t, out.Changed)
	assert.Equal(t, src, string(out.Code))
	assert.Empty(t, out.Rewrites)
}

func TestFile_Diagnostic(t *testing.T) {
	t.Parallel()

	tr := newTransformer(t, transform.Options{})
	src := "import a from 'a';\nimport * as computed from '@ember/object/computed';\n"

	_, err := tr.File(context.Background(), "app.js", []byte(src))
	require.Error(t, err)
	require.ErrorIs(t, err, rewrite.ErrUnsupportedConstruct)

	diag, ok := transform.AsDiagnostic(err)
	require.True(t, ok)

	assert.Equal(t, transform.KindUnsupported, diag.Kind)
	assert.Equal(t, "app.js", diag.File)
	assert.Equal(t, 2, diag.Line)
	assert.Equal(t, "Using `import * as computed from '@ember/object/computed'` is not supported.", diag.Message)
	assert.Contains(t, diag.Frame, "> 2 | import * as computed")
	assert.True(t, strings.HasPrefix(diag.Error(), "app.js:2:"))
}

func TestFile_SyntaxDiagnostic(t *testing.T) {
	t.Parallel()

	tr := newTransformer(t, transform.Options{})

	tests := []struct {
		name string
		src  string
	}{
		{"stray brace", "import {{ from 'x';\n"},
		{"missing closing brace", "import { get } from '@ember/object';\nif (a) { get(a, 'b');\n"},
		{"missing closing paren", "import { get } from '@ember/object';\nconst x = (get(a);\n"},
	}

	for _, tt := range tests {
		out, err := tr.File(context.Background(), "broken.js", []byte(tt.src))
		require.ErrorIs(t, err, jsparse.ErrSyntax, tt.name)
		assert.Nil(t, out, tt.name)

		diag, ok := transform.AsDiagnostic(err)
		require.True(t, ok, tt.name)
		assert.Equal(t, transform.KindSyntax, diag.Kind, tt.name)
	}

	_, err := tr.File(context.Background(), "broken.js", []byte("import {{ from 'x';\n"))
	diag, ok := transform.AsDiagnostic(err)
	require.True(t, ok)
	assert.NotEmpty(t, diag.Frame)
}

func TestFile_TooLarge(t *testing.T) {
	t.Parallel()

	tr := newTransformer(t, transform.Options{MaxFileSize: 8})

	_, err := tr.File(context.Background(), "app.js", []byte("import a from 'a';\n"))
	require.ErrorIs(t, err, transform.ErrTooLarge)

	_, ok := transform.AsDiagnostic(err)
	assert.False(t, ok)
}

func TestFile_CancelledContext(t *testing.T) {
	t.Parallel()

	tr := newTransformer(t, transform.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.File(ctx, "app.js", []byte("import a from 'a';\n"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestFile_CacheAndMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := observability.NewTransformMetrics(provider.Meter("test"))
	require.NoError(t, err)

	tr := newTransformer(t, transform.Options{CacheSize: 4, Metrics: metrics})
	src := []byte("import { later } from '@ember/runloop';\nlater();\n")

	first, err := tr.File(context.Background(), "app.js", src)
	require.NoError(t, err)

	second, err := tr.File(context.Background(), "app.js", src)
	require.NoError(t, err)

	assert.Same(t, first, second)

	var data metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &data))

	sums := map[string]int64{}

	for _, scope := range data.ScopeMetrics {
		for _, item := range scope.Metrics {
			if sum, ok := item.Data.(metricdata.Sum[int64]); ok {
				for _, point := range sum.DataPoints {
					sums[item.Name] += point.Value
				}
			}
		}
	}

	assert.Equal(t, int64(1), sums["modpolyfill.transform.cache.hits.total"])
	assert.Equal(t, int64(1), sums["modpolyfill.transform.cache.misses.total"])
	assert.Equal(t, int64(2), sums["modpolyfill.transform.files.total"])
}

func TestBatch_KeepsOrderAndErrors(t *testing.T) {
	t.Parallel()

	tr := newTransformer(t, transform.Options{Workers: 2})

	inputs := []transform.Input{
		{Name: "a.js", Source: []byte("import { A } from '@ember/array';\nA();\n")},
		{Name: "b.js", Source: []byte("export * from '@ember/object';\n")},
		{Name: "c.js", Source: []byte("const x = 1;\n")},
	}

	results, err := tr.Batch(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for idx, result := range results {
		assert.Equal(t, inputs[idx].Name, result.Name)
	}

	require.NoError(t, results[0].Err)
	assert.True(t, results[0].Output.Changed)

	require.Error(t, results[1].Err)
	assert.Equal(t, "Wildcard exports from @ember/object are currently not possible",
		errors.Unwrap(results[1].Err).Error())

	require.NoError(t, results[2].Err)
	assert.False(t, results[2].Output.Changed)

	joined := transform.Errors(results)
	require.ErrorIs(t, joined, rewrite.ErrUnsupportedConstruct)

	summary := transform.Summarize(results)
	assert.Equal(t, 3, summary.Files)
	assert.Equal(t, 1, summary.Rewritten)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Rewrites)
	assert.Contains(t, summary.String(), "3 files")
}

func TestBatch_Cancelled(t *testing.T) {
	t.Parallel()

	tr := newTransformer(t, transform.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Batch(ctx, []transform.Input{{Name: "a.js", Source: []byte("1;\n")}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCollectAndPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	write("app/a.js", "import { A } from '@ember/array';\nA();\n")
	write("app/b.ts", "const b = 1;\n")
	write("app/readme.md", "# docs\n")
	write("node_modules/x/index.js", "import x from 'x';\n")
	write(".cache/c.js", "1;\n")

	files, err := transform.Collect([]string{root}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "app/a.js"),
		filepath.Join(root, "app/b.ts"),
	}, files)

	tr := newTransformer(t, transform.Options{})

	results, err := tr.Paths(context.Background(), files)
	require.NoError(t, err)
	require.NoError(t, transform.Errors(results))
	assert.True(t, results[0].Output.Changed)
	assert.False(t, results[1].Output.Changed)

	require.NoError(t, transform.WriteFile(files[0], results[0].Output.Code))

	written, err := transform.ReadFile(files[0], 0)
	require.NoError(t, err)
	assert.Equal(t, "import Ember from 'ember';\nEmber.A();\n", string(written))
}

func TestReadFileRejects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := transform.ReadFile("", 0)
	require.ErrorIs(t, err, transform.ErrEmptyPath)

	_, err = transform.ReadFile("a\x00b", 0)
	require.ErrorIs(t, err, transform.ErrPathContainsNUL)

	_, err = transform.ReadFile(dir, 0)
	require.ErrorIs(t, err, transform.ErrDirectoryPath)

	path := filepath.Join(dir, "big.js")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	_, err = transform.ReadFile(path, 4)
	require.ErrorIs(t, err, transform.ErrTooLarge)
}

func TestParseSize(t *testing.T) {
	t.Parallel()

	size, err := transform.ParseSize("1MB")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), size)

	size, err = transform.ParseSize("")
	require.NoError(t, err)
	assert.Zero(t, size)

	_, err = transform.ParseSize("lots")
	require.Error(t, err)
}

func TestDiff(t *testing.T) {
	t.Parallel()

	assert.Empty(t, transform.Diff("a.js", []byte("x\n"), []byte("x\n")))

	before := "import { later } from '@ember/runloop';\nlater();\n"
	after := "import Ember from 'ember';\nEmber.run.later();\n"

	diff := transform.Diff("a.js", []byte(before), []byte(after))
	assert.Contains(t, diff, "--- a/a.js\n+++ b/a.js\n")
	assert.Contains(t, diff, "-import { later } from '@ember/runloop';\n")
	assert.Contains(t, diff, "+import Ember from 'ember';\n")
	assert.Contains(t, diff, "+Ember.run.later();\n")
}

func TestDiffCollapsesContext(t *testing.T) {
	t.Parallel()

	lines := make([]string, 20)
	for idx := range lines {
		lines[idx] = "line"
	}

	before := strings.Join(lines, "\n") + "\n"
	after := strings.Replace(before, "line", "first", 1)

	diff := transform.Diff("a.js", []byte(before), []byte(after))
	assert.Contains(t, diff, "-line\n+first\n")
	assert.Contains(t, diff, "@@\n")
}

func TestCodeFrame(t *testing.T) {
	t.Parallel()

	src := "one\ntwo\nthree\nfour\nfive\nsix\n"

	frame := transform.CodeFrame([]byte(src), 3, 2)
	assert.Equal(t, "  1 | one\n  2 | two\n> 3 | three\n    |  ^\n  4 | four\n  5 | five\n", frame)

	assert.Empty(t, transform.CodeFrame([]byte(src), 40, 1))
}
