package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/mapping"
)

const (
	mappedSource    = "import { later } from '@ember/runloop';\nlater(fn, 10);\n"
	rewrittenSource = "import Ember from 'ember';\nEmber.run.later(fn, 10);\n"
	failingSource   = "import * as runloop from '@ember/runloop';\n"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// runCLI runs the CLI with an isolated config file.
func runCLI(t *testing.T, configBody, stdin string, args ...string) cliResult {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), ".modpolyfill.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configBody), 0o600))

	var stdout, stderr bytes.Buffer

	code := run(context.Background(), append([]string{"--config", configPath}, args...),
		strings.NewReader(stdin), &stdout, &stderr)

	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestRewrite_PrintsResult(t *testing.T) {
	t.Parallel()

	path := writeSource(t, t.TempDir(), "app.js", mappedSource)

	res := runCLI(t, "", "", "rewrite", path)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Equal(t, rewrittenSource, res.stdout)
}

func TestRewrite_Stdin(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", mappedSource, "rewrite", "-")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Equal(t, rewrittenSource, res.stdout)
}

func TestRewrite_WriteAndCheck(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	changed := writeSource(t, dir, "app/a.js", mappedSource)
	writeSource(t, dir, "app/b.js", "const b = 1;\n")
	writeSource(t, dir, "node_modules/dep/index.js", mappedSource)

	res := runCLI(t, "", "", "rewrite", "--check", dir)
	assert.Equal(t, exitDiagnostics, res.code)
	assert.Equal(t, changed+"\n", res.stdout)
	assert.Contains(t, res.stderr, "some files need rewriting")

	res = runCLI(t, "", "", "rewrite", "--write", dir)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "2 files")

	content, err := os.ReadFile(changed)
	require.NoError(t, err)
	assert.Equal(t, rewrittenSource, string(content))

	vendored, err := os.ReadFile(filepath.Join(dir, "node_modules/dep/index.js"))
	require.NoError(t, err)
	assert.Equal(t, mappedSource, string(vendored))

	res = runCLI(t, "", "", "rewrite", "--check", dir)
	assert.Equal(t, exitOK, res.code, res.stderr)
	assert.Empty(t, res.stdout)
}

func TestRewrite_Diff(t *testing.T) {
	t.Parallel()

	path := writeSource(t, t.TempDir(), "app.js", mappedSource)

	res := runCLI(t, "", "", "rewrite", "--diff", path)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "-import { later } from '@ember/runloop';\n")
	assert.Contains(t, res.stdout, "+Ember.run.later(fn, 10);\n")
}

func TestRewrite_JSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeSource(t, dir, "a.js", mappedSource)
	writeSource(t, dir, "b.js", failingSource)

	res := runCLI(t, "", "", "rewrite", "--json", dir)
	assert.Equal(t, exitDiagnostics, res.code)

	var payload []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &payload))
	require.Len(t, payload, 2)
	assert.Equal(t, good, payload[0]["file"])
	assert.Equal(t, true, payload[0]["changed"])
	assert.NotEmpty(t, payload[1]["diagnostic"])
}

func TestRewrite_WriteNeedsFiles(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", mappedSource, "rewrite", "--write")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, errStdinWrite.Error())
}

func TestCheck_ReportsDiagnostics(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSource(t, dir, "ok.js", mappedSource)
	bad := writeSource(t, dir, "bad.js", failingSource)

	res := runCLI(t, "", "", "check", dir)
	assert.Equal(t, exitDiagnostics, res.code)
	assert.Contains(t, res.stderr, bad+":1:")
	assert.Contains(t, res.stderr, "Using `import * as runloop from '@ember/runloop'` is not supported.")
	assert.Contains(t, res.stderr, "> 1 | import * as runloop")
	assert.NotContains(t, res.stderr, "Error:")
}

func TestRewrite_DisallowedModuleIsLeftAlone(t *testing.T) {
	t.Parallel()

	path := writeSource(t, t.TempDir(), "app.js", mappedSource)

	res := runCLI(t, "disallowed: ['@ember/runloop']\n", "", "rewrite", path)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Equal(t, mappedSource, res.stdout)

	res = runCLI(t, "disallowed: ['@ember/runloop']\n", "", "check", path)
	assert.Equal(t, exitOK, res.code, res.stderr)
}

func TestInvalidConfigExitsWithUsage(t *testing.T) {
	t.Parallel()

	path := writeSource(t, t.TempDir(), "app.js", mappedSource)

	res := runCLI(t, "server:\n  port: -1\n", "", "rewrite", path)
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "invalid server port")
}

func TestUnknownCommandExitsWithUsage(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", "", "frobnicate")
	assert.Equal(t, exitUsage, res.code)
}

func TestMappings(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", "", "mappings", "@ember/runloop")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Ember.run.later")
	assert.NotContains(t, res.stdout, "Ember.Component")

	res = runCLI(t, "", "", "mappings", "lookup", "@ember/runloop", "later", "--json")
	require.Equal(t, exitOK, res.code, res.stderr)

	var entries []mapping.Entry
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &entries))
	assert.Equal(t, []mapping.Entry{{Module: "@ember/runloop", Export: "later", Global: "Ember.run.later"}}, entries)

	res = runCLI(t, "", "", "mappings", "find", "Ember.Component")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "@ember/component")

	res = runCLI(t, "", "", "mappings", "lookup", "@ember/runloop", "nope")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "not mapped")
}

func TestMappingsValidateAndSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	valid := writeSource(t, dir, "table.json", `[{"module": "acme", "export": "default", "global": "Acme"}]`)
	invalid := writeSource(t, dir, "broken.json", `[{"module": "acme"}]`)

	res := runCLI(t, "", "", "mappings", "validate", valid)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "1 records")

	res = runCLI(t, "", "", "mappings", "validate", invalid)
	assert.Equal(t, exitUsage, res.code)

	res = runCLI(t, "", "", "mappings", "schema")
	require.Equal(t, exitOK, res.code)
	assert.JSONEq(t, string(mapping.Schema()), res.stdout)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", "", "version", "--json")
	require.Equal(t, exitOK, res.code)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
	assert.NotEmpty(t, info["version"])
}
