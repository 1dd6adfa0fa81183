package mapping_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/mapping"
)

func TestCompile(t *testing.T) {
	t.Parallel()

	rev := mapping.Compile([]mapping.Record{
		{Module: "@ember/object", Export: "computed", Global: "Ember.computed"},
		{Module: "@ember/object", Export: "default", Global: "Ember.Object"},
		{
			Module:      "@ember/string",
			Export:      "htmlSafe",
			Global:      "Ember.String.htmlSafe",
			Replacement: &mapping.Ref{Module: "@ember/template", Export: "htmlSafe"},
		},
	})

	global, ok := rev.Lookup("@ember/object", "computed")
	require.True(t, ok)
	assert.Equal(t, "Ember.computed", global)

	global, ok = rev.Lookup("@ember/template", "htmlSafe")
	require.True(t, ok)
	assert.Equal(t, "Ember.String.htmlSafe", global)

	original, _ := rev.Lookup("@ember/string", "htmlSafe")
	assert.Equal(t, original, global)

	assert.Equal(t, []string{"@ember/object", "@ember/string", "@ember/template"}, rev.Modules())
	assert.Equal(t, []string{"computed", "default"}, rev.Exports("@ember/object"))
	assert.Equal(t, 4, rev.Len())
}

func TestLookupUnknownExportIsAbsent(t *testing.T) {
	t.Parallel()

	rev := mapping.Compile([]mapping.Record{
		{Module: "@ember/object", Export: "computed", Global: "Ember.computed"},
	})

	global, ok := rev.Lookup("@ember/object", "nope")
	assert.False(t, ok)
	assert.Empty(t, global)

	assert.True(t, rev.HasModule("@ember/object"))
	assert.False(t, rev.HasModule("lodash"))

	_, ok = rev.Lookup("lodash", "default")
	assert.False(t, ok)
}

func TestCompileLaterRecordWins(t *testing.T) {
	t.Parallel()

	rev := mapping.Compile([]mapping.Record{
		{Module: "m", Export: "x", Global: "G.old"},
		{Module: "m", Export: "x", Global: "G.new"},
	})

	global, ok := rev.Lookup("m", "x")
	require.True(t, ok)
	assert.Equal(t, "G.new", global)
}

func TestNilReverse(t *testing.T) {
	t.Parallel()

	var rev *mapping.Reverse

	assert.False(t, rev.HasModule("x"))
	assert.Nil(t, rev.Modules())
	assert.Zero(t, rev.Len())
}

func TestEntriesAndFind(t *testing.T) {
	t.Parallel()

	rev := mapping.Compile([]mapping.Record{
		{Module: "@ember/runloop", Export: "run", Global: "Ember.run"},
		{Module: "@ember/runloop", Export: "later", Global: "Ember.run.later"},
		{Module: "rsvp", Export: "default", Global: "Ember.RSVP"},
	})

	entries := rev.Entries("@ember/")
	require.Len(t, entries, 2)
	assert.Equal(t, "later", entries[0].Export)
	assert.Equal(t, "run", entries[1].Export)

	found := rev.Find("Ember.RSVP")
	require.Len(t, found, 1)
	assert.Equal(t, "rsvp", found[0].Module)
}

func TestDefaultTable(t *testing.T) {
	t.Parallel()

	records, err := mapping.Default()
	require.NoError(t, err)
	require.NotEmpty(t, records)

	rev := mapping.Compile(records)

	global, ok := rev.Lookup("@ember/string", "camelize")
	require.True(t, ok)
	assert.Equal(t, "Ember.String.camelize", global)

	global, ok = rev.Lookup("@ember/template", "htmlSafe")
	require.True(t, ok)
	assert.Equal(t, "Ember.String.htmlSafe", global)

	for ref, want := range map[mapping.Ref]string{
		{Module: "@ember/object", Export: "action"}:                   "Ember._action",
		{Module: "@glimmer/tracking", Export: "tracked"}:              "Ember._tracked",
		{Module: "@ember/service", Export: "service"}:                 "Ember.inject.service",
		{Module: "@ember/component", Export: "setComponentTemplate"}:  "Ember._setComponentTemplate",
		{Module: "@ember/component/template-only", Export: "default"}: "Ember._templateOnlyComponent",
		{Module: "@ember/destroyable", Export: "registerDestructor"}:  "Ember._registerDestructor",
	} {
		global, ok = rev.Lookup(ref.Module, ref.Export)
		require.True(t, ok, "%s %s", ref.Module, ref.Export)
		assert.Equal(t, want, global)
	}

	for _, rec := range records {
		assert.True(t, strings.HasPrefix(rec.Global, "Ember."), "%s %s -> %s", rec.Module, rec.Export, rec.Global)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	doc := `
- module: "@ember/object"
  export: computed
  global: Ember.computed
- module: "@ember/string"
  export: htmlSafe
  global: Ember.String.htmlSafe
  replacement:
    module: "@ember/template"
    export: htmlSafe
`

	records, err := mapping.Load(strings.NewReader(doc), mapping.LoadOptions{Validate: true})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[1].Replacement)
	assert.Equal(t, "@ember/template", records[1].Replacement.Module)
}

func TestLoadRejectsInvalidDocument(t *testing.T) {
	t.Parallel()

	doc := `[{"module": "@ember/object", "global": "not a path"}]`

	_, err := mapping.Load(strings.NewReader(doc), mapping.LoadOptions{Validate: true})
	require.Error(t, err)
	require.ErrorIs(t, err, mapping.ErrInvalidTable)

	var verr *mapping.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.Problems)
}

func TestLoadEmptyTable(t *testing.T) {
	t.Parallel()

	_, err := mapping.Load(strings.NewReader("[]"), mapping.LoadOptions{})
	require.ErrorIs(t, err, mapping.ErrEmptyTable)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"module":"m","export":"default","global":"G.M"}]`), 0o600))

	records, err := mapping.LoadFile(path, mapping.LoadOptions{Validate: true})
	require.NoError(t, err)
	assert.Equal(t, mapping.Ref{Module: "m", Export: "default"}, records[0].Key())

	_, err = mapping.LoadFile(filepath.Join(t.TempDir(), "missing.json"), mapping.LoadOptions{})
	require.Error(t, err)
}
