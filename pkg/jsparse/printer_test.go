package jsparse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsast"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsparse"
)

func TestApply_NoEdits(t *testing.T) {
	t.Parallel()

	src := []byte("let a = 1;\n")

	out, err := jsparse.Apply(src, jsast.NewEdits())
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestApply_ReplaceAndInsert(t *testing.T) {
	t.Parallel()

	src := []byte("foo(bar);\n")

	edits := jsast.NewEdits()
	edits.Replace(jsast.Span{Start: 4, End: 7}, "Ember.bar")
	edits.Insert(0, "import Ember from 'ember';\n")

	out, err := jsparse.Apply(src, edits)
	require.NoError(t, err)
	assert.Equal(t, "import Ember from 'ember';\nfoo(Ember.bar);\n", string(out))
}

func TestApply_RemovedStatementDropsItsLine(t *testing.T) {
	t.Parallel()

	src := []byte("import a from 'x';\n  import b from 'y';  \nb();\n")

	edits := jsast.NewEdits()
	edits.ReplaceStatement(jsast.Span{Start: 21, End: 39}, "")

	out, err := jsparse.Apply(src, edits)
	require.NoError(t, err)
	assert.Equal(t, "import a from 'x';\nb();\n", string(out))
}

func TestApply_RemovedStatementSharingLineKeepsNeighbours(t *testing.T) {
	t.Parallel()

	src := []byte("import a from 'x'; a();\n")

	edits := jsast.NewEdits()
	edits.ReplaceStatement(jsast.Span{Start: 0, End: 18}, "")

	out, err := jsparse.Apply(src, edits)
	require.NoError(t, err)
	assert.Equal(t, " a();\n", string(out))
}

func TestApply_InsertBeforeRemovedFirstStatement(t *testing.T) {
	t.Parallel()

	src := []byte("import a from 'x';\na;\n")

	edits := jsast.NewEdits()
	edits.ReplaceStatement(jsast.Span{Start: 0, End: 18}, "")
	edits.Insert(0, "import Ember from 'ember';\n")

	out, err := jsparse.Apply(src, edits)
	require.NoError(t, err)
	assert.Equal(t, "import Ember from 'ember';\na;\n", string(out))
}

func TestApply_Overlap(t *testing.T) {
	t.Parallel()

	edits := jsast.NewEdits()
	edits.Replace(jsast.Span{Start: 0, End: 5}, "x")
	edits.Replace(jsast.Span{Start: 3, End: 6}, "y")

	_, err := jsparse.Apply([]byte("abcdefgh"), edits)
	require.ErrorIs(t, err, jsparse.ErrOverlappingEdits)
}
