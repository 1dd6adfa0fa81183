package transform

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// diffContext is the number of unchanged lines kept around each change.
const diffContext = 3

// Diff renders a line diff of before and after with "-", "+" and " "
// prefixes. Long unchanged stretches collapse to a "@@" marker. An empty
// string means no change.
func Diff(name string, before, after []byte) string {
	if string(before) == string(after) {
		return ""
	}

	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToRunes(string(before), string(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lines)

	var builder strings.Builder

	builder.WriteString("--- a/" + name + "\n")
	builder.WriteString("+++ b/" + name + "\n")

	for idx, diff := range diffs {
		body := splitLines(diff.Text)

		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			writePrefixed(&builder, "-", body)
		case diffmatchpatch.DiffInsert:
			writePrefixed(&builder, "+", body)
		case diffmatchpatch.DiffEqual:
			writeContext(&builder, body, idx == 0, idx == len(diffs)-1)
		}
	}

	return builder.String()
}

func writeContext(builder *strings.Builder, body []string, first, last bool) {
	head, tail := diffContext, diffContext
	if first {
		head = 0
	}

	if last {
		tail = 0
	}

	if len(body) <= head+tail {
		writePrefixed(builder, " ", body)

		return
	}

	writePrefixed(builder, " ", body[:head])
	builder.WriteString("@@\n")
	writePrefixed(builder, " ", body[len(body)-tail:])
}

func writePrefixed(builder *strings.Builder, prefix string, body []string) {
	for _, line := range body {
		builder.WriteString(prefix)
		builder.WriteString(line)
		builder.WriteByte('\n')
	}
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
