package jsparse

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsast"
)

// ErrOverlappingEdits is returned when two edits touch the same bytes.
var ErrOverlappingEdits = errors.New("overlapping edits")

// Apply writes source with edits applied. Bytes outside the edited spans are
// copied unchanged. Removing a statement that sits alone on its line also
// removes the line.
func Apply(source []byte, edits *jsast.Edits) ([]byte, error) {
	sorted := edits.Sorted()
	if len(sorted) == 0 {
		return source, nil
	}

	var out bytes.Buffer

	out.Grow(len(source))

	cursor := 0

	for _, edit := range sorted {
		if edit.Span.Start < cursor || edit.Span.End > len(source) || edit.Span.Start > edit.Span.End {
			return nil, fmt.Errorf("%w: [%d,%d) after offset %d", ErrOverlappingEdits, edit.Span.Start, edit.Span.End, cursor)
		}

		start, end := edit.Span.Start, edit.Span.End

		if edit.Statement && edit.Text == "" {
			start, end = lineExtent(source, start, end)
			if start < cursor {
				start = cursor
			}
		}

		out.Write(source[cursor:start])
		out.WriteString(edit.Text)

		cursor = end
	}

	out.Write(source[cursor:])

	return out.Bytes(), nil
}

// lineExtent widens [start, end) to cover its whole line when nothing but
// blanks share the line with it.
func lineExtent(source []byte, start, end int) (int, int) {
	lineStart := start
	for lineStart > 0 && isBlank(source[lineStart-1]) {
		lineStart--
	}

	if lineStart > 0 && source[lineStart-1] != '\n' {
		return start, end
	}

	lineEndAt := end
	for lineEndAt < len(source) && isBlank(source[lineEndAt]) {
		lineEndAt++
	}

	switch {
	case lineEndAt == len(source):
		return lineStart, lineEndAt
	case source[lineEndAt] == '\n':
		return lineStart, lineEndAt + 1
	case source[lineEndAt] == '\r' && lineEndAt+1 < len(source) && source[lineEndAt+1] == '\n':
		return lineStart, lineEndAt + 2
	default:
		return start, end
	}
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t'
}
