package jsast

import "sort"

// Edit replaces the bytes of Span with Text. An empty Span is an insertion.
type Edit struct {
	Text string
	Span Span
	// Statement marks whole-statement replacements; when Text is empty the
	// printer also drops the statement's line break.
	Statement bool
}

// Edits accumulates the changes of one rewrite. It is not safe for
// concurrent use.
type Edits struct {
	items []Edit
}

// NewEdits returns an empty edit list.
func NewEdits() *Edits {
	return &Edits{}
}

// Replace substitutes text for span.
func (edits *Edits) Replace(span Span, text string) {
	edits.items = append(edits.items, Edit{Span: span, Text: text})
}

// Insert adds text at offset.
func (edits *Edits) Insert(offset int, text string) {
	edits.items = append(edits.items, Edit{Span: Span{Start: offset, End: offset}, Text: text})
}

// ReplaceStatement substitutes text for a whole statement; empty text removes it.
func (edits *Edits) ReplaceStatement(span Span, text string) {
	edits.items = append(edits.items, Edit{Span: span, Text: text, Statement: true})
}

// Len returns the number of edits.
func (edits *Edits) Len() int {
	if edits == nil {
		return 0
	}

	return len(edits.items)
}

// Sorted returns the edits ordered by start offset; insertions precede a
// replacement starting at the same offset, and ties keep insertion order.
func (edits *Edits) Sorted() []Edit {
	if edits == nil {
		return nil
	}

	out := make([]Edit, len(edits.items))
	copy(out, edits.items)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}

		return out[i].Span.Len() == 0 && out[j].Span.Len() > 0
	})

	return out
}
