package transform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsparse"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/rewrite"
)

// Diagnostic kinds.
const (
	KindSyntax        = "syntax"
	KindUnsupported   = "unsupported"
	KindUnknownExport = "unknown-export"
)

// frameContext is the number of source lines shown around a diagnostic.
const frameContext = 2

// Diagnostic is a positioned failure of one file.
type Diagnostic struct {
	err     error
	File    string `json:"file"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Frame is the source excerpt with a caret under the position.
	Frame  string `json:"frame,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Offset int    `json:"offset"`
}

func (diag *Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", diag.File, diag.Line, diag.Column, diag.Message)
}

// Unwrap returns the underlying *rewrite.Error or *jsparse.SyntaxError.
func (diag *Diagnostic) Unwrap() error {
	return diag.err
}

// AsDiagnostic extracts a Diagnostic from err.
func AsDiagnostic(err error) (*Diagnostic, bool) {
	var diag *Diagnostic
	if errors.As(err, &diag) {
		return diag, true
	}

	return nil, false
}

// diagnose turns rewrite and syntax errors into diagnostics; other errors
// are returned as they are.
func diagnose(file string, source []byte, err error) error {
	var (
		rerr   *rewrite.Error
		synErr *jsparse.SyntaxError
		diag   *Diagnostic
	)

	switch {
	case errors.As(err, &rerr):
		kind := KindUnsupported
		if rerr.Kind == rewrite.KindUnknownExport {
			kind = KindUnknownExport
		}

		diag = &Diagnostic{
			File:    file,
			Kind:    kind,
			Message: rerr.Msg,
			Line:    rerr.Pos.Line,
			Column:  rerr.Pos.Column,
			Offset:  rerr.Pos.Offset,
		}
	case errors.As(err, &synErr):
		diag = &Diagnostic{
			File:    file,
			Kind:    KindSyntax,
			Message: jsparse.ErrSyntax.Error(),
			Line:    synErr.Pos.Line,
			Column:  synErr.Pos.Column,
			Offset:  synErr.Pos.Offset,
		}
	default:
		return err
	}

	diag.err = err
	diag.Frame = CodeFrame(source, diag.Line, diag.Column)

	return diag
}

// CodeFrame renders the lines around line (1-based) with a gutter and a
// caret under column:
//
//	  1 | import a from 'a';
//	> 2 | import * as b from 'b';
//	    |        ^
func CodeFrame(source []byte, line, column int) string {
	lines := strings.Split(string(source), "\n")
	if line < 1 || line > len(lines) {
		return ""
	}

	first := max(line-frameContext, 1)
	last := min(line+frameContext, len(lines))

	// A trailing newline leaves an empty last element.
	if last == len(lines) && lines[last-1] == "" && last > line {
		last--
	}

	width := len(strconv.Itoa(last))

	var builder strings.Builder

	for current := first; current <= last; current++ {
		marker := "  "
		if current == line {
			marker = "> "
		}

		text := strings.TrimRight(lines[current-1], "\r")
		fmt.Fprintf(&builder, "%s%*d | %s\n", marker, width, current, text)

		if current == line && column >= 1 {
			fmt.Fprintf(&builder, "  %s | %s^\n", strings.Repeat(" ", width), caretPad(text, column))
		}
	}

	return builder.String()
}

// caretPad keeps tabs so the caret lines up under the byte column.
func caretPad(text string, column int) string {
	var pad strings.Builder

	for idx := 0; idx < column-1 && idx < len(text); idx++ {
		if text[idx] == '\t' {
			pad.WriteByte('\t')

			continue
		}

		pad.WriteByte(' ')
	}

	return pad.String()
}
