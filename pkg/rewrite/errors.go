package rewrite

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsast"
)

// Sentinel errors classifying *Error values with errors.Is.
var (
	// ErrUnsupportedConstruct marks constructs the mapping model cannot express.
	ErrUnsupportedConstruct = errors.New("unsupported construct")
	// ErrUnknownExport marks a mapped module referenced with an export the table does not know.
	ErrUnknownExport = errors.New("unknown export")
)

// Kind is the error taxonomy of the engine.
type Kind int

// Error kinds.
const (
	KindUnsupported Kind = iota
	KindUnknownExport
)

func (kind Kind) String() string {
	switch kind {
	case KindUnsupported:
		return "unsupported"
	case KindUnknownExport:
		return "unknown-export"
	default:
		return "unknown"
	}
}

// Error aborts the rewrite of one file. Error returns the exact diagnostic text.
type Error struct {
	Module string
	// Name is the offending export or local name, when there is one.
	Name string
	Msg  string
	Pos  jsast.Pos
	Kind Kind
}

func (rerr *Error) Error() string {
	return rerr.Msg
}

// Unwrap returns the sentinel of the error kind.
func (rerr *Error) Unwrap() error {
	if rerr.Kind == KindUnknownExport {
		return ErrUnknownExport
	}

	return ErrUnsupportedConstruct
}

func unknownExportError(module, name string, pos jsast.Pos) *Error {
	return &Error{
		Kind:   KindUnknownExport,
		Module: module,
		Name:   name,
		Pos:    pos,
		Msg:    fmt.Sprintf("%s does not have a %s export", module, name),
	}
}

func namespaceImportError(module, local string, pos jsast.Pos) *Error {
	return &Error{
		Kind:   KindUnsupported,
		Module: module,
		Name:   local,
		Pos:    pos,
		Msg:    fmt.Sprintf("Using `import * as %s from '%s'` is not supported.", local, module),
	}
}

func namespaceExportError(module, exported string, pos jsast.Pos) *Error {
	return &Error{
		Kind:   KindUnsupported,
		Module: module,
		Name:   exported,
		Pos:    pos,
		Msg:    fmt.Sprintf("Using `export * as %s from '%s'` is not supported.", exported, module),
	}
}

func wildcardExportError(module string, pos jsast.Pos) *Error {
	return &Error{
		Kind:   KindUnsupported,
		Module: module,
		Pos:    pos,
		Msg:    fmt.Sprintf("Wildcard exports from %s are currently not possible", module),
	}
}

func canonicalImportError(module, imported string, pos jsast.Pos) *Error {
	return &Error{
		Kind:   KindUnsupported,
		Module: module,
		Name:   imported,
		Pos:    pos,
		Msg:    fmt.Sprintf("Unexpected non-default import from '%s'", module),
	}
}
