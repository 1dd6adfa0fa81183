// Package rewrite turns imports and re-exports of mapped modules into
// references to one consolidated global object.
//
// An Engine is built once from a mapping table and may rewrite many files
// concurrently. Each call to Rewrite owns a FileState and an edit list;
// the first unsupported construct aborts the file and no edits are returned.
package rewrite

import (
	"github.com/Sumatoshi-tech/modpolyfill/pkg/disallow"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/jsast"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/mapping"
)

// Defaults for the canonical module.
const (
	DefaultCanonicalModule = "ember"
	DefaultCanonicalName   = "Ember"
)

// Options configure an Engine.
type Options struct {
	// Disallowed specifiers are left untouched. Nil disallows nothing.
	Disallowed *disallow.Filter
	// CanonicalModule is the module whose default export is the global.
	CanonicalModule string
	// CanonicalName is the local name the global is bound to.
	CanonicalName string
}

// Engine rewrites files against a compiled mapping table. It is read-only
// after construction.
type Engine struct {
	reverse    *mapping.Reverse
	disallowed *disallow.Filter
	module     string
	name       string
}

// New compiles records and returns an Engine.
func New(records []mapping.Record, opts Options) *Engine {
	return NewWithReverse(mapping.Compile(records), opts)
}

// NewWithReverse returns an Engine over an already compiled table.
func NewWithReverse(reverse *mapping.Reverse, opts Options) *Engine {
	engine := &Engine{
		reverse:    reverse,
		disallowed: opts.Disallowed,
		module:     opts.CanonicalModule,
		name:       opts.CanonicalName,
	}

	if engine.module == "" {
		engine.module = DefaultCanonicalModule
	}

	if engine.name == "" {
		engine.name = DefaultCanonicalName
	}

	return engine
}

// Reverse returns the compiled mapping table.
func (engine *Engine) Reverse() *mapping.Reverse {
	return engine.reverse
}

// CanonicalModule returns the module the global is imported from.
func (engine *Engine) CanonicalModule() string {
	return engine.module
}

// CanonicalName returns the local name of the global.
func (engine *Engine) CanonicalName() string {
	return engine.name
}

// Lookup resolves a module export to its global path unless it is disallowed.
func (engine *Engine) Lookup(module, export string) (string, bool) {
	if engine.disallowed.IsDisallowed(module, export) {
		return "", false
	}

	return engine.reverse.Lookup(module, export)
}

// Strategy is how a rewritten binding reaches its global.
type Strategy int

// Strategies.
const (
	// StrategyRename replaces every reference with the global path.
	StrategyRename Strategy = iota
	// StrategyDeclare keeps the local name behind `var local = global;`.
	StrategyDeclare
	// StrategyExport replaces a re-export specifier with an exported declaration.
	StrategyExport
)

func (strategy Strategy) String() string {
	switch strategy {
	case StrategyRename:
		return "rename"
	case StrategyDeclare:
		return "declare"
	case StrategyExport:
		return "export"
	default:
		return "unknown"
	}
}

// Rewritten records one specifier that now points at the global.
type Rewritten struct {
	Module   string    `json:"module"`
	Export   string    `json:"export"`
	Global   string    `json:"global"`
	Local    string    `json:"local"`
	Pos      jsast.Pos `json:"pos"`
	Strategy Strategy  `json:"-"`
}

// Result is the outcome of rewriting one file.
type Result struct {
	Edits    *jsast.Edits
	Rewrites []Rewritten
	State    FileState
	// Injected reports whether the canonical import was inserted.
	Injected bool
}

// Rewrite visits the module-level statements of file in source order and
// returns the edits that bind every mapped specifier to its global. The
// returned error is an *Error.
func (engine *Engine) Rewrite(file *jsast.File) (*Result, error) {
	run := &fileRewrite{
		engine: engine,
		file:   file,
		edits:  jsast.NewEdits(),
	}

	for _, stmt := range file.Statements {
		var err error

		switch decl := stmt.(type) {
		case *jsast.ImportDecl:
			err = run.importDecl(decl)
		case *jsast.ExportFrom:
			err = run.exportFrom(decl)
		case *jsast.ExportAll:
			err = run.exportAll(decl)
		}

		if err != nil {
			return nil, err
		}
	}

	injected := run.inject()

	return &Result{
		Edits:    run.edits,
		Rewrites: run.rewrites,
		State:    run.state,
		Injected: injected,
	}, nil
}

// fileRewrite is the traversal of one file.
type fileRewrite struct {
	engine   *Engine
	file     *jsast.File
	edits    *jsast.Edits
	rewrites []Rewritten
	state    FileState
}

func (run *fileRewrite) references(decl jsast.Span) []jsast.Reference {
	if run.file.Scope == nil {
		return nil
	}

	return run.file.Scope.References(decl)
}
