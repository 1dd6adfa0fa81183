package mapping

import (
	"slices"
	"sort"
	"strings"
)

// DefaultExport is the export name of a module's default binding.
const DefaultExport = "default"

// Reverse is the compiled lookup: source module -> export name -> global path.
// It is immutable after Compile and safe for concurrent readers.
type Reverse struct {
	modules map[string]map[string]string
}

// Compile folds every record, and its replacement when present, into a Reverse.
// Later records win for duplicate keys.
func Compile(records []Record) *Reverse {
	rev := &Reverse{modules: make(map[string]map[string]string)}

	for _, rec := range records {
		rev.insert(rec.Module, rec.Export, rec.Global)

		if rec.Replacement != nil {
			rev.insert(rec.Replacement.Module, rec.Replacement.Export, rec.Global)
		}
	}

	return rev
}

func (rev *Reverse) insert(module, export, global string) {
	exports, ok := rev.modules[module]
	if !ok {
		exports = make(map[string]string)
		rev.modules[module] = exports
	}

	exports[export] = global
}

// HasModule reports whether module has any mapped export.
func (rev *Reverse) HasModule(module string) bool {
	if rev == nil {
		return false
	}

	_, ok := rev.modules[module]

	return ok
}

// Lookup resolves an export of a mapped module to its global path.
// ok is false when the module or the export is unknown.
func (rev *Reverse) Lookup(module, export string) (global string, ok bool) {
	if rev == nil {
		return "", false
	}

	exports, found := rev.modules[module]
	if !found {
		return "", false
	}

	global, ok = exports[export]

	return global, ok
}

// Modules returns the mapped module paths in sorted order.
func (rev *Reverse) Modules() []string {
	if rev == nil {
		return nil
	}

	names := make([]string, 0, len(rev.modules))
	for name := range rev.modules {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Exports returns the export names known for module in sorted order.
func (rev *Reverse) Exports(module string) []string {
	if rev == nil {
		return nil
	}

	exports := rev.modules[module]

	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Len returns the number of (module, export) pairs.
func (rev *Reverse) Len() int {
	if rev == nil {
		return 0
	}

	total := 0
	for _, exports := range rev.modules {
		total += len(exports)
	}

	return total
}

// Entry is one resolved pair of the reverse table.
type Entry struct {
	Module string `json:"module"`
	Export string `json:"export"`
	Global string `json:"global"`
}

// Entries lists every pair sorted by module then export. An empty prefix
// returns all modules; otherwise only modules starting with prefix.
func (rev *Reverse) Entries(prefix string) []Entry {
	var out []Entry

	for _, module := range rev.Modules() {
		if !strings.HasPrefix(module, prefix) {
			continue
		}

		for _, export := range rev.Exports(module) {
			out = append(out, Entry{Module: module, Export: export, Global: rev.modules[module][export]})
		}
	}

	return out
}

// Find returns every pair whose global path equals global.
func (rev *Reverse) Find(global string) []Entry {
	var out []Entry

	for _, entry := range rev.Entries("") {
		if entry.Global == global {
			out = append(out, entry)
		}
	}

	return slices.Clip(out)
}
