// Package disallow decides which (module, export) pairs are excluded from
// rewriting.
//
// A filter takes one of two shapes, mirroring the configuration value:
//
//	disallowed: ["@ember/string", "rsvp"]          # whole modules
//	disallowed: {"@ember/string": ["htmlSafe"]}    # single exports
package disallow

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalidFilter is returned for values that are neither a list of modules
// nor a module -> exports mapping.
var ErrInvalidFilter = errors.New("disallowed list must be a list of modules or a map of module to exports")

// Filter is an immutable exclusion list. The zero value and a nil *Filter
// disallow nothing.
type Filter struct {
	modules map[string]struct{}
	exports map[string]map[string]struct{}
}

// Modules builds a whole-module filter.
func Modules(modules ...string) *Filter {
	filter := &Filter{modules: make(map[string]struct{}, len(modules))}
	for _, module := range modules {
		filter.modules[module] = struct{}{}
	}

	return filter
}

// Exports builds a per-export filter.
func Exports(exports map[string][]string) *Filter {
	filter := &Filter{exports: make(map[string]map[string]struct{}, len(exports))}

	for module, names := range exports {
		set := make(map[string]struct{}, len(names))
		for _, name := range names {
			set[name] = struct{}{}
		}

		filter.exports[module] = set
	}

	return filter
}

// IsDisallowed reports whether export of module must be left untouched.
func (filter *Filter) IsDisallowed(module, export string) bool {
	if filter == nil {
		return false
	}

	if filter.modules != nil {
		_, ok := filter.modules[module]

		return ok
	}

	names, ok := filter.exports[module]
	if !ok {
		return false
	}

	_, ok = names[export]

	return ok
}

// Empty reports whether the filter excludes nothing.
func (filter *Filter) Empty() bool {
	return filter == nil || (len(filter.modules) == 0 && len(filter.exports) == 0)
}

// PerExport reports whether the filter is the module -> exports form.
func (filter *Filter) PerExport() bool {
	return filter != nil && filter.modules == nil && filter.exports != nil
}

// ModuleList returns the excluded modules of a whole-module filter, sorted.
func (filter *Filter) ModuleList() []string {
	if filter == nil {
		return nil
	}

	out := make([]string, 0, len(filter.modules))
	for module := range filter.modules {
		out = append(out, module)
	}

	sort.Strings(out)

	return out
}

// UnmarshalYAML accepts a sequence of module names or a mapping of module to
// a sequence of export names.
func (filter *Filter) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var modules []string

		err := node.Decode(&modules)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}

		*filter = *Modules(modules...)
	case yaml.MappingNode:
		var exports map[string][]string

		err := node.Decode(&exports)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}

		*filter = *Exports(exports)
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return fmt.Errorf("%w: got scalar %q", ErrInvalidFilter, node.Value)
		}

		*filter = Filter{}
	default:
		return ErrInvalidFilter
	}

	return nil
}

// FromValue converts a loosely typed configuration value (as produced by
// viper or encoding/json) into a Filter. nil yields an empty filter.
func FromValue(value any) (*Filter, error) {
	switch typed := value.(type) {
	case nil:
		return &Filter{}, nil
	case *Filter:
		return typed, nil
	case []string:
		return Modules(typed...), nil
	case []any:
		modules, err := stringList(typed)
		if err != nil {
			return nil, err
		}

		return Modules(modules...), nil
	case map[string][]string:
		return Exports(typed), nil
	case map[string]any:
		exports := make(map[string][]string, len(typed))

		for module, raw := range typed {
			names, err := exportNames(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", module, err)
			}

			exports[module] = names
		}

		return Exports(exports), nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidFilter, value)
	}
}

func exportNames(raw any) ([]string, error) {
	switch names := raw.(type) {
	case []string:
		return names, nil
	case []any:
		return stringList(names)
	default:
		return nil, fmt.Errorf("%w: exports must be a list, got %T", ErrInvalidFilter, raw)
	}
}

func stringList(items []any) ([]string, error) {
	out := make([]string, 0, len(items))

	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: entry %v is %T", ErrInvalidFilter, item, item)
		}

		out = append(out, str)
	}

	return out, nil
}
