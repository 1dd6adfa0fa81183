package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/mapping"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/observability"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/rewrite"
)

// errNotMapped is returned by lookups without a result.
var errNotMapped = errors.New("not mapped")

func mappingsCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "mappings [module-prefix]",
		Short: "List the module exports and their global paths",
		Long: `List the mapping table in use, optionally restricted to modules
starting with a prefix. Disallowed exports are left out.

Examples:
  modpolyfill mappings
  modpolyfill mappings @ember/object
  modpolyfill mappings lookup @ember/runloop later
  modpolyfill mappings find Ember.run.later`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}

			return withEngine(cmd, opts, func(engine *rewrite.Engine) error {
				return printEntries(cmd.OutOrStdout(), allowed(engine, engine.Reverse().Entries(prefix)), asJSON)
			})
		},
	}

	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <module> [export]",
		Short: "Show the global of one export, or of every export of a module",
		Args:  cobra.RangeArgs(1, 2), //nolint:mnd // module and optional export.
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(engine *rewrite.Engine) error {
				exports := engine.Reverse().Exports(args[0])
				if len(args) == 2 { //nolint:mnd // module and export.
					exports = []string{args[1]}
				}

				var entries []mapping.Entry

				for _, export := range exports {
					if global, ok := engine.Lookup(args[0], export); ok {
						entries = append(entries, mapping.Entry{Module: args[0], Export: export, Global: global})
					}
				}

				if len(entries) == 0 {
					return fmt.Errorf("%w: %v", errNotMapped, args)
				}

				return printEntries(cmd.OutOrStdout(), entries, asJSON)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "find <global>",
		Short: "Show the module exports that map to a global path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(engine *rewrite.Engine) error {
				entries := allowed(engine, engine.Reverse().Find(args[0]))
				if len(entries) == 0 {
					return fmt.Errorf("%w: %s", errNotMapped, args[0])
				}

				return printEntries(cmd.OutOrStdout(), entries, asJSON)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <table.json|table.yaml>",
		Short: "Validate a mapping table against the table schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := mapping.LoadFile(args[0], mapping.LoadOptions{Validate: true})
			if err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "%s is valid: %d records, %d module exports\n",
				args[0], len(records), mapping.Compile(records).Len())

			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of mapping tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(mapping.Schema())
			if err != nil {
				return fmt.Errorf("write schema: %w", err)
			}

			return nil
		},
	})

	return cmd
}

func withEngine(cmd *cobra.Command, opts *globalOptions, fn func(*rewrite.Engine) error) error {
	instance, err := newApp(opts, appOptions{mode: observability.ModeCLI, logWriter: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer instance.close()

	return fn(instance.transformer.Engine())
}

// allowed drops entries excluded by the disallow filter.
func allowed(engine *rewrite.Engine, entries []mapping.Entry) []mapping.Entry {
	out := make([]mapping.Entry, 0, len(entries))

	for _, entry := range entries {
		if _, ok := engine.Lookup(entry.Module, entry.Export); ok {
			out = append(out, entry)
		}
	}

	return out
}

func printEntries(out io.Writer, entries []mapping.Entry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		err := enc.Encode(entries)
		if err != nil {
			return fmt.Errorf("encode mappings: %w", err)
		}

		return nil
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	tbl.AppendHeader(table.Row{"Module", "Export", "Global"})

	for _, entry := range entries {
		tbl.AppendRow(table.Row{entry.Module, entry.Export, entry.Global})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d", len(entries)), "", ""})
	tbl.Render()

	return nil
}
