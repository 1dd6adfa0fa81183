package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/observability"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/transform"
)

// stdinPath selects stdin as input.
const stdinPath = "-"

// errStdinWrite is returned for --write without files.
var errStdinWrite = errors.New("--write needs file arguments")

type rewriteOptions struct {
	stdinName string
	write     bool
	diff      bool
	check     bool
	json      bool
}

func rewriteCmd(opts *globalOptions) *cobra.Command {
	rwOpts := &rewriteOptions{}

	cmd := &cobra.Command{
		Use:   "rewrite [file|dir|-]...",
		Short: "Rewrite module imports to the global",
		Long: `Rewrite Ember module imports in files or directories.

Without flags the rewritten code is printed to stdout. Directories are
walked for the configured extensions; node_modules and hidden directories
are skipped.

Examples:
  modpolyfill rewrite app/components/foo.js
  modpolyfill rewrite --write app/
  modpolyfill rewrite --diff app/ addon/
  modpolyfill rewrite --check app/
  cat foo.js | modpolyfill rewrite -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rwOpts.write && isStdin(args) {
				return errStdinWrite
			}

			return runRewrite(cmd, opts, rwOpts, args)
		},
	}

	cmd.Flags().BoolVarP(&rwOpts.write, "write", "w", false, "write the result back to the files")
	cmd.Flags().BoolVarP(&rwOpts.diff, "diff", "d", false, "print a diff instead of the rewritten code")
	cmd.Flags().BoolVar(&rwOpts.check, "check", false, "exit 1 when any file would change")
	cmd.Flags().BoolVar(&rwOpts.json, "json", false, "print the rewritten specifiers as JSON")
	cmd.Flags().StringVar(&rwOpts.stdinName, "stdin-filename", "stdin.js", "file name used for stdin input")
	cmd.MarkFlagsMutuallyExclusive("write", "diff", "check", "json")

	return cmd
}

func checkCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [file|dir]...",
		Short: "Report constructs that cannot be rewritten",
		Long: `Parse and rewrite files without writing anything, reporting every file
that contains a namespace import, a wildcard re-export, an unknown export
or a non-default import of the canonical module. Exits 1 on any diagnostic.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, err := newApp(opts, appOptions{mode: observability.ModeCLI, logWriter: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer instance.close()

			results, err := collectAndRun(cmd, instance, args)
			if err != nil {
				return err
			}

			failed := printDiagnostics(cmd.ErrOrStderr(), results)

			if !opts.quiet {
				fmt.Fprintln(cmd.ErrOrStderr(), transform.Summarize(results))
			}

			if failed > 0 {
				return errFilesFailed
			}

			return nil
		},
	}
}

func runRewrite(cmd *cobra.Command, opts *globalOptions, rwOpts *rewriteOptions, args []string) error {
	instance, err := newApp(opts, appOptions{mode: observability.ModeCLI, logWriter: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer instance.close()

	var results []transform.Result

	if isStdin(args) {
		source, readErr := io.ReadAll(cmd.InOrStdin())
		if readErr != nil {
			return fmt.Errorf("read stdin: %w", readErr)
		}

		results, err = instance.transformer.Batch(cmd.Context(), []transform.Input{{Name: rwOpts.stdinName, Source: source}})
	} else {
		results, err = collectAndRun(cmd, instance, args)
	}

	if err != nil {
		return err
	}

	failed := printDiagnostics(cmd.ErrOrStderr(), results)

	err = emitResults(cmd.OutOrStdout(), rwOpts, results)
	if err != nil {
		return err
	}

	if (rwOpts.write || rwOpts.check || rwOpts.diff) && !opts.quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), transform.Summarize(results))
	}

	if failed > 0 {
		return errFilesFailed
	}

	if rwOpts.check && transform.Summarize(results).Rewritten > 0 {
		return errNeedRewrite
	}

	return nil
}

func collectAndRun(cmd *cobra.Command, instance *app, args []string) ([]transform.Result, error) {
	files, err := transform.Collect(args, instance.cfg.Transform.Extensions)
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}

	instance.logger.Debug("collected files", "count", len(files))

	results, err := instance.transformer.Paths(cmd.Context(), files)
	if err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}

	return results, nil
}

func emitResults(out io.Writer, rwOpts *rewriteOptions, results []transform.Result) error {
	switch {
	case rwOpts.json:
		return writeJSONResults(out, results)
	case rwOpts.check:
		for _, result := range results {
			if result.Err == nil && result.Output.Changed {
				fmt.Fprintln(out, result.Name)
			}
		}
	case rwOpts.diff:
		for _, result := range results {
			if result.Err == nil {
				fmt.Fprint(out, transform.Diff(result.Name, result.Source, result.Output.Code))
			}
		}
	case rwOpts.write:
		for _, result := range results {
			if result.Err != nil || !result.Output.Changed {
				continue
			}

			err := transform.WriteFile(result.Name, result.Output.Code)
			if err != nil {
				return err
			}
		}
	default:
		for _, result := range results {
			if result.Err != nil {
				continue
			}

			if len(results) > 1 {
				fmt.Fprintf(out, "==> %s <==\n", result.Name)
			}

			_, err := out.Write(result.Output.Code)
			if err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}
	}

	return nil
}

func writeJSONResults(out io.Writer, results []transform.Result) error {
	type fileResult struct {
		*transform.Output

		Diagnostic *transform.Diagnostic `json:"diagnostic,omitempty"`
		Error      string                `json:"error,omitempty"`
	}

	payload := make([]fileResult, 0, len(results))

	for _, result := range results {
		entry := fileResult{Output: result.Output}

		if result.Err != nil {
			entry.Output = &transform.Output{File: result.Name}
			entry.Error = result.Err.Error()
			entry.Diagnostic, _ = transform.AsDiagnostic(result.Err)
		}

		payload = append(payload, entry)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	err := enc.Encode(payload)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	return nil
}

// printDiagnostics writes every failed file to out and returns their count.
func printDiagnostics(out io.Writer, results []transform.Result) int {
	failed := 0
	red := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)

	for _, result := range results {
		if result.Err == nil {
			continue
		}

		failed++

		diag, ok := transform.AsDiagnostic(result.Err)
		if !ok {
			red.Fprintf(out, "%s: %v\n", result.Name, result.Err)

			continue
		}

		red.Fprintf(out, "%s:%d:%d: ", diag.File, diag.Line, diag.Column)
		fmt.Fprintf(out, "%s [%s]\n", diag.Message, diag.Kind)
		dim.Fprint(out, diag.Frame)
	}

	return failed
}

func isStdin(args []string) bool {
	return len(args) == 0 || (len(args) == 1 && args[0] == stdinPath)
}
