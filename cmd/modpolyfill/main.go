// Package main provides the modpolyfill CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Exit codes: diagnostics and failed checks exit 1, usage and
// configuration errors exit 2.
const (
	exitOK          = 0
	exitDiagnostics = 1
	exitUsage       = 2
)

// Errors that map to exitDiagnostics.
var (
	errFilesFailed = errors.New("some files could not be rewritten")
	errNeedRewrite = errors.New("some files need rewriting")
)

// globalOptions are the persistent flags of the root command.
type globalOptions struct {
	configPath string
	verbose    bool
	quiet      bool
	noColor    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	// Diagnostics were already printed per file.
	if !errors.Is(err, errFilesFailed) {
		fmt.Fprintf(stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
	}

	return exitCode(err)
}

func exitCode(err error) int {
	if errors.Is(err, errFilesFailed) || errors.Is(err, errNeedRewrite) {
		return exitDiagnostics
	}

	return exitUsage
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "modpolyfill",
		Short: "Rewrite Ember module imports to the Ember global",
		Long: `modpolyfill rewrites modular Ember imports such as

  import { later } from '@ember/runloop';

into references on the single Ember global (Ember.run.later), adding
import Ember from 'ember' when needed.

Configuration is read from .modpolyfill.yaml (., ./config, $HOME) and
MODPOLYFILL_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if opts.noColor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			}
		},
	}

	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is .modpolyfill.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(rewriteCmd(opts))
	rootCmd.AddCommand(checkCmd(opts))
	rootCmd.AddCommand(mappingsCmd(opts))
	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(lspCmd(opts))
	rootCmd.AddCommand(mcpCmd(opts))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}
