package main

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/lsp"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/observability"
)

func lspCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start the language server on stdio",
		Long: `Start a Language Server Protocol server on stdio. It publishes a
diagnostic for every construct that cannot be rewritten, shows the global
path when hovering an import specifier, and offers the rewrite of the whole
document as a quick fix.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instance, err := newApp(opts, appOptions{
				mode:      observability.ModeLSP,
				logWriter: cmd.ErrOrStderr(),
				cache:     true,
			})
			if err != nil {
				return err
			}
			defer instance.close()

			srv, err := lsp.NewServer(instance.transformer, instance.logger)
			if err != nil {
				return err
			}

			return srv.Run()
		},
	}
}
