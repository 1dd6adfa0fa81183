package main

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/mcp"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/observability"
)

func mcpCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes the rewrite engine as tools that AI agents can discover
and invoke:
  - modpolyfill_rewrite: rewrite module imports in inline code
  - modpolyfill_lookup: look up the global path of a module export`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instance, err := newApp(opts, appOptions{
				mode:      observability.ModeMCP,
				logWriter: cmd.ErrOrStderr(),
				cache:     true,
			})
			if err != nil {
				return err
			}
			defer instance.close()

			srv, err := mcp.NewServer(mcp.ServerDeps{
				Transformer: instance.transformer,
				Logger:      instance.logger,
				Metrics:     instance.red,
				Tracer:      instance.providers.Tracer,
			})
			if err != nil {
				return err
			}

			return srv.Run(cmd.Context())
		},
	}
}
