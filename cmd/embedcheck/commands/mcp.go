package commands

import (
	"context"

	"github.com/0x5457/embedcheck/cmd/cmdsfx"
	"github.com/spf13/cobra"
)

// NewMCPServeCommand starts an MCP server that exposes search and comparison tools.
func NewMCPServeCommand() *cobra.Command {
	var (
		transport string
		address   string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run MCP server",
		Long:  "Run MCP server, provide semantic search, similarity, comparison and run history tools.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, func(_ context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunMCPServer(transport, address)
			})
		},
	}

	cmd.Flags().StringVar(&transport, "mcp-transport", "stdio", "transport (stdio, http, sse)")
	cmd.Flags().StringVarP(&address, "address", "a", "", "server address (http modes), e.g. :8080")

	return cmd
}
