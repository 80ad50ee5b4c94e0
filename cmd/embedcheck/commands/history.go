package commands

import (
	"context"

	"github.com/0x5457/embedcheck/cmd/cmdsfx"
	"github.com/spf13/cobra"
)

// NewHistoryCommand lists past conformance runs.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [report-id]",
		Short: "Show past conformance runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return withRunner(cmd, func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunHistory(ctx, limit, id)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum reports, 0 for all")

	return cmd
}
