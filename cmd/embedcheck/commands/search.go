package commands

import (
	"context"
	"fmt"

	"github.com/0x5457/embedcheck/cmd/cmdsfx"
	"github.com/spf13/cobra"
)

// NewSearchCommand ranks a corpus file against a query.
func NewSearchCommand() *cobra.Command {
	var (
		corpus string
		topK   int
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Semantic search over a corpus with the reference engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if corpus == "" {
				return fmt.Errorf("--corpus is required")
			}
			return withRunner(cmd, func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunSearch(ctx, corpus, args[0], topK)
			})
		},
	}

	cmd.Flags().StringVarP(&corpus, "corpus", "c", "", "HuJSON array of documents")
	cmd.Flags().IntVar(&topK, "top-k", 5, "Top K results, 0 for all")

	return cmd
}
