package commands

import (
	"context"
	"fmt"

	"github.com/0x5457/embedcheck/cmd/cmdsfx"
	"github.com/spf13/cobra"
)

// NewCrosscheckCommand checks that both vector stores rank like the reference.
func NewCrosscheckCommand() *cobra.Command {
	var (
		corpus  string
		queries []string
		topK    int
	)

	cmd := &cobra.Command{
		Use:   "crosscheck",
		Short: "Check the vector stores against the reference ranker",
		Long: `Index a corpus into the in-memory store and a scratch sqlite-vec store,
then require both to return the reference ranking for every query.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if corpus == "" {
				return fmt.Errorf("--corpus is required")
			}
			return withRunner(cmd, func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunCrosscheck(ctx, corpus, queries, topK)
			})
		},
	}

	cmd.Flags().StringVarP(&corpus, "corpus", "c", "", "HuJSON array of documents")
	cmd.Flags().StringArrayVarP(&queries, "query", "q", nil, "query text, repeatable")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Top K results, 0 for all")

	return cmd
}
