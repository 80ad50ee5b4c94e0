package commands

import (
	"context"
	"encoding/json"

	"github.com/0x5457/embedcheck/cmd/cmdsfx"
	"github.com/0x5457/embedcheck/internal/conformance"
	"github.com/spf13/cobra"
)

// NewRunCommand checks a served model against the reference engine.
func NewRunCommand() *cobra.Command {
	var (
		scenario string
		tasks    []string
		verbose  bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the conformance tasks against a served model",
		Long: `Run the embedding, sentence-similarity and rerank tasks against the
served model and compare every result with the reference engine.

Example:
  embedcheck run --model-id all-minilm --target https://model.example.com
  embedcheck run -t grpc --grpc-host model.example.com --task rerank`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				report, err := r.RunConformance(ctx, scenario, tasks, verbose)
				if asJSON && report != nil {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if encErr := enc.Encode(report); encErr != nil {
						return encErr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&scenario, "scenario", "s", "", "HuJSON scenario file (built-in fixture when empty)")
	cmd.Flags().StringSliceVar(&tasks, "task", nil, "tasks to run, repeatable (default all)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "dump the full report")
	cmd.Flags().BoolVar(&asJSON, "json", false, "also print the report as JSON")
	_ = cmd.RegisterFlagCompletionFunc("task", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return conformance.Tasks, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}
