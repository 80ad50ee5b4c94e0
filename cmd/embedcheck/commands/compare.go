package commands

import (
	"context"

	"github.com/0x5457/embedcheck/cmd/cmdsfx"
	"github.com/spf13/cobra"
)

// NewCompareCommand compares two stored result sets.
func NewCompareCommand() *cobra.Command {
	var tolerance float64

	cmd := &cobra.Command{
		Use:   "compare <expected.json> <actual.json>",
		Short: "Compare two ranked result files",
		Long: `Compare two result files, each a JSON array with one ranked list per
query. Hits must agree on corpus index at every position and on score
within the tolerance.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, func(_ context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunCompare(args[0], args[1], tolerance)
			})
		},
	}

	cmd.Flags().Float64Var(&tolerance, "max-diff", 0, "score tolerance for this comparison (configured tolerance when 0 or negative)")

	return cmd
}
