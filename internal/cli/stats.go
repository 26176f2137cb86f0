package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show prediction statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOffline(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Manager().Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("compute stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total predictions:   %d\n", stats.Total)
			fmt.Fprintf(out, "Cimex detected:      %d\n", stats.Cimex)
			fmt.Fprintf(out, "Non-Cimex:           %d\n", stats.NonCimex)
			fmt.Fprintf(out, "Uncertain:           %d\n", stats.Uncertain)
			fmt.Fprintf(out, "Average confidence:  %.4f\n", stats.AverageConfidence)
			return nil
		},
	}
}
