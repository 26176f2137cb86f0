package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bedbug-detector/internal/service"
)

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict FILE...",
		Short: "Classify one or more images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			save, _ := cmd.Flags().GetBool("save")

			a, err := openOffline(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}

				res, err := a.Manager().Predict(cmd.Context(), data, filepath.Base(path), save, service.SourceCLI)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				fmt.Fprintf(out, "%s\t%s\tconfidence=%.4f\tprobability=%.4f\tviews=%d",
					path, res.Result.Label, res.Result.Confidence, res.Result.Probability, res.Result.Views)
				if res.Record != nil {
					fmt.Fprintf(out, "\tid=%d", res.Record.ID)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().Bool("save", false, "Store each verdict in the database")
	return cmd
}
