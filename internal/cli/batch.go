package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bedbug-detector/internal/app"
	"bedbug-detector/internal/model"
	"bedbug-detector/internal/service"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Classify every JPEG and PNG image in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			save, _ := cmd.Flags().GetBool("save")
			workers, _ := cmd.Flags().GetInt("workers")

			cfg := loadConfig(cmd)
			if workers > 0 {
				cfg.ProcessingWorkers = workers
			}

			a, err := app.NewOffline(cfg)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			defer a.Close()

			files, err := service.ImageFiles(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No images found.")
				return nil
			}

			results, err := a.Manager().ProcessBatch(cmd.Context(), files, save)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			counts := map[model.Label]int{}
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "%s\terror: %v\n", r.Path, r.Err)
					continue
				}
				counts[r.Result.Label]++
				fmt.Fprintf(out, "%s\t%s\tconfidence=%.4f\tviews=%d\n", r.Path, r.Result.Label, r.Result.Confidence, r.Result.Views)
			}

			fmt.Fprintln(out, strings.Repeat("─", 60))
			fmt.Fprintf(out, "%d image(s): %d Cimex, %d Non-Cimex, %d uncertain, %d failed\n",
				len(results), counts[model.LabelCimex], counts[model.LabelNonCimex], counts[model.LabelUncertain], failed)
			return nil
		},
	}
	cmd.Flags().Int("workers", 0, "Number of classification workers (overrides PROCESSING_WORKERS)")
	cmd.Flags().Bool("save", false, "Store each verdict in the database")
	return cmd
}
