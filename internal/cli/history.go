package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bedbug-detector/internal/model"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved predictions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			rawLabel, _ := cmd.Flags().GetString("label")

			filter := &model.HistoryFilter{Limit: limit}
			if rawLabel != "" {
				label, err := model.ParseLabel(rawLabel)
				if err != nil {
					return err
				}
				filter.Label = label
			}

			a, err := openOffline(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Manager().History(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("query history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No predictions found.")
				return nil
			}

			fmt.Fprintf(out, "%-5s  %-19s  %-10s  %-10s  %s\n", "ID", "Created", "Label", "Confidence", "Image")
			fmt.Fprintln(out, strings.Repeat("─", 70))
			for _, p := range records {
				fmt.Fprintf(out, "%-5d  %-19s  %-10s  %-10.4f  %s\n",
					p.ID, p.CreatedAt.Local().Format("2006-01-02 15:04:05"), p.Label, p.Confidence, p.ImageName)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of predictions to show")
	cmd.Flags().String("label", "", "Only show this label (Cimex, Non-Cimex or uncertain)")
	return cmd
}
