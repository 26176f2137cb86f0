package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bedbug-detector/internal/app"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, live feed and Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			if port, _ := cmd.Flags().GetInt("port"); port > 0 {
				cfg.Port = port
			}

			a, err := app.NewApp(cfg)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
	cmd.Flags().Int("port", 0, "Port to listen on (overrides PORT env var)")
	return cmd
}
