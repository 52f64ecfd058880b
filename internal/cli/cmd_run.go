package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the planner loop: poll the board and dispatch work until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			app, err := buildApp(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := SetupSignalHandler()
			defer cancel()

			go app.Pool.RunHousekeeper(ctx, cfg.Pool.CleanupInterval)

			slog.Info("orcboard starting", "board", cfg.BoardID, "kind", cfg.BoardKind, "poll_interval", cfg.PollingInterval)
			return app.Planner.StartMonitoring(ctx)
		},
	}
}
