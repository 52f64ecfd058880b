package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskfleet/taskfleet/internal/store"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Inspect the worker pool",
	}
	cmd.AddCommand(newWorkerLsCmd())
	return cmd
}

func newWorkerLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List worker pool slots recorded in local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			st, err := store.Open(cfg.StateDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range st.GetAllWorkers() {
				fmt.Fprintf(out, "%-12s kind=%-10s status=%-10s last_active=%s\n",
					w.ID, w.WorkerKind, w.Status, w.LastActiveAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}
}
