package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskfleet/taskfleet/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tasks and workers currently tracked in local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			st, err := store.Open(cfg.StateDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			tasks := st.GetAllTasks()
			fmt.Fprintf(out, "Tasks (%d):\n", len(tasks))
			for _, t := range tasks {
				fmt.Fprintf(out, "  %-20s %-12s %s\n", t.ID, t.Status, t.PullRequestURL)
			}

			workers := st.GetAllWorkers()
			fmt.Fprintf(out, "\nWorkers (%d):\n", len(workers))
			for _, w := range workers {
				taskID := ""
				if w.CurrentTask != nil {
					taskID = w.CurrentTask.TaskID
				}
				fmt.Fprintf(out, "  %-12s %-10s task=%-20s errors=%d\n", w.ID, w.Status, taskID, w.ConsecutiveErr)
			}
			return nil
		},
	}
}
