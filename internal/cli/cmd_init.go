package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taskfleet/taskfleet/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default .orc/config.yaml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(config.OrcDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", config.OrcDir, err)
			}
			path := filepath.Join(config.OrcDir, config.ConfigFileName)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Default().SaveTo(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
}
