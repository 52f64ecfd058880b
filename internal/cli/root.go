package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taskfleet/taskfleet/internal/config"
)

var (
	cfgFile string
	verbose bool
	jsonLog bool
)

const (
	groupCore    = "core"
	groupConfig  = "config"
)

var rootCmd = &cobra.Command{
	Use:   "orcboard",
	Short: "Autonomous board-driven coding agent orchestrator",
	Long: `orcboard polls a project board for work, dispatches it to a pool
of AI coding agents running in isolated git worktrees, and shepherds
the resulting pull requests through review and merge.

Quick start:
  orcboard run              Start the planner loop
  orcboard status           Show current tasks and workers
  orcboard worker ls        List worker pool slots`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogging()
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .orc/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json", false, "emit logs as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupCore, Title: "Core Commands:"},
		&cobra.Group{ID: groupConfig, Title: "Configuration:"},
	)

	addCmd(newRunCmd(), groupCore)
	addCmd(newStatusCmd(), groupCore)
	addCmd(newWorkerCmd(), groupCore)
	addCmd(newInitCmd(), groupConfig)
}

func addCmd(cmd *cobra.Command, groupID string) {
	cmd.GroupID = groupID
	rootCmd.AddCommand(cmd)
}

func initViper() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.OrcDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}
	viper.SetEnvPrefix("ORC")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if jsonLog {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// loadConfig loads orcboard's configuration via the layered loader, or
// from the --config file (with the env-var overlay) when one is given,
// falling back to defaults with a logged warning on a read failure.
func loadConfig() *config.Config {
	if cfgFile != "" {
		cfg, err := config.LoadFrom(cfgFile)
		if err != nil {
			slog.Warn("failed to load config, using defaults", "path", cfgFile, "error", err)
			return config.Default()
		}
		tc := &config.TrackedConfig{Config: cfg, Sources: map[string]config.ConfigSource{}}
		config.ApplyEnvVars(tc)
		return tc.Config
	}
	tc, err := config.LoadWithSources()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		return config.Default()
	}
	return tc.Config
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
