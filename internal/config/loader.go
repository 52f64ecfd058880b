package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadWithSources loads configuration with source tracking. Load order
// (later sources override earlier):
//  1. Built-in defaults
//  2. System config (/etc/orc/config.yaml) - optional
//  3. User config (~/.orc/config.yaml) - optional
//  4. Project config (.orc/config.yaml) - optional, fatal on parse error
//  5. Environment variables (ORC_*)
func LoadWithSources() (*TrackedConfig, error) {
	tc := NewTrackedConfig()
	markDefaults(tc)

	if _, err := os.Stat("/etc/orc/config.yaml"); err == nil {
		if err := mergeFromFile(tc, "/etc/orc/config.yaml", SourceSystem); err != nil {
			slog.Warn("failed to load system config", "error", err)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".orc", ConfigFileName)
		if _, err := os.Stat(userPath); err == nil {
			if err := mergeFromFile(tc, userPath, SourceUser); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			}
		}
	}

	projectPath := filepath.Join(OrcDir, ConfigFileName)
	if _, err := os.Stat(projectPath); err == nil {
		if err := mergeFromFile(tc, projectPath, SourceProject); err != nil {
			return nil, err
		}
	}

	ApplyEnvVars(tc)
	return tc, nil
}

func mergeFromFile(tc *TrackedConfig, path string, source ConfigSource) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, tc.Config); err != nil {
		return err
	}
	for key := range raw {
		tc.SetSource(key, source)
	}
	return nil
}

func markDefaults(tc *TrackedConfig) {
	for _, key := range []string{
		"board_id", "board_kind", "polling_interval", "repository_cache_timeout",
		"state_dir", "workspace_dir", "repository_dir",
		"pool", "git", "developer", "review", "jira", "github",
	} {
		tc.SetSource(key, SourceDefault)
	}
}
