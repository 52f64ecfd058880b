// Package config loads orcboard's configuration from layered sources:
// built-in defaults, an optional system config, an optional user config,
// the project config, and ORC_-prefixed environment variables, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default project config file name.
	ConfigFileName = "config.yaml"
	// OrcDir is the project configuration directory.
	OrcDir = ".orc"
)

// BoardKind selects which board provider backs the planner.
type BoardKind string

const (
	BoardJira   BoardKind = "jira"
	BoardGitHub BoardKind = "github"
	BoardMock   BoardKind = "mock"
)

// PoolConfig configures the worker pool's size and lifecycle.
type PoolConfig struct {
	Min                    int           `yaml:"min"`
	Max                    int           `yaml:"max"`
	WorkerTimeout          time.Duration `yaml:"worker_timeout"`
	IdleTimeout            time.Duration `yaml:"idle_timeout"`
	CleanupInterval        time.Duration `yaml:"cleanup_interval"`
}

// GitConfig configures git operation and lock timeouts.
type GitConfig struct {
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	LockTimeout      time.Duration `yaml:"lock_timeout"`
}

// DeveloperConfig configures the developer backend subprocess.
type DeveloperConfig struct {
	Kind            string            `yaml:"kind"` // "cli" or "mock"
	BackendPath     string            `yaml:"backend_path"`
	Model           string            `yaml:"model,omitempty"`
	Timeout         time.Duration     `yaml:"timeout"`
	MaxRetries      int               `yaml:"max_retries"`
	RetryDelay      time.Duration     `yaml:"retry_delay"`
	ExtraEnv        map[string]string `yaml:"extra_env,omitempty"`
}

// ReviewFilterConfig configures which PR comments the planner considers.
type ReviewFilterConfig struct {
	ExcludeBots  bool     `yaml:"exclude_bots"`
	AllowedBots  []string `yaml:"allowed_bots,omitempty"`
}

// JiraConfig configures the Jira board provider.
type JiraConfig struct {
	BaseURL    string `yaml:"base_url"`
	Email      string `yaml:"email"`
	APIToken   string `yaml:"api_token"`
	ProjectKey string `yaml:"project_key"`
}

// GitHubBoardConfig configures the GitHub Issues board provider.
type GitHubBoardConfig struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	Token string `yaml:"token"`
}

// Config is orcboard's full configuration.
type Config struct {
	BoardID          string        `yaml:"board_id"`
	BoardKind        BoardKind     `yaml:"board_kind"`
	PollingInterval  time.Duration `yaml:"polling_interval"`
	RepositoryCacheTimeout time.Duration `yaml:"repository_cache_timeout"`
	StateDir         string        `yaml:"state_dir"`
	WorkspaceDir     string        `yaml:"workspace_dir"`
	RepositoryDir    string        `yaml:"repository_dir"`

	Pool      PoolConfig         `yaml:"pool"`
	Git       GitConfig          `yaml:"git"`
	Developer DeveloperConfig    `yaml:"developer"`
	Review    ReviewFilterConfig `yaml:"review"`
	Jira      JiraConfig         `yaml:"jira"`
	GitHub    GitHubBoardConfig  `yaml:"github"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		BoardKind:              BoardGitHub,
		PollingInterval:        time.Minute,
		RepositoryCacheTimeout: time.Hour,
		StateDir:               ".orc/state",
		WorkspaceDir:           ".orc/workspaces",
		RepositoryDir:          ".orc/repositories",
		Pool: PoolConfig{
			Min:             1,
			Max:             4,
			WorkerTimeout:   30 * time.Minute,
			IdleTimeout:     15 * time.Minute,
			CleanupInterval: 60 * time.Minute,
		},
		Git: GitConfig{
			OperationTimeout: 60 * time.Second,
			LockTimeout:      5 * time.Minute,
		},
		Developer: DeveloperConfig{
			Kind:        "cli",
			BackendPath: "claude",
			Timeout:     10 * time.Minute,
			MaxRetries:  2,
			RetryDelay:  5 * time.Second,
		},
		Review: ReviewFilterConfig{
			ExcludeBots: true,
		},
	}
}

// LoadFrom reads and parses a YAML config file at path, merged over
// Default().
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveTo writes cfg as YAML to path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
