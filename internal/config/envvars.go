package config

import (
	"os"
	"strconv"
	"time"
)

// ApplyEnvVars overlays ORC_-prefixed environment variables onto tc,
// recording SourceEnv for anything actually present.
func ApplyEnvVars(tc *TrackedConfig) {
	cfg := tc.Config

	if v, ok := os.LookupEnv("ORC_BOARD_ID"); ok {
		cfg.BoardID = v
		tc.SetSource("board_id", SourceEnv)
	}
	if v, ok := os.LookupEnv("ORC_BOARD_KIND"); ok {
		cfg.BoardKind = BoardKind(v)
		tc.SetSource("board_kind", SourceEnv)
	}
	if v, ok := durationEnv("ORC_POLLING_INTERVAL"); ok {
		cfg.PollingInterval = v
		tc.SetSource("polling_interval", SourceEnv)
	}
	if v, ok := intEnv("ORC_POOL_MIN"); ok {
		cfg.Pool.Min = v
		tc.SetSource("pool", SourceEnv)
	}
	if v, ok := intEnv("ORC_POOL_MAX"); ok {
		cfg.Pool.Max = v
		tc.SetSource("pool", SourceEnv)
	}
	if v, ok := os.LookupEnv("ORC_DEVELOPER_BACKEND_PATH"); ok {
		cfg.Developer.BackendPath = v
		tc.SetSource("developer", SourceEnv)
	}
	if v, ok := os.LookupEnv("ORC_DEVELOPER_MODEL"); ok {
		cfg.Developer.Model = v
		tc.SetSource("developer", SourceEnv)
	}
	if v, ok := os.LookupEnv("ORC_JIRA_BASE_URL"); ok {
		cfg.Jira.BaseURL = v
		tc.SetSource("jira", SourceEnv)
	}
	if v, ok := os.LookupEnv("ORC_JIRA_EMAIL"); ok {
		cfg.Jira.Email = v
		tc.SetSource("jira", SourceEnv)
	}
	if v, ok := os.LookupEnv("ORC_JIRA_API_TOKEN"); ok {
		cfg.Jira.APIToken = v
		tc.SetSource("jira", SourceEnv)
	}
	if v, ok := os.LookupEnv("ORC_JIRA_PROJECT_KEY"); ok {
		cfg.Jira.ProjectKey = v
		tc.SetSource("jira", SourceEnv)
	}
	if v, ok := os.LookupEnv("ORC_GITHUB_OWNER"); ok {
		cfg.GitHub.Owner = v
		tc.SetSource("github", SourceEnv)
	}
	if v, ok := os.LookupEnv("ORC_GITHUB_REPO"); ok {
		cfg.GitHub.Repo = v
		tc.SetSource("github", SourceEnv)
	}
	if v, ok := os.LookupEnv("ORC_GITHUB_TOKEN"); ok {
		cfg.GitHub.Token = v
		tc.SetSource("github", SourceEnv)
	}
}

func durationEnv(key string) (time.Duration, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func intEnv(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
