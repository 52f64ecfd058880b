package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithSourcesAppliesProjectOverlay(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(OrcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	cfg.BoardID = "PROJ"
	cfg.BoardKind = BoardJira
	if err := cfg.SaveTo(filepath.Join(OrcDir, ConfigFileName)); err != nil {
		t.Fatal(err)
	}

	tc, err := LoadWithSources()
	if err != nil {
		t.Fatal(err)
	}
	if tc.Config.BoardID != "PROJ" {
		t.Fatalf("expected board id PROJ, got %q", tc.Config.BoardID)
	}
	if tc.GetSource("board_id") != SourceProject {
		t.Fatalf("expected project source, got %v", tc.GetSource("board_id"))
	}
}

func TestApplyEnvVarsOverridesProjectConfig(t *testing.T) {
	tc := NewTrackedConfig()
	tc.Config.BoardID = "PROJ"
	tc.SetSource("board_id", SourceProject)
	os.Setenv("ORC_BOARD_ID", "ENV-BOARD")
	defer os.Unsetenv("ORC_BOARD_ID")

	ApplyEnvVars(tc)
	if tc.Config.BoardID != "ENV-BOARD" {
		t.Fatalf("expected env override, got %q", tc.Config.BoardID)
	}
	if tc.GetSource("board_id") != SourceEnv {
		t.Fatalf("expected env source, got %v", tc.GetSource("board_id"))
	}
}

func TestDefaultPoolBounds(t *testing.T) {
	cfg := Default()
	if cfg.Pool.Min <= 0 || cfg.Pool.Max < cfg.Pool.Min {
		t.Fatalf("invalid default pool bounds: %+v", cfg.Pool)
	}
}
