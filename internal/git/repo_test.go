package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func setupTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "initial")
	return dir
}

func TestBranchName(t *testing.T) {
	cases := []struct {
		name          string
		taskID        string
		contentType   string
		contentNumber int
		title         string
		want          string
	}{
		{"issue number", "t1", "issue", 42, "", "orc/issue-42"},
		{"pr number", "t1", "pr", 7, "", "orc/pr-7"},
		{"title ref", "t1", "", 0, "fix bug #99", "orc/issue-99"},
		{"fallback to id", "some-long-task-identifier-value", "", 0, "no ref here", "orc/some-long-task-ident"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := BranchName(c.taskID, c.contentType, c.contentNumber, c.title)
			if got != c.want {
				t.Errorf("BranchName() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestNextConflictSuffix(t *testing.T) {
	used := map[string]bool{"orc/issue-1": true, "orc/issue-1-1": true}
	got := NextConflictSuffix("orc/issue-1", func(c string) bool { return used[c] })
	if got != "orc/issue-1-2" {
		t.Errorf("NextConflictSuffix() = %q, want orc/issue-1-2", got)
	}
}

func TestEnsureAndRemoveWorktree(t *testing.T) {
	dir := setupTestRepo(t)
	repo, err := Open(dir, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	wtPath := filepath.Join(t.TempDir(), "wt")
	if err := repo.EnsureWorktree("orc/issue-1", wtPath, "HEAD"); err != nil {
		t.Fatalf("EnsureWorktree: %v", err)
	}
	if _, err := os.Stat(wtPath); err != nil {
		t.Fatalf("worktree dir missing: %v", err)
	}

	// Reuse should succeed without error.
	if err := repo.EnsureWorktree("orc/issue-1", wtPath, "HEAD"); err != nil {
		t.Fatalf("EnsureWorktree (reuse): %v", err)
	}

	if err := repo.RemoveWorktree(wtPath); err != nil {
		t.Fatalf("RemoveWorktree: %v", err)
	}
}

func TestCheckpoint(t *testing.T) {
	dir := setupTestRepo(t)
	repo, err := Open(dir, "[orc]")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("content\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cp, err := repo.Checkpoint("task-1", "START_NEW_TASK", "initial work")
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if cp.CommitSHA == "" {
		t.Error("expected non-empty commit SHA")
	}

	// A second checkpoint with nothing staged should still succeed (empty commit).
	cp2, err := repo.Checkpoint("task-1", "PROCESS_FEEDBACK", "no changes")
	if err != nil {
		t.Fatalf("Checkpoint (empty): %v", err)
	}
	if cp2.CommitSHA == cp.CommitSHA {
		t.Error("expected a distinct commit SHA for the empty checkpoint")
	}
}
