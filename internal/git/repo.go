package git

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Checkpoint records a commit made on behalf of a task/action pair.
type Checkpoint struct {
	TaskID    string
	Action    string
	CommitSHA string
	Message   string
	CreatedAt time.Time
}

// Repo wraps a Context with the compound worktree and checkpoint
// operations the workspace manager and repository cache need. The
// mutex serializes compound multi-command sequences (worktree creation
// with its prune-and-retry fallback, stage+commit) the same way the
// original worktree helper did; single git commands are already atomic
// at the process level and need no additional locking here.
type Repo struct {
	mu  sync.Mutex
	ctx *Context

	commitPrefix string
}

// Open opens (and validates) the repository at path.
func Open(path string, commitPrefix string) (*Repo, error) {
	ctx, err := NewContext(path)
	if err != nil {
		return nil, err
	}
	if commitPrefix == "" {
		commitPrefix = "[orc]"
	}
	return &Repo{ctx: ctx, commitPrefix: commitPrefix}, nil
}

// Path returns the repository root.
func (r *Repo) Path() string { return r.ctx.RepoPath() }

// Clone clones remoteURL into localPath using the host git binary.
func Clone(remoteURL, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	runner := NewExecRunner()
	if _, err := runner.Run(filepath.Dir(localPath), "git", "clone", remoteURL, localPath); err != nil {
		return fmt.Errorf("clone %s: %w", remoteURL, err)
	}
	return nil
}

// Pull fast-forwards branch from remote, stashing any local changes
// first so the pull never merges over uncommitted work.
func (r *Repo) Pull(remote, branch string) error {
	clean, err := r.ctx.IsClean()
	if err != nil {
		return err
	}
	if !clean {
		if _, err := r.ctx.RunGit("stash", "push", "-u", "-m", "orc-autostash"); err != nil {
			return fmt.Errorf("stash before pull: %w", err)
		}
		defer r.ctx.RunGit("stash", "pop")
	}
	if _, err := r.ctx.RunGit("pull", "--ff-only", remote, branch); err != nil {
		return fmt.Errorf("pull %s/%s: %w", remote, branch, err)
	}
	return nil
}

// tryCreateWorktree attempts to create a worktree for branchName at
// worktreePath, retrying after a prune if the first attempt fails
// because of a stale registration (a directory that was deleted
// without `git worktree remove`).
func (r *Repo) tryCreateWorktree(branchName, worktreePath, baseBranch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt := func() error {
		if _, err := r.ctx.RunGit("worktree", "add", "-b", branchName, worktreePath, baseBranch); err == nil {
			return nil
		}
		_, err := r.ctx.RunGit("worktree", "add", worktreePath, branchName)
		return err
	}

	if err := attempt(); err == nil {
		return nil
	}
	r.ctx.RunGit("worktree", "prune")
	return attempt()
}

// EnsureWorktree creates (or reuses, if already present and valid) a
// worktree at worktreePath tracking branchName off baseBranch.
func (r *Repo) EnsureWorktree(branchName, worktreePath, baseBranch string) error {
	if info, err := os.Stat(worktreePath); err == nil && info.IsDir() {
		if _, statErr := r.ctx.RunGit("-C", worktreePath, "status"); statErr == nil {
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(worktreePath), 0o755); err != nil {
		return fmt.Errorf("create worktree parent dir: %w", err)
	}
	if err := r.tryCreateWorktree(branchName, worktreePath, baseBranch); err != nil {
		return fmt.Errorf("create worktree for %s: %w", branchName, err)
	}
	return nil
}

// BranchCheckedOutElsewhere reports whether branch is currently attached
// to any worktree of the repository, the main checkout included.
func (r *Repo) BranchCheckedOutElsewhere(branch string) (bool, error) {
	wts, err := r.ctx.ListWorktrees()
	if err != nil {
		return false, err
	}
	for _, wt := range wts {
		if wt.Branch == branch {
			return true, nil
		}
	}
	return false, nil
}

// RemoveWorktree force-removes the worktree at path and prunes stale
// registrations. Best-effort: if `git worktree remove` fails the directory
// is deleted directly, and the method always returns nil.
func (r *Repo) RemoveWorktree(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.ctx.RunGit("worktree", "remove", "--force", path); err != nil {
		os.RemoveAll(path)
	}
	r.ctx.RunGit("worktree", "prune")
	return nil
}

// InWorktree returns a Repo operating against the given worktree path.
func (r *Repo) InWorktree(worktreePath string) *Repo {
	return &Repo{ctx: r.ctx.InWorktree(worktreePath), commitPrefix: r.commitPrefix}
}

// Checkpoint stages all changes in the worktree and commits them,
// falling back to an empty commit if there was nothing staged so that
// every action still leaves a traceable commit.
func (r *Repo) Checkpoint(taskID, action, message string) (*Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ctx.StageAll(); err != nil {
		return nil, fmt.Errorf("stage changes: %w", err)
	}

	commitMsg := fmt.Sprintf("%s %s %s: %s", r.commitPrefix, taskID, action, message)
	if err := r.ctx.Commit(commitMsg); err != nil {
		if err == ErrNothingToCommit {
			if _, runErr := r.ctx.RunGit("commit", "--allow-empty", "-m", commitMsg); runErr != nil {
				return nil, fmt.Errorf("create empty checkpoint: %w", runErr)
			}
		} else {
			return nil, fmt.Errorf("commit: %w", err)
		}
	}

	sha, err := r.ctx.HeadCommit()
	if err != nil {
		return nil, fmt.Errorf("get head commit: %w", err)
	}

	return &Checkpoint{TaskID: taskID, Action: action, CommitSHA: sha, Message: message, CreatedAt: time.Now()}, nil
}

// Status exposes the underlying Context's status check.
func (r *Repo) Status() (string, error) { return r.ctx.Status() }

// IsClean exposes the underlying Context's clean check.
func (r *Repo) IsClean() (bool, error) { return r.ctx.IsClean() }

// DefaultBranch returns the repository's default branch (the branch
// origin/HEAD points at), falling back to "main" if it cannot be
// determined (e.g. a freshly cloned bare-fetch without a remote HEAD).
func (r *Repo) DefaultBranch() string {
	out, err := r.ctx.RunGit("symbolic-ref", "refs/remotes/origin/HEAD")
	if err != nil {
		return "main"
	}
	const prefix = "refs/remotes/origin/"
	if len(out) > len(prefix) {
		return out[len(prefix):]
	}
	return "main"
}
