// Package workspace implements the per-task isolated working tree
// lifecycle: directory creation, git worktree setup, the instruction
// file a worker's developer backend reads, validation, and cleanup.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/taskfleet/taskfleet/internal/git"
	"github.com/taskfleet/taskfleet/internal/gitlock"
	"github.com/taskfleet/taskfleet/internal/model"
	"github.com/taskfleet/taskfleet/internal/repocache"
	"github.com/taskfleet/taskfleet/internal/store"
)

const instructionFileName = "TASK_INSTRUCTIONS.md"

// Manager owns workspace creation, validation, and teardown.
type Manager struct {
	baseDir string
	store   *store.Store
	cache   *repocache.Cache
	locks   *gitlock.Registry
}

// New creates a workspace manager rooted at baseDir.
func New(baseDir string, st *store.Store, cache *repocache.Cache, locks *gitlock.Registry) *Manager {
	return &Manager{baseDir: baseDir, store: st, cache: cache, locks: locks}
}

// CreateWorkspace allocates (and durably records) a workspace for a task,
// without yet creating the git worktree — that happens in SetupWorktree
// once the repository is known to be cloned.
func (m *Manager) CreateWorkspace(taskID, repoID string, item *model.BoardItem) (*model.WorkspaceInfo, error) {
	dir := filepath.Join(m.baseDir, fmt.Sprintf("%s_%s", repocache.Sanitize(repoID), taskID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	var branch string
	if item != nil {
		branch = git.BranchName(taskID, item.ContentType, item.ContentNumber, item.Title)
	} else {
		branch = git.BranchName(taskID, "", 0, "")
	}

	info := &model.WorkspaceInfo{
		TaskID:              taskID,
		RepositoryID:        repoID,
		WorkspaceDir:        dir,
		BranchName:          branch,
		InstructionFilePath: filepath.Join(dir, instructionFileName),
	}
	if err := m.store.SaveWorkspace(info); err != nil {
		return nil, err
	}
	return info, nil
}

// SetupWorktree ensures the backing repository is present, then creates
// (or reuses) the git worktree for the workspace, resolving branch-name
// conflicts with the task's board item by appending a numeric suffix.
func (m *Manager) SetupWorktree(info *model.WorkspaceInfo, remoteURL, baseBranch string) error {
	localPath, err := m.cache.EnsureRepository(info.RepositoryID, remoteURL, !m.cache.IsRepositoryCloned(info.RepositoryID))
	if err != nil {
		return err
	}

	return m.locks.WithLock(info.RepositoryID, "setup-worktree", func() error {
		repo, err := git.Open(localPath, "")
		if err != nil {
			return err
		}

		branch := info.BranchName
		inUse, err := repo.BranchCheckedOutElsewhere(branch)
		if err != nil {
			return err
		}
		if inUse {
			branch = git.NextConflictSuffix(branch, func(candidate string) bool {
				elsewhere, _ := repo.BranchCheckedOutElsewhere(candidate)
				return elsewhere
			})
		}

		if err := repo.EnsureWorktree(branch, info.WorkspaceDir, baseBranch); err != nil {
			return err
		}

		info.BranchName = branch
		info.WorktreeCreated = true
		if err := m.cache.AddWorktree(info.RepositoryID, info.WorkspaceDir); err != nil {
			return err
		}
		return m.store.SaveWorkspace(info)
	})
}

// IsWorktreeValid is permissive: the directory existing is enough to
// consider the worktree reusable, matching the manager's bias toward
// reuse over recreation.
func (m *Manager) IsWorktreeValid(info *model.WorkspaceInfo) bool {
	st, err := os.Stat(info.WorkspaceDir)
	return err == nil && st.IsDir()
}

// SetupInstructionFile writes the fixed instructional document a
// developer backend invocation reads from the workspace root.
func (m *Manager) SetupInstructionFile(info *model.WorkspaceInfo, taskID string) error {
	content := fmt.Sprintf(`# Task Instructions

Task ID: %s
Repository: %s
Branch: %s
Working directory: %s

Work only within this directory. Commit your changes on the branch above;
do not switch branches or touch files outside this worktree.
`, taskID, info.RepositoryID, info.BranchName, info.WorkspaceDir)

	return os.WriteFile(info.InstructionFilePath, []byte(content), 0o644)
}

// CleanupWorkspace removes the worktree and directory for a task and
// deletes its durable record. Best-effort: failures to remove the
// worktree or the directory are ignored; a git-lock failure or a failure
// to delete the durable record is returned.
func (m *Manager) CleanupWorkspace(taskID string) error {
	info, ok := m.store.GetWorkspace(taskID)
	if !ok {
		return nil
	}

	var firstErr error
	err := m.locks.WithLock(info.RepositoryID, "cleanup-workspace", func() error {
		if info.WorktreeCreated {
			localPath, err := m.cache.EnsureRepository(info.RepositoryID, "", false)
			if err == nil {
				if repo, openErr := git.Open(localPath, ""); openErr == nil {
					repo.RemoveWorktree(info.WorkspaceDir)
				}
			}
			m.cache.RemoveWorktree(info.RepositoryID, info.WorkspaceDir)
		}
		return nil
	})
	if err != nil {
		firstErr = err
	}

	os.RemoveAll(info.WorkspaceDir)
	if err := m.store.DeleteWorkspace(taskID); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Validator answers whether and how a task can be (re)assigned to a
// worker, consulting the recorded workspace.
type Validator struct {
	mgr *Manager
}

// NewValidator builds a Validator over mgr.
func NewValidator(mgr *Manager) *Validator { return &Validator{mgr: mgr} }

// Decision is the outcome of validating a prospective assignment.
type Decision string

const (
	DecisionNoWorkspace     Decision = "no_workspace"      // fresh workspace will be created
	DecisionResume          Decision = "resume"             // existing, valid workspace will be reused
	DecisionRecreate        Decision = "recreate"           // existing record is invalid, will recreate
)

// Validate inspects the durable workspace record for taskID.
func (v *Validator) Validate(taskID string) Decision {
	info, ok := v.mgr.store.GetWorkspace(taskID)
	if !ok {
		return DecisionNoWorkspace
	}
	if v.mgr.IsWorktreeValid(info) {
		return DecisionResume
	}
	return DecisionRecreate
}

// CanAssignToIdleWorker is true only when a valid workspace exists —
// a stateless idle worker cannot resume a task with nothing to resume.
func (v *Validator) CanAssignToIdleWorker(taskID string) bool {
	return v.Validate(taskID) == DecisionResume
}
