// Package repocache ensures each repository backing the orchestrator's
// tasks is cloned exactly once under the workspace base directory, and
// refreshed on a time-based cache policy rather than on every task.
package repocache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/taskfleet/taskfleet/internal/git"
	"github.com/taskfleet/taskfleet/internal/gitlock"
	"github.com/taskfleet/taskfleet/internal/model"
	"github.com/taskfleet/taskfleet/internal/store"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Sanitize converts a repository id (e.g. "owner/repo") into a
// filesystem-safe directory component.
func Sanitize(repoID string) string {
	return unsafeChars.ReplaceAllString(repoID, "_")
}

// Cache owns the shared local clones.
type Cache struct {
	baseDir string
	store   *store.Store
	locks   *gitlock.Registry
	timeout time.Duration

	// now is overridable for tests.
	now func() time.Time
}

// New creates a cache rooted at baseDir ("<base>/repositories/<id>").
func New(baseDir string, st *store.Store, locks *gitlock.Registry, cacheTimeout time.Duration) *Cache {
	return &Cache{baseDir: baseDir, store: st, locks: locks, timeout: cacheTimeout, now: time.Now}
}

func (c *Cache) localPath(repoID string) string {
	return filepath.Join(c.baseDir, "repositories", Sanitize(repoID))
}

// EnsureRepository returns the local path of a repo guaranteed to be
// cloned, cloning it on first use and pulling it when the cache has gone
// stale or forceUpdate is set. Self-heals if the recorded local path was
// deleted out from under the store.
func (c *Cache) EnsureRepository(repoID, remoteURL string, forceUpdate bool) (string, error) {
	localPath := c.localPath(repoID)

	rs, known := c.store.GetRepository(repoID)
	if known && rs.IsCloned {
		if _, err := os.Stat(rs.LocalPath); err != nil {
			known = false // self-heal: stale record, directory is gone
		}
	}

	var err error
	lockErr := c.locks.WithLock(repoID, "ensure-repository", func() error {
		if !known {
			if e := git.Clone(remoteURL, localPath); e != nil {
				err = fmt.Errorf("clone %s: %w", repoID, e)
				return nil
			}
			rs = &model.RepositoryState{ID: repoID, LocalPath: localPath, IsCloned: true, LastFetchAt: c.now()}
			err = c.store.SaveRepository(rs)
			return nil
		}

		if forceUpdate || c.now().Sub(rs.LastFetchAt) > c.timeout {
			repo, openErr := git.Open(rs.LocalPath, "")
			if openErr != nil {
				err = fmt.Errorf("open cached repo %s: %w", repoID, openErr)
				return nil
			}
			if e := repo.Pull("origin", repo.DefaultBranch()); e != nil {
				err = fmt.Errorf("refresh %s: %w", repoID, e)
				return nil
			}
			rs.LastFetchAt = c.now()
			err = c.store.SaveRepository(rs)
		}
		return nil
	})
	if lockErr != nil {
		return "", lockErr
	}
	if err != nil {
		return "", err
	}
	return localPath, nil
}

// IsRepositoryCloned reports whether repoID has a clone record with a
// local path still present on disk; the clone's freshness is not checked.
func (c *Cache) IsRepositoryCloned(repoID string) bool {
	rs, ok := c.store.GetRepository(repoID)
	if !ok || !rs.IsCloned {
		return false
	}
	_, err := os.Stat(rs.LocalPath)
	return err == nil
}

// AddWorktree records worktreePath as active for repoID.
func (c *Cache) AddWorktree(repoID, worktreePath string) error {
	rs, ok := c.store.GetRepository(repoID)
	if !ok {
		return fmt.Errorf("repository %s not yet cloned", repoID)
	}
	rs.AddWorktree(worktreePath)
	return c.store.SaveRepository(rs)
}

// RemoveWorktree drops worktreePath from the active set for repoID.
func (c *Cache) RemoveWorktree(repoID, worktreePath string) error {
	rs, ok := c.store.GetRepository(repoID)
	if !ok {
		return nil
	}
	rs.RemoveWorktree(worktreePath)
	return c.store.SaveRepository(rs)
}
