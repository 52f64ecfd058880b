// Package store implements the durable state store: four YAML-backed
// collections (tasks, workers, workspaces, repositories; the per-task
// sync bookmark lives on a worker's WorkerTask) rewritten atomically under a
// single cross-cutting file lock, following the same source-of-truth and
// self-healing philosophy as the teacher's hybrid storage backend: local
// files are authoritative, and a malformed or missing file is treated as
// an empty collection rather than a fatal error.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskfleet/taskfleet/internal/model"
	"github.com/taskfleet/taskfleet/internal/orcherr"
	"github.com/taskfleet/taskfleet/internal/util"
)

const defaultLockTimeout = 5 * time.Minute

// Store is the durable state store rooted at a directory (the configured
// state dir, `.orc/state` by default).
type Store struct {
	dir         string
	lockTimeout time.Duration

	mu    sync.Mutex
	tasks map[string]*model.Task
	workers map[string]*model.Worker
	workspaces map[string]*model.WorkspaceInfo // keyed by taskID
	repos map[string]*model.RepositoryState
}

// Open loads (or initializes) a store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	s := &Store{
		dir:         dir,
		lockTimeout: defaultLockTimeout,
		tasks:       map[string]*model.Task{},
		workers:     map[string]*model.Worker{},
		workspaces:  map[string]*model.WorkspaceInfo{},
		repos:       map[string]*model.RepositoryState{},
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

func (s *Store) loadAll() error {
	if err := loadYAML(s.path("tasks.yaml"), &s.tasks); err != nil {
		return err
	}
	if err := loadYAML(s.path("workers.yaml"), &s.workers); err != nil {
		return err
	}
	if err := loadYAML(s.path("workspaces.yaml"), &s.workspaces); err != nil {
		return err
	}
	if err := loadYAML(s.path("repositories.yaml"), &s.repos); err != nil {
		return err
	}
	return nil
}

// loadYAML reads a map-shaped YAML file into out, self-healing on a
// missing, empty, or malformed file by leaving out as an empty map.
func loadYAML[V any](path string, out *map[string]V) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	parsed := map[string]V{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		// Corrupted local state: self-heal by discarding and starting fresh.
		return nil
	}
	*out = parsed
	return nil
}

func saveYAML[V any](path string, in map[string]V) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return util.AtomicWriteFile(path, data, 0o644)
}

// withLock serializes a mutation under both the in-process mutex and the
// cross-process sentinel file lock, matching the teacher's layered
// locking (PID guard generalized to a directory-wide exclusive lock).
func (s *Store) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fl := newFileLock(s.dir)
	if err := fl.acquire(s.lockTimeout); err != nil {
		return orcherr.ErrLockTimeout(s.dir)
	}
	defer fl.release()

	return fn()
}

// --- Tasks ---

// SaveTask persists t, updating its UpdatedAt timestamp.
func (s *Store) SaveTask(t *model.Task) error {
	return s.withLock(func() error {
		t.UpdatedAt = now()
		if t.CreatedAt.IsZero() {
			t.CreatedAt = t.UpdatedAt
		}
		cp := *t
		s.tasks[t.ID] = &cp
		return saveYAML(s.path("tasks.yaml"), s.tasks)
	})
}

// GetTask returns a copy of the task with id, or orcherr.ErrTaskNotFound.
func (s *Store) GetTask(id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, orcherr.ErrTaskNotFound(id)
	}
	cp := *t
	return &cp, nil
}

// GetAllTasks returns a snapshot of every known task.
func (s *Store) GetAllTasks() []*model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// GetTasksByStatus filters GetAllTasks by status.
func (s *Store) GetTasksByStatus(status model.TaskStatus) []*model.Task {
	var out []*model.Task
	for _, t := range s.GetAllTasks() {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// GetTaskLastSyncTime returns the task's comment-sync bookmark, via its
// current worker's WorkerTask if one is assigned (the bookmark lives on
// the in-flight assignment, not the Task record itself).
func (s *Store) GetTaskLastSyncTime(taskID string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workers {
		if w.CurrentTask != nil && w.CurrentTask.TaskID == taskID {
			return w.CurrentTask.LastSyncTime, nil
		}
	}
	return nil, nil
}

// AddProcessedCommentsToTask records comment ids as seen for a task.
func (s *Store) AddProcessedCommentsToTask(taskID string, ids []string) error {
	return s.withLock(func() error {
		t, ok := s.tasks[taskID]
		if !ok {
			return orcherr.ErrTaskNotFound(taskID)
		}
		t.MarkCommentsProcessed(ids...)
		t.UpdatedAt = now()
		return saveYAML(s.path("tasks.yaml"), s.tasks)
	})
}

// --- Workers ---

// SaveWorker persists w.
func (s *Store) SaveWorker(w *model.Worker) error {
	return s.withLock(func() error {
		w.LastActiveAt = now()
		if w.CreatedAt.IsZero() {
			w.CreatedAt = w.LastActiveAt
		}
		cp := *w
		s.workers[w.ID] = &cp
		return saveYAML(s.path("workers.yaml"), s.workers)
	})
}

// GetWorker returns a copy of the worker with id.
func (s *Store) GetWorker(id string) (*model.Worker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[id]
	if !ok {
		return nil, false
	}
	cp := *w
	return &cp, true
}

// GetAllWorkers returns a snapshot of every known worker.
func (s *Store) GetAllWorkers() []*model.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		cp := *w
		out = append(out, &cp)
	}
	return out
}

// GetActiveWorkers returns workers whose status is WAITING or WORKING.
func (s *Store) GetActiveWorkers() []*model.Worker {
	var out []*model.Worker
	for _, w := range s.GetAllWorkers() {
		if w.Status == model.WorkerStatusWaiting || w.Status == model.WorkerStatusWorking {
			out = append(out, w)
		}
	}
	return out
}

// GetWorkerByTaskID returns the worker currently holding taskID, if any.
func (s *Store) GetWorkerByTaskID(taskID string) (*model.Worker, bool) {
	for _, w := range s.GetAllWorkers() {
		if w.CurrentTask != nil && w.CurrentTask.TaskID == taskID {
			return w, true
		}
	}
	return nil, false
}

// DeleteWorker removes a worker record entirely.
func (s *Store) DeleteWorker(id string) error {
	return s.withLock(func() error {
		delete(s.workers, id)
		return saveYAML(s.path("workers.yaml"), s.workers)
	})
}

// CleanupIdleWorkers deletes IDLE workers whose LastActiveAt predates the
// cutoff and returns their ids.
func (s *Store) CleanupIdleWorkers(olderThan time.Duration) ([]string, error) {
	var removed []string
	err := s.withLock(func() error {
		cutoff := now().Add(-olderThan)
		for id, w := range s.workers {
			if w.Status == model.WorkerStatusIdle && w.LastActiveAt.Before(cutoff) {
				removed = append(removed, id)
				delete(s.workers, id)
			}
		}
		if len(removed) == 0 {
			return nil
		}
		return saveYAML(s.path("workers.yaml"), s.workers)
	})
	return removed, err
}

// --- Workspaces ---

// SaveWorkspace persists info, keyed by TaskID.
func (s *Store) SaveWorkspace(info *model.WorkspaceInfo) error {
	return s.withLock(func() error {
		if info.CreatedAt.IsZero() {
			info.CreatedAt = now()
		}
		cp := *info
		s.workspaces[info.TaskID] = &cp
		return saveYAML(s.path("workspaces.yaml"), s.workspaces)
	})
}

// GetWorkspace returns the workspace info for taskID, if any.
func (s *Store) GetWorkspace(taskID string) (*model.WorkspaceInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[taskID]
	if !ok {
		return nil, false
	}
	cp := *w
	return &cp, true
}

// DeleteWorkspace removes the workspace record for taskID.
func (s *Store) DeleteWorkspace(taskID string) error {
	return s.withLock(func() error {
		delete(s.workspaces, taskID)
		return saveYAML(s.path("workspaces.yaml"), s.workspaces)
	})
}

// --- Repositories ---

// SaveRepository persists r.
func (s *Store) SaveRepository(r *model.RepositoryState) error {
	return s.withLock(func() error {
		cp := *r
		s.repos[r.ID] = &cp
		return saveYAML(s.path("repositories.yaml"), s.repos)
	})
}

// GetRepository returns the repository record for id, if any.
func (s *Store) GetRepository(id string) (*model.RepositoryState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.repos[id]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

var now = func() time.Time { return time.Now().UTC() }
