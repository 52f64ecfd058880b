// Package model defines the durable entities persisted by the state
// store: Task, Worker, WorkspaceInfo, and RepositoryState. These are the
// plain structs that flow between the planner, router, worker pool, and
// workspace manager — there is no generated wire format backing them,
// they are serialized directly to YAML.
package model

import "time"

// TaskStatus is the board-facing lifecycle status of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusInReview   TaskStatus = "IN_REVIEW"
	TaskStatusDone       TaskStatus = "DONE"
)

// Task is the durable record of a board item's progress through the
// pipeline. The board remains the source of truth for status; this
// record is a local cache plus the comment-dedup bookmark.
type Task struct {
	ID                  string     `yaml:"id"`
	Status              TaskStatus `yaml:"status"`
	PullRequestURL      string     `yaml:"pull_request_url,omitempty"`
	ProcessedCommentIDs []string   `yaml:"processed_comment_ids,omitempty"`
	CreatedAt           time.Time  `yaml:"created_at"`
	UpdatedAt           time.Time  `yaml:"updated_at"`
}

// HasProcessedComment reports whether a comment id has already been
// accounted for.
func (t *Task) HasProcessedComment(id string) bool {
	for _, c := range t.ProcessedCommentIDs {
		if c == id {
			return true
		}
	}
	return false
}

// MarkCommentsProcessed appends any ids not already recorded.
func (t *Task) MarkCommentsProcessed(ids ...string) {
	for _, id := range ids {
		if !t.HasProcessedComment(id) {
			t.ProcessedCommentIDs = append(t.ProcessedCommentIDs, id)
		}
	}
}

// WorkerStatus is the durable lifecycle status of a worker.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "IDLE"
	WorkerStatusWaiting WorkerStatus = "WAITING"
	WorkerStatusWorking WorkerStatus = "WORKING"
	WorkerStatusStopped WorkerStatus = "STOPPED"
	WorkerStatusError   WorkerStatus = "ERROR"
)

// TaskAction is the tagged action a WorkerTask carries.
type TaskAction string

const (
	ActionStartNewTask   TaskAction = "START_NEW_TASK"
	ActionResumeTask     TaskAction = "RESUME_TASK"
	ActionCheckStatus    TaskAction = "CHECK_STATUS"
	ActionProcessFeedback TaskAction = "PROCESS_FEEDBACK"
	ActionRequestMerge   TaskAction = "REQUEST_MERGE"
	ActionMergeRequest   TaskAction = "MERGE_REQUEST"
	ActionReleaseWorker  TaskAction = "RELEASE_WORKER"
)

// WorkerKind distinguishes pool workers (returned to IDLE on release)
// from temporary workers (evicted on release).
type WorkerKind string

const (
	WorkerKindPool      WorkerKind = "pool"
	WorkerKindTemporary WorkerKind = "temporary"
)

// BoardItem is the minimal projection of a board item the pipeline needs.
type BoardItem struct {
	ID           string
	Title        string
	ContentType  string // e.g. "issue" or "pr", when the board exposes it
	ContentNumber int
	Labels       []string
}

// WorkerTask is the transient task assignment held by a worker while it
// processes one action. It is embedded in Worker for durability of the
// minimum fields needed to resume after a restart.
type WorkerTask struct {
	TaskID         string     `yaml:"task_id"`
	Action         TaskAction `yaml:"action"`
	BoardItem      *BoardItem `yaml:"-"`
	PullRequestURL string     `yaml:"pull_request_url,omitempty"`
	Comments       []string   `yaml:"-"`
	RepositoryID   string     `yaml:"repository_id"`
	AssignedAt     time.Time  `yaml:"assigned_at"`
	LastSyncTime   *time.Time `yaml:"last_sync_time,omitempty"`
}

// Worker is the durable record of one pool slot.
type Worker struct {
	ID             string       `yaml:"id"`
	Status         WorkerStatus `yaml:"status"`
	WorkspaceDir   string       `yaml:"workspace_dir,omitempty"`
	DeveloperKind  string       `yaml:"developer_kind"`
	WorkerKind     WorkerKind   `yaml:"worker_kind"`
	CurrentTask    *WorkerTask  `yaml:"current_task,omitempty"`
	CreatedAt      time.Time    `yaml:"created_at"`
	LastActiveAt   time.Time    `yaml:"last_active_at"`
	ErrorCount     int          `yaml:"error_count"`
	ConsecutiveErr int          `yaml:"consecutive_errors"`
	LastError      string       `yaml:"last_error,omitempty"`
}

// WorkspaceInfo is the durable record of a task's isolated working tree.
type WorkspaceInfo struct {
	TaskID              string    `yaml:"task_id"`
	RepositoryID        string    `yaml:"repository_id"`
	WorkspaceDir        string    `yaml:"workspace_dir"`
	BranchName          string    `yaml:"branch_name"`
	WorktreeCreated     bool      `yaml:"worktree_created"`
	InstructionFilePath string    `yaml:"instruction_file_path"`
	CreatedAt           time.Time `yaml:"created_at"`
}

// RepositoryState is the durable record of a shared local clone.
type RepositoryState struct {
	ID              string    `yaml:"id"`
	LocalPath       string    `yaml:"local_path"`
	LastFetchAt     time.Time `yaml:"last_fetch_at"`
	IsCloned        bool      `yaml:"is_cloned"`
	ActiveWorktrees []string  `yaml:"active_worktrees,omitempty"`
}

// HasWorktree reports whether path is already tracked as active.
func (r *RepositoryState) HasWorktree(path string) bool {
	for _, p := range r.ActiveWorktrees {
		if p == path {
			return true
		}
	}
	return false
}

// AddWorktree records path as active, if not already present.
func (r *RepositoryState) AddWorktree(path string) {
	if !r.HasWorktree(path) {
		r.ActiveWorktrees = append(r.ActiveWorktrees, path)
	}
}

// RemoveWorktree drops path from the active set.
func (r *RepositoryState) RemoveWorktree(path string) {
	out := r.ActiveWorktrees[:0]
	for _, p := range r.ActiveWorktrees {
		if p != path {
			out = append(out, p)
		}
	}
	r.ActiveWorktrees = out
}
