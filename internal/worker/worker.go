// Package worker runs the per-slot execution pipeline: claim a task,
// materialize its workspace, invoke the developer backend, parse the
// result, and persist the outcome — then idle until the next
// assignment or quarantine itself after repeated failures.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taskfleet/taskfleet/internal/developer"
	"github.com/taskfleet/taskfleet/internal/model"
	"github.com/taskfleet/taskfleet/internal/orcherr"
	"github.com/taskfleet/taskfleet/internal/resultparser"
	"github.com/taskfleet/taskfleet/internal/store"
	"github.com/taskfleet/taskfleet/internal/workspace"
)

// maxConsecutiveErrors quarantines a worker (STOPPED) once its run loop
// fails this many times in a row without an intervening success.
const maxConsecutiveErrors = 5

// allowedFrom lists, per task action, which worker statuses may accept
// it. Actions not present default to IDLE-only.
var allowedFrom = map[model.TaskAction][]model.WorkerStatus{
	model.ActionStartNewTask: {model.WorkerStatusIdle},
	model.ActionResumeTask: {
		model.WorkerStatusIdle, model.WorkerStatusWaiting,
		model.WorkerStatusError, model.WorkerStatusStopped,
	},
	model.ActionProcessFeedback: {model.WorkerStatusIdle, model.WorkerStatusWaiting, model.WorkerStatusError},
	model.ActionMergeRequest:    {model.WorkerStatusIdle, model.WorkerStatusWaiting, model.WorkerStatusError},
}

func statusAllowed(s model.WorkerStatus, action model.TaskAction) bool {
	allowed, ok := allowedFrom[action]
	if !ok {
		allowed = []model.WorkerStatus{model.WorkerStatusIdle}
	}
	for _, x := range allowed {
		if x == s {
			return true
		}
	}
	return false
}

// PromptBuilder renders the prompt to hand the developer backend for a
// given task action, e.g. "implement issue #42" vs "address review
// feedback: ...".
type PromptBuilder func(t *model.WorkerTask) (string, error)

// Worker is one pool slot: a long-lived goroutine that processes at
// most one task at a time.
type Worker struct {
	id      string
	kind    model.WorkerKind
	backend developer.Backend
	ws      *workspace.Manager
	st      *store.Store
	prompt  PromptBuilder

	mu             sync.Mutex
	status         model.WorkerStatus
	current        *model.WorkerTask
	reserved       bool
	workspaceDir   string
	developerKind  string
	consecutiveErr int
	lastError      string
	createdAt      time.Time
	lastActiveAt   time.Time

	assignCh chan *model.WorkerTask
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a worker in IDLE status and starts its run loop.
func New(id string, kind model.WorkerKind, backend developer.Backend, ws *workspace.Manager, st *store.Store, prompt PromptBuilder, developerKind string) *Worker {
	w := &Worker{
		id:            id,
		kind:          kind,
		backend:       backend,
		ws:            ws,
		st:            st,
		prompt:        prompt,
		developerKind: developerKind,
		status:        model.WorkerStatusIdle,
		createdAt:     time.Now().UTC(),
		assignCh:      make(chan *model.WorkerTask, 1),
		done:          make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.loop(ctx)
	w.persist()
	return w
}

// Restore reconstructs an in-memory Worker from a durable record left by
// a previous process. A record snapshotted mid-WORKING is assumed
// interrupted by the restart: it is demoted to ERROR so the pool
// housekeeper's retry sweep picks it back up rather than leaving it
// permanently stuck reporting work no goroutine is actually doing.
func Restore(rec *model.Worker, backend developer.Backend, ws *workspace.Manager, st *store.Store, prompt PromptBuilder) *Worker {
	status := rec.Status
	lastError := rec.LastError
	if status == model.WorkerStatusWorking {
		status = model.WorkerStatusError
		lastError = "interrupted by restart"
	}
	w := &Worker{
		id:             rec.ID,
		kind:           rec.WorkerKind,
		backend:        backend,
		ws:             ws,
		st:             st,
		prompt:         prompt,
		developerKind:  rec.DeveloperKind,
		workspaceDir:   rec.WorkspaceDir,
		status:         status,
		current:        rec.CurrentTask,
		consecutiveErr: rec.ConsecutiveErr,
		lastError:      lastError,
		createdAt:      rec.CreatedAt,
		lastActiveAt:   rec.LastActiveAt,
		assignCh:       make(chan *model.WorkerTask, 1),
		done:           make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.loop(ctx)
	w.persist()
	return w
}

// ID returns the worker's identifier.
func (w *Worker) ID() string { return w.id }

// Status returns the worker's current status.
func (w *Worker) Status() model.WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// CurrentTaskID returns the task id the worker is assigned to, if any.
func (w *Worker) CurrentTaskID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return ""
	}
	return w.current.TaskID
}

// ConsecutiveErrors returns the worker's current consecutive-failure
// count, used by the pool housekeeper to compute its retry backoff.
func (w *Worker) ConsecutiveErrors() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.consecutiveErr
}

// LastActiveAt returns the timestamp of the worker's last status
// transition into WORKING, used by the pool housekeeper to judge idle
// and backoff windows.
func (w *Worker) LastActiveAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActiveAt
}

// TryReserve atomically claims the worker for allocation if it is IDLE
// and not already reserved by a concurrent Allocate call. The pool must
// hold this reservation across its own lock so two callers can never be
// handed the same worker.
func (w *Worker) TryReserve() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != model.WorkerStatusIdle || w.reserved {
		return false
	}
	w.reserved = true
	return true
}

// ClearReservation drops a reservation that was never followed by an
// Assign call, e.g. because the caller errored out between Allocate and
// Assign.
func (w *Worker) ClearReservation() {
	w.mu.Lock()
	w.reserved = false
	w.mu.Unlock()
}

// Assign hands the worker a new task, if the worker's current status is
// one the action is allowed to start from.
func (w *Worker) Assign(t *model.WorkerTask) error {
	w.mu.Lock()
	if !statusAllowed(w.status, t.Action) {
		status := w.status
		w.reserved = false
		w.mu.Unlock()
		return orcherr.ErrWorkerBusy(w.id, string(status))
	}
	w.status = model.WorkerStatusWaiting
	w.current = t
	w.reserved = false
	w.mu.Unlock()

	select {
	case w.assignCh <- t:
		w.persist()
		return nil
	default:
		return orcherr.ErrWorkerBusy(w.id, "assignment channel full")
	}
}

// Stop cancels the worker's run loop and waits for it to exit.
func (w *Worker) Stop() {
	w.cancel()
	<-w.done
}

// Snapshot returns the durable model.Worker record reflecting current
// in-memory state, suitable for SaveWorker.
func (w *Worker) Snapshot() *model.Worker {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &model.Worker{
		ID:             w.id,
		Status:         w.status,
		WorkspaceDir:   w.workspaceDir,
		DeveloperKind:  w.developerKind,
		WorkerKind:     w.kind,
		CurrentTask:    w.current,
		CreatedAt:      w.createdAt,
		LastActiveAt:   w.lastActiveAt,
		ConsecutiveErr: w.consecutiveErr,
		LastError:      w.lastError,
	}
}

// persist writes the worker's current snapshot to the durable store.
// Called at every status transition so a restart can reconstruct the
// pool instead of starting from an empty workers.yaml.
func (w *Worker) persist() {
	if w.st == nil {
		return
	}
	if err := w.st.SaveWorker(w.Snapshot()); err != nil {
		slog.Warn("failed to persist worker snapshot", "worker", w.id, "error", err)
	}
}

func (w *Worker) setWorkspaceDir(dir string) {
	w.mu.Lock()
	w.workspaceDir = dir
	w.mu.Unlock()
}

// Unquarantine lifts a STOPPED worker once its recovery window has
// elapsed. A worker that still holds a task resumes as ERROR so the
// pool housekeeper's RetryNow sweep can retry it on its own backoff
// schedule; one with
// no held task goes straight back to IDLE.
func (w *Worker) Unquarantine() {
	w.mu.Lock()
	if w.status != model.WorkerStatusStopped {
		w.mu.Unlock()
		return
	}
	if w.current != nil {
		w.status = model.WorkerStatusError
	} else {
		w.status = model.WorkerStatusIdle
		w.consecutiveErr = 0
	}
	w.mu.Unlock()
	w.persist()
}

// RetryNow re-queues an ERROR worker's held task for immediate retry.
// It exists for workers reconstructed from disk (via Restore), which
// have no in-process scheduleRetry timer running; the pool housekeeper
// calls it once the worker's backoff window has elapsed.
func (w *Worker) RetryNow() {
	w.mu.Lock()
	if w.status != model.WorkerStatusError || w.current == nil {
		w.mu.Unlock()
		return
	}
	t := w.current
	w.status = model.WorkerStatusWaiting
	w.mu.Unlock()
	w.persist()

	select {
	case w.assignCh <- t:
	default:
	}
}

// scheduleRetry re-queues t once delay elapses, unless the worker's
// status has moved on (a fresh Assign, a Stop) in the meantime.
func (w *Worker) scheduleRetry(ctx context.Context, t *model.WorkerTask, delay time.Duration) {
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		w.mu.Lock()
		if w.status != model.WorkerStatusWaiting || w.current != t {
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()
		select {
		case w.assignCh <- t:
		default:
		}
	}()
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.status = model.WorkerStatusStopped
			w.mu.Unlock()
			w.persist()
			return
		case t := <-w.assignCh:
			w.execute(ctx, t)
		}
	}
}

func (w *Worker) execute(ctx context.Context, t *model.WorkerTask) {
	w.mu.Lock()
	w.status = model.WorkerStatusWorking
	w.lastActiveAt = time.Now().UTC()
	w.mu.Unlock()
	w.persist()

	result, err := w.runPipeline(ctx, t)

	if err != nil {
		w.mu.Lock()
		w.consecutiveErr++
		w.lastError = err.Error()
		consecutive := w.consecutiveErr
		kind := orcherr.Classify(err).Kind
		slog.Error("worker task execution failed",
			"worker", w.id, "task", t.TaskID, "error", err, "consecutive_errors", consecutive, "kind", kind)

		switch {
		case consecutive >= maxConsecutiveErrors:
			w.status = model.WorkerStatusStopped
		case kind == orcherr.KindPermanentExternal:
			// Retrying cannot fix this: clear the task so the worker goes
			// back to serving other work instead of quarantining itself.
			w.status = model.WorkerStatusIdle
			w.current = nil
		case kind.Retryable():
			w.status = model.WorkerStatusWaiting
		default:
			w.status = model.WorkerStatusError
		}
		newStatus := w.status
		w.mu.Unlock()
		w.persist()

		if newStatus == model.WorkerStatusWaiting {
			w.scheduleRetry(ctx, t, Backoff(consecutive))
		}
		return
	}

	w.mu.Lock()
	w.consecutiveErr = 0
	w.lastError = ""
	w.mu.Unlock()
	if result != nil && result.PullRequestURL != "" {
		if err := w.recordPullRequestURL(t.TaskID, result.PullRequestURL); err != nil {
			slog.Warn("failed to persist pull request url", "worker", w.id, "task", t.TaskID, "error", err)
		}
	}
	w.mu.Lock()
	w.status = model.WorkerStatusIdle
	w.current = nil
	w.mu.Unlock()
	w.persist()
}

// recordPullRequestURL stamps the task's durable record with the PR URL
// a successful pipeline run produced, so a later CHECK_STATUS can report
// it even after the worker has gone IDLE and forgotten its assignment.
func (w *Worker) recordPullRequestURL(taskID, prURL string) error {
	task, err := w.st.GetTask(taskID)
	if err != nil {
		return err
	}
	if task == nil {
		task = &model.Task{ID: taskID, Status: model.TaskStatusInReview, CreatedAt: time.Now().UTC()}
	}
	task.PullRequestURL = prURL
	task.UpdatedAt = time.Now().UTC()
	return w.st.SaveTask(task)
}

// runPipeline sets up the task's workspace, invokes the developer
// backend, and parses its output. It does not mutate worker state
// directly so it can be called from tests without the run loop.
func (w *Worker) runPipeline(ctx context.Context, t *model.WorkerTask) (*resultparser.Result, error) {
	info, ok := w.st.GetWorkspace(t.TaskID)
	if !ok {
		created, err := w.ws.CreateWorkspace(t.TaskID, t.RepositoryID, t.BoardItem)
		if err != nil {
			return nil, orcherr.Wrap(orcherr.KindCorruptedState, "create workspace", err)
		}
		info = created
	}
	w.setWorkspaceDir(info.WorkspaceDir)

	if !w.ws.IsWorktreeValid(info) {
		return nil, orcherr.New(orcherr.KindLogicalConflict, "workspace missing or invalid", info.WorkspaceDir)
	}

	prompt, err := w.prompt(t)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindPermanentExternal, "build prompt", err)
	}

	out, err := w.backend.ExecutePrompt(ctx, prompt, info.WorkspaceDir)
	if err != nil {
		return nil, err
	}

	result := resultparser.Parse(t.TaskID, out.RawOutput)
	if !result.Success {
		return result, orcherr.Classify(fmt.Errorf("developer backend reported failure: %s", result.ErrorMessage))
	}
	return result, nil
}
