// Package router is the single entry point that dispatches a tagged
// task-request action against the worker pool: start a fresh task,
// check on one already running, feed it review comments, ask it to
// merge, or release its worker back to the pool.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskfleet/taskfleet/internal/model"
	"github.com/taskfleet/taskfleet/internal/store"
	"github.com/taskfleet/taskfleet/internal/worker"
	"github.com/taskfleet/taskfleet/internal/workspace"
)

// ResponseStatus is the router's reply status for a dispatched request.
type ResponseStatus string

const (
	StatusAccepted   ResponseStatus = "ACCEPTED"
	StatusRejected   ResponseStatus = "REJECTED"
	StatusError      ResponseStatus = "ERROR"
	StatusCompleted  ResponseStatus = "COMPLETED"
	StatusInProgress ResponseStatus = "IN_PROGRESS"
)

// MsgNoWorkerAvailable is the rejection message used whenever pool
// exhaustion is the reason a request couldn't be dispatched. Callers
// (the planner, in particular) key off this exact string to tell a
// transient capacity rejection apart from a permanent one.
const MsgNoWorkerAvailable = "no worker available"

// Request is one tagged action dispatched against a task.
type Request struct {
	TaskID         string
	Action         model.TaskAction
	BoardItem      *model.BoardItem
	RepositoryID   string
	PullRequestURL string
	Comments       []string
}

// Response is the router's reply.
type Response struct {
	TaskID         string
	Status         ResponseStatus
	Message        string
	PullRequestURL string
	WorkerStatus   model.WorkerStatus
}

// Router dispatches task requests against the worker pool.
type Router struct {
	pool      *worker.Pool
	st        *store.Store
	validator *workspace.Validator
}

// New creates a Router over pool, backed by st for task-to-worker
// lookups and validator for reassignment decisions.
func New(pool *worker.Pool, st *store.Store, validator *workspace.Validator) *Router {
	return &Router{pool: pool, st: st, validator: validator}
}

// Dispatch routes req to the appropriate handler.
func (r *Router) Dispatch(ctx context.Context, req Request) Response {
	switch req.Action {
	case model.ActionStartNewTask:
		return r.startNewTask(ctx, req)
	case model.ActionCheckStatus:
		return r.checkStatus(ctx, req)
	case model.ActionProcessFeedback:
		return r.processFeedback(ctx, req)
	case model.ActionRequestMerge:
		return r.requestMerge(ctx, req)
	case model.ActionReleaseWorker:
		return r.releaseWorker(req)
	default:
		return Response{TaskID: req.TaskID, Status: StatusError, Message: fmt.Sprintf("unknown action %q", req.Action)}
	}
}

func (r *Router) findWorkerForTask(taskID string) (*worker.Worker, bool) {
	for _, w := range r.pool.All() {
		if w.CurrentTaskID() == taskID {
			return w, true
		}
	}
	return nil, false
}

func (r *Router) startNewTask(ctx context.Context, req Request) Response {
	w, err := r.pool.Allocate()
	if err != nil {
		return Response{TaskID: req.TaskID, Status: StatusRejected, Message: MsgNoWorkerAvailable}
	}
	task := &model.WorkerTask{
		TaskID:       req.TaskID,
		Action:       model.ActionStartNewTask,
		BoardItem:    req.BoardItem,
		RepositoryID: req.RepositoryID,
		AssignedAt:   time.Now().UTC(),
	}
	if err := w.Assign(task); err != nil {
		return Response{TaskID: req.TaskID, Status: StatusRejected, Message: err.Error()}
	}
	return Response{TaskID: req.TaskID, Status: StatusAccepted, WorkerStatus: w.Status()}
}

func (r *Router) checkStatus(ctx context.Context, req Request) Response {
	w, found := r.findWorkerForTask(req.TaskID)
	if !found {
		return r.reassign(ctx, req)
	}

	switch w.Status() {
	case model.WorkerStatusWorking:
		return Response{TaskID: req.TaskID, Status: StatusInProgress, WorkerStatus: w.Status()}
	case model.WorkerStatusStopped:
		task := &model.WorkerTask{TaskID: req.TaskID, Action: model.ActionResumeTask, RepositoryID: req.RepositoryID, AssignedAt: time.Now().UTC()}
		if err := w.Assign(task); err != nil {
			return Response{TaskID: req.TaskID, Status: StatusError, Message: err.Error()}
		}
		return Response{TaskID: req.TaskID, Status: StatusAccepted, WorkerStatus: w.Status()}
	case model.WorkerStatusIdle:
		resp := Response{TaskID: req.TaskID, Status: StatusCompleted, WorkerStatus: w.Status()}
		if task, err := r.st.GetTask(req.TaskID); err == nil && task != nil {
			resp.PullRequestURL = task.PullRequestURL
		}
		return resp
	default:
		return Response{TaskID: req.TaskID, Status: StatusInProgress, WorkerStatus: w.Status()}
	}
}

func (r *Router) reassign(ctx context.Context, req Request) Response {
	decision := r.validator.Validate(req.TaskID)
	if decision == workspace.DecisionNoWorkspace {
		return Response{TaskID: req.TaskID, Status: StatusError, Message: "no workspace and no active worker: cannot resume"}
	}

	w, err := r.pool.Allocate()
	if err != nil {
		return Response{TaskID: req.TaskID, Status: StatusRejected, Message: MsgNoWorkerAvailable}
	}
	task := &model.WorkerTask{TaskID: req.TaskID, Action: model.ActionResumeTask, RepositoryID: req.RepositoryID, AssignedAt: time.Now().UTC()}
	if err := w.Assign(task); err != nil {
		return Response{TaskID: req.TaskID, Status: StatusError, Message: err.Error()}
	}
	return Response{TaskID: req.TaskID, Status: StatusAccepted, WorkerStatus: w.Status()}
}

func (r *Router) processFeedback(ctx context.Context, req Request) Response {
	w, found := r.findWorkerForTask(req.TaskID)
	if !found {
		var err error
		w, err = r.pool.Allocate()
		if err != nil {
			return Response{TaskID: req.TaskID, Status: StatusRejected, Message: MsgNoWorkerAvailable}
		}
	}
	task := &model.WorkerTask{
		TaskID:       req.TaskID,
		Action:       model.ActionProcessFeedback,
		RepositoryID: req.RepositoryID,
		Comments:     req.Comments,
		AssignedAt:   time.Now().UTC(),
	}
	if err := w.Assign(task); err != nil {
		return Response{TaskID: req.TaskID, Status: StatusRejected, Message: err.Error()}
	}
	return Response{TaskID: req.TaskID, Status: StatusAccepted, WorkerStatus: w.Status()}
}

func (r *Router) requestMerge(ctx context.Context, req Request) Response {
	w, found := r.findWorkerForTask(req.TaskID)
	if found && w.Status() == model.WorkerStatusWorking {
		return Response{TaskID: req.TaskID, Status: StatusRejected, Message: "already processing"}
	}
	if !found {
		var err error
		w, err = r.pool.Allocate()
		if err != nil {
			return Response{TaskID: req.TaskID, Status: StatusRejected, Message: MsgNoWorkerAvailable}
		}
	}
	task := &model.WorkerTask{
		TaskID:         req.TaskID,
		Action:         model.ActionMergeRequest,
		RepositoryID:   req.RepositoryID,
		PullRequestURL: req.PullRequestURL,
		AssignedAt:     time.Now().UTC(),
	}
	if err := w.Assign(task); err != nil {
		return Response{TaskID: req.TaskID, Status: StatusRejected, Message: err.Error()}
	}
	slog.Debug("merge requested", "task", req.TaskID, "worker", w.ID())
	// The worker itself transitions back to IDLE and drops the task on
	// pipeline success. On failure its next status follows the worker's
	// error handling: WAITING with a scheduled retry, IDLE with the task
	// cleared for a permanent error, STOPPED once quarantined, or ERROR.
	return Response{TaskID: req.TaskID, Status: StatusAccepted, WorkerStatus: w.Status()}
}

func (r *Router) releaseWorker(req Request) Response {
	w, found := r.findWorkerForTask(req.TaskID)
	if found {
		r.pool.Release(w.ID())
	}
	return Response{TaskID: req.TaskID, Status: StatusAccepted}
}
