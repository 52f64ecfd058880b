package router

import (
	"context"
	"testing"
	"time"

	"github.com/taskfleet/taskfleet/internal/developer"
	"github.com/taskfleet/taskfleet/internal/gitlock"
	"github.com/taskfleet/taskfleet/internal/model"
	"github.com/taskfleet/taskfleet/internal/repocache"
	"github.com/taskfleet/taskfleet/internal/store"
	"github.com/taskfleet/taskfleet/internal/worker"
	"github.com/taskfleet/taskfleet/internal/workspace"
)

func newTestRouter(t *testing.T, outputs []string) *Router {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(dir + "/state")
	if err != nil {
		t.Fatal(err)
	}
	locks := gitlock.New()
	cache := repocache.New(dir+"/cache", st, locks, time.Hour)
	ws := workspace.New(dir+"/workspaces", st, cache, locks)
	validator := workspace.NewValidator(ws)

	prompt := func(wt *model.WorkerTask) (string, error) { return "go", nil }
	pool := worker.NewPool(worker.PoolConfig{MinWorkers: 1, MaxWorkers: 2, IdleTimeout: time.Hour},
		func() developer.Backend { return &developer.Mock{Outputs: outputs} }, ws, st, prompt)

	return New(pool, st, validator)
}

func TestStartNewTaskAccepted(t *testing.T) {
	r := newTestRouter(t, []string{"task complete"})
	resp := r.Dispatch(context.Background(), Request{
		TaskID:       "t1",
		Action:       model.ActionStartNewTask,
		RepositoryID: "repo1",
		BoardItem:    &model.BoardItem{ID: "1"},
	})
	if resp.Status != StatusAccepted {
		t.Fatalf("expected accepted, got %+v", resp)
	}
}

func TestCheckStatusMissWithNoWorkspaceErrors(t *testing.T) {
	r := newTestRouter(t, []string{"task complete"})
	resp := r.Dispatch(context.Background(), Request{TaskID: "unknown", Action: model.ActionCheckStatus})
	if resp.Status != StatusError {
		t.Fatalf("expected error for unresumable task, got %+v", resp)
	}
}

func TestUnknownActionIsError(t *testing.T) {
	r := newTestRouter(t, []string{"task complete"})
	resp := r.Dispatch(context.Background(), Request{TaskID: "t1", Action: "BOGUS"})
	if resp.Status != StatusError {
		t.Fatalf("expected error, got %+v", resp)
	}
}

func TestReleaseWorkerIsIdempotent(t *testing.T) {
	r := newTestRouter(t, []string{"task complete"})
	resp := r.Dispatch(context.Background(), Request{TaskID: "never-assigned", Action: model.ActionReleaseWorker})
	if resp.Status != StatusAccepted {
		t.Fatalf("expected accepted even for unknown task, got %+v", resp)
	}
}
