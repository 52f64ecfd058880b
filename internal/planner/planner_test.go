package planner

import (
	"context"
	"testing"
	"time"

	"github.com/taskfleet/taskfleet/internal/board"
	"github.com/taskfleet/taskfleet/internal/developer"
	"github.com/taskfleet/taskfleet/internal/gitlock"
	"github.com/taskfleet/taskfleet/internal/model"
	"github.com/taskfleet/taskfleet/internal/repocache"
	"github.com/taskfleet/taskfleet/internal/review"
	"github.com/taskfleet/taskfleet/internal/router"
	"github.com/taskfleet/taskfleet/internal/store"
	"github.com/taskfleet/taskfleet/internal/worker"
	"github.com/taskfleet/taskfleet/internal/workspace"
)

func TestParsePRReference(t *testing.T) {
	_, repo, number, ok := parsePRReference("https://github.com/acme/widgets#42")
	if !ok || repo != "acme/widgets" || number != 42 {
		t.Fatalf("got repo=%q number=%d ok=%v", repo, number, ok)
	}
}

func TestParsePRReferenceInvalid(t *testing.T) {
	if _, _, _, ok := parsePRReference("not a reference"); ok {
		t.Fatal("expected failure parsing a non-matching string")
	}
}

func newTestPlanner(t *testing.T, b *board.Mock, outputs []string) (*Planner, *store.Store) {
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
	r := router.New(pool, st, validator)

	reviewerFor := func(string) (review.Provider, error) { return review.NewMock(), nil }
	p := New(Config{BoardID: "board1", MonitoringPeriod: time.Hour}, b, r, st, reviewerFor)
	return p, st
}

func TestHandleNewTasksMovesAcceptedItemToInProgress(t *testing.T) {
	b := board.NewMock()
	b.Seed(model.BoardItem{ID: "1", Title: "fix bug"}, board.StatusTodo)
	p, _ := newTestPlanner(t, b, []string{"task complete"})

	if err := p.handleNewTasks(context.Background()); err != nil {
		t.Fatal(err)
	}
	status, ok := b.StatusOf("1")
	if !ok || status != board.StatusInProgress {
		t.Fatalf("expected item moved to in-progress, got %v ok=%v", status, ok)
	}
}

func TestHandleNewTasksSkipsAlreadyProcessed(t *testing.T) {
	b := board.NewMock()
	b.Seed(model.BoardItem{ID: "1"}, board.StatusTodo)
	p, _ := newTestPlanner(t, b, []string{"task complete"})
	p.markProcessed("1")

	if err := p.handleNewTasks(context.Background()); err != nil {
		t.Fatal(err)
	}
	status, _ := b.StatusOf("1")
	if status != board.StatusTodo {
		t.Fatalf("expected item untouched, got %v", status)
	}
}
