// Package planner runs the periodic board-polling cycle: pull new
// board items into the pipeline, check on tasks already in progress,
// and shepherd in-review tasks through approval and merge.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskfleet/taskfleet/internal/board"
	"github.com/taskfleet/taskfleet/internal/model"
	"github.com/taskfleet/taskfleet/internal/review"
	"github.com/taskfleet/taskfleet/internal/router"
	"github.com/taskfleet/taskfleet/internal/store"
)

// maxErrorRingSize is the cap on the planner's in-memory cycle-error
// ring before it is trimmed back down to trimmedErrorRingSize.
const (
	maxErrorRingSize     = 100
	trimmedErrorRingSize = 50
	defaultCommentWindow = 7 * 24 * time.Hour
	reviewFanOut         = 4
)

var prURLRef = regexp.MustCompile(`([^/]+/[^/]+)(?:/pull/|#)(\d+)`)

// Config configures one planner instance.
type Config struct {
	BoardID          string
	MonitoringPeriod time.Duration
}

// Planner owns the board-polling cycle for one board.
type Planner struct {
	cfg    Config
	board  board.Provider
	router *router.Router
	st     *store.Store
	// reviewProviderFor resolves the review.Provider for a task, given
	// its repository id — distinct repositories may live on different
	// hosting providers.
	reviewProviderFor func(repositoryID string) (review.Provider, error)

	mu         sync.Mutex
	lastSync   time.Time
	errorRing  []string
	processed  map[string]bool // board item ids already dispatched at least once
}

// New creates a Planner for cfg's board.
func New(cfg Config, b board.Provider, r *router.Router, st *store.Store, reviewProviderFor func(string) (review.Provider, error)) *Planner {
	if cfg.MonitoringPeriod <= 0 {
		cfg.MonitoringPeriod = time.Minute
	}
	return &Planner{
		cfg:               cfg,
		board:             b,
		router:            r,
		st:                st,
		reviewProviderFor: reviewProviderFor,
		lastSync:          time.Now().UTC(),
		processed:         make(map[string]bool),
	}
}

// StartMonitoring hydrates in-memory state from the board's current
// DONE/IN_PROGRESS/IN_REVIEW items, then runs one cycle per
// MonitoringPeriod tick until ctx is cancelled.
func (p *Planner) StartMonitoring(ctx context.Context) error {
	if err := p.hydrate(ctx); err != nil {
		return fmt.Errorf("hydrate planner state: %w", err)
	}

	ticker := time.NewTicker(p.cfg.MonitoringPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

func (p *Planner) hydrate(ctx context.Context) error {
	for _, status := range []board.Status{board.StatusDone, board.StatusInProgress, board.StatusInReview} {
		items, err := p.board.GetItems(ctx, p.cfg.BoardID, status)
		if err != nil {
			return err
		}
		p.mu.Lock()
		for _, item := range items {
			p.processed[item.ID] = true
		}
		p.mu.Unlock()
	}
	return nil
}

// runCycle runs one handleNewTasks/handleInProgressTasks/
// handleReviewTasks pass, recording any error on the ring without
// aborting the remaining phases.
func (p *Planner) runCycle(ctx context.Context) {
	if err := p.handleNewTasks(ctx); err != nil {
		p.recordError(fmt.Errorf("handle new tasks: %w", err))
	}
	if err := p.handleInProgressTasks(ctx); err != nil {
		p.recordError(fmt.Errorf("handle in-progress tasks: %w", err))
	}
	if err := p.handleReviewTasks(ctx); err != nil {
		p.recordError(fmt.Errorf("handle review tasks: %w", err))
	}

	p.mu.Lock()
	p.lastSync = time.Now().UTC()
	p.mu.Unlock()
}

func (p *Planner) recordError(err error) {
	slog.Error("planner cycle error", "error", err)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorRing = append(p.errorRing, err.Error())
	if len(p.errorRing) > maxErrorRingSize {
		p.errorRing = append([]string{}, p.errorRing[len(p.errorRing)-trimmedErrorRingSize:]...)
	}
}

// Errors returns a copy of the planner's recent cycle-error ring.
func (p *Planner) Errors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.errorRing))
	copy(out, p.errorRing)
	return out
}

func (p *Planner) alreadyProcessed(itemID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed[itemID]
}

func (p *Planner) markProcessed(itemID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed[itemID] = true
}

// handleNewTasks dispatches START_NEW_TASK for every unseen TODO item.
func (p *Planner) handleNewTasks(ctx context.Context) error {
	items, err := p.board.GetItems(ctx, p.cfg.BoardID, board.StatusTodo)
	if err != nil {
		return err
	}
	for _, item := range items {
		if p.alreadyProcessed(item.ID) {
			continue
		}
		resp := p.router.Dispatch(ctx, router.Request{
			TaskID:    item.ID,
			Action:    model.ActionStartNewTask,
			BoardItem: &item,
		})
		if resp.Status == router.StatusAccepted {
			if err := p.board.UpdateItemStatus(ctx, item.ID, board.StatusInProgress); err != nil {
				slog.Warn("failed to move item to in-progress", "item", item.ID, "error", err)
				continue
			}
			// Read-after-write: confirm the move stuck before marking
			// processed, so a board-side failure gets retried next cycle.
			verify, err := p.board.GetItems(ctx, p.cfg.BoardID, board.StatusInProgress)
			if err != nil || !containsItem(verify, item.ID) {
				slog.Warn("board status update did not stick", "item", item.ID)
				continue
			}
		} else if resp.Status == router.StatusRejected && resp.Message == router.MsgNoWorkerAvailable {
			// Pool exhaustion is transient: leave it unprocessed so it gets
			// retried once a worker frees up, instead of being abandoned
			// for the rest of this board's lifetime.
			continue
		}
		// Any other REJECTED is also marked processed: a persistently
		// unassignable item should not be retried every cycle.
		p.markProcessed(item.ID)
	}
	return nil
}

func containsItem(items []model.BoardItem, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

// handleInProgressTasks polls CHECK_STATUS for every IN_PROGRESS item.
func (p *Planner) handleInProgressTasks(ctx context.Context) error {
	items, err := p.board.GetItems(ctx, p.cfg.BoardID, board.StatusInProgress)
	if err != nil {
		return err
	}
	for _, item := range items {
		resp := p.router.Dispatch(ctx, router.Request{TaskID: item.ID, Action: model.ActionCheckStatus})
		switch resp.Status {
		case router.StatusCompleted:
			if resp.PullRequestURL == "" {
				continue
			}
			if err := p.board.UpdateItemStatus(ctx, item.ID, board.StatusInReview); err != nil {
				slog.Warn("failed to move item to in-review", "item", item.ID, "error", err)
				continue
			}
			if err := p.board.AddPullRequestToItem(ctx, item.ID, resp.PullRequestURL); err != nil {
				slog.Warn("failed to attach PR url", "item", item.ID, "error", err)
			}
		case router.StatusError:
			slog.Error("task in progress reported error", "item", item.ID, "message", resp.Message)
		}
	}
	return nil
}

// handleReviewTasks fans out over IN_REVIEW items with bounded
// concurrency, advancing each toward merge or requesting fresh feedback.
func (p *Planner) handleReviewTasks(ctx context.Context) error {
	items, err := p.board.GetItems(ctx, p.cfg.BoardID, board.StatusInReview)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reviewFanOut)
	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := p.handleReviewItem(gctx, item); err != nil {
				p.recordError(fmt.Errorf("review item %s: %w", item.ID, err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Planner) handleReviewItem(ctx context.Context, item model.BoardItem) error {
	task, err := p.st.GetTask(item.ID)
	if err != nil || task == nil {
		return fmt.Errorf("no local task record for %s", item.ID)
	}

	prURL, ok := p.currentPullRequestURL(item.ID)
	if !ok {
		return nil
	}

	repositoryID, _, number, ok := parsePRReference(prURL)
	if !ok {
		return fmt.Errorf("cannot parse PR reference from %q", prURL)
	}

	reviewer, err := p.reviewProviderFor(repositoryID)
	if err != nil {
		return err
	}

	pr, err := reviewer.GetPullRequest(ctx, number)
	if err != nil {
		return err
	}

	if pr.Status == review.StatusMerged {
		if err := p.board.UpdateItemStatus(ctx, item.ID, board.StatusDone); err != nil {
			return err
		}
		p.router.Dispatch(ctx, router.Request{TaskID: item.ID, Action: model.ActionReleaseWorker})
		return nil
	}

	approved, err := reviewer.IsApproved(ctx, number)
	if err != nil {
		return err
	}
	if approved {
		p.router.Dispatch(ctx, router.Request{TaskID: item.ID, Action: model.ActionRequestMerge, PullRequestURL: prURL})
		return nil
	}

	since := defaultCommentWindow
	last, err := p.st.GetTaskLastSyncTime(item.ID)
	if err == nil && last != nil {
		since = time.Since(*last)
	}
	comments, err := reviewer.GetNewComments(ctx, number, time.Now().Add(-since), review.DefaultFilterOptions())
	if err != nil {
		return err
	}
	if len(comments) == 0 {
		return nil
	}

	var bodies, ids []string
	for _, c := range comments {
		if task.HasProcessedComment(c.ID) {
			continue
		}
		bodies = append(bodies, c.Body)
		ids = append(ids, c.ID)
	}
	if len(bodies) == 0 {
		return nil
	}

	resp := p.router.Dispatch(ctx, router.Request{TaskID: item.ID, Action: model.ActionProcessFeedback, Comments: bodies})
	if resp.Status == router.StatusAccepted {
		if err := p.st.AddProcessedCommentsToTask(item.ID, ids); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) currentPullRequestURL(taskID string) (string, bool) {
	task, err := p.st.GetTask(taskID)
	if err != nil || task == nil || task.PullRequestURL == "" {
		return "", false
	}
	return task.PullRequestURL, true
}

// parsePRReference extracts "owner/repo" and the PR number from a PR
// URL recorded on the board item (".../owner/repo/pull/N" or
// "owner/repo#N").
func parsePRReference(prURL string) (owner, repo string, number int, ok bool) {
	m := prURLRef.FindStringSubmatch(prURL)
	if m == nil {
		return "", "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", "", 0, false
	}
	return m[1], m[1], n, true
}
