package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taskfleet/taskfleet/internal/developer"
	"github.com/taskfleet/taskfleet/internal/model"
	"github.com/taskfleet/taskfleet/internal/orcherr"
	"github.com/taskfleet/taskfleet/internal/store"
	"github.com/taskfleet/taskfleet/internal/workspace"
)

// PoolConfig bounds the pool's size and idle-eviction behavior.
type PoolConfig struct {
	MinWorkers  int
	MaxWorkers  int
	IdleTimeout time.Duration
	// DeveloperKind is stamped onto every spawned worker's durable
	// record (config.Developer.Kind), so a restart can tell which
	// backend a restored worker was using without re-deriving it.
	DeveloperKind string
}

// DefaultPoolConfig mirrors the orchestrator's historical single-digit
// worker counts, scaled up for a board-driven fleet.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MinWorkers: 1, MaxWorkers: 8, IdleTimeout: 30 * time.Minute}
}

// Pool owns a bounded set of Workers and allocates them to tasks.
type Pool struct {
	cfg     PoolConfig
	backend func() developer.Backend
	ws      *workspace.Manager
	st      *store.Store
	prompt  PromptBuilder

	mu      sync.Mutex
	workers map[string]*Worker
}

// NewPool reconstructs whatever pool workers the durable store still
// remembers from a previous process (see initializePool), then tops the
// pool up to cfg.MinWorkers idle workers.
// backendFactory is called once per worker so each gets its own Backend
// instance (important for the CLI-backed developer, which tracks a
// resolved binary path per process).
func NewPool(cfg PoolConfig, backendFactory func() developer.Backend, ws *workspace.Manager, st *store.Store, prompt PromptBuilder) *Pool {
	p := &Pool{
		cfg:     cfg,
		backend: backendFactory,
		ws:      ws,
		st:      st,
		prompt:  prompt,
		workers: make(map[string]*Worker),
	}
	p.initializePool()

	p.mu.Lock()
	have := len(p.workers)
	p.mu.Unlock()
	for i := have; i < cfg.MinWorkers; i++ {
		p.spawn(model.WorkerKindPool)
	}
	return p
}

// initializePool restores in-memory workers from the durable store at
// startup. Temporary workers never survive a restart — their workspaces
// were scoped to the process that spawned them — so their stale records
// are purged outright; pool workers are reconstructed via Restore so a
// crash mid-task doesn't silently drop the worker's durable record.
func (p *Pool) initializePool() {
	for _, rec := range p.st.GetAllWorkers() {
		if rec.WorkerKind == model.WorkerKindTemporary {
			if err := p.st.DeleteWorker(rec.ID); err != nil {
				slog.Warn("failed to purge stale temporary worker record", "worker", rec.ID, "error", err)
			}
			continue
		}
		w := Restore(rec, p.backend(), p.ws, p.st, p.prompt)
		p.mu.Lock()
		p.workers[w.ID()] = w
		p.mu.Unlock()
	}
}

// spawn creates and registers a new worker.
func (p *Pool) spawn(kind model.WorkerKind) *Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spawnLocked(kind)
}

// spawnLocked is spawn's body; callers must already hold p.mu, which
// Allocate needs to do across its whole check-or-spawn sequence.
func (p *Pool) spawnLocked(kind model.WorkerKind) *Worker {
	// uuid rather than a sequence counter: the pool's in-memory sequence
	// resets to zero on every process restart, but worker ids must stay
	// unique against whatever the durable store still remembers from the
	// previous run.
	id := fmt.Sprintf("worker-%s", uuid.NewString())
	w := New(id, kind, p.backend(), p.ws, p.st, p.prompt, p.cfg.DeveloperKind)
	p.workers[id] = w
	return w
}

// Allocate returns an IDLE worker, spawning a temporary one above
// MinWorkers (up to MaxWorkers) if none is free. The entire
// select-or-spawn sequence runs under p.mu and the chosen worker is
// reserved before the lock is released, so two concurrent callers can
// never be handed the same worker and two concurrent spawns can never
// push the pool past MaxWorkers.
func (p *Pool) Allocate() (*Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.workers {
		if w.TryReserve() {
			return w, nil
		}
	}
	if len(p.workers) >= p.cfg.MaxWorkers {
		return nil, orcherr.ErrPoolExhausted(p.cfg.MaxWorkers)
	}
	return p.spawnLocked(model.WorkerKindTemporary), nil
}

// Release returns a pool worker to IDLE, or evicts a temporary one.
func (p *Pool) Release(workerID string) {
	p.mu.Lock()
	w, ok := p.workers[workerID]
	if !ok {
		p.mu.Unlock()
		return
	}
	kind := w.kind
	p.mu.Unlock()

	if kind == model.WorkerKindTemporary {
		w.Stop()
		p.mu.Lock()
		delete(p.workers, workerID)
		p.mu.Unlock()
		if err := p.st.DeleteWorker(workerID); err != nil {
			slog.Warn("failed to delete released temporary worker record", "worker", workerID, "error", err)
		}
		return
	}
	// A pool worker that was reserved via Allocate but never actually
	// Assigned (the caller errored out in between) would otherwise stay
	// reserved forever.
	w.ClearReservation()
}

// Get returns a worker by id.
func (p *Pool) Get(workerID string) (*Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[workerID]
	return w, ok
}

// All returns a snapshot slice of every worker currently in the pool.
func (p *Pool) All() []*Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w)
	}
	return out
}

// Shutdown stops every worker concurrently and waits for all to exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	workers := p.All()
	g, _ := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			w.Stop()
			return nil
		})
	}
	return g.Wait()
}

// RunHousekeeper evicts idle temporary workers, un-quarantines STOPPED
// pool workers once their recovery window has elapsed, retries ERROR
// workers once their backoff window has elapsed, and prunes stale IDLE
// worker records from the durable store — looping every tick until ctx
// is cancelled.
func (p *Pool) RunHousekeeper(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.houseKeep()
		}
	}
}

func (p *Pool) houseKeep() {
	for _, w := range p.All() {
		switch w.Status() {
		case model.WorkerStatusIdle:
			if w.kind == model.WorkerKindTemporary && !w.LastActiveAt().IsZero() &&
				time.Since(w.LastActiveAt()) > p.cfg.IdleTimeout {
				p.Release(w.id)
			}
		case model.WorkerStatusStopped:
			if time.Since(w.LastActiveAt()) > Backoff(maxConsecutiveErrors) {
				w.Unquarantine()
			}
		case model.WorkerStatusError:
			if time.Since(w.LastActiveAt()) > Backoff(w.ConsecutiveErrors()) {
				w.RetryNow()
			}
		}
	}

	removed, err := p.st.CleanupIdleWorkers(p.cfg.IdleTimeout)
	if err != nil {
		slog.Warn("failed to clean up idle worker records", "error", err)
	} else if len(removed) > 0 {
		slog.Debug("cleaned up stale idle worker records", "count", len(removed))
	}
}

// Backoff returns the exponential backoff delay before a worker's
// consecutiveErr-th retry: min(30*2^(k-1), 300) seconds.
func Backoff(consecutiveErr int) time.Duration {
	if consecutiveErr <= 0 {
		return 0
	}
	seconds := 30 * (1 << uint(consecutiveErr-1))
	if seconds > 300 {
		seconds = 300
	}
	return time.Duration(seconds) * time.Second
}
