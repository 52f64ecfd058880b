// Package gitlock provides per-repository mutual exclusion for git
// operations. Two workers touching different repositories proceed fully
// in parallel; two workers touching the same repository are serialized.
package gitlock

import (
	"sync"
	"time"

	"github.com/taskfleet/taskfleet/internal/orcherr"
)

// DefaultTimeout bounds how long WithLock waits to acquire a repository's
// lock before giving up with a LockTimeout error.
const DefaultTimeout = 5 * time.Minute

// Registry is a singleton-style map of repository id to a semaphore-style
// lock, created lazily on first use.
type Registry struct {
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// New creates a registry with the default acquire timeout.
func New() *Registry {
	return &Registry{timeout: DefaultTimeout, locks: map[string]chan struct{}{}}
}

// WithTimeout overrides the acquire timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

func (r *Registry) chanFor(repoID string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.locks[repoID]
	if !ok {
		ch = make(chan struct{}, 1)
		r.locks[repoID] = ch
	}
	return ch
}

// WithLock runs fn with exclusive access to repoID's lock, releasing on
// any exit path (including fn panicking or erroring). operationLabel is
// carried only for the lock-timeout error message.
func (r *Registry) WithLock(repoID, operationLabel string, fn func() error) error {
	ch := r.chanFor(repoID)
	select {
	case ch <- struct{}{}:
	case <-time.After(r.timeout):
		return orcherr.ErrLockTimeout(repoID + ":" + operationLabel)
	}
	defer func() { <-ch }()
	return fn()
}
