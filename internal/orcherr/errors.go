// Package orcherr provides the structured error taxonomy used across the
// orchestrator: every failure surfaced to a caller carries a Kind so that
// worker retry logic, the router, and the planner can each decide what to
// do with it without parsing strings.
package orcherr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind classifies a failure for retry and surfacing decisions.
type Kind string

const (
	// KindTransientExternal covers network blips, rate limits, and other
	// failures expected to clear on their own. Retried with backoff.
	KindTransientExternal Kind = "transient_external"
	// KindPermanentExternal covers auth failures, missing resources, and
	// other failures retrying cannot fix.
	KindPermanentExternal Kind = "permanent_external"
	// KindLogicalConflict covers state-machine and assignment conflicts.
	KindLogicalConflict Kind = "logical_conflict"
	// KindResourceExhaustion covers pool-at-capacity conditions.
	KindResourceExhaustion Kind = "resource_exhaustion"
	// KindCorruptedState covers unreadable local durable state.
	KindCorruptedState Kind = "corrupted_state"
	// KindLockTimeout covers a git or store lock held past its deadline.
	KindLockTimeout Kind = "lock_timeout"
	// KindUnknown is the fallback for unclassified errors.
	KindUnknown Kind = "unknown"
)

// Retryable reports whether a failure of this kind should be retried by
// the worker's execution pipeline.
func (k Kind) Retryable() bool {
	return k == KindTransientExternal || k == KindLockTimeout
}

// Error is the structured error type threaded through the orchestrator.
type Error struct {
	Kind  Kind
	What  string
	Why   string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// MarshalJSON implements json.Marshaler, flattening Cause to a string.
func (e *Error) MarshalJSON() ([]byte, error) {
	aux := struct {
		Kind  Kind   `json:"kind"`
		What  string `json:"what"`
		Why   string `json:"why,omitempty"`
		Cause string `json:"cause,omitempty"`
	}{Kind: e.Kind, What: e.What, Why: e.Why}
	if e.Cause != nil {
		aux.Cause = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// New builds an *Error of the given kind.
func New(kind Kind, what string, why string) *Error {
	return &Error{Kind: kind, What: what, Why: why}
}

// Wrap builds an *Error of the given kind around a cause.
func Wrap(kind Kind, what string, cause error) *Error {
	return &Error{Kind: kind, What: what, Cause: cause}
}

// As extracts an *Error from err, unwrapping as needed.
func As(err error) (*Error, bool) {
	for err != nil {
		if oe, ok := err.(*Error); ok {
			return oe, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindUnknown if err is not (or does
// not wrap) an *Error.
func KindOf(err error) Kind {
	if oe, ok := As(err); ok {
		return oe.Kind
	}
	return KindUnknown
}

// Classify inspects a plain error's message for well-known phrases and
// assigns it a Kind, for errors returned by subprocesses and HTTP clients
// that are not already *Error values.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if oe, ok := As(err); ok {
		return oe
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "connection refused", "timeout", "timed out", "temporarily unavailable",
		"service unavailable", "internal server error", "502", "503", "504", "rate limit"):
		return Wrap(KindTransientExternal, "transient external failure", err)
	case containsAny(msg, "permission denied", "authentication failed", "invalid credentials",
		"unauthorized", "401", "403", "not found", "no such file"):
		return Wrap(KindPermanentExternal, "permanent external failure", err)
	default:
		return Wrap(KindUnknown, "unclassified failure", err)
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// --- Common constructors ---

// ErrTaskNotFound is returned when a task id has no durable record.
func ErrTaskNotFound(id string) *Error {
	return New(KindLogicalConflict, fmt.Sprintf("task %s not found", id), "no durable record for this task id")
}

// ErrWorkerBusy is returned when an action cannot be applied in the
// worker's current state.
func ErrWorkerBusy(workerID, status string) *Error {
	return New(KindLogicalConflict, fmt.Sprintf("worker %s is %s", workerID, status), "cannot accept this action in the current state")
}

// ErrPoolExhausted is returned when no worker slot is available.
func ErrPoolExhausted(max int) *Error {
	return New(KindResourceExhaustion, "worker pool at capacity", fmt.Sprintf("all %d slots in use", max))
}

// ErrLockTimeout is returned when a lock could not be acquired in time.
func ErrLockTimeout(resource string) *Error {
	return New(KindLockTimeout, fmt.Sprintf("timed out acquiring lock for %s", resource), "")
}

// ErrNoWorkspace is returned when reassignment is requested for a task
// with no resumable workspace and no idle-capable worker.
func ErrNoWorkspace(taskID string) *Error {
	return New(KindLogicalConflict, fmt.Sprintf("no workspace for task %s", taskID), "stateless workers cannot resume without a workspace")
}
