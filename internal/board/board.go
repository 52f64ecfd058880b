// Package board adapts the project-management backend (Jira or GitHub
// Issues) the planner polls for work into one narrow interface: list
// items in a status column, move an item between columns, and attach a
// pull-request URL to an item once a worker opens one.
package board

import (
	"context"

	"github.com/taskfleet/taskfleet/internal/model"
)

// Status is a board column, independent of the backend's native
// vocabulary (a Jira status name, a GitHub label).
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusInReview   Status = "IN_REVIEW"
	StatusDone       Status = "DONE"
)

// Provider is the contract the planner polls for board items.
type Provider interface {
	// GetItems returns items currently in status on the given board.
	GetItems(ctx context.Context, boardID string, status Status) ([]model.BoardItem, error)
	// UpdateItemStatus moves itemID to status.
	UpdateItemStatus(ctx context.Context, itemID string, status Status) error
	// AddPullRequestToItem records prURL against itemID, visible to a
	// human reading the board (a comment, in both bindings).
	AddPullRequestToItem(ctx context.Context, itemID string, prURL string) error
}
