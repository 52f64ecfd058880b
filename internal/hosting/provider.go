// Package hosting provides a unified interface for git hosting providers (GitHub, GitLab).
package hosting

import (
	"context"
)

// ProviderType identifies which hosting provider is in use.
type ProviderType string

const (
	ProviderGitHub  ProviderType = "github"
	ProviderGitLab  ProviderType = "gitlab"
	ProviderUnknown ProviderType = "unknown"
)

// Provider is the interface for git hosting providers.
// Implementations exist for GitHub (go-github) and GitLab (go-gitlab).
//
// This only covers the verbs the review pipeline actually drives: read a
// PR, read its reviews and comments, and merge it once approved.
type Provider interface {
	GetPR(ctx context.Context, number int) (*PR, error)
	MergePR(ctx context.Context, number int, opts PRMergeOptions) error
	ListPRComments(ctx context.Context, number int) ([]PRComment, error)
	GetPRReviews(ctx context.Context, number int) ([]PRReview, error)

	// Auth + metadata
	CheckAuth(ctx context.Context) error
	Name() ProviderType
	OwnerRepo() (string, string)
}

// PR represents a pull request / merge request.
type PR struct {
	Number     int    `json:"number"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	State      string `json:"state"` // open, closed, merged
	HeadBranch string `json:"head_branch"`
	BaseBranch string `json:"base_branch"`
	HTMLURL    string `json:"html_url"`
	Draft      bool   `json:"draft"`
	Mergeable  bool   `json:"mergeable"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// PRMergeOptions for merging a PR / merge request.
type PRMergeOptions struct {
	Method       string `json:"method"` // merge, squash, rebase
	CommitTitle  string `json:"commit_title,omitempty"`
	DeleteBranch bool   `json:"delete_branch"`
}

// PRComment represents a PR comment / MR note.
type PRComment struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	Path      string `json:"path,omitempty"` // File path for inline comments
	Line      int    `json:"line,omitempty"`
	Side      string `json:"side,omitempty"` // LEFT or RIGHT
	ThreadID  int64  `json:"thread_id,omitempty"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

// PRReview represents a pull request review / merge request approval.
type PRReview struct {
	ID        int64  `json:"id"`
	Author    string `json:"author"`
	State     string `json:"state"` // APPROVED, CHANGES_REQUESTED, COMMENTED, DISMISSED, PENDING
	Body      string `json:"body,omitempty"`
	CreatedAt string `json:"created_at"`
}
