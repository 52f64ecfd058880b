// Package review adapts the hosting package's GitHub/GitLab Provider
// interface to the narrower, verb-matched contract the planner's review
// cycle needs: fetch a PR, check approval, list reviews, fetch new
// comments since a bookmark, and learn the repository's default branch.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskfleet/taskfleet/internal/hosting"
)

// Status is the normalized lifecycle state of a pull/merge request.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
	StatusMerged Status = "MERGED"
	StatusDraft  Status = "DRAFT"
)

// PullRequest is the projection of hosting.PR the planner needs.
type PullRequest struct {
	Number     int
	Title      string
	Status     Status
	Author     string
	HeadBranch string
	BaseBranch string
	URL        string
}

// Comment is a single PR/MR comment.
type Comment struct {
	ID        string
	Author    string
	Body      string
	CreatedAt time.Time
}

// FilterOptions controls which comments GetNewComments surfaces.
type FilterOptions struct {
	// ExcludeBots drops comments whose author looks automated (login
	// ending in "[bot]" or "-bot", case-insensitively), since most of these
	// are CI status chatter rather than actionable feedback.
	ExcludeBots bool
	// AllowedBots whitelists bot-like authors that should still count as
	// feedback despite ExcludeBots (e.g. a CI summary bot the team reads).
	AllowedBots []string
}

// DefaultFilterOptions matches the planner's default feedback policy.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{ExcludeBots: true}
}

// Provider is the review-cycle contract consumed by the planner.
type Provider interface {
	GetPullRequest(ctx context.Context, number int) (*PullRequest, error)
	IsApproved(ctx context.Context, number int) (bool, error)
	GetReviews(ctx context.Context, number int) ([]hosting.PRReview, error)
	GetNewComments(ctx context.Context, number int, since time.Time, opts FilterOptions) ([]Comment, error)
	GetRepositoryDefaultBranch(ctx context.Context) (string, error)
	MergePullRequest(ctx context.Context, number int) error
	MarkCommentsAsProcessed(ctx context.Context, number int, ids []string) error
}

// hostingProvider adapts a hosting.Provider into a review.Provider.
type hostingProvider struct {
	p                 hosting.Provider
	defaultBranchFunc func() (string, error)
}

// New wraps a hosting.Provider (GitHub or GitLab, auto-detected) as a
// review.Provider. defaultBranchFunc resolves the repository's default
// branch (neither hosting backend exposes this directly; callers pass the
// local git context's resolver, e.g. a *git.Repo's DefaultBranch method).
func New(p hosting.Provider, defaultBranchFunc func() (string, error)) Provider {
	return &hostingProvider{p: p, defaultBranchFunc: defaultBranchFunc}
}

func toStatus(pr *hosting.PR) Status {
	switch strings.ToLower(pr.State) {
	case "merged":
		return StatusMerged
	case "closed":
		return StatusClosed
	default:
		if pr.Draft {
			return StatusDraft
		}
		return StatusOpen
	}
}

func (h *hostingProvider) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	pr, err := h.p.GetPR(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get pull request #%d: %w", number, err)
	}
	return &PullRequest{
		Number:     pr.Number,
		Title:      pr.Title,
		Status:     toStatus(pr),
		HeadBranch: pr.HeadBranch,
		BaseBranch: pr.BaseBranch,
		URL:        pr.HTMLURL,
	}, nil
}

func (h *hostingProvider) IsApproved(ctx context.Context, number int) (bool, error) {
	reviews, err := h.p.GetPRReviews(ctx, number)
	if err != nil {
		return false, err
	}
	for _, r := range reviews {
		if strings.EqualFold(r.State, "APPROVED") {
			return true, nil
		}
	}
	return false, nil
}

func (h *hostingProvider) GetReviews(ctx context.Context, number int) ([]hosting.PRReview, error) {
	return h.p.GetPRReviews(ctx, number)
}

func (h *hostingProvider) GetNewComments(ctx context.Context, number int, since time.Time, opts FilterOptions) ([]Comment, error) {
	raw, err := h.p.ListPRComments(ctx, number)
	if err != nil {
		return nil, err
	}

	var out []Comment
	for _, c := range raw {
		created, err := time.Parse(time.RFC3339, c.CreatedAt)
		if err == nil && !created.After(since) {
			continue
		}
		if opts.ExcludeBots && looksAutomated(c.Author) && !isAllowedBot(c.Author, opts.AllowedBots) {
			continue
		}
		out = append(out, Comment{
			ID:        fmt.Sprintf("%d", c.ID),
			Author:    c.Author,
			Body:      c.Body,
			CreatedAt: created,
		})
	}
	return out, nil
}

// GetRepositoryDefaultBranch resolves the repository's default branch.
// Neither hosting backend exposes this as a PR/MR operation, so it is
// delegated to the local git context supplied at construction time.
func (h *hostingProvider) GetRepositoryDefaultBranch(ctx context.Context) (string, error) {
	if h.defaultBranchFunc == nil {
		return "main", nil
	}
	return h.defaultBranchFunc()
}

func (h *hostingProvider) MergePullRequest(ctx context.Context, number int) error {
	return h.p.MergePR(ctx, number, hosting.PRMergeOptions{Method: "squash", DeleteBranch: true})
}

// MarkCommentsAsProcessed is a local no-op: neither provider has a native
// "seen" flag for PR comments, so comment dedup lives entirely in the
// durable task record's processed-comment bookkeeping.
func (h *hostingProvider) MarkCommentsAsProcessed(ctx context.Context, number int, ids []string) error {
	return nil
}

func looksAutomated(author string) bool {
	lower := strings.ToLower(author)
	return strings.HasSuffix(lower, "[bot]") || strings.HasSuffix(lower, "-bot")
}

func isAllowedBot(author string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, author) {
			return true
		}
	}
	return false
}
