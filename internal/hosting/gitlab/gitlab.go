package gitlab

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	gogitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/taskfleet/taskfleet/internal/hosting"
)

// Compile-time interface check.
var _ hosting.Provider = (*GitLabProvider)(nil)

func init() {
	hosting.RegisterProvider(hosting.ProviderGitLab, newProvider)
}

// GitLabProvider implements hosting.Provider using the go-gitlab library.
type GitLabProvider struct {
	client    *gogitlab.Client
	projectID string // URL-encoded "owner/repo" path used as project identifier
	owner     string
	repo      string
}

// newProvider creates a new GitLabProvider from the working directory and config.
func newProvider(workDir string, cfg hosting.Config) (hosting.Provider, error) {
	token, err := resolveToken(cfg)
	if err != nil {
		return nil, err
	}

	// Get remote URL from git.
	cmd := exec.Command("git", "remote", "get-url", "origin")
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("get remote URL: %w", err)
	}

	remoteURL := strings.TrimSpace(string(output))
	owner, repo := hosting.ParseOwnerRepo(remoteURL)
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("could not parse owner/repo from remote URL: %s", remoteURL)
	}

	// Project ID is the full path: "owner/repo" or "group/subgroup/repo".
	projectID := owner + "/" + repo

	var client *gogitlab.Client
	if cfg.BaseURL != "" {
		baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
		client, err = gogitlab.NewClient(token, gogitlab.WithBaseURL(baseURL+"/api/v4"))
	} else {
		client, err = gogitlab.NewClient(token)
	}
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}

	return &GitLabProvider{
		client:    client,
		projectID: projectID,
		owner:     owner,
		repo:      repo,
	}, nil
}

// Name returns the provider type.
func (g *GitLabProvider) Name() hosting.ProviderType {
	return hosting.ProviderGitLab
}

// OwnerRepo returns the owner and repository name.
// For nested GitLab groups, owner may be "group/subgroup".
func (g *GitLabProvider) OwnerRepo() (string, string) {
	return g.owner, g.repo
}

// CheckAuth validates the token by fetching the authenticated user.
func (g *GitLabProvider) CheckAuth(ctx context.Context) error {
	_, _, err := g.client.Users.CurrentUser(gogitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check auth: %w", err)
	}
	return nil
}

// GetPR gets a merge request by IID.
func (g *GitLabProvider) GetPR(ctx context.Context, number int) (*hosting.PR, error) {
	mr, _, err := g.client.MergeRequests.GetMergeRequest(g.projectID, int64(number), nil, gogitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get MR %d: %w", number, err)
	}
	return mapMR(mr), nil
}

// MergePR accepts (merges) a merge request. Unlike GitHub, GitLab's
// accept endpoint can remove the source branch in the same call.
func (g *GitLabProvider) MergePR(ctx context.Context, number int, opts hosting.PRMergeOptions) error {
	acceptOpts := &gogitlab.AcceptMergeRequestOptions{}

	if opts.CommitTitle != "" {
		acceptOpts.MergeCommitMessage = gogitlab.Ptr(opts.CommitTitle)
	}
	if opts.Method == "squash" {
		acceptOpts.Squash = gogitlab.Ptr(true)
		if opts.CommitTitle != "" {
			acceptOpts.SquashCommitMessage = gogitlab.Ptr(opts.CommitTitle)
		}
	}
	if opts.DeleteBranch {
		acceptOpts.ShouldRemoveSourceBranch = gogitlab.Ptr(true)
	}

	_, _, err := g.client.MergeRequests.AcceptMergeRequest(g.projectID, int64(number), acceptOpts, gogitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("merge MR %d: %w", number, err)
	}
	return nil
}

// ListPRComments lists all discussion notes on a merge request.
func (g *GitLabProvider) ListPRComments(ctx context.Context, number int) ([]hosting.PRComment, error) {
	var allComments []hosting.PRComment
	opts := &gogitlab.ListMergeRequestDiscussionsOptions{
		ListOptions: gogitlab.ListOptions{PerPage: 100},
	}

	for {
		discussions, resp, err := g.client.Discussions.ListMergeRequestDiscussions(g.projectID, int64(number), opts, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list MR %d discussions: %w", number, err)
		}

		for _, d := range discussions {
			for _, note := range d.Notes {
				if note.System {
					continue
				}
				allComments = append(allComments, mapNote(note))
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allComments, nil
}

// GetPRReviews gets approval state for a merge request.
func (g *GitLabProvider) GetPRReviews(ctx context.Context, number int) ([]hosting.PRReview, error) {
	approvalState, _, err := g.client.MergeRequestApprovals.GetApprovalState(g.projectID, int64(number), gogitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get approval state for MR %d: %w", number, err)
	}

	var reviews []hosting.PRReview
	for _, rule := range approvalState.Rules {
		for _, approver := range rule.ApprovedBy {
			reviews = append(reviews, hosting.PRReview{
				ID:     approver.ID,
				Author: approver.Username,
				State:  "APPROVED",
			})
		}
	}

	return reviews, nil
}

// mapMR converts a go-gitlab MergeRequest to a hosting.PR.
func mapMR(mr *gogitlab.MergeRequest) *hosting.PR {
	state := mr.State
	switch state {
	case "opened":
		state = "open"
	}

	draft := mr.Draft || mr.WorkInProgress
	mergeable := mr.DetailedMergeStatus == "mergeable" || mr.BasicMergeRequest.DetailedMergeStatus == "mergeable"

	var createdAt, updatedAt string
	if mr.CreatedAt != nil {
		createdAt = mr.CreatedAt.Format(time.RFC3339)
	}
	if mr.UpdatedAt != nil {
		updatedAt = mr.UpdatedAt.Format(time.RFC3339)
	}

	return &hosting.PR{
		Number:     int(mr.IID),
		Title:      mr.Title,
		Body:       mr.Description,
		State:      state,
		HeadBranch: mr.SourceBranch,
		BaseBranch: mr.TargetBranch,
		HTMLURL:    mr.WebURL,
		Draft:      draft,
		Mergeable:  mergeable,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
}

// mapNote converts a go-gitlab Note to a hosting.PRComment.
func mapNote(note *gogitlab.Note) hosting.PRComment {
	comment := hosting.PRComment{
		ID:        note.ID,
		Body:      note.Body,
		Author:    note.Author.Username,
		ThreadID:  note.ID,
		CreatedAt: note.CreatedAt.Format(time.RFC3339),
	}

	if note.Position != nil {
		comment.Path = note.Position.NewPath
		comment.Line = int(note.Position.NewLine)
	}

	return comment
}
