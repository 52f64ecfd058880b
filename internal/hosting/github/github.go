package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v82/github"

	"github.com/taskfleet/taskfleet/internal/hosting"
)

// Compile-time interface check.
var _ hosting.Provider = (*GitHubProvider)(nil)

func init() {
	hosting.RegisterProvider(hosting.ProviderGitHub, newProvider)
}

// GitHubProvider implements hosting.Provider using the go-github library.
type GitHubProvider struct {
	client *gogithub.Client
	owner  string
	repo   string
}

// newProvider creates a new GitHubProvider from the working directory and config.
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

	// Create authenticated HTTP client and go-github client.
	httpClient := &http.Client{
		Transport: &oauth2Transport{token: token},
	}

	client := gogithub.NewClient(httpClient)

	// GitHub Enterprise: override base URL.
	if cfg.BaseURL != "" {
		baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
		var parseErr error
		client.BaseURL, parseErr = client.BaseURL.Parse(baseURL + "/api/v3/")
		if parseErr != nil {
			return nil, fmt.Errorf("parse base URL %q: %w", cfg.BaseURL, parseErr)
		}
		client.UploadURL, parseErr = client.UploadURL.Parse(baseURL + "/api/uploads/")
		if parseErr != nil {
			return nil, fmt.Errorf("parse upload URL %q: %w", cfg.BaseURL, parseErr)
		}
	}

	return &GitHubProvider{
		client: client,
		owner:  owner,
		repo:   repo,
	}, nil
}

// oauth2Transport adds an Authorization header to every request.
type oauth2Transport struct {
	token string
	base  http.RoundTripper
}

func (t *oauth2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", "Bearer "+t.token)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req2)
}

// Name returns the provider type.
func (g *GitHubProvider) Name() hosting.ProviderType {
	return hosting.ProviderGitHub
}

// OwnerRepo returns the owner and repository name.
func (g *GitHubProvider) OwnerRepo() (string, string) {
	return g.owner, g.repo
}

// CheckAuth validates the token by fetching the authenticated user.
func (g *GitHubProvider) CheckAuth(ctx context.Context) error {
	_, _, err := g.client.Users.Get(ctx, "")
	if err != nil {
		return fmt.Errorf("check auth: %w", err)
	}
	return nil
}

// GetPR gets a pull request by number.
func (g *GitHubProvider) GetPR(ctx context.Context, number int) (*hosting.PR, error) {
	pr, _, err := g.client.PullRequests.Get(ctx, g.owner, g.repo, number)
	if err != nil {
		return nil, fmt.Errorf("get PR %d: %w", number, err)
	}
	return mapPR(pr), nil
}

// MergePR merges a pull request, optionally deleting its source branch
// afterward. GitHub's merge endpoint cannot delete the branch
// atomically (unlike GitLab's ShouldRemoveSourceBranch), so that step
// runs as a best-effort follow-up call.
func (g *GitHubProvider) MergePR(ctx context.Context, number int, opts hosting.PRMergeOptions) error {
	mergeMethod := "merge"
	switch opts.Method {
	case "squash":
		mergeMethod = "squash"
	case "rebase":
		mergeMethod = "rebase"
	}

	mergeOpts := &gogithub.PullRequestOptions{
		MergeMethod: mergeMethod,
		CommitTitle: opts.CommitTitle,
	}

	_, _, err := g.client.PullRequests.Merge(ctx, g.owner, g.repo, number, "", mergeOpts)
	if err != nil {
		return fmt.Errorf("merge PR %d: %w", number, err)
	}

	if opts.DeleteBranch {
		if delErr := g.deleteBranchAfterMerge(ctx, number); delErr != nil {
			slog.Warn("merged PR but failed to delete branch", "pr", number, "error", delErr)
		}
	}

	return nil
}

// deleteBranchAfterMerge looks up the PR's head branch and deletes it.
func (g *GitHubProvider) deleteBranchAfterMerge(ctx context.Context, number int) error {
	pr, _, err := g.client.PullRequests.Get(ctx, g.owner, g.repo, number)
	if err != nil {
		return fmt.Errorf("get head branch for PR %d: %w", number, err)
	}
	branch := pr.GetHead().GetRef()
	if _, err := g.client.Git.DeleteRef(ctx, g.owner, g.repo, "refs/heads/"+branch); err != nil {
		return fmt.Errorf("delete branch %q: %w", branch, err)
	}
	return nil
}

// ListPRComments lists review comments on a PR.
func (g *GitHubProvider) ListPRComments(ctx context.Context, number int) ([]hosting.PRComment, error) {
	var allComments []*gogithub.PullRequestComment
	opts := &gogithub.PullRequestListCommentsOptions{
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	for {
		comments, resp, err := g.client.PullRequests.ListComments(ctx, g.owner, g.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list PR %d comments: %w", number, err)
		}
		allComments = append(allComments, comments...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	result := make([]hosting.PRComment, 0, len(allComments))
	for _, c := range allComments {
		result = append(result, mapPRComment(c))
	}
	return result, nil
}

// GetPRReviews gets reviews for a PR.
func (g *GitHubProvider) GetPRReviews(ctx context.Context, number int) ([]hosting.PRReview, error) {
	var allReviews []*gogithub.PullRequestReview
	opts := &gogithub.ListOptions{PerPage: 100}

	for {
		reviews, resp, err := g.client.PullRequests.ListReviews(ctx, g.owner, g.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list reviews for PR %d: %w", number, err)
		}
		allReviews = append(allReviews, reviews...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	result := make([]hosting.PRReview, 0, len(allReviews))
	for _, r := range allReviews {
		result = append(result, hosting.PRReview{
			ID:        r.GetID(),
			Author:    r.GetUser().GetLogin(),
			State:     r.GetState(),
			Body:      r.GetBody(),
			CreatedAt: r.GetSubmittedAt().Format(time.RFC3339),
		})
	}
	return result, nil
}

// mapPR converts a go-github PullRequest to a hosting.PR.
func mapPR(pr *gogithub.PullRequest) *hosting.PR {
	state := pr.GetState()
	if pr.GetMerged() {
		state = "merged"
	}

	var createdAt, updatedAt string
	if t := pr.GetCreatedAt(); !t.IsZero() {
		createdAt = t.Format(time.RFC3339)
	}
	if t := pr.GetUpdatedAt(); !t.IsZero() {
		updatedAt = t.Format(time.RFC3339)
	}

	return &hosting.PR{
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		Body:       pr.GetBody(),
		State:      state,
		HeadBranch: pr.GetHead().GetRef(),
		BaseBranch: pr.GetBase().GetRef(),
		HTMLURL:    pr.GetHTMLURL(),
		Draft:      pr.GetDraft(),
		Mergeable:  pr.GetMergeable(),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
}

// mapPRComment converts a go-github PullRequestComment to a hosting.PRComment.
func mapPRComment(c *gogithub.PullRequestComment) hosting.PRComment {
	line := c.GetLine()
	if line == 0 {
		line = c.GetOriginalLine()
	}

	return hosting.PRComment{
		ID:        c.GetID(),
		Body:      c.GetBody(),
		Path:      c.GetPath(),
		Line:      line,
		Side:      c.GetSide(),
		ThreadID:  int64(c.GetInReplyTo()),
		Author:    c.GetUser().GetLogin(),
		CreatedAt: c.GetCreatedAt().Format(time.RFC3339),
	}
}
