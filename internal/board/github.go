package board

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v82/github"

	"github.com/taskfleet/taskfleet/internal/model"
)

// githubLabels maps each board column to its status label.
var githubLabels = map[Status]string{
	StatusTodo:       "status:todo",
	StatusInProgress: "status:in-progress",
	StatusInReview:   "status:in-review",
	StatusDone:       "status:done",
}

// GitHubConfig configures the GitHub Issues board provider.
type GitHubConfig struct {
	Owner string
	Repo  string
	Token string
}

// GitHubProvider implements Provider against GitHub Issues, using status
// labels as the board's columns.
type GitHubProvider struct {
	client *gogithub.Client
	owner  string
	repo   string
}

// NewGitHubProvider creates a GitHub Issues board Provider.
func NewGitHubProvider(cfg GitHubConfig) (*GitHubProvider, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github board: owner/repo is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("github board: token is required")
	}
	httpClient := &http.Client{Transport: &bearerTransport{token: cfg.Token}}
	return &GitHubProvider{
		client: gogithub.NewClient(httpClient),
		owner:  cfg.Owner,
		repo:   cfg.Repo,
	}, nil
}

type bearerTransport struct{ token string }

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req2)
}

// GetItems lists open issues carrying the label for status.
func (p *GitHubProvider) GetItems(ctx context.Context, boardID string, status Status) ([]model.BoardItem, error) {
	label, ok := githubLabels[status]
	if !ok {
		return nil, fmt.Errorf("github board: no label mapping for status %q", status)
	}

	var items []model.BoardItem
	opts := &gogithub.IssueListByRepoOptions{
		State:       "open",
		Labels:      []string{label},
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}
	for {
		issues, resp, err := p.client.Issues.ListByRepo(ctx, p.owner, p.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("github board: list issues: %w", err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			var labels []string
			for _, l := range issue.Labels {
				labels = append(labels, l.GetName())
			}
			items = append(items, model.BoardItem{
				ID:            fmt.Sprintf("%d", issue.GetNumber()),
				Title:         issue.GetTitle(),
				ContentType:   "issue",
				ContentNumber: issue.GetNumber(),
				Labels:        labels,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return items, nil
}

// UpdateItemStatus swaps the issue's status label.
func (p *GitHubProvider) UpdateItemStatus(ctx context.Context, itemID string, status Status) error {
	newLabel, ok := githubLabels[status]
	if !ok {
		return fmt.Errorf("github board: no label mapping for status %q", status)
	}
	number, err := issueNumber(itemID)
	if err != nil {
		return err
	}

	issue, _, err := p.client.Issues.Get(ctx, p.owner, p.repo, number)
	if err != nil {
		return fmt.Errorf("github board: get issue %s: %w", itemID, err)
	}
	for _, l := range issue.Labels {
		if name := l.GetName(); strings.HasPrefix(name, "status:") && name != newLabel {
			if _, err := p.client.Issues.RemoveLabelForIssue(ctx, p.owner, p.repo, number, name); err != nil {
				return fmt.Errorf("github board: remove label %q from %s: %w", name, itemID, err)
			}
		}
	}
	if _, _, err := p.client.Issues.AddLabelsToIssue(ctx, p.owner, p.repo, number, []string{newLabel}); err != nil {
		return fmt.Errorf("github board: add label %q to %s: %w", newLabel, itemID, err)
	}
	return nil
}

// AddPullRequestToItem posts an issue comment with the PR URL.
func (p *GitHubProvider) AddPullRequestToItem(ctx context.Context, itemID string, prURL string) error {
	number, err := issueNumber(itemID)
	if err != nil {
		return err
	}
	comment := &gogithub.IssueComment{Body: gogithub.Ptr(fmt.Sprintf("Pull request opened: %s", prURL))}
	if _, _, err := p.client.Issues.CreateComment(ctx, p.owner, p.repo, number, comment); err != nil {
		return fmt.Errorf("github board: add PR comment to %s: %w", itemID, err)
	}
	return nil
}

func issueNumber(itemID string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(itemID, "%d", &n); err != nil {
		return 0, fmt.Errorf("github board: item id %q is not a numeric issue number", itemID)
	}
	return n, nil
}
