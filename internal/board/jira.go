package board

import (
	"context"
	"fmt"
	"sync"

	v3 "github.com/ctreminiom/go-atlassian/v2/jira/v3"
	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"

	"github.com/taskfleet/taskfleet/internal/jira"
	"github.com/taskfleet/taskfleet/internal/model"
)

// JiraStatusMapping names the Jira status each board column corresponds
// to, and the workflow transition name used to move an issue into it.
type JiraStatusMapping struct {
	StatusName     string // Jira status name, used to build the JQL filter
	TransitionName string // workflow transition name, looked up by name
}

// JiraConfig configures the Jira board provider.
type JiraConfig struct {
	jira.ClientConfig
	ProjectKey string
	Columns    map[Status]JiraStatusMapping
}

// DefaultJiraColumns is the conventional column→status/transition mapping
// for a board following the standard Jira software workflow.
func DefaultJiraColumns() map[Status]JiraStatusMapping {
	return map[Status]JiraStatusMapping{
		StatusTodo:       {StatusName: "To Do", TransitionName: "To Do"},
		StatusInProgress: {StatusName: "In Progress", TransitionName: "In Progress"},
		StatusInReview:   {StatusName: "In Review", TransitionName: "In Review"},
		StatusDone:       {StatusName: "Done", TransitionName: "Done"},
	}
}

// JiraProvider implements Provider against a Jira Cloud project.
type JiraProvider struct {
	client *jira.Client
	jc     *v3.Client
	cfg    JiraConfig

	mu               sync.Mutex
	transitionCache  map[string]map[string]string // issue key -> transition name -> transition id
}

// NewJiraProvider creates a Jira-backed board Provider.
func NewJiraProvider(cfg JiraConfig) (*JiraProvider, error) {
	if cfg.ProjectKey == "" {
		return nil, fmt.Errorf("jira board: project key is required")
	}
	if cfg.Columns == nil {
		cfg.Columns = DefaultJiraColumns()
	}
	client, err := jira.NewClient(cfg.ClientConfig)
	if err != nil {
		return nil, err
	}
	jc, err := v3.New(nil, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira transition client: %w", err)
	}
	jc.Auth.SetBasicAuth(cfg.Email, cfg.APIToken)

	return &JiraProvider{
		client:          client,
		jc:              jc,
		cfg:             cfg,
		transitionCache: make(map[string]map[string]string),
	}, nil
}

func (p *JiraProvider) jql(status Status) string {
	mapping := p.cfg.Columns[status]
	return fmt.Sprintf(`project = %q AND status = %q ORDER BY created ASC`, p.cfg.ProjectKey, mapping.StatusName)
}

// GetItems lists issues in the Jira status corresponding to status.
func (p *JiraProvider) GetItems(ctx context.Context, boardID string, status Status) ([]model.BoardItem, error) {
	issues, err := p.client.SearchAllIssues(ctx, p.jql(status))
	if err != nil {
		return nil, fmt.Errorf("jira board: list items: %w", err)
	}
	items := make([]model.BoardItem, 0, len(issues))
	for _, issue := range issues {
		items = append(items, model.BoardItem{
			ID:     issue.Key,
			Title:  issue.Summary,
			Labels: issue.Labels,
		})
	}
	return items, nil
}

// UpdateItemStatus transitions the issue to the workflow state matching
// status, looking up the transition id by name and caching it per issue.
func (p *JiraProvider) UpdateItemStatus(ctx context.Context, itemID string, status Status) error {
	mapping, ok := p.cfg.Columns[status]
	if !ok {
		return fmt.Errorf("jira board: no column mapping for status %q", status)
	}
	transitionID, err := p.resolveTransitionID(ctx, itemID, mapping.TransitionName)
	if err != nil {
		return fmt.Errorf("jira board: resolve transition for %s: %w", itemID, err)
	}
	_, err = p.jc.Issue.Transitions.Move(ctx, itemID, transitionID, nil, nil)
	if err != nil {
		return fmt.Errorf("jira board: transition %s to %q: %w", itemID, status, err)
	}
	return nil
}

func (p *JiraProvider) resolveTransitionID(ctx context.Context, issueKey, transitionName string) (string, error) {
	p.mu.Lock()
	if byName, ok := p.transitionCache[issueKey]; ok {
		if id, ok := byName[transitionName]; ok {
			p.mu.Unlock()
			return id, nil
		}
	}
	p.mu.Unlock()

	available, _, err := p.jc.Issue.Transitions.Gets(ctx, issueKey)
	if err != nil {
		return "", err
	}
	byName := make(map[string]string, len(available.Transitions))
	for _, t := range available.Transitions {
		byName[t.Name] = t.ID
	}

	p.mu.Lock()
	p.transitionCache[issueKey] = byName
	p.mu.Unlock()

	id, ok := byName[transitionName]
	if !ok {
		return "", fmt.Errorf("no transition named %q available from current status", transitionName)
	}
	return id, nil
}

// AddPullRequestToItem posts an ADF comment with the PR URL.
func (p *JiraProvider) AddPullRequestToItem(ctx context.Context, itemID string, prURL string) error {
	doc := &models.CommentNodeScheme{
		Type:    "doc",
		Version: 1,
		Content: []*models.CommentNodeScheme{
			{
				Type: "paragraph",
				Content: []*models.CommentNodeScheme{
					{Type: "text", Text: fmt.Sprintf("Pull request opened: %s", prURL)},
				},
			},
		},
	}
	payload := &models.CommentPayloadSchemeV2{Body: doc}
	_, _, err := p.jc.Issue.Comment.Add(ctx, itemID, payload, nil)
	if err != nil {
		return fmt.Errorf("jira board: add PR comment to %s: %w", itemID, err)
	}
	return nil
}
