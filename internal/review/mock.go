package review

import (
	"context"
	"sync"
	"time"

	"github.com/taskfleet/taskfleet/internal/hosting"
)

// Mock is a deterministic Provider for tests.
type Mock struct {
	mu sync.Mutex

	PullRequests map[int]*PullRequest
	Approved     map[int]bool
	Reviews      map[int][]hosting.PRReview
	Comments     map[int][]Comment
	DefaultBranchValue string

	MergedNumbers []int
	ProcessedIDs  map[int][]string
}

// NewMock returns an empty Mock ready for population by a test.
func NewMock() *Mock {
	return &Mock{
		PullRequests:       map[int]*PullRequest{},
		Approved:           map[int]bool{},
		Reviews:            map[int][]hosting.PRReview{},
		Comments:           map[int][]Comment{},
		DefaultBranchValue: "main",
		ProcessedIDs:       map[int][]string{},
	}
}

func (m *Mock) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pr, ok := m.PullRequests[number]
	if !ok {
		return nil, errNotFound(number)
	}
	return pr, nil
}

func (m *Mock) IsApproved(ctx context.Context, number int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Approved[number], nil
}

func (m *Mock) GetReviews(ctx context.Context, number int) ([]hosting.PRReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Reviews[number], nil
}

func (m *Mock) GetNewComments(ctx context.Context, number int, since time.Time, opts FilterOptions) ([]Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Comment
	for _, c := range m.Comments[number] {
		if !c.CreatedAt.After(since) {
			continue
		}
		if opts.ExcludeBots && looksAutomated(c.Author) && !isAllowedBot(c.Author, opts.AllowedBots) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *Mock) GetRepositoryDefaultBranch(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DefaultBranchValue, nil
}

func (m *Mock) MergePullRequest(ctx context.Context, number int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MergedNumbers = append(m.MergedNumbers, number)
	if pr, ok := m.PullRequests[number]; ok {
		pr.Status = StatusMerged
	}
	return nil
}

func (m *Mock) MarkCommentsAsProcessed(ctx context.Context, number int, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProcessedIDs[number] = append(m.ProcessedIDs[number], ids...)
	return nil
}

type notFoundError struct{ number int }

func (e *notFoundError) Error() string { return "pull request not found in mock" }

func errNotFound(number int) error { return &notFoundError{number: number} }
