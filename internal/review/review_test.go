package review

import (
	"context"
	"testing"
	"time"

	"github.com/taskfleet/taskfleet/internal/hosting"
)

// fakeHosting is a minimal hosting.Provider stub for adapter tests; only
// the methods the adapter actually calls are meaningfully implemented.
type fakeHosting struct {
	pr       *hosting.PR
	reviews  []hosting.PRReview
	comments []hosting.PRComment
}

func (f *fakeHosting) GetPR(context.Context, int) (*hosting.PR, error)              { return f.pr, nil }
func (f *fakeHosting) MergePR(context.Context, int, hosting.PRMergeOptions) error   { return nil }
func (f *fakeHosting) ListPRComments(context.Context, int) ([]hosting.PRComment, error) {
	return f.comments, nil
}
func (f *fakeHosting) GetPRReviews(context.Context, int) ([]hosting.PRReview, error) { return f.reviews, nil }
func (f *fakeHosting) CheckAuth(context.Context) error                              { return nil }
func (f *fakeHosting) Name() hosting.ProviderType                                   { return hosting.ProviderGitHub }
func (f *fakeHosting) OwnerRepo() (string, string)                                  { return "acme", "widgets" }

func TestIsApproved(t *testing.T) {
	fh := &fakeHosting{reviews: []hosting.PRReview{{Author: "alice", State: "APPROVED"}}}
	p := New(fh, nil)
	ok, err := p.IsApproved(context.Background(), 1)
	if err != nil || !ok {
		t.Fatalf("expected approved, got ok=%v err=%v", ok, err)
	}
}

func TestIsApprovedFalseOnChangesRequested(t *testing.T) {
	fh := &fakeHosting{reviews: []hosting.PRReview{{Author: "alice", State: "CHANGES_REQUESTED"}}}
	p := New(fh, nil)
	ok, err := p.IsApproved(context.Background(), 1)
	if err != nil || ok {
		t.Fatalf("expected not approved, got ok=%v err=%v", ok, err)
	}
}

func TestGetNewCommentsFiltersBots(t *testing.T) {
	old := time.Now().Add(-time.Hour)
	fh := &fakeHosting{comments: []hosting.PRComment{
		{ID: 1, Author: "ci[bot]", Body: "build passed", CreatedAt: time.Now().Format(time.RFC3339)},
		{ID: 2, Author: "alice", Body: "please fix this", CreatedAt: time.Now().Format(time.RFC3339)},
	}}
	p := New(fh, nil)
	comments, err := p.GetNewComments(context.Background(), 1, old, DefaultFilterOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].Author != "alice" {
		t.Fatalf("expected only alice's comment, got %+v", comments)
	}
}

func TestGetRepositoryDefaultBranchUsesResolver(t *testing.T) {
	fh := &fakeHosting{}
	p := New(fh, func() (string, error) { return "develop", nil })
	branch, err := p.GetRepositoryDefaultBranch(context.Background())
	if err != nil || branch != "develop" {
		t.Fatalf("got %q, %v", branch, err)
	}
}
