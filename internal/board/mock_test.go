package board

import (
	"context"
	"testing"

	"github.com/taskfleet/taskfleet/internal/model"
)

func TestMockGetItemsFiltersByStatus(t *testing.T) {
	m := NewMock()
	m.Seed(model.BoardItem{ID: "1", Title: "fix the thing"}, StatusTodo)
	m.Seed(model.BoardItem{ID: "2", Title: "already working"}, StatusInProgress)

	todo, err := m.GetItems(context.Background(), "board", StatusTodo)
	if err != nil {
		t.Fatal(err)
	}
	if len(todo) != 1 || todo[0].ID != "1" {
		t.Fatalf("expected only item 1, got %+v", todo)
	}
}

func TestMockUpdateItemStatus(t *testing.T) {
	m := NewMock()
	m.Seed(model.BoardItem{ID: "1"}, StatusTodo)

	if err := m.UpdateItemStatus(context.Background(), "1", StatusInProgress); err != nil {
		t.Fatal(err)
	}
	status, ok := m.StatusOf("1")
	if !ok || status != StatusInProgress {
		t.Fatalf("got status=%v ok=%v", status, ok)
	}
}

func TestMockAddPullRequestToItem(t *testing.T) {
	m := NewMock()
	m.Seed(model.BoardItem{ID: "1"}, StatusInReview)

	if err := m.AddPullRequestToItem(context.Background(), "1", "https://github.com/acme/widgets/pull/9"); err != nil {
		t.Fatal(err)
	}
	url, ok := m.PullRequestURLOf("1")
	if !ok || url != "https://github.com/acme/widgets/pull/9" {
		t.Fatalf("got %q, %v", url, ok)
	}
}

func TestJiraJQLBuildsProjectAndStatusFilter(t *testing.T) {
	p := &JiraProvider{cfg: JiraConfig{ProjectKey: "ACME", Columns: DefaultJiraColumns()}}
	jql := p.jql(StatusInReview)
	want := `project = "ACME" AND status = "In Review" ORDER BY created ASC`
	if jql != want {
		t.Fatalf("expected %q, got %q", want, jql)
	}
}
