package resultparser

import "testing"

func TestParsePullRequestURL(t *testing.T) {
	raw := "Finished implementing the fix.\nPR: https://github.com/acme/widgets/pull/42\n"
	r := Parse("t1", raw)
	if !r.Success {
		t.Fatal("expected success")
	}
	if r.PullRequestURL != "https://github.com/acme/widgets/pull/42" {
		t.Errorf("got %q", r.PullRequestURL)
	}
}

func TestParseBareURL(t *testing.T) {
	raw := "Opened https://gitlab.com/acme/widgets/-/merge_requests/7 for review."
	r := Parse("t1", raw)
	if !r.Success || r.PullRequestURL == "" {
		t.Fatalf("expected success with URL, got %+v", r)
	}
}

func TestParseCompileFailure(t *testing.T) {
	raw := "Running build...\nBuild failed: undefined symbol\n"
	r := Parse("t1", raw)
	if r.Success {
		t.Fatal("expected failure")
	}
	if r.ErrorMessage == "" {
		t.Fatal("expected an error message")
	}
}

func TestParseNoIndicators(t *testing.T) {
	raw := "Looked at the code, nothing changed.\n"
	r := Parse("t1", raw)
	if r.Success {
		t.Fatal("expected failure when there is no success indicator")
	}
}
