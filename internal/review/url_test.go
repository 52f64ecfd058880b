package review

import (
	"testing"

	"github.com/taskfleet/taskfleet/internal/hosting"
)

func TestParseURLGitHub(t *testing.T) {
	ref, err := ParseURL("https://github.com/acme/widgets/pull/42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ProviderType != hosting.ProviderGitHub || ref.OwnerRepo != "acme/widgets" || ref.Number != 42 {
		t.Errorf("got %+v", ref)
	}
}

func TestParseURLGitLab(t *testing.T) {
	ref, err := ParseURL("https://gitlab.com/acme/group/widgets/-/merge_requests/7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ProviderType != hosting.ProviderGitLab || ref.OwnerRepo != "acme/group/widgets" || ref.Number != 7 {
		t.Errorf("got %+v", ref)
	}
}

func TestParseURLInvalid(t *testing.T) {
	if _, err := ParseURL("not a url"); err == nil {
		t.Fatal("expected error for unrecognized URL")
	}
}
