package review

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/taskfleet/taskfleet/internal/hosting"
)

var (
	githubPRURL = regexp.MustCompile(`^https?://[^/]+/([^/]+/[^/]+)/pull/(\d+)`)
	gitlabMRURL = regexp.MustCompile(`^https?://[^/]+/(.+)/-/merge_requests/(\d+)`)
)

// Reference identifies a specific PR/MR by provider, owning repository
// (owner/repo or group/subgroup/repo) and number.
type Reference struct {
	ProviderType hosting.ProviderType
	OwnerRepo    string
	Number       int
}

// ParseURL resolves a stored pull-request URL back into a provider,
// owner/repo and number tuple, per the grammar the board/workspace layer
// records a task's PullRequestURL in.
func ParseURL(rawURL string) (Reference, error) {
	if m := githubPRURL.FindStringSubmatch(rawURL); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return Reference{}, fmt.Errorf("parse pull request number from %q: %w", rawURL, err)
		}
		return Reference{ProviderType: hosting.ProviderGitHub, OwnerRepo: m[1], Number: n}, nil
	}
	if m := gitlabMRURL.FindStringSubmatch(rawURL); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return Reference{}, fmt.Errorf("parse merge request number from %q: %w", rawURL, err)
		}
		return Reference{ProviderType: hosting.ProviderGitLab, OwnerRepo: m[1], Number: n}, nil
	}
	return Reference{}, fmt.Errorf("unrecognized pull/merge request URL: %q", rawURL)
}
