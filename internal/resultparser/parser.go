// Package resultparser extracts a pull-request URL and error
// classification from a developer backend's free-form text output.
package resultparser

import (
	"regexp"
	"strings"
	"time"
)

// Result is the parsed outcome of one developer-backend invocation.
type Result struct {
	TaskID         string
	Success        bool
	PullRequestURL string
	ErrorMessage   string
	CompletedAt    time.Time
	Details        string
}

// prURLPatterns are tried most-specific first: an explicit "PR: <url>"
// line, then any bare GitHub/GitLab pull/merge-request URL.
var prURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)PR:\s*(https?://\S+)`),
	regexp.MustCompile(`(?i)pull request:\s*(https?://\S+)`),
	regexp.MustCompile(`(https?://[^\s]+/pull/\d+)`),
	regexp.MustCompile(`(https?://[^\s]+/-/merge_requests/\d+)`),
}

var errorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)compilation failed`),
	regexp.MustCompile(`(?i)build failed`),
	regexp.MustCompile(`(?i)(\d+)\s+failed,?\s+(\d+)\s+passed`),
	regexp.MustCompile(`(?i)^error:`),
	regexp.MustCompile(`(?im)^\s*error:`),
}

var successPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)all tests passed`),
	regexp.MustCompile(`(?i)successfully created`),
	regexp.MustCompile(`(?i)task complete`),
}

// Parse extracts a Result from raw developer-backend output.
func Parse(taskID, raw string) *Result {
	r := &Result{TaskID: taskID, CompletedAt: time.Now(), Details: raw}

	for _, p := range prURLPatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			r.PullRequestURL = strings.TrimRight(m[1], ".,;)")
			break
		}
	}

	var errMatch string
	for _, p := range errorPatterns {
		if m := p.FindString(raw); m != "" {
			errMatch = m
			break
		}
	}

	hasSuccessIndicator := r.PullRequestURL != ""
	if !hasSuccessIndicator {
		for _, p := range successPatterns {
			if p.MatchString(raw) {
				hasSuccessIndicator = true
				break
			}
		}
	}

	if errMatch != "" {
		r.ErrorMessage = errMatch
		r.Success = false
		return r
	}

	r.Success = hasSuccessIndicator
	return r
}
