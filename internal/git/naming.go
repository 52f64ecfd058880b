package git

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const branchPrefix = "orc/"

// issueRefPattern extracts the first "#123" found anywhere in a board item
// title.
var issueRefPattern = regexp.MustCompile(`#(\d+)`)

// BranchName derives a branch name for a task from its board item,
// following the hierarchy: issue-<n>/pr-<n> when the item carries a
// content type and number, else a "#n" extracted from the title, else
// the task id itself truncated to 20 characters.
func BranchName(taskID, contentType string, contentNumber int, title string) string {
	switch {
	case contentNumber > 0 && (contentType == "issue" || contentType == "pr"):
		return fmt.Sprintf("%s%s-%d", branchPrefix, contentType, contentNumber)
	case contentNumber > 0:
		return fmt.Sprintf("%sissue-%d", branchPrefix, contentNumber)
	}
	if m := issueRefPattern.FindStringSubmatch(title); m != nil {
		return fmt.Sprintf("%sissue-%s", branchPrefix, m[1])
	}
	id := taskID
	if len(id) > 20 {
		id = id[:20]
	}
	return branchPrefix + id
}

// NextConflictSuffix appends the next available "-<n>" suffix to base,
// given a function reporting whether a candidate branch is already
// checked out elsewhere. Used by the workspace manager when the
// preferred branch name is in use by a different task.
func NextConflictSuffix(base string, inUse func(candidate string) bool) string {
	if !inUse(base) {
		return base
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if !inUse(candidate) {
			return candidate
		}
	}
}

// ParseBranchName extracts the numeric id and kind ("issue"/"pr") from a
// branch produced by BranchName, used when resuming a worktree whose
// original board item is no longer in hand.
func ParseBranchName(branch string) (kind string, number int, ok bool) {
	name := strings.TrimPrefix(branch, branchPrefix)
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, false
	}
	if parts[0] != "issue" && parts[0] != "pr" {
		return "", 0, false
	}
	return parts[0], n, true
}
