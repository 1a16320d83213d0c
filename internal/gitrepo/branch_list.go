package gitrepo

import (
	"regexp"
	"strings"
)

const (
	currentBranchMarkerConstant          = "* "
	otherWorktreeBranchMarkerConstant    = "+ "
	detachedEntryPrefixConstant          = "("
	detachedEntrySuffixConstant          = ")"
	goneMarkerConstant                   = "[gone]"
	goneTrackingSuffixConstant           = ": gone"
	trackingStatusSeparatorConstant      = ":"
	lineSeparatorConstant                = "\n"
	carriageReturnConstant               = "\r"
	trackingBracketSubmatchIndexConstant = 1
)

// trackingBracketPattern matches the upstream bracket of `git branch -vv` output,
// skipping the worktree path git prints for branches checked out elsewhere.
var trackingBracketPattern = regexp.MustCompile(`^\S+\s+[0-9a-fA-F]+\s+(?:\([^)]*\)\s+)?\[([^\]]*)\]`)

// Branch is one entry of `git branch` output.
type Branch struct {
	Name string

	// Current marks the branch checked out in this worktree.
	Current bool

	// CheckedOutElsewhere marks a branch checked out in a linked worktree.
	CheckedOutElsewhere bool

	// Detached marks the synthetic "(HEAD detached at ...)" entry.
	Detached bool

	// Gone marks a branch whose upstream no longer exists. Only populated for verbose listings.
	Gone bool

	// Upstream is the configured tracking reference. Only populated for verbose listings.
	Upstream string
}

// Deletable reports whether the entry names a real branch that git can delete from this worktree.
func (branch Branch) Deletable() bool {
	return len(branch.Name) > 0 && !branch.Current && !branch.CheckedOutElsewhere && !branch.Detached
}

// ParseBranchList converts `git branch`, `git branch --merged`, or `git branch -vv`
// output into structured entries, preserving order.
func ParseBranchList(output string) []Branch {
	branches := []Branch{}
	for _, rawLine := range strings.Split(output, lineSeparatorConstant) {
		line := strings.TrimSuffix(rawLine, carriageReturnConstant)
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}

		branch := Branch{}
		remainder := line
		switch {
		case strings.HasPrefix(line, currentBranchMarkerConstant):
			branch.Current = true
			remainder = line[len(currentBranchMarkerConstant):]
		case strings.HasPrefix(line, otherWorktreeBranchMarkerConstant):
			branch.CheckedOutElsewhere = true
			remainder = line[len(otherWorktreeBranchMarkerConstant):]
		}
		remainder = strings.TrimSpace(remainder)

		if strings.HasPrefix(remainder, detachedEntryPrefixConstant) {
			closingIndex := strings.Index(remainder, detachedEntrySuffixConstant)
			if closingIndex < 0 {
				closingIndex = len(remainder) - 1
			}
			branch.Name = remainder[:closingIndex+1]
			branch.Detached = true
			branches = append(branches, branch)
			continue
		}

		branch.Name = strings.Fields(remainder)[0]
		branch.Upstream, branch.Gone = parseTrackingStatus(remainder)
		branches = append(branches, branch)
	}
	return branches
}

// parseTrackingStatus extracts the upstream name and gone state from a verbose entry.
// A literal "[gone]" anywhere on the line also counts as gone.
func parseTrackingStatus(verboseEntry string) (string, bool) {
	gone := strings.Contains(verboseEntry, goneMarkerConstant)

	submatches := trackingBracketPattern.FindStringSubmatch(verboseEntry)
	if len(submatches) <= trackingBracketSubmatchIndexConstant {
		return "", gone
	}

	trackingStatus := strings.TrimSpace(submatches[trackingBracketSubmatchIndexConstant])
	if strings.HasSuffix(trackingStatus, goneTrackingSuffixConstant) {
		gone = true
	}

	upstream, _, _ := strings.Cut(trackingStatus, trackingStatusSeparatorConstant)
	if upstream == "gone" {
		upstream = ""
	}
	return strings.TrimSpace(upstream), gone
}

// ContainsBranch reports whether a branch with the given name is present.
func ContainsBranch(branches []Branch, name string) bool {
	for _, branch := range branches {
		if branch.Name == name && !branch.Detached {
			return true
		}
	}
	return false
}
