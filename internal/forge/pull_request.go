package forge

import "strings"

// PullRequestState enumerates the states reported by the forge.
type PullRequestState string

// Pull request state enumerations.
const (
	PullRequestStateOpen   PullRequestState = PullRequestState("open")
	PullRequestStateClosed PullRequestState = PullRequestState("closed")
)

// User is an account reference embedded in pull request payloads.
type User struct {
	Login    string `json:"login"`
	UserName string `json:"username"`
	FullName string `json:"full_name"`
}

// AccountName returns the username, falling back to the login.
func (user *User) AccountName() string {
	if user == nil {
		return ""
	}
	if trimmed := strings.TrimSpace(user.UserName); len(trimmed) > 0 {
		return trimmed
	}
	return strings.TrimSpace(user.Login)
}

// Repository identifies the repository a pull request branch lives in.
type Repository struct {
	FullName string `json:"full_name"`
	Owner    *User  `json:"owner"`
}

// BranchReference is the head or base side of a pull request.
type BranchReference struct {
	Ref        string      `json:"ref"`
	Repository *Repository `json:"repo"`
}

// PullRequest is the subset of the forge pull request payload pr-tool consumes.
// Every field is optional; absent values decode to their zero value.
type PullRequest struct {
	Number   int              `json:"number"`
	Title    string           `json:"title"`
	State    PullRequestState `json:"state"`
	Merged   bool             `json:"merged"`
	MergedAt string           `json:"merged_at"`
	MergedBy *User            `json:"merged_by"`
	HTMLURL  string           `json:"html_url"`
	Head     BranchReference  `json:"head"`
	Base     BranchReference  `json:"base"`
}

// IsMerged reports whether the pull request has been merged.
func (pullRequest PullRequest) IsMerged() bool {
	return pullRequest.Merged
}

// IsClosed reports whether the pull request was closed.
func (pullRequest PullRequest) IsClosed() bool {
	return PullRequestState(strings.ToLower(strings.TrimSpace(string(pullRequest.State)))) == PullRequestStateClosed
}

// MergedByName returns the full name of the merging account, empty when the forge omits it.
func (pullRequest PullRequest) MergedByName() string {
	if pullRequest.MergedBy == nil {
		return ""
	}
	return strings.TrimSpace(pullRequest.MergedBy.FullName)
}

// SourceRepositoryFullName returns the owner/name of the repository holding the head branch.
func (pullRequest PullRequest) SourceRepositoryFullName() string {
	if pullRequest.Head.Repository == nil {
		return ""
	}
	return strings.TrimSpace(pullRequest.Head.Repository.FullName)
}

// SourceAuthor returns the account owning the head repository.
func (pullRequest PullRequest) SourceAuthor() string {
	if pullRequest.Head.Repository == nil {
		return ""
	}
	return pullRequest.Head.Repository.Owner.AccountName()
}

// SourceBranch returns the head branch name.
func (pullRequest PullRequest) SourceBranch() string {
	return strings.TrimSpace(pullRequest.Head.Ref)
}

// TargetBranch returns the base branch name.
func (pullRequest PullRequest) TargetBranch() string {
	return strings.TrimSpace(pullRequest.Base.Ref)
}
