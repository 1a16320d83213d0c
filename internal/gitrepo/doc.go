// Package gitrepo wraps the git commands pr-tool issues against a local clone.
//
// RepositoryManager exposes one method per git verb and always targets an
// explicit repository path, while ParseBranchList turns `git branch` output
// into structured Branch records so callers never match raw text.
package gitrepo
