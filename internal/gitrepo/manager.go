package gitrepo

import (
	"context"
	"errors"
	"strings"

	"github.com/temirov/pr-tool/internal/execshell"
)

const (
	gitExecutorMissingMessageConstant           = "git executor not configured"
	repositoryPathMissingMessageConstant        = "repository path must be provided"
	branchNameMissingMessageConstant            = "branch name must be provided"
	gitBranchSubcommandConstant                 = "branch"
	gitCheckoutSubcommandConstant               = "checkout"
	gitPullSubcommandConstant                   = "pull"
	gitFetchSubcommandConstant                  = "fetch"
	gitShowCurrentFlagConstant                  = "--show-current"
	gitMergedFlagConstant                       = "--merged"
	gitVeryVerboseFlagConstant                  = "-vv"
	gitSafeDeleteFlagConstant                   = "-d"
	gitForceDeleteFlagConstant                  = "-D"
	gitCreateBranchFlagConstant                 = "-b"
	gitPruneFlagConstant                        = "--prune"
	gitNoRebaseFlagConstant                     = "--no-rebase"
	gitFastForwardFlagConstant                  = "--ff"
	gitNoEditFlagConstant                       = "--no-edit"
	gitCommitFlagConstant                       = "--commit"
	gitTerminalPromptEnvironmentNameConstant    = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentDisableConstant = "0"
)

var (
	// ErrGitExecutorNotConfigured indicates NewRepositoryManager received a nil executor.
	ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)
	// ErrRepositoryPathRequired indicates an operation was called without a repository path.
	ErrRepositoryPathRequired = errors.New(repositoryPathMissingMessageConstant)
	// ErrBranchNameRequired indicates an operation was called without a branch name.
	ErrBranchNameRequired = errors.New(branchNameMissingMessageConstant)
)

// GitExecutor is the subset of execshell.ShellExecutor used for repository operations.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryManager issues the git commands pr-tool relies on. Every method
// takes the repository path explicitly and never consults the process working directory.
type RepositoryManager struct {
	executor GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager around the provided executor.
func NewRepositoryManager(executor GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// CurrentBranch returns the checked-out branch name, or an empty string for a detached HEAD.
func (manager *RepositoryManager) CurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	executionResult, executionError := manager.execute(executionContext, repositoryPath, gitBranchSubcommandConstant, gitShowCurrentFlagConstant)
	if executionError != nil {
		return "", executionError
	}
	return executionResult.TrimmedOutput(), nil
}

// LocalBranches lists every local branch.
func (manager *RepositoryManager) LocalBranches(executionContext context.Context, repositoryPath string) ([]Branch, error) {
	return manager.listBranches(executionContext, repositoryPath, gitBranchSubcommandConstant)
}

// MergedBranches lists local branches already merged into the current HEAD.
func (manager *RepositoryManager) MergedBranches(executionContext context.Context, repositoryPath string) ([]Branch, error) {
	return manager.listBranches(executionContext, repositoryPath, gitBranchSubcommandConstant, gitMergedFlagConstant)
}

// TrackingBranches lists local branches with upstream tracking state.
func (manager *RepositoryManager) TrackingBranches(executionContext context.Context, repositoryPath string) ([]Branch, error) {
	return manager.listBranches(executionContext, repositoryPath, gitBranchSubcommandConstant, gitVeryVerboseFlagConstant)
}

// DeleteBranch removes a local branch. A forced deletion discards unmerged commits.
func (manager *RepositoryManager) DeleteBranch(executionContext context.Context, repositoryPath string, branchName string, force bool) error {
	trimmedBranchName := strings.TrimSpace(branchName)
	if len(trimmedBranchName) == 0 {
		return ErrBranchNameRequired
	}

	deletionFlag := gitSafeDeleteFlagConstant
	if force {
		deletionFlag = gitForceDeleteFlagConstant
	}

	_, executionError := manager.execute(executionContext, repositoryPath, gitBranchSubcommandConstant, deletionFlag, trimmedBranchName)
	return executionError
}

// CheckoutBranch switches the worktree to an existing branch.
func (manager *RepositoryManager) CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string) error {
	trimmedBranchName := strings.TrimSpace(branchName)
	if len(trimmedBranchName) == 0 {
		return ErrBranchNameRequired
	}

	_, executionError := manager.execute(executionContext, repositoryPath, gitCheckoutSubcommandConstant, trimmedBranchName)
	return executionError
}

// CreateBranch creates branchName at startPoint and checks it out.
func (manager *RepositoryManager) CreateBranch(executionContext context.Context, repositoryPath string, branchName string, startPoint string) error {
	trimmedBranchName := strings.TrimSpace(branchName)
	trimmedStartPoint := strings.TrimSpace(startPoint)
	if len(trimmedBranchName) == 0 || len(trimmedStartPoint) == 0 {
		return ErrBranchNameRequired
	}

	_, executionError := manager.execute(executionContext, repositoryPath, gitCheckoutSubcommandConstant, gitCreateBranchFlagConstant, trimmedBranchName, trimmedStartPoint)
	return executionError
}

// PullBranch merges reference from repositoryURL into the current branch,
// fast-forwarding when possible and committing merges without an editor.
func (manager *RepositoryManager) PullBranch(executionContext context.Context, repositoryPath string, repositoryURL string, reference string) error {
	trimmedReference := strings.TrimSpace(reference)
	if len(trimmedReference) == 0 {
		return ErrBranchNameRequired
	}

	_, executionError := manager.execute(
		executionContext,
		repositoryPath,
		gitPullSubcommandConstant,
		gitNoRebaseFlagConstant,
		gitFastForwardFlagConstant,
		gitNoEditFlagConstant,
		gitCommitFlagConstant,
		strings.TrimSpace(repositoryURL),
		trimmedReference,
	)
	return executionError
}

// FetchPrune updates remote-tracking references and drops those deleted upstream.
func (manager *RepositoryManager) FetchPrune(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.execute(executionContext, repositoryPath, gitFetchSubcommandConstant, gitPruneFlagConstant)
	return executionError
}

func (manager *RepositoryManager) listBranches(executionContext context.Context, repositoryPath string, arguments ...string) ([]Branch, error) {
	executionResult, executionError := manager.execute(executionContext, repositoryPath, arguments...)
	if executionError != nil {
		return nil, executionError
	}
	return ParseBranchList(executionResult.StandardOutput), nil
}

func (manager *RepositoryManager) execute(executionContext context.Context, repositoryPath string, arguments ...string) (execshell.ExecutionResult, error) {
	trimmedRepositoryPath := strings.TrimSpace(repositoryPath)
	if len(trimmedRepositoryPath) == 0 {
		return execshell.ExecutionResult{}, ErrRepositoryPathRequired
	}

	return manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     trimmedRepositoryPath,
		EnvironmentVariables: map[string]string{gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentDisableConstant},
	})
}
