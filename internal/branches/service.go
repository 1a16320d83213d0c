package branches

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/pr-tool/internal/gitrepo"
	"github.com/temirov/pr-tool/internal/ui"
)

const (
	repositoryPathRequiredMessageConstant   = "repository path must be provided"
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	mergedListFailureTemplateConstant       = "unable to list merged branches: %w"
	currentBranchFailureTemplateConstant    = "unable to determine current branch: %w"
	mergedDeletionFailureTemplateConstant   = "failed to delete merged branch %q: %w"
	fetchPruneFailureTemplateConstant       = "failed to prune remote-tracking references: %w"
	trackingListFailureTemplateConstant     = "unable to inspect branch tracking state: %w"
	staleDeletionFailureTemplateConstant    = "failed to delete stale branch %q: %w"
	pruneHeaderMessageConstant              = "Pruning local branches..."
	mergedDeletedTemplateConstant           = "Deleted merged branch: %s"
	staleDeletedTemplateConstant            = "Deleted stale branch: %s"
	logMessagePruneCompletedConstant        = "local branches pruned"
	logMessageBranchSkippedConstant         = "branch kept"
	logFieldBranchConstant                  = "branch"
	logFieldReasonConstant                  = "reason"
	logFieldMergedDeletedConstant           = "merged_deleted"
	logFieldGoneDeletedConstant             = "gone_deleted"
	skipReasonCurrentConstant               = "current"
	skipReasonProtectedConstant             = "protected"
	skipReasonNotDeletableConstant          = "checked out elsewhere or detached"
)

var (
	// ErrRepositoryPathRequired indicates the repository path option was empty.
	ErrRepositoryPathRequired = errors.New(repositoryPathRequiredMessageConstant)
	// ErrRepositoryManagerNotConfigured indicates the repository manager dependency was missing.
	ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)
)

// RepositoryManager is the subset of gitrepo.RepositoryManager used for pruning.
type RepositoryManager interface {
	CurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
	MergedBranches(executionContext context.Context, repositoryPath string) ([]gitrepo.Branch, error)
	TrackingBranches(executionContext context.Context, repositoryPath string) ([]gitrepo.Branch, error)
	DeleteBranch(executionContext context.Context, repositoryPath string, branchName string, force bool) error
	FetchPrune(executionContext context.Context, repositoryPath string) error
}

// Reporter prints user-facing status lines.
type Reporter interface {
	Report(tone ui.Tone, message string)
}

// ServiceDependencies enumerates collaborators required by the service.
type ServiceDependencies struct {
	Repository RepositoryManager
	Reporter   Reporter
	Logger     *zap.Logger
}

// Options configure a prune run.
type Options struct {
	RepositoryPath    string
	ProtectedBranches []string
}

// Result lists the branches removed by each pass.
type Result struct {
	MergedDeleted []string
	GoneDeleted   []string
}

// Service deletes local branches that are merged or whose upstream is gone.
type Service struct {
	repository RepositoryManager
	reporter   Reporter
	logger     *zap.Logger
}

type discardReporter struct{}

func (discardReporter) Report(ui.Tone, string) {}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Repository == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}

	reporter := dependencies.Reporter
	if reporter == nil {
		reporter = discardReporter{}
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{repository: dependencies.Repository, reporter: reporter, logger: logger}, nil
}

// Prune safe-deletes branches merged into HEAD, refreshes remote-tracking
// references, then force-deletes branches whose upstream was removed.
// Protected names only survive the merged pass; the current branch survives both.
func (service *Service) Prune(executionContext context.Context, options Options) (Result, error) {
	repositoryPath := strings.TrimSpace(options.RepositoryPath)
	if len(repositoryPath) == 0 {
		return Result{}, ErrRepositoryPathRequired
	}

	protectedBranches := PruneConfiguration{ProtectedBranches: options.ProtectedBranches}.Sanitize().ProtectedBranches
	result := Result{MergedDeleted: []string{}, GoneDeleted: []string{}}

	service.reporter.Report(ui.ToneWarning, pruneHeaderMessageConstant)

	mergedBranches, mergedError := service.repository.MergedBranches(executionContext, repositoryPath)
	if mergedError != nil {
		return result, fmt.Errorf(mergedListFailureTemplateConstant, mergedError)
	}

	currentBranch, currentBranchError := service.repository.CurrentBranch(executionContext, repositoryPath)
	if currentBranchError != nil {
		return result, fmt.Errorf(currentBranchFailureTemplateConstant, currentBranchError)
	}

	for _, branch := range mergedBranches {
		if !service.eligible(branch, currentBranch, protectedBranches) {
			continue
		}
		if deleteError := service.repository.DeleteBranch(executionContext, repositoryPath, branch.Name, false); deleteError != nil {
			return result, fmt.Errorf(mergedDeletionFailureTemplateConstant, branch.Name, deleteError)
		}
		result.MergedDeleted = append(result.MergedDeleted, branch.Name)
		service.reporter.Report(ui.ToneSuccess, fmt.Sprintf(mergedDeletedTemplateConstant, branch.Name))
	}

	if fetchError := service.repository.FetchPrune(executionContext, repositoryPath); fetchError != nil {
		return result, fmt.Errorf(fetchPruneFailureTemplateConstant, fetchError)
	}

	trackingBranches, trackingError := service.repository.TrackingBranches(executionContext, repositoryPath)
	if trackingError != nil {
		return result, fmt.Errorf(trackingListFailureTemplateConstant, trackingError)
	}

	for _, branch := range trackingBranches {
		if !branch.Gone || !service.eligible(branch, currentBranch, nil) {
			continue
		}
		if deleteError := service.repository.DeleteBranch(executionContext, repositoryPath, branch.Name, true); deleteError != nil {
			return result, fmt.Errorf(staleDeletionFailureTemplateConstant, branch.Name, deleteError)
		}
		result.GoneDeleted = append(result.GoneDeleted, branch.Name)
		service.reporter.Report(ui.ToneSuccess, fmt.Sprintf(staleDeletedTemplateConstant, branch.Name))
	}

	service.logger.Info(
		logMessagePruneCompletedConstant,
		zap.Strings(logFieldMergedDeletedConstant, result.MergedDeleted),
		zap.Strings(logFieldGoneDeletedConstant, result.GoneDeleted),
	)

	return result, nil
}

func (service *Service) eligible(branch gitrepo.Branch, currentBranch string, protectedBranches []string) bool {
	skipReason := ""
	switch {
	case !branch.Deletable():
		skipReason = skipReasonNotDeletableConstant
	case branch.Name == currentBranch:
		skipReason = skipReasonCurrentConstant
	case containsName(protectedBranches, branch.Name):
		skipReason = skipReasonProtectedConstant
	}

	if len(skipReason) == 0 {
		return true
	}
	service.logger.Debug(logMessageBranchSkippedConstant, zap.String(logFieldBranchConstant, branch.Name), zap.String(logFieldReasonConstant, skipReason))
	return false
}

func containsName(names []string, candidate string) bool {
	for _, name := range names {
		if name == candidate {
			return true
		}
	}
	return false
}
