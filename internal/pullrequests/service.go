package pullrequests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/temirov/pr-tool/internal/forge"
	"github.com/temirov/pr-tool/internal/gitrepo"
	"github.com/temirov/pr-tool/internal/ui"
)

const (
	// DefaultOwner is the repository owner used when none is supplied.
	DefaultOwner = "blender"
	// DefaultRepository is the repository name used when none is supplied.
	DefaultRepository = "blender"

	localBranchNameTemplateConstant         = "PR/%d/%s-%s"
	repositoryPathRequiredMessageConstant   = "repository path must be provided"
	pullRequestNumberInvalidMessageConstant = "pull request number must be positive"
	fetcherMissingMessageConstant           = "pull request fetcher not configured"
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	sourceRepositoryMissingMessageConstant  = "pull request source repository is unavailable"
	unsafeReferenceMessageConstant          = "unsafe git reference"
	missingFieldTemplateConstant            = "pull request #%d has no %s: %w"
	unsafeReferenceTemplateConstant         = "%s %q: %w"
	repositoryURLFailureTemplateConstant    = "unable to build source repository url for %q: %w"
	currentBranchFailureTemplateConstant    = "unable to determine current branch: %w"
	baseCheckoutFailureTemplateConstant     = "failed to check out base branch %q: %w"
	branchListFailureTemplateConstant       = "unable to list local branches: %w"
	branchDeletionFailureTemplateConstant   = "failed to delete existing branch %q: %w"
	branchCreationFailureTemplateConstant   = "failed to create branch %q from %q: %w"
	pullFailureTemplateConstant             = "failed to pull %q from %s: %w"
	fetchFailureTemplateConstant            = "unable to fetch pull request #%d: %w"
	authorFieldNameConstant                 = "source author"
	sourceBranchFieldNameConstant           = "source branch"
	baseBranchFieldNameConstant             = "base branch"
	mergedTitleTemplateConstant             = "PR #%d is already merged."
	mergedAtTemplateConstant                = "Merged at: %s"
	mergedByTemplateConstant                = "Merged by: %s"
	closedTemplateConstant                  = "PR #%d is closed."
	bannerTitleTemplateConstant             = "Pulling PR #%d: %s"
	bannerIncomingTemplateConstant          = "Incoming branch: %s"
	bannerBaseTemplateConstant              = "Base branch   : %s"
	bannerLocalTemplateConstant             = "Local branch  : %s"
	branchRefreshingTemplateConstant        = "Branch %s exists, refreshing it."
	branchMissingTemplateConstant           = "Branch %s does not exist."
	branchReadyTemplateConstant             = "Branch %s is ready for use."
	pulledTemplateConstant                  = "Pulled PR #%d: %s"
	referenceOptionPrefixConstant           = "-"
	logMessageCheckoutSkippedConstant       = "pull request checkout skipped"
	logMessageCheckoutCompletedConstant     = "pull request checked out"
	logFieldNumberConstant                  = "number"
	logFieldOutcomeConstant                 = "outcome"
	logFieldLocalBranchConstant             = "local_branch"
	logFieldBaseBranchConstant              = "base_branch"
	logFieldRefreshedConstant               = "refreshed"
	logFieldWebURLConstant                  = "url"
)

// Outcome enumerates how a checkout request concluded.
type Outcome string

// Supported outcomes.
const (
	OutcomeMerged     Outcome = Outcome("merged")
	OutcomeClosed     Outcome = Outcome("closed")
	OutcomeCheckedOut Outcome = Outcome("checked_out")
)

var (
	// ErrRepositoryPathRequired indicates the repository path option was empty.
	ErrRepositoryPathRequired = errors.New(repositoryPathRequiredMessageConstant)
	// ErrPullRequestNumberInvalid indicates a zero or negative pull request number.
	ErrPullRequestNumberInvalid = errors.New(pullRequestNumberInvalidMessageConstant)
	// ErrFetcherNotConfigured indicates the pull request fetcher dependency was missing.
	ErrFetcherNotConfigured = errors.New(fetcherMissingMessageConstant)
	// ErrRepositoryManagerNotConfigured indicates the repository manager dependency was missing.
	ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)
	// ErrSourceRepositoryUnavailable indicates an open pull request whose head repository is gone.
	ErrSourceRepositoryUnavailable = errors.New(sourceRepositoryMissingMessageConstant)
	// ErrUnsafeReference indicates pull request metadata that cannot safely be passed to git.
	ErrUnsafeReference = errors.New(unsafeReferenceMessageConstant)
)

// PullRequestFetcher retrieves pull request metadata and resolves fork URLs.
type PullRequestFetcher interface {
	FetchPullRequest(executionContext context.Context, owner string, repository string, number int) (forge.PullRequest, error)
	RepositoryURL(fullName string) (string, error)
}

// RepositoryManager is the subset of gitrepo.RepositoryManager used for checkouts.
type RepositoryManager interface {
	CurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
	LocalBranches(executionContext context.Context, repositoryPath string) ([]gitrepo.Branch, error)
	CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string) error
	DeleteBranch(executionContext context.Context, repositoryPath string, branchName string, force bool) error
	CreateBranch(executionContext context.Context, repositoryPath string, branchName string, startPoint string) error
	PullBranch(executionContext context.Context, repositoryPath string, repositoryURL string, reference string) error
}

// Reporter prints user-facing status lines.
type Reporter interface {
	Report(tone ui.Tone, message string)
}

// ServiceDependencies enumerates collaborators required by the service.
type ServiceDependencies struct {
	Fetcher    PullRequestFetcher
	Repository RepositoryManager
	Reporter   Reporter
	Logger     *zap.Logger
}

// Options configure a pull request checkout.
type Options struct {
	RepositoryPath string
	Owner          string
	Repository     string
	Number         int
}

// Result captures the outcome of a pull request checkout.
type Result struct {
	Outcome             Outcome
	Number              int
	Title               string
	LocalBranch         string
	BaseBranch          string
	SourceRepositoryURL string
	WebURL              string
	SwitchedToBase      bool
	Refreshed           bool
}

// Service checks pull requests out as local branches.
type Service struct {
	fetcher    PullRequestFetcher
	repository RepositoryManager
	reporter   Reporter
	logger     *zap.Logger
}

type discardReporter struct{}

func (discardReporter) Report(ui.Tone, string) {}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Fetcher == nil {
		return nil, ErrFetcherNotConfigured
	}
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

	return &Service{fetcher: dependencies.Fetcher, repository: dependencies.Repository, reporter: reporter, logger: logger}, nil
}

// LocalBranchName derives the local branch a pull request is checked out into.
func LocalBranchName(number int, author string, sourceBranch string) string {
	return fmt.Sprintf(localBranchNameTemplateConstant, number, author, sourceBranch)
}

// Checkout fetches the pull request and, when it is still open, recreates its
// local branch from the base branch and pulls the source branch into it.
// Merged and closed pull requests are reported without touching the repository.
func (service *Service) Checkout(executionContext context.Context, options Options) (Result, error) {
	repositoryPath := strings.TrimSpace(options.RepositoryPath)
	if len(repositoryPath) == 0 {
		return Result{}, ErrRepositoryPathRequired
	}
	if options.Number <= 0 {
		return Result{}, ErrPullRequestNumberInvalid
	}

	owner := valueOrDefault(options.Owner, DefaultOwner)
	repositoryName := valueOrDefault(options.Repository, DefaultRepository)

	pullRequest, fetchError := service.fetcher.FetchPullRequest(executionContext, owner, repositoryName, options.Number)
	if fetchError != nil {
		return Result{}, fmt.Errorf(fetchFailureTemplateConstant, options.Number, fetchError)
	}

	result := Result{Number: options.Number, Title: pullRequest.Title, WebURL: strings.TrimSpace(pullRequest.HTMLURL)}

	if pullRequest.IsMerged() {
		service.reporter.Report(ui.ToneSuccess, fmt.Sprintf(mergedTitleTemplateConstant, options.Number))
		service.reporter.Report(ui.TonePlain, fmt.Sprintf(mergedAtTemplateConstant, pullRequest.MergedAt))
		service.reporter.Report(ui.TonePlain, fmt.Sprintf(mergedByTemplateConstant, pullRequest.MergedByName()))
		result.Outcome = OutcomeMerged
		service.logSkipped(result)
		return result, nil
	}

	if pullRequest.IsClosed() {
		service.reporter.Report(ui.ToneFailure, fmt.Sprintf(closedTemplateConstant, options.Number))
		result.Outcome = OutcomeClosed
		service.logSkipped(result)
		return result, nil
	}

	sourceRepository := pullRequest.SourceRepositoryFullName()
	if len(sourceRepository) == 0 {
		return Result{}, ErrSourceRepositoryUnavailable
	}

	author, sourceBranch, baseBranch, referenceError := extractReferences(options.Number, pullRequest)
	if referenceError != nil {
		return Result{}, referenceError
	}

	sourceRepositoryURL, urlError := service.fetcher.RepositoryURL(sourceRepository)
	if urlError != nil {
		return Result{}, fmt.Errorf(repositoryURLFailureTemplateConstant, sourceRepository, urlError)
	}

	localBranch := LocalBranchName(options.Number, author, sourceBranch)
	result.LocalBranch = localBranch
	result.BaseBranch = baseBranch
	result.SourceRepositoryURL = sourceRepositoryURL

	service.reporter.Report(ui.ToneHighlight, fmt.Sprintf(bannerTitleTemplateConstant, options.Number, pullRequest.Title))
	service.reporter.Report(ui.ToneMuted, fmt.Sprintf(bannerIncomingTemplateConstant, sourceRepository))
	service.reporter.Report(ui.ToneMuted, fmt.Sprintf(bannerBaseTemplateConstant, baseBranch))
	service.reporter.Report(ui.ToneMuted, fmt.Sprintf(bannerLocalTemplateConstant, localBranch))

	currentBranch, currentBranchError := service.repository.CurrentBranch(executionContext, repositoryPath)
	if currentBranchError != nil {
		return Result{}, fmt.Errorf(currentBranchFailureTemplateConstant, currentBranchError)
	}
	if currentBranch != baseBranch {
		if checkoutError := service.repository.CheckoutBranch(executionContext, repositoryPath, baseBranch); checkoutError != nil {
			return Result{}, fmt.Errorf(baseCheckoutFailureTemplateConstant, baseBranch, checkoutError)
		}
		result.SwitchedToBase = true
	}

	localBranches, listError := service.repository.LocalBranches(executionContext, repositoryPath)
	if listError != nil {
		return Result{}, fmt.Errorf(branchListFailureTemplateConstant, listError)
	}
	if gitrepo.ContainsBranch(localBranches, localBranch) {
		service.reporter.Report(ui.ToneHighlight, fmt.Sprintf(branchRefreshingTemplateConstant, localBranch))
		if deleteError := service.repository.DeleteBranch(executionContext, repositoryPath, localBranch, true); deleteError != nil {
			return Result{}, fmt.Errorf(branchDeletionFailureTemplateConstant, localBranch, deleteError)
		}
		result.Refreshed = true
	} else {
		service.reporter.Report(ui.ToneNotice, fmt.Sprintf(branchMissingTemplateConstant, localBranch))
	}

	if createError := service.repository.CreateBranch(executionContext, repositoryPath, localBranch, baseBranch); createError != nil {
		return Result{}, fmt.Errorf(branchCreationFailureTemplateConstant, localBranch, baseBranch, createError)
	}

	if pullError := service.repository.PullBranch(executionContext, repositoryPath, sourceRepositoryURL, sourceBranch); pullError != nil {
		return Result{}, fmt.Errorf(pullFailureTemplateConstant, sourceBranch, sourceRepositoryURL, pullError)
	}

	service.reporter.Report(ui.ToneHighlight, fmt.Sprintf(branchReadyTemplateConstant, localBranch))
	service.reporter.Report(ui.ToneInformation, fmt.Sprintf(pulledTemplateConstant, options.Number, pullRequest.Title))

	result.Outcome = OutcomeCheckedOut
	service.logger.Info(
		logMessageCheckoutCompletedConstant,
		zap.Int(logFieldNumberConstant, result.Number),
		zap.String(logFieldLocalBranchConstant, result.LocalBranch),
		zap.String(logFieldBaseBranchConstant, result.BaseBranch),
		zap.Bool(logFieldRefreshedConstant, result.Refreshed),
		zap.String(logFieldWebURLConstant, result.WebURL),
	)

	return result, nil
}

func (service *Service) logSkipped(result Result) {
	service.logger.Info(
		logMessageCheckoutSkippedConstant,
		zap.Int(logFieldNumberConstant, result.Number),
		zap.String(logFieldOutcomeConstant, string(result.Outcome)),
		zap.String(logFieldWebURLConstant, result.WebURL),
	)
}

func extractReferences(number int, pullRequest forge.PullRequest) (string, string, string, error) {
	fields := []struct {
		name  string
		value string
	}{
		{name: authorFieldNameConstant, value: pullRequest.SourceAuthor()},
		{name: sourceBranchFieldNameConstant, value: pullRequest.SourceBranch()},
		{name: baseBranchFieldNameConstant, value: pullRequest.TargetBranch()},
	}

	for _, field := range fields {
		if len(field.value) == 0 {
			return "", "", "", fmt.Errorf(missingFieldTemplateConstant, number, field.name, ErrUnsafeReference)
		}
		if !isSafeReference(field.value) {
			return "", "", "", fmt.Errorf(unsafeReferenceTemplateConstant, field.name, field.value, ErrUnsafeReference)
		}
	}

	return fields[0].value, fields[1].value, fields[2].value, nil
}

// isSafeReference rejects values git would read as an option or that embed
// whitespace or control characters.
func isSafeReference(value string) bool {
	if strings.HasPrefix(value, referenceOptionPrefixConstant) {
		return false
	}
	for _, character := range value {
		if unicode.IsSpace(character) || unicode.IsControl(character) {
			return false
		}
	}
	return true
}

func valueOrDefault(value string, fallback string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallback
	}
	return trimmedValue
}
