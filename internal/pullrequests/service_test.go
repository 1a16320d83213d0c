package pullrequests_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/pr-tool/internal/execshell"
	"github.com/temirov/pr-tool/internal/forge"
	"github.com/temirov/pr-tool/internal/gitrepo"
	"github.com/temirov/pr-tool/internal/pullrequests"
	"github.com/temirov/pr-tool/internal/ui"
)

const (
	testRepositoryPathConstant    = "/workspace/blender"
	testPullRequestNumberConstant = 42
	testForkURLConstant           = "https://projects.blender.org/alice/blender"
	testLocalBranchConstant       = "PR/42/alice-feature-x"
	testWebURLConstant            = "https://projects.blender.org/blender/blender/pulls/42"
)

type stubFetcher struct {
	pullRequest    forge.PullRequest
	fetchError     error
	requestedOwner string
	requestedRepo  string
	fetchCalls     int
}

func (fetcher *stubFetcher) FetchPullRequest(_ context.Context, owner string, repository string, number int) (forge.PullRequest, error) {
	fetcher.fetchCalls++
	fetcher.requestedOwner = owner
	fetcher.requestedRepo = repository
	if fetcher.fetchError != nil {
		return forge.PullRequest{}, fetcher.fetchError
	}
	pullRequest := fetcher.pullRequest
	pullRequest.Number = number
	return pullRequest, nil
}

func (fetcher *stubFetcher) RepositoryURL(fullName string) (string, error) {
	return "https://projects.blender.org/" + fullName, nil
}

// scriptedGitExecutor answers by the joined argument vector and records every call.
type scriptedGitExecutor struct {
	outputs  map[string]string
	failures map[string]error
	recorded [][]string
}

func (executor *scriptedGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recorded = append(executor.recorded, details.Arguments)
	key := strings.Join(details.Arguments, " ")
	if failure, exists := executor.failures[key]; exists {
		return execshell.ExecutionResult{}, failure
	}
	return execshell.ExecutionResult{StandardOutput: executor.outputs[key]}, nil
}

type reportedLine struct {
	tone    ui.Tone
	message string
}

type recordingReporter struct {
	lines []reportedLine
}

func (reporter *recordingReporter) Report(tone ui.Tone, message string) {
	reporter.lines = append(reporter.lines, reportedLine{tone: tone, message: message})
}

func (reporter *recordingReporter) messages() []string {
	messages := make([]string, 0, len(reporter.lines))
	for _, line := range reporter.lines {
		messages = append(messages, line.message)
	}
	return messages
}

func openPullRequest() forge.PullRequest {
	return forge.PullRequest{
		Title:   "Fix crash",
		HTMLURL: testWebURLConstant,
		State:   forge.PullRequestStateOpen,
		Head: forge.BranchReference{
			Ref: "feature-x",
			Repository: &forge.Repository{
				FullName: "alice/blender",
				Owner:    &forge.User{Login: "alice", UserName: "alice"},
			},
		},
		Base: forge.BranchReference{Ref: "main"},
	}
}

func newTestService(testInstance *testing.T, fetcher pullrequests.PullRequestFetcher, executor *scriptedGitExecutor, reporter pullrequests.Reporter, logger *zap.Logger) *pullrequests.Service {
	testInstance.Helper()
	manager, managerError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, managerError)

	service, serviceError := pullrequests.NewService(pullrequests.ServiceDependencies{
		Fetcher:    fetcher,
		Repository: manager,
		Reporter:   reporter,
		Logger:     logger,
	})
	require.NoError(testInstance, serviceError)
	return service
}

func checkoutOptions() pullrequests.Options {
	return pullrequests.Options{RepositoryPath: testRepositoryPathConstant, Number: testPullRequestNumberConstant}
}

func TestLocalBranchName(testInstance *testing.T) {
	require.Equal(testInstance, testLocalBranchConstant, pullrequests.LocalBranchName(42, "alice", "feature-x"))
	require.Equal(testInstance, "PR/7/bob-fix/nested", pullrequests.LocalBranchName(7, "bob", "fix/nested"))
}

func TestCheckoutSkipsFinishedPullRequests(testInstance *testing.T) {
	testCases := []struct {
		name            string
		pullRequest     forge.PullRequest
		expectedOutcome pullrequests.Outcome
		expectedLines   []reportedLine
	}{
		{
			name: "merged",
			pullRequest: forge.PullRequest{
				State:    forge.PullRequestStateClosed,
				Merged:   true,
				MergedAt: "2024-01-02T03:04:05Z",
				MergedBy: &forge.User{Login: "bob", FullName: "Bob Builder"},
			},
			expectedOutcome: pullrequests.OutcomeMerged,
			expectedLines: []reportedLine{
				{tone: ui.ToneSuccess, message: "PR #42 is already merged."},
				{tone: ui.TonePlain, message: "Merged at: 2024-01-02T03:04:05Z"},
				{tone: ui.TonePlain, message: "Merged by: Bob Builder"},
			},
		},
		{
			name:            "merged_without_metadata",
			pullRequest:     forge.PullRequest{Merged: true},
			expectedOutcome: pullrequests.OutcomeMerged,
			expectedLines: []reportedLine{
				{tone: ui.ToneSuccess, message: "PR #42 is already merged."},
				{tone: ui.TonePlain, message: "Merged at: "},
				{tone: ui.TonePlain, message: "Merged by: "},
			},
		},
		{
			name:            "closed",
			pullRequest:     forge.PullRequest{State: forge.PullRequestStateClosed},
			expectedOutcome: pullrequests.OutcomeClosed,
			expectedLines: []reportedLine{
				{tone: ui.ToneFailure, message: "PR #42 is closed."},
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{}
			reporter := &recordingReporter{}
			service := newTestService(testInstance, &stubFetcher{pullRequest: testCase.pullRequest}, executor, reporter, nil)

			result, checkoutError := service.Checkout(context.Background(), checkoutOptions())
			require.NoError(testInstance, checkoutError)
			require.Equal(testInstance, testCase.expectedOutcome, result.Outcome)
			require.Empty(testInstance, executor.recorded)
			require.Equal(testInstance, testCase.expectedLines, reporter.lines)
		})
	}
}

func TestCheckoutCommandSequence(testInstance *testing.T) {
	testCases := []struct {
		name             string
		currentBranch    string
		localBranches    string
		expectedCommands [][]string
		expectedNotice   reportedLine
		expectRefreshed  bool
		expectSwitched   bool
	}{
		{
			name:          "fresh_branch_from_other_branch",
			currentBranch: "feature-y\n",
			localBranches: "  main\n* feature-y\n",
			expectedCommands: [][]string{
				{"branch", "--show-current"},
				{"checkout", "main"},
				{"branch"},
				{"checkout", "-b", testLocalBranchConstant, "main"},
				{"pull", "--no-rebase", "--ff", "--no-edit", "--commit", testForkURLConstant, "feature-x"},
			},
			expectedNotice: reportedLine{tone: ui.ToneNotice, message: "Branch PR/42/alice-feature-x does not exist."},
			expectSwitched: true,
		},
		{
			name:          "refresh_existing_branch_on_base",
			currentBranch: "main\n",
			localBranches: "* main\n  PR/42/alice-feature-x\n",
			expectedCommands: [][]string{
				{"branch", "--show-current"},
				{"branch"},
				{"branch", "-D", testLocalBranchConstant},
				{"checkout", "-b", testLocalBranchConstant, "main"},
				{"pull", "--no-rebase", "--ff", "--no-edit", "--commit", testForkURLConstant, "feature-x"},
			},
			expectedNotice:  reportedLine{tone: ui.ToneHighlight, message: "Branch PR/42/alice-feature-x exists, refreshing it."},
			expectRefreshed: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{outputs: map[string]string{
				"branch --show-current": testCase.currentBranch,
				"branch":                testCase.localBranches,
			}}
			reporter := &recordingReporter{}
			observedCore, observedLogs := observer.New(zapcore.InfoLevel)
			service := newTestService(testInstance, &stubFetcher{pullRequest: openPullRequest()}, executor, reporter, zap.New(observedCore))

			result, checkoutError := service.Checkout(context.Background(), checkoutOptions())
			require.NoError(testInstance, checkoutError)

			require.Equal(testInstance, testCase.expectedCommands, executor.recorded)
			require.Equal(testInstance, pullrequests.Result{
				Outcome:             pullrequests.OutcomeCheckedOut,
				Number:              testPullRequestNumberConstant,
				Title:               "Fix crash",
				LocalBranch:         testLocalBranchConstant,
				BaseBranch:          "main",
				SourceRepositoryURL: testForkURLConstant,
				WebURL:              testWebURLConstant,
				SwitchedToBase:      testCase.expectSwitched,
				Refreshed:           testCase.expectRefreshed,
			}, result)

			require.Equal(testInstance, []reportedLine{
				{tone: ui.ToneHighlight, message: "Pulling PR #42: Fix crash"},
				{tone: ui.ToneMuted, message: "Incoming branch: alice/blender"},
				{tone: ui.ToneMuted, message: "Base branch   : main"},
				{tone: ui.ToneMuted, message: "Local branch  : PR/42/alice-feature-x"},
				testCase.expectedNotice,
				{tone: ui.ToneHighlight, message: "Branch PR/42/alice-feature-x is ready for use."},
				{tone: ui.ToneInformation, message: "Pulled PR #42: Fix crash"},
			}, reporter.lines)

			checkedOutLogs := observedLogs.FilterMessage("pull request checked out")
			require.Equal(testInstance, 1, checkedOutLogs.Len())
			require.Equal(testInstance, testWebURLConstant, checkedOutLogs.All()[0].ContextMap()["url"])
		})
	}
}

func TestCheckoutAppliesRepositoryDefaults(testInstance *testing.T) {
	fetcher := &stubFetcher{pullRequest: forge.PullRequest{State: forge.PullRequestStateClosed}}
	service := newTestService(testInstance, fetcher, &scriptedGitExecutor{}, nil, nil)

	_, checkoutError := service.Checkout(context.Background(), checkoutOptions())
	require.NoError(testInstance, checkoutError)
	require.Equal(testInstance, pullrequests.DefaultOwner, fetcher.requestedOwner)
	require.Equal(testInstance, pullrequests.DefaultRepository, fetcher.requestedRepo)

	options := checkoutOptions()
	options.Owner = "blender"
	options.Repository = "blender-manual"
	_, checkoutError = service.Checkout(context.Background(), options)
	require.NoError(testInstance, checkoutError)
	require.Equal(testInstance, "blender-manual", fetcher.requestedRepo)
}

func TestCheckoutFetchFailureRunsNoGitCommands(testInstance *testing.T) {
	fetchFailure := forge.FetchError{Cause: forge.UnexpectedStatusError{StatusCode: 404}}
	executor := &scriptedGitExecutor{}
	reporter := &recordingReporter{}
	service := newTestService(testInstance, &stubFetcher{fetchError: fetchFailure}, executor, reporter, nil)

	_, checkoutError := service.Checkout(context.Background(), checkoutOptions())
	require.Error(testInstance, checkoutError)
	require.True(testInstance, forge.IsFetchError(checkoutError))
	require.Empty(testInstance, executor.recorded)
	require.Empty(testInstance, reporter.lines)
}

func TestCheckoutStopsAtFirstGitFailure(testInstance *testing.T) {
	gitFailure := execshell.CommandFailedError{Result: execshell.ExecutionResult{ExitCode: 1, StandardError: "error: pathspec 'main' did not match"}}
	executor := &scriptedGitExecutor{
		outputs:  map[string]string{"branch --show-current": "feature-y"},
		failures: map[string]error{"checkout main": gitFailure},
	}
	reporter := &recordingReporter{}
	service := newTestService(testInstance, &stubFetcher{pullRequest: openPullRequest()}, executor, reporter, nil)

	_, checkoutError := service.Checkout(context.Background(), checkoutOptions())
	require.Error(testInstance, checkoutError)

	var failedError execshell.CommandFailedError
	require.True(testInstance, errors.As(checkoutError, &failedError))
	require.Equal(testInstance, 1, failedError.ExitCode())
	require.Equal(testInstance, [][]string{{"branch", "--show-current"}, {"checkout", "main"}}, executor.recorded)
	require.NotContains(testInstance, reporter.messages(), "Branch PR/42/alice-feature-x is ready for use.")
}

func TestCheckoutRejectsUnusableMetadata(testInstance *testing.T) {
	testCases := []struct {
		name          string
		mutate        func(pullRequest *forge.PullRequest)
		expectedError error
	}{
		{
			name:          "deleted_fork",
			mutate:        func(pullRequest *forge.PullRequest) { pullRequest.Head.Repository = nil },
			expectedError: pullrequests.ErrSourceRepositoryUnavailable,
		},
		{
			name:          "option_like_branch",
			mutate:        func(pullRequest *forge.PullRequest) { pullRequest.Head.Ref = "--upload-pack=touch pwned" },
			expectedError: pullrequests.ErrUnsafeReference,
		},
		{
			name:          "branch_with_whitespace",
			mutate:        func(pullRequest *forge.PullRequest) { pullRequest.Base.Ref = "main; rm -rf ." },
			expectedError: pullrequests.ErrUnsafeReference,
		},
		{
			name:          "missing_author",
			mutate:        func(pullRequest *forge.PullRequest) { pullRequest.Head.Repository.Owner = nil },
			expectedError: pullrequests.ErrUnsafeReference,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			pullRequest := openPullRequest()
			testCase.mutate(&pullRequest)
			executor := &scriptedGitExecutor{}
			service := newTestService(testInstance, &stubFetcher{pullRequest: pullRequest}, executor, nil, nil)

			_, checkoutError := service.Checkout(context.Background(), checkoutOptions())
			require.ErrorIs(testInstance, checkoutError, testCase.expectedError)
			require.Empty(testInstance, executor.recorded)
		})
	}
}

func TestCheckoutValidatesInputs(testInstance *testing.T) {
	fetcher := &stubFetcher{}
	service := newTestService(testInstance, fetcher, &scriptedGitExecutor{}, nil, nil)

	_, checkoutError := service.Checkout(context.Background(), pullrequests.Options{Number: 1})
	require.ErrorIs(testInstance, checkoutError, pullrequests.ErrRepositoryPathRequired)

	_, checkoutError = service.Checkout(context.Background(), pullrequests.Options{RepositoryPath: testRepositoryPathConstant})
	require.ErrorIs(testInstance, checkoutError, pullrequests.ErrPullRequestNumberInvalid)

	require.Zero(testInstance, fetcher.fetchCalls)
}

func TestNewServiceRequiresDependencies(testInstance *testing.T) {
	_, serviceError := pullrequests.NewService(pullrequests.ServiceDependencies{})
	require.ErrorIs(testInstance, serviceError, pullrequests.ErrFetcherNotConfigured)

	_, serviceError = pullrequests.NewService(pullrequests.ServiceDependencies{Fetcher: &stubFetcher{}})
	require.ErrorIs(testInstance, serviceError, pullrequests.ErrRepositoryManagerNotConfigured)
}
