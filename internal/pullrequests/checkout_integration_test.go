package pullrequests_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/pr-tool/internal/execshell"
	"github.com/temirov/pr-tool/internal/forge"
	"github.com/temirov/pr-tool/internal/gitrepo"
	"github.com/temirov/pr-tool/internal/pullrequests"
)

const (
	integrationGitExecutableNameConstant = "git"
	integrationBaseDirectoryNameConstant = "blender"
	integrationForkDirectoryNameConstant = "fork"
	integrationTrackedFileNameConstant   = "readme.txt"
	integrationMainBranchNameConstant    = "main"
	integrationFeatureBranchNameConstant = "feature-x"
	integrationUserNameConstant          = "Integration Tester"
	integrationUserEmailConstant         = "tester@example.com"
	integrationGitCommandTimeoutConstant = 10 * time.Second
)

// localForkFetcher serves a fixed open pull request whose head lives in a local fork.
type localForkFetcher struct {
	forkPath string
}

func (fetcher localForkFetcher) FetchPullRequest(_ context.Context, _ string, _ string, number int) (forge.PullRequest, error) {
	pullRequest := openPullRequest()
	pullRequest.Number = number
	pullRequest.Head.Ref = integrationFeatureBranchNameConstant
	return pullRequest, nil
}

func (fetcher localForkFetcher) RepositoryURL(string) (string, error) {
	return fetcher.forkPath, nil
}

func TestCheckoutIntegration(testInstance *testing.T) {
	if _, lookupError := exec.LookPath(integrationGitExecutableNameConstant); lookupError != nil {
		testInstance.Skip("git executable not available")
	}

	temporaryRoot := testInstance.TempDir()
	baseRepositoryPath := filepath.Join(temporaryRoot, integrationBaseDirectoryNameConstant)
	forkRepositoryPath := filepath.Join(temporaryRoot, integrationForkDirectoryNameConstant)

	runGitCommand(testInstance, temporaryRoot, "init", baseRepositoryPath)
	configureRepository(testInstance, baseRepositoryPath)
	writeTrackedFile(testInstance, baseRepositoryPath, "base\n")
	runGitCommand(testInstance, baseRepositoryPath, "add", integrationTrackedFileNameConstant)
	runGitCommand(testInstance, baseRepositoryPath, "commit", "-m", "Initial commit")
	runGitCommand(testInstance, baseRepositoryPath, "branch", "-M", integrationMainBranchNameConstant)

	runGitCommand(testInstance, temporaryRoot, "clone", baseRepositoryPath, forkRepositoryPath)
	configureRepository(testInstance, forkRepositoryPath)
	runGitCommand(testInstance, forkRepositoryPath, "checkout", "-b", integrationFeatureBranchNameConstant)
	writeTrackedFile(testInstance, forkRepositoryPath, "base\nfeature\n")
	runGitCommand(testInstance, forkRepositoryPath, "commit", "-am", "Feature commit")
	forkHead := strings.TrimSpace(runGitCommand(testInstance, forkRepositoryPath, "rev-parse", "HEAD"))

	shellExecutor, executorError := execshell.NewShellExecutor(zap.NewNop(), execshell.NewOSCommandRunner())
	require.NoError(testInstance, executorError)
	repositoryManager, managerError := gitrepo.NewRepositoryManager(shellExecutor)
	require.NoError(testInstance, managerError)

	service, serviceError := pullrequests.NewService(pullrequests.ServiceDependencies{
		Fetcher:    localForkFetcher{forkPath: forkRepositoryPath},
		Repository: repositoryManager,
	})
	require.NoError(testInstance, serviceError)

	options := pullrequests.Options{RepositoryPath: baseRepositoryPath, Number: 5}
	expectedLocalBranch := pullrequests.LocalBranchName(5, "alice", integrationFeatureBranchNameConstant)

	firstResult, firstError := service.Checkout(context.Background(), options)
	require.NoError(testInstance, firstError)
	require.False(testInstance, firstResult.Refreshed)
	require.False(testInstance, firstResult.SwitchedToBase)
	require.Equal(testInstance, expectedLocalBranch, strings.TrimSpace(runGitCommand(testInstance, baseRepositoryPath, "branch", "--show-current")))
	require.Equal(testInstance, forkHead, strings.TrimSpace(runGitCommand(testInstance, baseRepositoryPath, "rev-parse", "HEAD")))

	secondResult, secondError := service.Checkout(context.Background(), options)
	require.NoError(testInstance, secondError)
	require.True(testInstance, secondResult.Refreshed)
	require.True(testInstance, secondResult.SwitchedToBase)
	require.Equal(testInstance, expectedLocalBranch, strings.TrimSpace(runGitCommand(testInstance, baseRepositoryPath, "branch", "--show-current")))
	require.Equal(testInstance, forkHead, strings.TrimSpace(runGitCommand(testInstance, baseRepositoryPath, "rev-parse", "HEAD")))
}

func configureRepository(testInstance *testing.T, repositoryPath string) {
	runGitCommand(testInstance, repositoryPath, "config", "user.name", integrationUserNameConstant)
	runGitCommand(testInstance, repositoryPath, "config", "user.email", integrationUserEmailConstant)
}

func writeTrackedFile(testInstance *testing.T, repositoryPath string, contents string) {
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryPath, integrationTrackedFileNameConstant), []byte(contents), 0o644))
}

func runGitCommand(testInstance *testing.T, workingDirectory string, arguments ...string) string {
	testInstance.Helper()
	executionContext, cancelFunction := context.WithTimeout(context.Background(), integrationGitCommandTimeoutConstant)
	defer cancelFunction()

	command := exec.CommandContext(executionContext, integrationGitExecutableNameConstant, arguments...)
	command.Dir = workingDirectory

	outputBytes, commandError := command.CombinedOutput()
	require.NoError(testInstance, commandError, string(outputBytes))
	return string(outputBytes)
}
