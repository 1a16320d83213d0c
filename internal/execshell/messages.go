package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	standardErrorSuffixTemplateConstant     = ": %s"
	exitCodeSuffixTemplateConstant          = " (exit code %d%s)"
	executionFailureSuffixTemplateConstant  = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	allRemotesLabelConstant                 = "all remotes"
	flagPrefixConstant                      = "-"
)

const (
	gitBranchSubcommandConstant   = "branch"
	gitCheckoutSubcommandConstant = "checkout"
	gitPullSubcommandConstant     = "pull"
	gitFetchSubcommandConstant    = "fetch"
	gitShowCurrentFlagConstant    = "--show-current"
	gitMergedFlagConstant         = "--merged"
	gitVeryVerboseFlagConstant    = "-vv"
	gitDeleteFlagConstant         = "-d"
	gitForceDeleteFlagConstant    = "-D"
	gitCreateBranchFlagConstant   = "-b"
)

// messageTemplates holds the four lifecycle sentences of one git verb. The
// failure and execution-failure sentences receive a suffix with details.
type messageTemplates struct {
	started         string
	succeeded       string
	failed          string
	executionFailed string
}

var (
	currentBranchTemplates = messageTemplates{
		started:         "Identifying current branch in %s",
		succeeded:       "Identified current branch in %s",
		failed:          "Failed to identify current branch in %s",
		executionFailed: "Unable to identify current branch in %s",
	}
	branchListTemplates = messageTemplates{
		started:         "Listing local branches in %s",
		succeeded:       "Listed local branches in %s",
		failed:          "Failed to list local branches in %s",
		executionFailed: "Unable to list local branches in %s",
	}
	mergedBranchListTemplates = messageTemplates{
		started:         "Listing merged branches in %s",
		succeeded:       "Listed merged branches in %s",
		failed:          "Failed to list merged branches in %s",
		executionFailed: "Unable to list merged branches in %s",
	}
	trackingBranchListTemplates = messageTemplates{
		started:         "Inspecting branch tracking state in %s",
		succeeded:       "Inspected branch tracking state in %s",
		failed:          "Failed to inspect branch tracking state in %s",
		executionFailed: "Unable to inspect branch tracking state in %s",
	}
	branchDeletionTemplates = messageTemplates{
		started:         "Removing local branch %s in %s",
		succeeded:       "Removed local branch %s in %s",
		failed:          "Failed to remove local branch %s in %s",
		executionFailed: "Unable to remove local branch %s in %s",
	}
	branchForceDeletionTemplates = messageTemplates{
		started:         "Force removing local branch %s in %s",
		succeeded:       "Force removed local branch %s in %s",
		failed:          "Failed to force remove local branch %s in %s",
		executionFailed: "Unable to force remove local branch %s in %s",
	}
	checkoutTemplates = messageTemplates{
		started:         "Switching %s to branch %s",
		succeeded:       "%s now on branch %s",
		failed:          "Failed to switch %s to branch %s",
		executionFailed: "Unable to switch %s to branch %s",
	}
	branchCreationTemplates = messageTemplates{
		started:         "Creating branch %s from %s in %s",
		succeeded:       "Created branch %s from %s in %s",
		failed:          "Failed to create branch %s from %s in %s",
		executionFailed: "Unable to create branch %s from %s in %s",
	}
	pullTemplates = messageTemplates{
		started:         "Pulling %s from %s in %s",
		succeeded:       "Pulled %s from %s in %s",
		failed:          "Failed to pull %s from %s in %s",
		executionFailed: "Unable to pull %s from %s in %s",
	}
	fetchTemplates = messageTemplates{
		started:         "Fetching from %s in %s",
		succeeded:       "Fetched from %s in %s",
		failed:          "Failed to fetch from %s in %s",
		executionFailed: "Unable to fetch from %s in %s",
	}
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a command that exited with code zero.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that exited with a non-zero code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing a command that could not run.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	templates, values, recognized := formatter.describeGitCommand(command)
	if !recognized {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.started, values...)
	case messageStageSuccess:
		return fmt.Sprintf(templates.succeeded, values...)
	case messageStageFailure:
		return fmt.Sprintf(templates.failed, values...) + fmt.Sprintf(exitCodeSuffixTemplateConstant, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(templates.executionFailed, values...) + fmt.Sprintf(executionFailureSuffixTemplateConstant, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

// describeGitCommand selects the templates for a git invocation and the values they interpolate.
func (formatter CommandMessageFormatter) describeGitCommand(command ShellCommand) (messageTemplates, []any, bool) {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return messageTemplates{}, nil, false
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	subcommandArguments := arguments[1:]

	switch strings.TrimSpace(arguments[0]) {
	case gitBranchSubcommandConstant:
		return formatter.describeGitBranch(subcommandArguments, workingDirectory)
	case gitCheckoutSubcommandConstant:
		positionalArguments := positionalArgumentsOf(subcommandArguments)
		if containsArgument(subcommandArguments, gitCreateBranchFlagConstant) {
			return branchCreationTemplates, []any{formatter.ensureValue(argumentAtIndex(positionalArguments, 0)), formatter.ensureValue(argumentAtIndex(positionalArguments, 1)), workingDirectory}, true
		}
		return checkoutTemplates, []any{workingDirectory, formatter.ensureValue(argumentAtIndex(positionalArguments, 0))}, true
	case gitPullSubcommandConstant:
		positionalArguments := positionalArgumentsOf(subcommandArguments)
		return pullTemplates, []any{formatter.ensureValue(argumentAtIndex(positionalArguments, 1)), formatter.ensureValue(argumentAtIndex(positionalArguments, 0)), workingDirectory}, true
	case gitFetchSubcommandConstant:
		remoteName := argumentAtIndex(positionalArgumentsOf(subcommandArguments), 0)
		if len(remoteName) == 0 {
			remoteName = allRemotesLabelConstant
		}
		return fetchTemplates, []any{remoteName, workingDirectory}, true
	default:
		return messageTemplates{}, nil, false
	}
}

func (formatter CommandMessageFormatter) describeGitBranch(arguments []string, workingDirectory string) (messageTemplates, []any, bool) {
	switch {
	case containsArgument(arguments, gitShowCurrentFlagConstant):
		return currentBranchTemplates, []any{workingDirectory}, true
	case containsArgument(arguments, gitMergedFlagConstant):
		return mergedBranchListTemplates, []any{workingDirectory}, true
	case containsArgument(arguments, gitVeryVerboseFlagConstant):
		return trackingBranchListTemplates, []any{workingDirectory}, true
	case containsArgument(arguments, gitForceDeleteFlagConstant):
		return branchForceDeletionTemplates, []any{formatter.ensureValue(argumentAtIndex(positionalArgumentsOf(arguments), 0)), workingDirectory}, true
	case containsArgument(arguments, gitDeleteFlagConstant):
		return branchDeletionTemplates, []any{formatter.ensureValue(argumentAtIndex(positionalArgumentsOf(arguments), 0)), workingDirectory}, true
	case len(positionalArgumentsOf(arguments)) == 0:
		return branchListTemplates, []any{workingDirectory}, true
	default:
		return messageTemplates{}, nil, false
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := describeCommand(command)
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return commandLabel
	}
	return commandLabel + fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func positionalArgumentsOf(arguments []string) []string {
	positionalArguments := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, flagPrefixConstant) {
			continue
		}
		positionalArguments = append(positionalArguments, trimmed)
	}
	return positionalArguments
}

func argumentAtIndex(arguments []string, index int) string {
	if index >= 0 && index < len(arguments) {
		return arguments[index]
	}
	return emptyStringConstant
}
