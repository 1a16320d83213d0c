package cli

import (
	"errors"
	"io"

	"github.com/temirov/pr-tool/internal/execshell"
	"github.com/temirov/pr-tool/internal/forge"
	"github.com/temirov/pr-tool/internal/ui"
)

const (
	successExitCodeConstant        = 0
	genericFailureExitCodeConstant = 1
	fetchFailurePrefixConstant     = "Error fetching PR data: "
)

// UsageError reports invalid command-line input.
type UsageError struct {
	Message string
}

// Error returns the usage message.
func (usageError UsageError) Error() string {
	return usageError.Message
}

// ExitCode maps an execution error to the process exit status. Failed git
// commands propagate git's own exit code.
func ExitCode(executionError error) int {
	if executionError == nil {
		return successExitCodeConstant
	}

	var commandFailedError execshell.CommandFailedError
	if errors.As(executionError, &commandFailedError) && commandFailedError.ExitCode() != successExitCodeConstant {
		return commandFailedError.ExitCode()
	}

	return genericFailureExitCodeConstant
}

// ReportFailure prints the error in red and returns the exit code for it.
func ReportFailure(writer io.Writer, executionError error) int {
	exitCode := ExitCode(executionError)
	if executionError == nil || writer == nil {
		return exitCode
	}

	reporter := ui.NewConsoleReporter(writer, ui.ResolveColorProfile(ui.ColorModeAuto, writer))

	var fetchError forge.FetchError
	if errors.As(executionError, &fetchError) {
		reporter.Report(ui.ToneFailure, fetchFailurePrefixConstant+fetchError.Error())
		return exitCode
	}

	reporter.Report(ui.ToneFailure, executionError.Error())
	return exitCode
}
