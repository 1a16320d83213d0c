// Package execshell runs external tools for pr-tool.
//
// ShellExecutor wraps a CommandRunner with structured logging and typed
// failures, OSCommandRunner starts processes through os/exec using discrete
// argument vectors, and CommandMessageFormatter renders git invocations as
// readable sentences for console output.
package execshell
