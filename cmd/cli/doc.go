// Package cli builds the pr-tool command: a single Cobra root command that
// checks out a projects.blender.org pull request or prunes local branches.
// It loads configuration, constructs the zap logger, and maps failures to
// process exit codes through ExitCode and ReportFailure.
package cli
