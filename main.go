package main

import (
	"os"

	"github.com/temirov/pr-tool/cmd/cli"
)

// main executes the pr-tool command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		os.Exit(cli.ReportFailure(os.Stderr, executionError))
	}
}
