package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/pr-tool/internal/ui"
)

func TestParsePullRequestNumber(t *testing.T) {
	testCases := []struct {
		name           string
		rawValue       string
		expectedNumber int
		expectError    bool
	}{
		{name: "Plain", rawValue: "12345", expectedNumber: 12345},
		{name: "HashPrefixed", rawValue: "#77", expectedNumber: 77},
		{name: "Padded", rawValue: " 9 ", expectedNumber: 9},
		{name: "Zero", rawValue: "0", expectError: true},
		{name: "Text", rawValue: "twelve", expectError: true},
		{name: "Empty", rawValue: "", expectError: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			parsedNumber, parseError := parsePullRequestNumber(testCase.rawValue)
			if testCase.expectError {
				var usageError UsageError
				require.ErrorAs(t, parseError, &usageError)
				return
			}
			require.NoError(t, parseError)
			require.Equal(t, testCase.expectedNumber, parsedNumber)
		})
	}
}

func TestInitializeConfigurationAppliesChangedFlags(t *testing.T) {
	application := NewApplicationWithDependencies(ApplicationDependencies{Logger: zap.NewNop()})
	command := application.Command()
	require.NoError(t, command.ParseFlags([]string{
		"--owner", "studio",
		"--forge-url", "https://forge.example.org",
		"--color", "always",
		"--log-level", "DEBUG",
	}))

	require.NoError(t, application.initializeConfiguration(command))

	configuration := application.Configuration()
	require.Equal(t, "studio", configuration.Checkout.Owner)
	require.Equal(t, "blender", configuration.Checkout.Repository)
	require.Equal(t, "https://forge.example.org", configuration.Forge.BaseURL)
	require.Equal(t, "debug", configuration.Common.LogLevel)
	require.Equal(t, []string{"main", "master"}, configuration.Prune.ProtectedBranches)
	require.Equal(t, ui.ColorModeAlways, application.colorMode)

	_, found := application.commandContextAccessor.ConfigurationFilePath(command.Context())
	require.True(t, found)
}

func TestInitializeConfigurationRejectsUnknownColorMode(t *testing.T) {
	application := NewApplicationWithDependencies(ApplicationDependencies{Logger: zap.NewNop()})
	command := application.Command()
	require.NoError(t, command.ParseFlags([]string{"--color", "sometimes"}))

	require.Error(t, application.initializeConfiguration(command))
}
