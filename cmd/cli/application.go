package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/pr-tool/internal/branches"
	"github.com/temirov/pr-tool/internal/execshell"
	"github.com/temirov/pr-tool/internal/forge"
	"github.com/temirov/pr-tool/internal/gitrepo"
	"github.com/temirov/pr-tool/internal/pullrequests"
	"github.com/temirov/pr-tool/internal/ui"
	"github.com/temirov/pr-tool/internal/utils"
	pathutils "github.com/temirov/pr-tool/internal/utils/path"
)

const (
	applicationNameConstant                  = "pr-tool"
	applicationUseConstant                   = applicationNameConstant + " [pr_number]"
	applicationShortDescriptionConstant      = "Manage Blender pull requests and prune local branches."
	applicationLongDescriptionConstant       = "Manage Blender pull requests and prune local branches.\n\nWith a pull request number, pr-tool fetches the pull request from projects.blender.org and checks it out as PR/<number>/<author>-<branch>. With --prune, it deletes local branches that are merged or whose upstream is gone."
	applicationExampleConstant               = "  Fetch and checkout a pull request:\n    pr-tool 12345\n\n  Specify a different repository:\n    pr-tool 12345 --repo blender-manual\n\n  Prune local branches:\n    pr-tool --prune"
	ownerFlagNameConstant                    = "owner"
	ownerFlagShorthandConstant               = "o"
	ownerFlagUsageConstant                   = "Repository owner."
	repositoryFlagNameConstant               = "repo"
	repositoryFlagShorthandConstant          = "r"
	repositoryFlagUsageConstant              = "Repository name."
	pruneFlagNameConstant                    = "prune"
	pruneFlagUsageConstant                   = "Prune local branches that have been merged or are stale."
	directoryFlagNameConstant                = "directory"
	directoryFlagShorthandConstant           = "C"
	directoryFlagUsageConstant               = "Repository directory to operate on."
	forgeURLFlagNameConstant                 = "forge-url"
	forgeURLFlagUsageConstant                = "Base URL of the forge serving pull request metadata."
	configFileFlagNameConstant               = "config"
	configFileFlagUsageConstant              = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                 = "log-level"
	logLevelFlagUsageConstant                = "Override the configured log level (debug, info, warn, error)."
	logFormatFlagNameConstant                = "log-format"
	logFormatFlagUsageConstant               = "Override the configured log format (structured or console)."
	colorFlagNameConstant                    = "color"
	colorFlagUsageConstant                   = "Colorize output: auto, always, or never."
	defaultDirectoryConstant                 = "."
	environmentPrefixConstant                = "PRTOOL"
	configurationNameConstant                = "config"
	configurationTypeConstant                = "yaml"
	userConfigurationDirectoryNameConstant   = "pr-tool"
	userConfigurationParentDirectoryConstant = ".config"
	defaultConfigurationSearchPathConstant   = "."
	commonLogLevelConfigKeyConstant          = "common.log_level"
	commonLogFormatConfigKeyConstant         = "common.log_format"
	commonColorConfigKeyConstant             = "common.color"
	forgeBaseURLConfigKeyConstant            = "forge.base_url"
	forgeTimeoutConfigKeyConstant            = "forge.timeout"
	checkoutOwnerConfigKeyConstant           = "checkout.owner"
	checkoutRepositoryConfigKeyConstant      = "checkout.repository"
	pruneProtectedBranchesConfigKeyConstant  = "prune.protected_branches"
	defaultForgeTimeoutConstant              = 30 * time.Second
	configurationInitializedMessageConstant  = "configuration initialized"
	configurationLogLevelFieldConstant       = "log_level"
	configurationLogFormatFieldConstant      = "log_format"
	configurationFileFieldConstant           = "config_file"
	logFieldRepositoryPathConstant           = "repository_path"
	logFieldPullRequestNumberConstant        = "pull_request_number"
	checkoutRequestedMessageConstant         = "pull request checkout requested"
	pruneRequestedMessageConstant            = "branch prune requested"
	configurationLoadErrorTemplateConstant   = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant      = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant          = "unable to flush logger: %w"
	pullRequestNumberErrorTemplateConstant   = "invalid pr_number %q: must be a positive integer"
	loggerNotInitializedMessageConstant      = "logger not initialized"
)

// ApplicationConfiguration describes the persisted configuration for the CLI.
type ApplicationConfiguration struct {
	Common   ApplicationCommonConfiguration   `mapstructure:"common"`
	Forge    ApplicationForgeConfiguration    `mapstructure:"forge"`
	Checkout ApplicationCheckoutConfiguration `mapstructure:"checkout"`
	Prune    branches.PruneConfiguration      `mapstructure:"prune"`
}

// ApplicationCommonConfiguration stores logging and output settings.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Color     string `mapstructure:"color"`
}

// ApplicationForgeConfiguration locates the forge REST API.
type ApplicationForgeConfiguration struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ApplicationCheckoutConfiguration holds the default repository for pull request checkouts.
type ApplicationCheckoutConfiguration struct {
	Owner      string `mapstructure:"owner"`
	Repository string `mapstructure:"repository"`
}

// ApplicationDependencies overrides collaborators, primarily for tests. Zero values select production implementations.
type ApplicationDependencies struct {
	CommandRunner execshell.CommandRunner
	HTTPClient    forge.HTTPClient
	Logger        *zap.Logger
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	dependencies           ApplicationDependencies
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	colorMode              ui.ColorMode
	commandContextAccessor utils.CommandContextAccessor
	directoryResolver      *pathutils.RepositoryDirectoryResolver
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	colorFlagValue         string
	forgeURLFlagValue      string
	directoryFlagValue     string
	ownerFlagValue         string
	repositoryFlagValue    string
	pruneFlagValue         bool
}

// NewApplication assembles a CLI application backed by git and the network.
func NewApplication() *Application {
	return NewApplicationWithDependencies(ApplicationDependencies{})
}

// NewApplicationWithDependencies assembles a CLI application around the supplied collaborators.
func NewApplicationWithDependencies(dependencies ApplicationDependencies) *Application {
	homeExpander := pathutils.NewHomeExpander()

	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(),
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		dependencies:           dependencies,
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		colorMode:              ui.ColorModeAuto,
		commandContextAccessor: utils.NewCommandContextAccessor(),
		directoryResolver:      pathutils.NewRepositoryDirectoryResolver(homeExpander),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationUseConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Example:       applicationExampleConstant,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())

	flags := cobraCommand.Flags()
	flags.StringVarP(&application.ownerFlagValue, ownerFlagNameConstant, ownerFlagShorthandConstant, pullrequests.DefaultOwner, ownerFlagUsageConstant)
	flags.StringVarP(&application.repositoryFlagValue, repositoryFlagNameConstant, repositoryFlagShorthandConstant, pullrequests.DefaultRepository, repositoryFlagUsageConstant)
	flags.BoolVar(&application.pruneFlagValue, pruneFlagNameConstant, false, pruneFlagUsageConstant)

	persistentFlags := cobraCommand.PersistentFlags()
	persistentFlags.StringVarP(&application.directoryFlagValue, directoryFlagNameConstant, directoryFlagShorthandConstant, defaultDirectoryConstant, directoryFlagUsageConstant)
	persistentFlags.StringVar(&application.forgeURLFlagValue, forgeURLFlagNameConstant, forge.DefaultBaseURL, forgeURLFlagUsageConstant)
	persistentFlags.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlags.StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	persistentFlags.StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	persistentFlags.StringVar(&application.colorFlagValue, colorFlagNameConstant, "", colorFlagUsageConstant)

	application.rootCommand = cobraCommand

	return application
}

// SetArguments replaces the arguments parsed by the root command.
func (application *Application) SetArguments(arguments []string) {
	application.rootCommand.SetArgs(arguments)
}

// Command exposes the root command, for example to redirect its output.
func (application *Application) Command() *cobra.Command {
	return application.rootCommand
}

// Configuration returns the configuration resolved during the last execution.
func (application *Application) Configuration() ApplicationConfiguration {
	return application.configuration
}

// Execute runs the root command and flushes the logger.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command.
func Execute() error {
	return NewApplication().Execute()
}

// DefaultConfigurationValues lists fallbacks applied beneath the embedded configuration.
func DefaultConfigurationValues() map[string]any {
	return map[string]any{
		commonLogLevelConfigKeyConstant:         string(utils.LogLevelError),
		commonLogFormatConfigKeyConstant:        string(utils.LogFormatConsole),
		commonColorConfigKeyConstant:            string(ui.ColorModeAuto),
		forgeBaseURLConfigKeyConstant:           forge.DefaultBaseURL,
		forgeTimeoutConfigKeyConstant:           defaultForgeTimeoutConstant.String(),
		checkoutOwnerConfigKeyConstant:          pullrequests.DefaultOwner,
		checkoutRepositoryConfigKeyConstant:     pullrequests.DefaultRepository,
		pruneProtectedBranchesConfigKeyConstant: branches.DefaultPruneConfiguration().ProtectedBranches,
	}
}

func configurationSearchPaths() []string {
	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDirectory, userConfigurationParentDirectoryConstant, userConfigurationDirectoryNameConstant))
	}
	return searchPaths
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, DefaultConfigurationValues(), &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if application.flagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.flagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}
	if application.flagChanged(command, colorFlagNameConstant) {
		application.configuration.Common.Color = application.colorFlagValue
	}
	if application.flagChanged(command, forgeURLFlagNameConstant) {
		application.configuration.Forge.BaseURL = application.forgeURLFlagValue
	}
	if application.flagChanged(command, ownerFlagNameConstant) {
		application.configuration.Checkout.Owner = application.ownerFlagValue
	}
	if application.flagChanged(command, repositoryFlagNameConstant) {
		application.configuration.Checkout.Repository = application.repositoryFlagValue
	}
	application.configuration.Prune = application.configuration.Prune.Sanitize()

	colorMode, colorError := ui.ParseColorMode(application.configuration.Common.Color)
	if colorError != nil {
		return colorError
	}
	application.colorMode = colorMode

	logger, loggerError := application.createLogger()
	if loggerError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerError)
	}
	application.logger = logger

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		command.SetContext(application.commandContextAccessor.WithConfigurationFilePath(command.Context(), application.configurationMetadata.ConfigFileUsed))
	}

	return nil
}

func (application *Application) createLogger() (*zap.Logger, error) {
	logLevel, levelError := utils.ParseLogLevel(application.configuration.Common.LogLevel)
	if levelError != nil {
		return nil, levelError
	}
	logFormat, formatError := utils.ParseLogFormat(application.configuration.Common.LogFormat)
	if formatError != nil {
		return nil, formatError
	}
	application.configuration.Common.LogLevel = string(logLevel)
	application.configuration.Common.LogFormat = string(logFormat)

	if application.dependencies.Logger != nil {
		return application.dependencies.Logger, nil
	}
	return application.loggerFactory.CreateLogger(logLevel, logFormat)
}

func (application *Application) humanReadableLoggingEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(application.configuration.Common.LogFormat), string(utils.LogFormatConsole))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	if !application.pruneFlagValue && len(arguments) == 0 {
		return command.Help()
	}

	pullRequestNumber := 0
	if !application.pruneFlagValue {
		parsedNumber, parseError := parsePullRequestNumber(arguments[0])
		if parseError != nil {
			return parseError
		}
		pullRequestNumber = parsedNumber
	}

	repositoryPath, resolveError := application.directoryResolver.Resolve(application.directoryFlagValue)
	if resolveError != nil {
		return resolveError
	}
	executionContext := application.commandContextAccessor.WithRepositoryPath(command.Context(), repositoryPath)

	repositoryManager, managerError := application.buildRepositoryManager()
	if managerError != nil {
		return managerError
	}
	reporter := application.buildReporter(command)

	if application.pruneFlagValue {
		return application.runPrune(executionContext, repositoryManager, reporter)
	}
	return application.runCheckout(executionContext, repositoryManager, reporter, pullRequestNumber)
}

func (application *Application) runPrune(executionContext context.Context, repositoryManager *gitrepo.RepositoryManager, reporter *ui.ConsoleReporter) error {
	repositoryPath, _ := application.commandContextAccessor.RepositoryPath(executionContext)
	configurationFilePath, _ := application.commandContextAccessor.ConfigurationFilePath(executionContext)
	application.logger.Debug(
		pruneRequestedMessageConstant,
		zap.String(logFieldRepositoryPathConstant, repositoryPath),
		zap.String(configurationFileFieldConstant, configurationFilePath),
	)

	pruneService, serviceError := branches.NewService(branches.ServiceDependencies{
		Repository: repositoryManager,
		Reporter:   reporter,
		Logger:     application.logger,
	})
	if serviceError != nil {
		return serviceError
	}

	_, pruneError := pruneService.Prune(executionContext, branches.Options{
		RepositoryPath:    repositoryPath,
		ProtectedBranches: application.configuration.Prune.ProtectedBranches,
	})
	return pruneError
}

func (application *Application) runCheckout(executionContext context.Context, repositoryManager *gitrepo.RepositoryManager, reporter *ui.ConsoleReporter, pullRequestNumber int) error {
	repositoryPath, _ := application.commandContextAccessor.RepositoryPath(executionContext)
	configurationFilePath, _ := application.commandContextAccessor.ConfigurationFilePath(executionContext)
	application.logger.Debug(
		checkoutRequestedMessageConstant,
		zap.String(logFieldRepositoryPathConstant, repositoryPath),
		zap.String(configurationFileFieldConstant, configurationFilePath),
		zap.Int(logFieldPullRequestNumberConstant, pullRequestNumber),
	)

	forgeClient, clientError := forge.NewClient(forge.ClientConfiguration{
		BaseURL:    application.configuration.Forge.BaseURL,
		Timeout:    application.configuration.Forge.Timeout,
		HTTPClient: application.dependencies.HTTPClient,
		Logger:     application.logger,
	})
	if clientError != nil {
		return clientError
	}

	checkoutService, serviceError := pullrequests.NewService(pullrequests.ServiceDependencies{
		Fetcher:    forgeClient,
		Repository: repositoryManager,
		Reporter:   reporter,
		Logger:     application.logger,
	})
	if serviceError != nil {
		return serviceError
	}

	_, checkoutError := checkoutService.Checkout(executionContext, pullrequests.Options{
		RepositoryPath: repositoryPath,
		Owner:          application.configuration.Checkout.Owner,
		Repository:     application.configuration.Checkout.Repository,
		Number:         pullRequestNumber,
	})
	return checkoutError
}

func (application *Application) buildRepositoryManager() (*gitrepo.RepositoryManager, error) {
	commandRunner := application.dependencies.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.NewOSCommandRunner()
	}

	var observers []execshell.CommandEventObserver
	if application.humanReadableLoggingEnabled() {
		observers = append(observers, ui.NewConsoleCommandEventLogger(application.logger))
	}

	shellExecutor, executorError := execshell.NewShellExecutor(application.logger, commandRunner, observers...)
	if executorError != nil {
		return nil, executorError
	}
	return gitrepo.NewRepositoryManager(shellExecutor)
}

func (application *Application) buildReporter(command *cobra.Command) *ui.ConsoleReporter {
	standardOutput := command.OutOrStdout()
	colorProfile := ui.ResolveColorProfile(application.colorMode, standardOutput)
	return ui.NewConsoleReporter(utils.NewFlushingWriter(standardOutput), colorProfile)
}

func parsePullRequestNumber(rawValue string) (int, error) {
	trimmedValue := strings.TrimPrefix(strings.TrimSpace(rawValue), "#")
	parsedNumber, parseError := strconv.Atoi(trimmedValue)
	if parseError != nil || parsedNumber <= 0 {
		return 0, UsageError{Message: fmt.Sprintf(pullRequestNumberErrorTemplateConstant, rawValue)}
	}
	return parsedNumber, nil
}

func (application *Application) flushLogger() error {
	if application.logger == nil || application.dependencies.Logger != nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) flagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.Flags(),
		command.PersistentFlags(),
		command.InheritedFlags(),
	}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}
	return false
}
