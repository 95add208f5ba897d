package upgrade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/toolbump/internal/backup"
	"github.com/temirov/toolbump/internal/cipatch"
	"github.com/temirov/toolbump/internal/execshell"
	"github.com/temirov/toolbump/internal/journal"
	"github.com/temirov/toolbump/internal/manifest"
	"github.com/temirov/toolbump/internal/metrics"
	"github.com/temirov/toolbump/internal/preflight"
	pathutils "github.com/temirov/toolbump/internal/utils/path"
	"github.com/temirov/toolbump/internal/verify"
)

const (
	upgradeCommandUseConstant              = "upgrade"
	upgradeCommandShortDescriptionConstant = "Upgrade the build toolchain along the configured version path"
	upgradeCommandLongDescriptionConstant  = "upgrade backs up the dependency manifest, then tries each target version in order until one installs and builds, restoring the backup whenever a step fails."
	baselineCommandUseConstant             = "baseline"
	baselineShortDescriptionConstant       = "Check that the project builds before upgrading"
	baselineLongDescriptionConstant        = "baseline backs up the dependency manifest and runs one build with the current toolchain to confirm the project is ready for an upgrade."

	planFlagNameConstant           = "plan"
	planFlagUsageConstant          = "Path to a YAML upgrade plan ({package, steps: [{version, description}]})"
	packageFlagNameConstant        = "package"
	packageFlagUsageConstant       = "Dependency to upgrade"
	cleanupBackupFlagNameConstant  = "cleanup-backup"
	cleanupBackupFlagUsageConstant = "Remove backup files after a successful upgrade"
	metricsFileFlagNameConstant    = "metrics-file"
	metricsFileFlagUsageConstant   = "Write run metrics in the Prometheus text format to this file"

	projectDirectoryResolutionErrorTemplate = "unable to resolve project directory %s: %w"
	journalOpenErrorTemplateConstant        = "unable to open run journal: %w"
	wiringErrorTemplateConstant             = "unable to construct %s: %w"
	upgradePlanErrorTemplateConstant        = "invalid upgrade plan: %w"
	baselineFailedMessageConstant           = "baseline build failed"
	baselineErrorTemplateConstant           = "baseline check failed: %w"

	backupComponentNameConstant    = "backup manager"
	verifierComponentNameConstant  = "build verifier"
	installerComponentNameConstant = "dependency installer"
	editorComponentNameConstant    = "manifest editor"

	logMessageMetricsWriteFailedConstant = "Unable to write run metrics"
	logMessageJournalCloseFailedConstant = "Unable to close run journal"
	logFieldMetricsFileConstant          = "metrics_file"
	logMessageJournalOpenedConstant      = "Run journal opened"
	logFieldJournalPathConstant          = "journal_path"
	logFieldRunIdentifierConstant        = "run_id"
)

// ErrBaselineFailed indicates the baseline build did not pass.
var ErrBaselineFailed = errors.New(baselineFailedMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// RunExecutor runs upgrades and baseline checks.
type RunExecutor interface {
	Execute(executionContext context.Context) (RunOutcome, error)
	Baseline(executionContext context.Context) (BaselineReport, error)
}

// ServiceProvider constructs a run executor from dependencies.
type ServiceProvider func(dependencies ServiceDependencies, options Options) (RunExecutor, error)

// ExecutorProvider supplies the npm executor. The journal observes every command it runs.
type ExecutorProvider func(logger *zap.Logger, observer execshell.CommandEventObserver) (NPMExecutor, error)

type commandOptions struct {
	configuration CommandConfiguration
	projectPath   string
}

// CommandBuilder assembles the upgrade and baseline Cobra commands.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ExecutorProvider             ExecutorProvider
	ServiceProvider              ServiceProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	Console                      io.Writer
}

// Build constructs the upgrade command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           upgradeCommandUseConstant,
		Short:         upgradeCommandShortDescriptionConstant,
		Long:          upgradeCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runUpgrade,
	}

	command.Flags().String(planFlagNameConstant, "", planFlagUsageConstant)
	command.Flags().String(packageFlagNameConstant, "", packageFlagUsageConstant)
	command.Flags().Bool(cleanupBackupFlagNameConstant, false, cleanupBackupFlagUsageConstant)
	command.Flags().String(metricsFileFlagNameConstant, "", metricsFileFlagUsageConstant)

	return command, nil
}

// BuildBaseline constructs the baseline command.
func (builder *CommandBuilder) BuildBaseline() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           baselineCommandUseConstant,
		Short:         baselineShortDescriptionConstant,
		Long:          baselineLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runBaseline,
	}

	command.Flags().String(metricsFileFlagNameConstant, "", metricsFileFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) runUpgrade(command *cobra.Command, _ []string) error {
	options, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
	}

	plan, planError := options.configuration.Plan()
	if planError != nil {
		return fmt.Errorf(upgradePlanErrorTemplateConstant, planError)
	}

	return builder.withService(command, options, plan, func(executionContext context.Context, service RunExecutor) error {
		_, runError := service.Execute(executionContext)
		return runError
	})
}

func (builder *CommandBuilder) runBaseline(command *cobra.Command, _ []string) error {
	options, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
	}

	return builder.withService(command, options, DefaultPlan(), func(executionContext context.Context, service RunExecutor) error {
		report, baselineError := service.Baseline(executionContext)
		if baselineError != nil {
			return fmt.Errorf(baselineErrorTemplateConstant, baselineError)
		}
		if !report.Ready {
			return fmt.Errorf(baselineErrorTemplateConstant, ErrBaselineFailed)
		}
		return nil
	})
}

func (builder *CommandBuilder) withService(command *cobra.Command, options commandOptions, plan Plan, run func(context.Context, RunExecutor) error) (runError error) {
	logger := builder.resolveLogger()
	configuration := options.configuration
	projectPath := options.projectPath

	runJournal, journalError := journal.Open(journal.Options{
		ArtifactPath: builder.projectFile(projectPath, configuration.Project.JournalFile),
		Console:      builder.resolveConsole(command),
		Logger:       logger,
	})
	if journalError != nil {
		return fmt.Errorf(journalOpenErrorTemplateConstant, journalError)
	}
	logger.Debug(logMessageJournalOpenedConstant, zap.String(logFieldJournalPathConstant, runJournal.Path()), zap.String(logFieldRunIdentifierConstant, runJournal.RunIdentifier()))
	defer func() {
		if closeError := runJournal.Close(); closeError != nil {
			logger.Warn(logMessageJournalCloseFailedConstant, zap.Error(closeError))
		}
	}()

	executor, executorError := builder.resolveExecutor(logger, runJournal)
	if executorError != nil {
		return executorError
	}

	backupPaths := backup.DefaultPaths(projectPath)
	snapshots, snapshotsError := backup.NewManager(backupPaths, runJournal)
	if snapshotsError != nil {
		return fmt.Errorf(wiringErrorTemplateConstant, backupComponentNameConstant, snapshotsError)
	}

	verifier, verifierError := verify.NewVerifier(executor, runJournal, configuration.VerifyOptions(projectPath))
	if verifierError != nil {
		return fmt.Errorf(wiringErrorTemplateConstant, verifierComponentNameConstant, verifierError)
	}

	installer, installerError := NewNPMInstaller(executor, runJournal, configuration.InstallerOptions(projectPath))
	if installerError != nil {
		return fmt.Errorf(wiringErrorTemplateConstant, installerComponentNameConstant, installerError)
	}

	manifestEditor, editorError := manifest.NewEditor(backupPaths.Manifest)
	if editorError != nil {
		return fmt.Errorf(wiringErrorTemplateConstant, editorComponentNameConstant, editorError)
	}

	recorder := metrics.NewPrometheusRecorder(nil)
	defer builder.writeMetrics(logger, recorder, configuration.MetricsFile)

	workflowPath := ""
	if len(configuration.Workflow.Path) > 0 {
		workflowPath = builder.projectFile(projectPath, configuration.Workflow.Path)
	}

	service, serviceError := builder.resolveService(ServiceDependencies{
		Logger:            logger,
		Journal:           runJournal,
		Snapshots:         snapshots,
		Verifier:          verifier,
		Installer:         installer,
		ManifestEditor:    manifestEditor,
		WorkflowRewriter:  cipatch.NewRewriter(logger),
		WorktreeInspector: preflight.NewInspector(logger),
		Recorder:          recorder,
	}, Options{
		ProjectDirectory:       projectPath,
		Plan:                   plan,
		Homepage:               configuration.Project.Homepage,
		BrowserTargets:         configuration.BrowserTargets(),
		Scripts:                configuration.Scripts(),
		WorkflowPath:           workflowPath,
		WorkflowRules:          configuration.WorkflowRules(),
		WatchedFiles:           []string{backupPaths.Manifest, backupPaths.LockFile},
		CleanupBackupOnSuccess: configuration.Upgrade.CleanupBackup,
	})
	if serviceError != nil {
		return serviceError
	}

	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}
	return run(executionContext, service)
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) (commandOptions, error) {
	configuration := builder.resolveConfiguration()

	if command != nil {
		flagSet := command.Flags()
		if flagSet.Lookup(planFlagNameConstant) != nil && flagSet.Changed(planFlagNameConstant) {
			planPath, _ := flagSet.GetString(planFlagNameConstant)
			configuration.Upgrade.PlanFile = strings.TrimSpace(planPath)
		}
		if flagSet.Lookup(packageFlagNameConstant) != nil && flagSet.Changed(packageFlagNameConstant) {
			packageName, _ := flagSet.GetString(packageFlagNameConstant)
			if trimmedName := strings.TrimSpace(packageName); len(trimmedName) > 0 {
				configuration.Upgrade.PackageName = trimmedName
			}
		}
		if flagSet.Lookup(cleanupBackupFlagNameConstant) != nil && flagSet.Changed(cleanupBackupFlagNameConstant) {
			configuration.Upgrade.CleanupBackup, _ = flagSet.GetBool(cleanupBackupFlagNameConstant)
		}
		if flagSet.Lookup(metricsFileFlagNameConstant) != nil && flagSet.Changed(metricsFileFlagNameConstant) {
			metricsFile, _ := flagSet.GetString(metricsFileFlagNameConstant)
			configuration.MetricsFile = strings.TrimSpace(metricsFile)
		}
	}

	pathResolver := pathutils.NewResolver()
	projectPath, absoluteError := pathResolver.Absolute(configuration.Project.Directory)
	if absoluteError != nil {
		return commandOptions{}, fmt.Errorf(projectDirectoryResolutionErrorTemplate, configuration.Project.Directory, absoluteError)
	}
	configuration.Upgrade.PlanFile = pathResolver.ExpandHome(configuration.Upgrade.PlanFile)
	configuration.MetricsFile = pathResolver.ExpandHome(configuration.MetricsFile)

	return commandOptions{configuration: configuration, projectPath: projectPath}, nil
}

func (builder *CommandBuilder) projectFile(projectPath string, filePath string) string {
	return pathutils.NewResolver().Within(projectPath, filePath)
}

func (builder *CommandBuilder) writeMetrics(logger *zap.Logger, recorder *metrics.PrometheusRecorder, metricsFile string) {
	if len(metricsFile) == 0 {
		return
	}
	if writeError := recorder.WriteTextfile(metricsFile); writeError != nil {
		logger.Warn(logMessageMetricsWriteFailedConstant, zap.String(logFieldMetricsFileConstant, metricsFile), zap.Error(writeError))
	}
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConsole(command *cobra.Command) io.Writer {
	if builder.Console != nil {
		return builder.Console
	}
	if command != nil {
		return command.OutOrStdout()
	}
	return io.Discard
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger, observer execshell.CommandEventObserver) (NPMExecutor, error) {
	if builder.ExecutorProvider != nil {
		return builder.ExecutorProvider(logger, observer)
	}

	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), humanReadableLogging)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor.WithObserver(observer), nil
}

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies, options Options) (RunExecutor, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies, options)
	}
	return NewService(dependencies, options)
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}

	provided := builder.ConfigurationProvider()
	return provided.Sanitize()
}
