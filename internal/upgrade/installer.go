package upgrade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/temirov/toolbump/internal/execshell"
	"github.com/temirov/toolbump/internal/journal"
	"github.com/temirov/toolbump/internal/opresult"
)

const (
	defaultDependencyDirectoryConstant = "node_modules"
	defaultLockFileNameConstant        = "package-lock.json"
	defaultTargetInstallTimeout        = 180 * time.Second
	defaultFullInstallTimeout          = 300 * time.Second
	defaultCleanTimeout                = 60 * time.Second
	npmInstallSubcommandConstant       = "install"
	npmSaveExactFlagConstant           = "--save-exact"
	packageSpecificationTemplate       = "%s@%s"
	npmExecutorMissingMessageConstant  = "dependency installer executor not configured"
	installerReporterMissingMessage    = "dependency installer reporter not configured"

	cleaningMessageConstant          = "Removing installed dependencies and lock file"
	cleanedMessageConstant           = "Removed installed dependencies and lock file"
	cleanRemovalFailedTemplate       = "Could not remove %s: %v"
	cleanTimedOutTemplateConstant    = "Removing %s did not finish within %s"
	cleanIncompleteMessageConstant   = "Dependency cleanup was incomplete"
	installingTargetTemplateConstant = "Installing %s"
	installedTargetTemplateConstant  = "Installed %s"
	installTargetFailedTemplate      = "Installing %s failed: %s"
	installingAllMessageConstant     = "Installing all project dependencies"
	installedAllMessageConstant      = "Installed all project dependencies"
	installAllFailedTemplateConstant = "Installing project dependencies failed: %s"
	installTimedOutTemplateConstant  = "timed out after %s"
	installExitCodeTemplateConstant  = "exit code %d"
)

// ErrNPMExecutorNotConfigured indicates the installer was constructed without an executor.
var ErrNPMExecutorNotConfigured = errors.New(npmExecutorMissingMessageConstant)

// ErrInstallerReporterNotConfigured indicates the installer was constructed without a reporter.
var ErrInstallerReporterNotConfigured = errors.New(installerReporterMissingMessage)

// NPMExecutor runs npm commands.
type NPMExecutor interface {
	ExecuteNPM(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// InstallerOptions configures dependency installation.
type InstallerOptions struct {
	ProjectDirectory     string
	DependencyDirectory  string
	LockFileName         string
	TargetInstallTimeout time.Duration
	FullInstallTimeout   time.Duration
	CleanTimeout         time.Duration
}

// NPMInstaller cleans and installs project dependencies through npm.
type NPMInstaller struct {
	executor NPMExecutor
	reporter journal.Reporter
	options  InstallerOptions
	remove   func(path string) error
}

// NewNPMInstaller constructs an NPMInstaller. Zero-valued options take their defaults.
func NewNPMInstaller(executor NPMExecutor, reporter journal.Reporter, options InstallerOptions) (*NPMInstaller, error) {
	if executor == nil {
		return nil, ErrNPMExecutorNotConfigured
	}
	if reporter == nil {
		return nil, ErrInstallerReporterNotConfigured
	}
	if len(options.DependencyDirectory) == 0 {
		options.DependencyDirectory = defaultDependencyDirectoryConstant
	}
	if len(options.LockFileName) == 0 {
		options.LockFileName = defaultLockFileNameConstant
	}
	if options.TargetInstallTimeout <= 0 {
		options.TargetInstallTimeout = defaultTargetInstallTimeout
	}
	if options.FullInstallTimeout <= 0 {
		options.FullInstallTimeout = defaultFullInstallTimeout
	}
	if options.CleanTimeout <= 0 {
		options.CleanTimeout = defaultCleanTimeout
	}
	return &NPMInstaller{executor: executor, reporter: reporter, options: options, remove: os.RemoveAll}, nil
}

// Clean removes the dependency directory and the lock file. Failures are warnings.
func (installer *NPMInstaller) Clean(executionContext context.Context) opresult.Result {
	_ = installer.reporter.Info(cleaningMessageConstant)

	cleanCompleted := true
	for _, removalPath := range []string{
		installer.projectPath(installer.options.DependencyDirectory),
		installer.projectPath(installer.options.LockFileName),
	} {
		if removalError := installer.removeWithDeadline(executionContext, removalPath); removalError != nil {
			cleanCompleted = false
			_ = installer.reporter.Warn(removalError.Error())
		}
	}

	if !cleanCompleted {
		return opresult.Failed(cleanIncompleteMessageConstant, "")
	}
	_ = installer.reporter.Info(cleanedMessageConstant)
	return opresult.Succeeded(cleanedMessageConstant)
}

// InstallTarget installs the exact package version.
func (installer *NPMInstaller) InstallTarget(executionContext context.Context, packageName string, version string) opresult.Result {
	packageSpecification := fmt.Sprintf(packageSpecificationTemplate, packageName, version)
	_ = installer.reporter.Info(fmt.Sprintf(installingTargetTemplateConstant, packageSpecification))

	executionResult, executionError := installer.executor.ExecuteNPM(executionContext, execshell.CommandDetails{
		Arguments:        []string{npmInstallSubcommandConstant, packageSpecification, npmSaveExactFlagConstant},
		WorkingDirectory: installer.options.ProjectDirectory,
		Timeout:          installer.options.TargetInstallTimeout,
	})
	if executionError != nil {
		capturedResult, _ := execshell.CapturedResult(executionError)
		message := fmt.Sprintf(installTargetFailedTemplate, packageSpecification, describeInstallFailure(executionError, installer.options.TargetInstallTimeout))
		_ = installer.reporter.Error(message)
		return opresult.Failed(message, capturedResult.CombinedOutput())
	}

	message := fmt.Sprintf(installedTargetTemplateConstant, packageSpecification)
	_ = installer.reporter.Info(message)
	return opresult.Succeeded(message).WithOutput(executionResult.CombinedOutput())
}

// InstallAll installs every dependency listed in the manifest.
func (installer *NPMInstaller) InstallAll(executionContext context.Context) opresult.Result {
	_ = installer.reporter.Info(installingAllMessageConstant)

	executionResult, executionError := installer.executor.ExecuteNPM(executionContext, execshell.CommandDetails{
		Arguments:        []string{npmInstallSubcommandConstant},
		WorkingDirectory: installer.options.ProjectDirectory,
		Timeout:          installer.options.FullInstallTimeout,
	})
	if executionError != nil {
		capturedResult, _ := execshell.CapturedResult(executionError)
		message := fmt.Sprintf(installAllFailedTemplateConstant, describeInstallFailure(executionError, installer.options.FullInstallTimeout))
		_ = installer.reporter.Error(message)
		return opresult.Failed(message, capturedResult.CombinedOutput())
	}

	_ = installer.reporter.Info(installedAllMessageConstant)
	return opresult.Succeeded(installedAllMessageConstant).WithOutput(executionResult.CombinedOutput())
}

func (installer *NPMInstaller) projectPath(relativePath string) string {
	if filepath.IsAbs(relativePath) {
		return relativePath
	}
	return filepath.Join(installer.options.ProjectDirectory, relativePath)
}

// removeWithDeadline abandons a removal that outlives the clean timeout; the removal itself keeps running.
func (installer *NPMInstaller) removeWithDeadline(executionContext context.Context, removalPath string) error {
	cleanContext, cancel := context.WithTimeout(executionContext, installer.options.CleanTimeout)
	defer cancel()

	removalResult := make(chan error, 1)
	go func() {
		removalResult <- installer.remove(removalPath)
	}()

	select {
	case removalError := <-removalResult:
		if removalError != nil {
			return fmt.Errorf(cleanRemovalFailedTemplate, removalPath, removalError)
		}
		return nil
	case <-cleanContext.Done():
		return fmt.Errorf(cleanTimedOutTemplateConstant, removalPath, installer.options.CleanTimeout)
	}
}

func describeInstallFailure(executionError error, timeout time.Duration) string {
	var commandExecutionError execshell.CommandExecutionError
	if errors.As(executionError, &commandExecutionError) {
		if commandExecutionError.TimedOut() {
			return fmt.Sprintf(installTimedOutTemplateConstant, timeout)
		}
		return commandExecutionError.Cause.Error()
	}
	var commandFailedError execshell.CommandFailedError
	if errors.As(executionError, &commandFailedError) {
		return fmt.Sprintf(installExitCodeTemplateConstant, commandFailedError.Result.ExitCode)
	}
	return executionError.Error()
}
