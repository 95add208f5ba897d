package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	commandNPMStringConstant                  = "npm"
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell executor command runner not configured"
	commandFailedErrorTemplateConstant        = "%s exited with code %d"
	commandFailedStandardErrorTemplate        = "%s exited with code %d: %s"
	commandExecutionErrorTemplateConstant     = "%s could not complete: %v"
	commandTimedOutTemplateConstant           = "%s exceeded timeout of %s"
	logFieldCommandNameConstant               = "command"
	logFieldCommandArgumentsConstant          = "arguments"
	logFieldWorkingDirectoryConstant          = "working_directory"
	logFieldExitCodeConstant                  = "exit_code"
	logFieldTimeoutConstant                   = "timeout"
	logFieldDurationConstant                  = "duration"
)

// CommandName identifies an executable invoked by toolbump.
type CommandName string

// CommandNPM identifies the npm executable.
const CommandNPM CommandName = CommandName(commandNPMStringConstant)

// CommandDetails describes the arguments and environment for a command invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
	Timeout              time.Duration
}

// ShellCommand combines a command name with invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable results of executing a command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CombinedOutput joins standard output and standard error for diagnostics.
func (result ExecutionResult) CombinedOutput() string {
	sections := make([]string, 0, 2)
	if trimmedOutput := strings.TrimSpace(result.StandardOutput); len(trimmedOutput) > 0 {
		sections = append(sections, trimmedOutput)
	}
	if trimmedError := strings.TrimSpace(result.StandardError); len(trimmedError) > 0 {
		sections = append(sections, trimmedError)
	}
	return strings.Join(sections, "\n")
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// ErrLoggerNotConfigured indicates the executor was constructed without a logger.
var ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)

// ErrCommandRunnerNotConfigured indicates the executor was constructed without a runner.
var ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)

// CommandFailedError reports a command that ran to completion with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command.
func (commandError CommandFailedError) Error() string {
	trimmedStandardError := strings.TrimSpace(commandError.Result.StandardError)
	if len(trimmedStandardError) == 0 {
		return fmt.Sprintf(commandFailedErrorTemplateConstant, commandError.Command.Name, commandError.Result.ExitCode)
	}
	return fmt.Sprintf(commandFailedStandardErrorTemplate, commandError.Command.Name, commandError.Result.ExitCode, trimmedStandardError)
}

// CommandExecutionError reports a command that could not run or was terminated before completion.
// Result holds whatever output was captured before the failure.
type CommandExecutionError struct {
	Command ShellCommand
	Result  ExecutionResult
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, executionError.Command.Name, executionError.Cause)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// TimedOut reports whether the command was terminated by its deadline.
func (executionError CommandExecutionError) TimedOut() bool {
	return errors.Is(executionError.Cause, context.DeadlineExceeded)
}

// CapturedResult extracts the execution result carried by command errors.
func CapturedResult(commandError error) (ExecutionResult, bool) {
	var failedError CommandFailedError
	if errors.As(commandError, &failedError) {
		return failedError.Result, true
	}
	var executionError CommandExecutionError
	if errors.As(commandError, &executionError) {
		return executionError.Result, true
	}
	return ExecutionResult{}, false
}

// ShellExecutor runs commands with structured logging and lifecycle notifications.
type ShellExecutor struct {
	logger               *zap.Logger
	runner               CommandRunner
	messageFormatter     CommandMessageFormatter
	humanReadableLogging bool
	observer             CommandEventObserver
}

// NewShellExecutor constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, humanReadableLogging bool) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{
		logger:               logger,
		runner:               runner,
		messageFormatter:     CommandMessageFormatter{},
		humanReadableLogging: humanReadableLogging,
		observer:             noopCommandEventObserver{},
	}, nil
}

// WithObserver attaches an observer notified of every command lifecycle event.
func (executor *ShellExecutor) WithObserver(observer CommandEventObserver) *ShellExecutor {
	if observer == nil {
		executor.observer = noopCommandEventObserver{}
		return executor
	}
	executor.observer = observer
	return executor
}

// Execute runs the command, applying its timeout and reporting lifecycle events.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	runContext := executionContext
	if command.Details.Timeout > 0 {
		var cancel context.CancelFunc
		runContext, cancel = context.WithTimeout(executionContext, command.Details.Timeout)
		defer cancel()
	}

	executor.logStart(command)
	executor.observer.CommandStarted(command)

	startedAt := time.Now()
	executionResult, runError := executor.runner.Run(runContext, command)
	elapsed := time.Since(startedAt)

	if runError == nil && runContext.Err() != nil {
		runError = runContext.Err()
	}

	if runError != nil {
		cause := runError
		if errors.Is(runError, context.DeadlineExceeded) {
			cause = fmt.Errorf(commandTimedOutTemplateConstant+": %w", command.Name, command.Details.Timeout, context.DeadlineExceeded)
		}
		executionError := CommandExecutionError{Command: command, Result: executionResult, Cause: cause}
		executor.logger.Warn(
			executor.messageFormatter.BuildExecutionFailureMessage(command, cause),
			executor.commandFields(command, zap.Duration(logFieldDurationConstant, elapsed))...,
		)
		executor.observer.CommandExecutionFailed(command, executionError)
		return ExecutionResult{}, executionError
	}

	executor.observer.CommandCompleted(command, executionResult)

	if executionResult.ExitCode != 0 {
		executor.logger.Warn(
			executor.messageFormatter.BuildFailureMessage(command, executionResult),
			executor.commandFields(command, zap.Int(logFieldExitCodeConstant, executionResult.ExitCode), zap.Duration(logFieldDurationConstant, elapsed))...,
		)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logger.Info(
		executor.messageFormatter.BuildSuccessMessage(command),
		executor.commandFields(command, zap.Duration(logFieldDurationConstant, elapsed))...,
	)

	return executionResult, nil
}

// ExecuteNPM runs npm with the provided details.
func (executor *ShellExecutor) ExecuteNPM(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandNPM, Details: details})
}

func (executor *ShellExecutor) logStart(command ShellCommand) {
	if executor.humanReadableLogging {
		executor.logger.Info(executor.messageFormatter.BuildStartedMessage(command))
		return
	}
	executor.logger.Debug(
		executor.messageFormatter.BuildStartedMessage(command),
		executor.commandFields(command, zap.Duration(logFieldTimeoutConstant, command.Details.Timeout))...,
	)
}

func (executor *ShellExecutor) commandFields(command ShellCommand, additional ...zap.Field) []zap.Field {
	if executor.humanReadableLogging {
		return nil
	}
	fields := []zap.Field{
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Strings(logFieldCommandArgumentsConstant, command.Details.Arguments),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	}
	return append(fields, additional...)
}
