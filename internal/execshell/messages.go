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
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	standardErrorSummaryLineLimitConstant   = 3
)

const (
	npmInstallSubcommandNameConstant      = "install"
	npmInstallAliasSubcommandNameConstant = "i"
	npmCleanInstallSubcommandNameConstant = "ci"
	npmRunSubcommandNameConstant          = "run"
	npmRunScriptAliasSubcommandConstant   = "run-script"
	flagPrefixConstant                    = "-"

	npmInstallAllStartTemplateConstant                = "Installing project dependencies in %s"
	npmInstallAllSuccessTemplateConstant              = "Installed project dependencies in %s"
	npmInstallAllFailureTemplateConstant              = "Dependency installation failed in %s (exit code %d%s)"
	npmInstallAllExecutionFailureTemplateConstant     = "Unable to install dependencies in %s: %s"
	npmInstallPackageStartTemplateConstant            = "Installing %s in %s"
	npmInstallPackageSuccessTemplateConstant          = "Installed %s in %s"
	npmInstallPackageFailureTemplateConstant          = "Installing %s failed in %s (exit code %d%s)"
	npmInstallPackageExecutionFailureTemplateConstant = "Unable to install %s in %s: %s"
	npmRunStartTemplateConstant                       = "Running npm script %s in %s"
	npmRunSuccessTemplateConstant                     = "npm script %s succeeded in %s"
	npmRunFailureTemplateConstant                     = "npm script %s failed in %s (exit code %d%s)"
	npmRunExecutionFailureTemplateConstant            = "Unable to run npm script %s in %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandNPM:
		return formatter.describeNPMMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeNPMMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	switch strings.TrimSpace(arguments[0]) {
	case npmInstallSubcommandNameConstant, npmInstallAliasSubcommandNameConstant, npmCleanInstallSubcommandNameConstant:
		packageSpecification := formatter.extractFirstNonFlagArgument(arguments[1:])
		if len(packageSpecification) == 0 {
			return formatter.describeInstallAll(command, result, failure, stage)
		}
		return formatter.describeInstallPackage(command, packageSpecification, result, failure, stage)
	case npmRunSubcommandNameConstant, npmRunScriptAliasSubcommandConstant:
		scriptName := formatter.extractFirstNonFlagArgument(arguments[1:])
		if len(scriptName) == 0 {
			return formatter.buildGenericMessage(command, result, failure, stage)
		}
		return formatter.describeRunScript(command, scriptName, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeInstallAll(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(npmInstallAllStartTemplateConstant, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(npmInstallAllSuccessTemplateConstant, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(npmInstallAllFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(npmInstallAllExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) describeInstallPackage(command ShellCommand, packageSpecification string, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(npmInstallPackageStartTemplateConstant, packageSpecification, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(npmInstallPackageSuccessTemplateConstant, packageSpecification, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(npmInstallPackageFailureTemplateConstant, packageSpecification, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(npmInstallPackageExecutionFailureTemplateConstant, packageSpecification, workingDirectory, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) describeRunScript(command ShellCommand, scriptName string, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(npmRunStartTemplateConstant, scriptName, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(npmRunSuccessTemplateConstant, scriptName, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(npmRunFailureTemplateConstant, scriptName, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(npmRunExecutionFailureTemplateConstant, scriptName, workingDirectory, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
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
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	workingDirectorySuffix := formatter.formatWorkingDirectorySuffix(command)
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, workingDirectorySuffix)
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

// formatStandardErrorSuffix keeps console lines short; the full output is recorded by observers.
func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	errorLines := strings.Split(trimmedStandardError, "\n")
	if len(errorLines) > standardErrorSummaryLineLimitConstant {
		errorLines = errorLines[len(errorLines)-standardErrorSummaryLineLimitConstant:]
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, strings.Join(errorLines, " | "))
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

func (formatter CommandMessageFormatter) extractFirstNonFlagArgument(arguments []string) string {
	for _, argument := range arguments {
		trimmedArgument := strings.TrimSpace(argument)
		if len(trimmedArgument) == 0 || strings.HasPrefix(trimmedArgument, flagPrefixConstant) {
			continue
		}
		return trimmedArgument
	}
	return emptyStringConstant
}
