package journal

import (
	"fmt"
	"strings"

	"github.com/temirov/toolbump/internal/execshell"
)

const (
	commandStartedTemplateConstant     = "Running: %s"
	commandFailedTemplateConstant      = "Command failed with exit code %d: %s"
	commandInterruptedTemplateConstant = "Command did not complete: %s (%v)"
	standardOutputLineTemplate         = "stdout | %s"
	standardErrorLineTemplate          = "stderr | %s"
	commandArgumentSeparatorConstant   = " "
	commandInvocationTemplateConstant  = "%s %s"
	commandWorkingDirectoryTemplate    = "%s (in %s)"
)

// CommandStarted records the invocation in the journal.
func (journal *Journal) CommandStarted(command execshell.ShellCommand) {
	_ = journal.Info(fmt.Sprintf(commandStartedTemplateConstant, describeCommand(command)))
}

// CommandCompleted records non-zero exits with the complete captured output.
func (journal *Journal) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if result.ExitCode == 0 {
		return
	}
	_ = journal.Error(fmt.Sprintf(commandFailedTemplateConstant, result.ExitCode, describeCommand(command)))
	journal.recordCapturedOutput(result)
}

// CommandExecutionFailed records commands that could not run or were terminated, including partial output.
func (journal *Journal) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	message := fmt.Sprintf(commandInterruptedTemplateConstant, describeCommand(command), failure)
	_ = journal.Error(message)
	capturedResult, _ := execshell.CapturedResult(failure)
	journal.recordCapturedOutput(capturedResult)
}

func describeCommand(command execshell.ShellCommand) string {
	description := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		description = fmt.Sprintf(commandInvocationTemplateConstant, description, strings.Join(command.Details.Arguments, commandArgumentSeparatorConstant))
	}
	if len(command.Details.WorkingDirectory) > 0 {
		description = fmt.Sprintf(commandWorkingDirectoryTemplate, description, command.Details.WorkingDirectory)
	}
	return description
}

// recordCapturedOutput appends one ERROR entry per captured line so the artifact keeps one line per entry.
func (journal *Journal) recordCapturedOutput(result execshell.ExecutionResult) {
	for _, line := range capturedLines(result.StandardOutput) {
		_ = journal.Error(fmt.Sprintf(standardOutputLineTemplate, line))
	}
	for _, line := range capturedLines(result.StandardError) {
		_ = journal.Error(fmt.Sprintf(standardErrorLineTemplate, line))
	}
}

func capturedLines(output string) []string {
	normalized := strings.ReplaceAll(output, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(normalized, "\n") {
		trimmed := strings.TrimRight(line, " \t\r")
		if len(strings.TrimSpace(trimmed)) == 0 {
			continue
		}
		lines = append(lines, trimmed)
	}
	return lines
}
