// Package opresult defines the uniform outcome reported by recoverable operations.
package opresult

import (
	"fmt"
	"strings"
)

// Result describes the outcome of an operation whose failure is reported rather than raised.
type Result struct {
	Success bool
	Message string
	Output  string
}

// Succeeded constructs a successful result.
func Succeeded(message string) Result {
	return Result{Success: true, Message: message}
}

// Succeededf constructs a successful result from a message template.
func Succeededf(template string, arguments ...any) Result {
	return Succeeded(fmt.Sprintf(template, arguments...))
}

// Failed constructs a failed result carrying captured command output.
func Failed(message string, output string) Result {
	return Result{Success: false, Message: message, Output: strings.TrimSpace(output)}
}

// Failedf constructs a failed result without output from a message template.
func Failedf(template string, arguments ...any) Result {
	return Failed(fmt.Sprintf(template, arguments...), "")
}

// WithOutput returns a copy of the result carrying the supplied output.
func (result Result) WithOutput(output string) Result {
	result.Output = strings.TrimSpace(output)
	return result
}

// String renders the message, appending output when present.
func (result Result) String() string {
	if len(result.Output) == 0 {
		return result.Message
	}
	return result.Message + "\n" + result.Output
}
