// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging and per-command timeouts via ShellExecutor,
// exposes OSCommandRunner for default process execution, and defines the
// abstractions toolbump uses to run npm and the project build in a testable
// manner. Commands are described by name, argument list, working directory,
// environment overrides, and timeout; no command line is ever assembled as a
// single string.
package execshell
