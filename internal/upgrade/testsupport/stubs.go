package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/temirov/toolbump/internal/cipatch"
	"github.com/temirov/toolbump/internal/execshell"
	"github.com/temirov/toolbump/internal/journal"
	"github.com/temirov/toolbump/internal/manifest"
	"github.com/temirov/toolbump/internal/opresult"
	"github.com/temirov/toolbump/internal/preflight"
	"github.com/temirov/toolbump/internal/upgrade"
	"github.com/temirov/toolbump/internal/verify"
)

// ErrJournalStubFailure is returned by JournalStub once its failure threshold is reached.
var ErrJournalStubFailure = errors.New("journal stub append failure")

// CallLog records the order in which stubs are invoked across collaborators.
type CallLog struct {
	Calls []string
}

// Record appends a formatted call description.
func (log *CallLog) Record(format string, arguments ...any) {
	if log == nil {
		return
	}
	log.Calls = append(log.Calls, fmt.Sprintf(format, arguments...))
}

// SnapshotStub implements upgrade.SnapshotManager.
type SnapshotStub struct {
	Log          *CallLog
	CreateFails  bool
	RestoreFails bool
	Creates      int
	Restores     int
	Cleanups     int
}

// Create records the call and returns the configured result.
func (stub *SnapshotStub) Create() opresult.Result {
	stub.Creates++
	stub.Log.Record("create")
	if stub.CreateFails {
		return opresult.Failed("create failed", "")
	}
	return opresult.Succeeded("created")
}

// Restore records the call and returns the configured result.
func (stub *SnapshotStub) Restore() opresult.Result {
	stub.Restores++
	stub.Log.Record("restore")
	if stub.RestoreFails {
		return opresult.Failed("restore failed", "")
	}
	return opresult.Succeeded("restored")
}

// Cleanup records the call.
func (stub *SnapshotStub) Cleanup() {
	stub.Cleanups++
	stub.Log.Record("cleanup")
}

// VerifierStub implements upgrade.BuildVerifier with a scripted sequence of results.
// Calls beyond the script fail.
type VerifierStub struct {
	Log        *CallLog
	Script     []bool
	Strategies []verify.Strategy
}

// TestBuild consumes the next scripted result.
func (stub *VerifierStub) TestBuild(_ context.Context, strategy verify.Strategy) verify.BuildResult {
	callIndex := len(stub.Strategies)
	stub.Strategies = append(stub.Strategies, strategy)
	stub.Log.Record("verify %s", strategy)
	passed := callIndex < len(stub.Script) && stub.Script[callIndex]
	return verify.BuildResult{Strategy: strategy, Passed: passed}
}

// InstallerStub implements upgrade.DependencyInstaller.
type InstallerStub struct {
	Log                *CallLog
	CleanFails         bool
	FailingTargets     map[string]bool
	InstallAllFailures []bool
	Targets            []string
	InstallAllCalls    int
}

// Clean records the call.
func (stub *InstallerStub) Clean(context.Context) opresult.Result {
	stub.Log.Record("clean")
	if stub.CleanFails {
		return opresult.Failed("clean incomplete", "")
	}
	return opresult.Succeeded("cleaned")
}

// InstallTarget records the requested version and fails for configured targets.
func (stub *InstallerStub) InstallTarget(_ context.Context, packageName string, version string) opresult.Result {
	stub.Targets = append(stub.Targets, version)
	stub.Log.Record("install %s@%s", packageName, version)
	if stub.FailingTargets[version] {
		return opresult.Failed(fmt.Sprintf("install %s failed", version), "npm ERR! ERESOLVE")
	}
	return opresult.Succeeded("installed")
}

// InstallAll records the call and consumes the next scripted failure flag.
func (stub *InstallerStub) InstallAll(context.Context) opresult.Result {
	callIndex := stub.InstallAllCalls
	stub.InstallAllCalls++
	stub.Log.Record("install all")
	if callIndex < len(stub.InstallAllFailures) && stub.InstallAllFailures[callIndex] {
		return opresult.Failed("install all failed", "")
	}
	return opresult.Succeeded("installed all")
}

// ManifestEditorStub implements upgrade.ManifestEditor. When Document is set, edits are applied to it
// and dependency constraints are read from it.
type ManifestEditorStub struct {
	Log       *CallLog
	Document  *manifest.Document
	ReadError error
	Failures  map[string]error
	Panics    map[string]bool
	Applied   []string
}

// Apply records the edit name, failing or panicking when configured.
func (stub *ManifestEditorStub) Apply(edit manifest.Edit) error {
	stub.Log.Record("edit %s", edit.Name)
	if stub.Panics[edit.Name] {
		panic(fmt.Sprintf("edit %s exploded", edit.Name))
	}
	if failure, exists := stub.Failures[edit.Name]; exists {
		return failure
	}
	if stub.Document != nil && edit.Apply != nil {
		if applyError := edit.Apply(stub.Document); applyError != nil {
			return applyError
		}
	}
	stub.Applied = append(stub.Applied, edit.Name)
	return nil
}

// DependencyVersion reads the constraint from Document.
func (stub *ManifestEditorStub) DependencyVersion(dependencyName string) (string, bool, error) {
	if stub.ReadError != nil {
		return "", false, stub.ReadError
	}
	if stub.Document == nil {
		return "", false, nil
	}
	return stub.Document.DependencyVersion(dependencyName)
}

// WorkflowRewriterStub implements upgrade.WorkflowRewriter.
type WorkflowRewriterStub struct {
	Log     *CallLog
	Outcome cipatch.Outcome
	Error   error
	Configs []cipatch.RewriteConfig
}

// Rewrite records the configuration and returns the configured outcome.
func (stub *WorkflowRewriterStub) Rewrite(_ context.Context, config cipatch.RewriteConfig) (cipatch.Outcome, error) {
	stub.Configs = append(stub.Configs, config)
	stub.Log.Record("patch workflow")
	return stub.Outcome, stub.Error
}

// WorktreeInspectorStub implements upgrade.WorktreeInspector.
type WorktreeInspectorStub struct {
	Report preflight.Report
	Error  error
}

// Inspect returns the configured report.
func (stub WorktreeInspectorStub) Inspect(context.Context, string, []string) (preflight.Report, error) {
	return stub.Report, stub.Error
}

// JournalStub implements upgrade.Journal in memory. When FailAfter is positive, the append with
// that ordinal and every later one fail.
type JournalStub struct {
	mutex     sync.Mutex
	FailAfter int
	Entries   []journal.Entry
	failure   error
}

// Log records the entry unless the failure threshold has been reached.
func (stub *JournalStub) Log(level journal.Level, message string) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	if stub.FailAfter > 0 && len(stub.Entries)+1 >= stub.FailAfter {
		if stub.failure == nil {
			stub.failure = ErrJournalStubFailure
		}
		return stub.failure
	}
	stub.Entries = append(stub.Entries, journal.Entry{Level: level, Message: message})
	return nil
}

// Info records an INFO entry.
func (stub *JournalStub) Info(message string) error {
	return stub.Log(journal.LevelInfo, message)
}

// Warn records a WARN entry.
func (stub *JournalStub) Warn(message string) error {
	return stub.Log(journal.LevelWarn, message)
}

// Error records an ERROR entry.
func (stub *JournalStub) Error(message string) error {
	return stub.Log(journal.LevelError, message)
}

// Success records a SUCCESS entry.
func (stub *JournalStub) Success(message string) error {
	return stub.Log(journal.LevelSuccess, message)
}

// Err returns the first append failure.
func (stub *JournalStub) Err() error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	return stub.failure
}

// Messages returns the recorded messages at the provided level.
func (stub *JournalStub) Messages(level journal.Level) []string {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	messages := []string{}
	for _, entry := range stub.Entries {
		if entry.Level == level {
			messages = append(messages, entry.Message)
		}
	}
	return messages
}

// NPMExecutorStub records npm invocations and fails those matched by FailWhen.
type NPMExecutorStub struct {
	mutex    sync.Mutex
	FailWhen func(details execshell.CommandDetails) bool
	Executed []execshell.CommandDetails
}

// ExecuteNPM records the invocation.
func (stub *NPMExecutorStub) ExecuteNPM(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	stub.mutex.Lock()
	stub.Executed = append(stub.Executed, details)
	stub.mutex.Unlock()

	command := execshell.ShellCommand{Name: execshell.CommandNPM, Details: details}
	if stub.FailWhen != nil && stub.FailWhen(details) {
		result := execshell.ExecutionResult{StandardError: "npm ERR! code 1", ExitCode: 1}
		return execshell.ExecutionResult{}, execshell.CommandFailedError{Command: command, Result: result}
	}
	return execshell.ExecutionResult{StandardOutput: "ok"}, nil
}

// ServiceStub implements upgrade.RunExecutor for command tests.
type ServiceStub struct {
	Outcome              upgrade.RunOutcome
	ExecuteError         error
	Report               upgrade.BaselineReport
	BaselineError        error
	ReceivedOptions      []upgrade.Options
	ReceivedDependencies []upgrade.ServiceDependencies
	Executions           int
	Baselines            int
}

// Provider returns a ServiceProvider that records its inputs and returns the stub.
func (stub *ServiceStub) Provider() upgrade.ServiceProvider {
	return func(dependencies upgrade.ServiceDependencies, options upgrade.Options) (upgrade.RunExecutor, error) {
		stub.ReceivedDependencies = append(stub.ReceivedDependencies, dependencies)
		stub.ReceivedOptions = append(stub.ReceivedOptions, options)
		return stub, nil
	}
}

// Execute returns the configured outcome.
func (stub *ServiceStub) Execute(context.Context) (upgrade.RunOutcome, error) {
	stub.Executions++
	return stub.Outcome, stub.ExecuteError
}

// Baseline returns the configured report.
func (stub *ServiceStub) Baseline(context.Context) (upgrade.BaselineReport, error) {
	stub.Baselines++
	return stub.Report, stub.BaselineError
}
