package verify_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/toolbump/internal/execshell"
	"github.com/temirov/toolbump/internal/journal"
	"github.com/temirov/toolbump/internal/verify"
)

type stubCommandRunner struct {
	results  []execshell.ExecutionResult
	errors   []error
	commands []execshell.ShellCommand
	onRun    func(command execshell.ShellCommand)
}

func (runner *stubCommandRunner) Run(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	callIndex := len(runner.commands)
	runner.commands = append(runner.commands, command)
	if runner.onRun != nil {
		runner.onRun(command)
	}
	var result execshell.ExecutionResult
	var runError error
	if callIndex < len(runner.results) {
		result = runner.results[callIndex]
	}
	if callIndex < len(runner.errors) {
		runError = runner.errors[callIndex]
	}
	return result, runError
}

type verifierFixture struct {
	projectDirectory string
	runner           *stubCommandRunner
	journal          *journal.Journal
}

func newVerifierFixture(testInstance *testing.T, runner *stubCommandRunner) (verifierFixture, *execshell.ShellExecutor) {
	testInstance.Helper()
	projectDirectory := testInstance.TempDir()
	runJournal, openError := journal.Open(journal.Options{ArtifactPath: filepath.Join(testInstance.TempDir(), "upgrade.log")})
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() { _ = runJournal.Close() })

	shellExecutor, executorError := execshell.NewShellExecutor(zap.NewNop(), runner, false)
	require.NoError(testInstance, executorError)
	shellExecutor.WithObserver(runJournal)

	return verifierFixture{projectDirectory: projectDirectory, runner: runner, journal: runJournal}, shellExecutor
}

func createBuildOutput(projectDirectory string, fileCount int) func(execshell.ShellCommand) {
	return func(execshell.ShellCommand) {
		staticDirectory := filepath.Join(projectDirectory, "build", "static", "js")
		_ = os.MkdirAll(staticDirectory, 0o755)
		for fileIndex := 0; fileIndex < fileCount; fileIndex++ {
			_ = os.WriteFile(filepath.Join(staticDirectory, string(rune('a'+fileIndex))+".js"), []byte("x"), 0o644)
		}
	}
}

func TestNewVerifierValidation(testInstance *testing.T) {
	fixture, shellExecutor := newVerifierFixture(testInstance, &stubCommandRunner{})

	_, executorError := verify.NewVerifier(nil, fixture.journal, verify.Options{})
	require.ErrorIs(testInstance, executorError, verify.ErrExecutorNotConfigured)

	_, reporterError := verify.NewVerifier(shellExecutor, nil, verify.Options{})
	require.ErrorIs(testInstance, reporterError, verify.ErrReporterNotConfigured)

	_, environmentError := verify.NewVerifier(shellExecutor, fixture.journal, verify.Options{LegacyEnvironment: []string{"=value"}})
	require.Error(testInstance, environmentError)
}

func TestTestBuildStrategies(testInstance *testing.T) {
	testCases := []struct {
		name                string
		strategy            verify.Strategy
		expectedEnvironment map[string]string
	}{
		{name: "modern", strategy: verify.StrategyModern, expectedEnvironment: map[string]string{}},
		{name: "legacy", strategy: verify.StrategyLegacy, expectedEnvironment: map[string]string{"NODE_OPTIONS": "--openssl-legacy-provider"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			runner := &stubCommandRunner{results: []execshell.ExecutionResult{{StandardOutput: "Compiled successfully."}}}
			fixture, shellExecutor := newVerifierFixture(testInstance, runner)
			runner.onRun = createBuildOutput(fixture.projectDirectory, 3)

			verifier, creationError := verify.NewVerifier(shellExecutor, fixture.journal, verify.DefaultOptions(fixture.projectDirectory))
			require.NoError(testInstance, creationError)

			buildResult := verifier.TestBuild(context.Background(), testCase.strategy)
			require.True(testInstance, buildResult.Passed, buildResult.Message)
			require.Equal(testInstance, testCase.strategy, buildResult.Strategy)
			require.NotNil(testInstance, buildResult.ArtifactFileCount)
			require.Equal(testInstance, 3, *buildResult.ArtifactFileCount)
			require.Equal(testInstance, "Compiled successfully.", buildResult.StandardOutput)

			require.Len(testInstance, runner.commands, 1)
			recordedDetails := runner.commands[0].Details
			require.Equal(testInstance, []string{"run", "build"}, recordedDetails.Arguments)
			require.Equal(testInstance, fixture.projectDirectory, recordedDetails.WorkingDirectory)
			require.Equal(testInstance, 300*time.Second, recordedDetails.Timeout)
			require.Equal(testInstance, testCase.expectedEnvironment, recordedDetails.EnvironmentVariables)

			entries := fixture.journal.Entries()
			require.Equal(testInstance, journal.LevelSuccess, entries[len(entries)-1].Level)
		})
	}
}

func TestTestBuildFailureRecordsOutput(testInstance *testing.T) {
	runner := &stubCommandRunner{results: []execshell.ExecutionResult{{
		StandardOutput: "Creating an optimized production build...",
		StandardError:  "Error: error:0308010C:digital envelope routines::unsupported",
		ExitCode:       1,
	}}}
	fixture, shellExecutor := newVerifierFixture(testInstance, runner)

	verifier, creationError := verify.NewVerifier(shellExecutor, fixture.journal, verify.DefaultOptions(fixture.projectDirectory))
	require.NoError(testInstance, creationError)

	buildResult := verifier.TestBuild(context.Background(), verify.StrategyModern)
	require.False(testInstance, buildResult.Passed)
	require.Nil(testInstance, buildResult.ArtifactFileCount)
	require.Contains(testInstance, buildResult.StandardError, "digital envelope routines")
	require.Equal(testInstance, "Build failed with modern strategy (exit code 1)", buildResult.Message)

	errorMessages := []string{}
	for _, entry := range fixture.journal.Entries() {
		if entry.Level == journal.LevelError {
			errorMessages = append(errorMessages, entry.Message)
		}
	}
	require.Contains(testInstance, errorMessages, "stdout | Creating an optimized production build...")
	require.Contains(testInstance, errorMessages, "stderr | Error: error:0308010C:digital envelope routines::unsupported")
}

func TestTestBuildTimeout(testInstance *testing.T) {
	runner := &stubCommandRunner{
		results: []execshell.ExecutionResult{{StandardOutput: "Creating an optimized production build...", ExitCode: -1}},
		errors:  []error{context.DeadlineExceeded},
	}
	fixture, shellExecutor := newVerifierFixture(testInstance, runner)

	options := verify.DefaultOptions(fixture.projectDirectory)
	options.Timeout = time.Minute
	verifier, creationError := verify.NewVerifier(shellExecutor, fixture.journal, options)
	require.NoError(testInstance, creationError)

	buildResult := verifier.TestBuild(context.Background(), verify.StrategyLegacy)
	require.False(testInstance, buildResult.Passed)
	require.Equal(testInstance, "Build timed out after 1m0s with legacy strategy", buildResult.Message)
	require.Equal(testInstance, "Creating an optimized production build...", buildResult.StandardOutput)
}

func TestTestBuildMissingOutputDirectoryStillPasses(testInstance *testing.T) {
	runner := &stubCommandRunner{results: []execshell.ExecutionResult{{}}}
	fixture, shellExecutor := newVerifierFixture(testInstance, runner)

	verifier, creationError := verify.NewVerifier(shellExecutor, fixture.journal, verify.DefaultOptions(fixture.projectDirectory))
	require.NoError(testInstance, creationError)

	buildResult := verifier.TestBuild(context.Background(), verify.StrategyModern)
	require.True(testInstance, buildResult.Passed)
	require.Nil(testInstance, buildResult.ArtifactFileCount)

	entries := fixture.journal.Entries()
	require.Equal(testInstance, journal.LevelWarn, entries[len(entries)-1].Level)
}

func TestTestBuildRejectsUnknownStrategy(testInstance *testing.T) {
	runner := &stubCommandRunner{}
	fixture, shellExecutor := newVerifierFixture(testInstance, runner)

	verifier, creationError := verify.NewVerifier(shellExecutor, fixture.journal, verify.DefaultOptions(fixture.projectDirectory))
	require.NoError(testInstance, creationError)

	buildResult := verifier.TestBuild(context.Background(), verify.Strategy("experimental"))
	require.False(testInstance, buildResult.Passed)
	require.Empty(testInstance, runner.commands)
}

func TestTestBuildMergesEnvironmentFile(testInstance *testing.T) {
	runner := &stubCommandRunner{results: []execshell.ExecutionResult{{}}}
	fixture, shellExecutor := newVerifierFixture(testInstance, runner)
	require.NoError(testInstance, os.WriteFile(
		filepath.Join(fixture.projectDirectory, ".env.build"),
		[]byte("PUBLIC_URL=/sequencer\nNODE_OPTIONS=--max-old-space-size=4096\n"),
		0o644,
	))

	options := verify.DefaultOptions(fixture.projectDirectory)
	options.EnvironmentFile = ".env.build"
	verifier, creationError := verify.NewVerifier(shellExecutor, fixture.journal, options)
	require.NoError(testInstance, creationError)

	verifier.TestBuild(context.Background(), verify.StrategyModern)
	verifier.TestBuild(context.Background(), verify.StrategyLegacy)

	require.Len(testInstance, runner.commands, 2)
	require.Equal(testInstance, map[string]string{
		"PUBLIC_URL":   "/sequencer",
		"NODE_OPTIONS": "--max-old-space-size=4096",
	}, runner.commands[0].Details.EnvironmentVariables)
	require.Equal(testInstance, map[string]string{
		"PUBLIC_URL":   "/sequencer",
		"NODE_OPTIONS": "--openssl-legacy-provider",
	}, runner.commands[1].Details.EnvironmentVariables)
}
