package verify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/temirov/toolbump/internal/execshell"
	"github.com/temirov/toolbump/internal/journal"
)

const (
	strategyModernStringConstant = "modern"
	strategyLegacyStringConstant = "legacy"

	defaultBuildTimeoutConstant          = 300 * time.Second
	defaultOutputDirectoryConstant       = "build"
	defaultLegacyEnvironmentConstant     = "NODE_OPTIONS=--openssl-legacy-provider"
	environmentAssignmentSeparator       = "="
	executorNotConfiguredMessageConstant = "build verifier executor not configured"
	reporterNotConfiguredMessageConstant = "build verifier reporter not configured"
	unknownStrategyTemplateConstant      = "unknown build strategy %q"
	invalidEnvironmentTemplateConstant   = "invalid environment assignment %q"

	testingBuildTemplateConstant     = "Testing build with %s strategy"
	buildPassedTemplateConstant      = "Build passed with %s strategy (%d files in %s)"
	buildFailedTemplateConstant      = "Build failed with %s strategy: %v"
	buildExitedTemplateConstant      = "Build failed with %s strategy (exit code %d)"
	buildTimedOutTemplateConstant    = "Build timed out after %s with %s strategy"
	outputMissingTemplateConstant    = "Build succeeded with %s strategy but output directory %s was not found"
	outputUnreadableTemplateConstant = "Build succeeded with %s strategy but output directory %s could not be inspected: %v"
	environmentFileSkippedTemplate   = "Build environment file %s could not be read: %v"
)

// Strategy selects the environment a build runs under.
type Strategy string

// Supported build strategies.
const (
	StrategyModern Strategy = Strategy(strategyModernStringConstant)
	StrategyLegacy Strategy = Strategy(strategyLegacyStringConstant)
)

// ErrExecutorNotConfigured indicates the verifier was constructed without an executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// ErrReporterNotConfigured indicates the verifier was constructed without a reporter.
var ErrReporterNotConfigured = errors.New(reporterNotConfiguredMessageConstant)

// NPMExecutor runs npm commands.
type NPMExecutor interface {
	ExecuteNPM(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Options configures build verification.
type Options struct {
	ProjectDirectory  string
	Arguments         []string
	OutputDirectory   string
	Timeout           time.Duration
	LegacyEnvironment []string
	EnvironmentFile   string
}

// DefaultOptions returns the npm build invocation used when nothing is configured.
func DefaultOptions(projectDirectory string) Options {
	return Options{
		ProjectDirectory:  projectDirectory,
		Arguments:         []string{"run", "build"},
		OutputDirectory:   defaultOutputDirectoryConstant,
		Timeout:           defaultBuildTimeoutConstant,
		LegacyEnvironment: []string{defaultLegacyEnvironmentConstant},
	}
}

// BuildResult describes one build attempt.
type BuildResult struct {
	Strategy          Strategy
	Passed            bool
	StandardOutput    string
	StandardError     string
	ArtifactFileCount *int
	Duration          time.Duration
	Message           string
}

// Verifier runs builds under a requested strategy.
type Verifier struct {
	executor NPMExecutor
	reporter journal.Reporter
	options  Options
	clock    func() time.Time
}

// NewVerifier constructs a Verifier. Zero-valued options fall back to DefaultOptions.
func NewVerifier(executor NPMExecutor, reporter journal.Reporter, options Options) (*Verifier, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if reporter == nil {
		return nil, ErrReporterNotConfigured
	}
	defaults := DefaultOptions(options.ProjectDirectory)
	if len(options.Arguments) == 0 {
		options.Arguments = defaults.Arguments
	}
	if len(strings.TrimSpace(options.OutputDirectory)) == 0 {
		options.OutputDirectory = defaults.OutputDirectory
	}
	if options.Timeout <= 0 {
		options.Timeout = defaults.Timeout
	}
	if options.LegacyEnvironment == nil {
		options.LegacyEnvironment = defaults.LegacyEnvironment
	}
	for _, assignment := range options.LegacyEnvironment {
		if _, _, valid := splitAssignment(assignment); !valid {
			return nil, fmt.Errorf(invalidEnvironmentTemplateConstant, assignment)
		}
	}
	return &Verifier{executor: executor, reporter: reporter, options: options, clock: time.Now}, nil
}

// TestBuild runs the build once under the given strategy. Exit status alone decides Passed;
// the output directory is inspected only to record its file count.
func (verifier *Verifier) TestBuild(executionContext context.Context, strategy Strategy) BuildResult {
	result := BuildResult{Strategy: strategy}

	environment, environmentError := verifier.environmentFor(strategy)
	if environmentError != nil {
		result.Message = environmentError.Error()
		_ = verifier.reporter.Error(result.Message)
		return result
	}

	_ = verifier.reporter.Info(fmt.Sprintf(testingBuildTemplateConstant, strategy))

	startedAt := verifier.clock()
	executionResult, executionError := verifier.executor.ExecuteNPM(executionContext, execshell.CommandDetails{
		Arguments:            append([]string{}, verifier.options.Arguments...),
		WorkingDirectory:     verifier.options.ProjectDirectory,
		EnvironmentVariables: environment,
		Timeout:              verifier.options.Timeout,
	})
	result.Duration = verifier.clock().Sub(startedAt)

	if executionError != nil {
		capturedResult, _ := execshell.CapturedResult(executionError)
		result.StandardOutput = capturedResult.StandardOutput
		result.StandardError = capturedResult.StandardError
		result.Message = describeFailure(strategy, verifier.options.Timeout, executionError)
		_ = verifier.reporter.Error(result.Message)
		return result
	}

	result.Passed = true
	result.StandardOutput = executionResult.StandardOutput
	result.StandardError = executionResult.StandardError

	outputDirectory := verifier.outputDirectoryPath()
	fileCount, countError := countFiles(outputDirectory)
	switch {
	case countError == nil:
		result.ArtifactFileCount = &fileCount
		result.Message = fmt.Sprintf(buildPassedTemplateConstant, strategy, fileCount, outputDirectory)
		_ = verifier.reporter.Success(result.Message)
	case errors.Is(countError, fs.ErrNotExist):
		result.Message = fmt.Sprintf(outputMissingTemplateConstant, strategy, outputDirectory)
		_ = verifier.reporter.Warn(result.Message)
	default:
		result.Message = fmt.Sprintf(outputUnreadableTemplateConstant, strategy, outputDirectory, countError)
		_ = verifier.reporter.Warn(result.Message)
	}

	return result
}

func (verifier *Verifier) environmentFor(strategy Strategy) (map[string]string, error) {
	switch strategy {
	case StrategyModern, StrategyLegacy:
	default:
		return nil, fmt.Errorf(unknownStrategyTemplateConstant, strategy)
	}

	environment := map[string]string{}
	if environmentFile := verifier.environmentFilePath(); len(environmentFile) > 0 {
		fileValues, readError := godotenv.Read(environmentFile)
		if readError != nil {
			_ = verifier.reporter.Warn(fmt.Sprintf(environmentFileSkippedTemplate, environmentFile, readError))
		}
		for environmentKey, environmentValue := range fileValues {
			environment[environmentKey] = environmentValue
		}
	}

	if strategy == StrategyLegacy {
		for _, assignment := range verifier.options.LegacyEnvironment {
			environmentKey, environmentValue, _ := splitAssignment(assignment)
			environment[environmentKey] = environmentValue
		}
	}

	return environment, nil
}

func (verifier *Verifier) environmentFilePath() string {
	environmentFile := strings.TrimSpace(verifier.options.EnvironmentFile)
	if len(environmentFile) == 0 || filepath.IsAbs(environmentFile) {
		return environmentFile
	}
	return filepath.Join(verifier.options.ProjectDirectory, environmentFile)
}

func (verifier *Verifier) outputDirectoryPath() string {
	if filepath.IsAbs(verifier.options.OutputDirectory) {
		return verifier.options.OutputDirectory
	}
	return filepath.Join(verifier.options.ProjectDirectory, verifier.options.OutputDirectory)
}

func describeFailure(strategy Strategy, timeout time.Duration, executionError error) string {
	var commandExecutionError execshell.CommandExecutionError
	if errors.As(executionError, &commandExecutionError) && commandExecutionError.TimedOut() {
		return fmt.Sprintf(buildTimedOutTemplateConstant, timeout, strategy)
	}
	var commandFailedError execshell.CommandFailedError
	if errors.As(executionError, &commandFailedError) {
		return fmt.Sprintf(buildExitedTemplateConstant, strategy, commandFailedError.Result.ExitCode)
	}
	return fmt.Sprintf(buildFailedTemplateConstant, strategy, executionError)
}

func splitAssignment(assignment string) (string, string, bool) {
	environmentKey, environmentValue, found := strings.Cut(assignment, environmentAssignmentSeparator)
	environmentKey = strings.TrimSpace(environmentKey)
	if !found || len(environmentKey) == 0 {
		return "", "", false
	}
	return environmentKey, environmentValue, true
}

func countFiles(directoryPath string) (int, error) {
	directoryInfo, statError := os.Stat(directoryPath)
	if statError != nil {
		return 0, statError
	}
	if !directoryInfo.IsDir() {
		return 0, fmt.Errorf("%s: %w", directoryPath, fs.ErrNotExist)
	}
	fileCount := 0
	walkError := filepath.WalkDir(directoryPath, func(_ string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}
		if !directoryEntry.IsDir() {
			fileCount++
		}
		return nil
	})
	return fileCount, walkError
}
