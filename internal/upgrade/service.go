package upgrade

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/toolbump/internal/cipatch"
	"github.com/temirov/toolbump/internal/journal"
	"github.com/temirov/toolbump/internal/manifest"
	"github.com/temirov/toolbump/internal/metrics"
	"github.com/temirov/toolbump/internal/opresult"
	"github.com/temirov/toolbump/internal/preflight"
	"github.com/temirov/toolbump/internal/verify"
)

const (
	journalMissingMessageConstant         = "upgrade journal not configured"
	snapshotManagerMissingMessageConstant = "upgrade snapshot manager not configured"
	verifierMissingMessageConstant        = "upgrade build verifier not configured"
	installerMissingMessageConstant       = "upgrade dependency installer not configured"
	manifestEditorMissingMessageConstant  = "upgrade manifest editor not configured"
	journalFailureTemplateConstant        = "run journal failed in state %s: %w"
	manifestEditPanicTemplateConstant     = "manifest edit %s panicked: %v"

	stateTransitionLogMessageConstant = "Upgrade state transition"
	logFieldStateConstant             = "state"
	logFieldVersionConstant           = "version"

	runStartedTemplateConstant          = "Upgrading %s through %d candidate version(s)"
	snapshotFailedMessageConstant       = "Upgrade aborted: the manifest backup could not be created"
	manifestEditFailedTemplateConstant  = "Manifest edit %s failed: %v"
	manifestEditAppliedTemplateConstant = "Manifest edit %s applied"
	stepStartedTemplateConstant         = "Step %d/%d: %s"
	cleanWarningTemplateConstant        = "Dependency cleanup incomplete before %s; continuing"
	bothStrategiesFailedTemplate        = "Build failed with both modern and legacy strategies for %s"
	stepFailedTemplateConstant          = "Step %s failed: %s; restoring backup"
	restoreFailedTemplateConstant       = "Restoring backup after step %s failed: %s"
	reinstallFailedTemplateConstant     = "Reinstalling restored dependencies after step %s failed"
	workflowSkippedTemplateConstant     = "CI workflow %s not found; nothing to patch"
	workflowUnchangedTemplateConstant   = "CI workflow %s already up to date"
	workflowPatchedTemplateConstant     = "CI workflow %s patched (%v)"
	workflowPatchFailedTemplateConstant = "CI workflow patch failed: %v"
	finalInstallFailedTemplateConstant  = "Final dependency install for %s %s failed"
	finalVerificationFailedTemplate     = "Final verification of %s %s failed; not trying further versions"
	upgradeSucceededTemplateConstant    = "Upgraded %s to %s"
	allStepsFailedTemplateConstant      = "All upgrade steps failed for %s (%v)"
	worktreeDirtyTemplateConstant       = "%s has uncommitted changes (staging %c, worktree %c)"
	worktreeInspectionFailedTemplate    = "Could not inspect the project worktree: %v"
	pinnedVersionConfirmedTemplate      = "Manifest pins %s to %s"
	pinnedVersionCorrectedTemplate      = "Manifest recorded %s as %q; pinned to %s"
	pinnedVersionFailedTemplate         = "Could not pin %s to %s in the manifest: %v"
	pinnedVersionUnreadableTemplate     = "Could not read the %s constraint from the manifest: %v"
	baselineStartedMessageConstant      = "Checking that the project builds before upgrading"
	baselineReadyMessageConstant        = "Project builds with the current toolchain and is ready for upgrade"
	baselineNotReadyMessageConstant     = "Project does not build with the current toolchain; fix the build before upgrading"
)

// ErrJournalNotConfigured indicates the service was constructed without a journal.
var ErrJournalNotConfigured = errors.New(journalMissingMessageConstant)

// ErrSnapshotManagerNotConfigured indicates the service was constructed without a snapshot manager.
var ErrSnapshotManagerNotConfigured = errors.New(snapshotManagerMissingMessageConstant)

// ErrVerifierNotConfigured indicates the service was constructed without a build verifier.
var ErrVerifierNotConfigured = errors.New(verifierMissingMessageConstant)

// ErrInstallerNotConfigured indicates the service was constructed without a dependency installer.
var ErrInstallerNotConfigured = errors.New(installerMissingMessageConstant)

// ErrManifestEditorNotConfigured indicates the service was constructed without a manifest editor.
var ErrManifestEditorNotConfigured = errors.New(manifestEditorMissingMessageConstant)

// Journal is the run log used by the orchestrator. Err reports the first failed append.
type Journal interface {
	journal.Reporter
	Err() error
}

// SnapshotManager creates and restores the manifest backup.
type SnapshotManager interface {
	Create() opresult.Result
	Restore() opresult.Result
	Cleanup()
}

// BuildVerifier runs one build under one strategy.
type BuildVerifier interface {
	TestBuild(executionContext context.Context, strategy verify.Strategy) verify.BuildResult
}

// DependencyInstaller cleans and installs project dependencies.
type DependencyInstaller interface {
	Clean(executionContext context.Context) opresult.Result
	InstallTarget(executionContext context.Context, packageName string, version string) opresult.Result
	InstallAll(executionContext context.Context) opresult.Result
}

// ManifestEditor applies targeted manifest edits and reads dependency constraints back.
type ManifestEditor interface {
	Apply(edit manifest.Edit) error
	DependencyVersion(dependencyName string) (string, bool, error)
}

// WorkflowRewriter patches the CI workflow.
type WorkflowRewriter interface {
	Rewrite(executionContext context.Context, config cipatch.RewriteConfig) (cipatch.Outcome, error)
}

// WorktreeInspector reports uncommitted changes to files the run will mutate.
type WorktreeInspector interface {
	Inspect(executionContext context.Context, projectDirectory string, watchedFiles []string) (preflight.Report, error)
}

// ServiceDependencies describes the collaborators of the orchestrator.
type ServiceDependencies struct {
	Logger            *zap.Logger
	Journal           Journal
	Snapshots         SnapshotManager
	Verifier          BuildVerifier
	Installer         DependencyInstaller
	ManifestEditor    ManifestEditor
	WorkflowRewriter  WorkflowRewriter
	WorktreeInspector WorktreeInspector
	Recorder          metrics.Recorder
	Clock             func() time.Time
}

// Options configures one upgrade run.
type Options struct {
	ProjectDirectory       string
	Plan                   Plan
	Homepage               string
	BrowserTargets         manifest.BrowserTargets
	Scripts                map[string]string
	WorkflowPath           string
	WorkflowRules          cipatch.RuleSet
	WatchedFiles           []string
	CleanupBackupOnSuccess bool
}

// BaselineReport is the result of a baseline check.
type BaselineReport struct {
	Ready bool
	Build verify.BuildResult
}

// Service runs the upgrade state machine.
type Service struct {
	logger            *zap.Logger
	journal           Journal
	snapshots         SnapshotManager
	verifier          BuildVerifier
	installer         DependencyInstaller
	manifestEditor    ManifestEditor
	workflowRewriter  WorkflowRewriter
	worktreeInspector WorktreeInspector
	recorder          metrics.Recorder
	clock             func() time.Time
	options           Options
}

// NewService validates dependencies and options and constructs a Service.
func NewService(dependencies ServiceDependencies, options Options) (*Service, error) {
	if dependencies.Journal == nil {
		return nil, ErrJournalNotConfigured
	}
	if dependencies.Snapshots == nil {
		return nil, ErrSnapshotManagerNotConfigured
	}
	if dependencies.Verifier == nil {
		return nil, ErrVerifierNotConfigured
	}
	if dependencies.Installer == nil {
		return nil, ErrInstallerNotConfigured
	}
	if dependencies.ManifestEditor == nil {
		return nil, ErrManifestEditorNotConfigured
	}

	options.Plan = options.Plan.Normalize()
	if planError := options.Plan.Validate(); planError != nil {
		return nil, planError
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workflowRewriter := dependencies.WorkflowRewriter
	if workflowRewriter == nil {
		workflowRewriter = cipatch.NewRewriter(logger)
	}
	recorder := dependencies.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}
	if options.WorkflowRules == nil {
		options.WorkflowRules = cipatch.DefaultRules(cipatch.DefaultRuleOptions())
	}

	return &Service{
		logger:            logger,
		journal:           dependencies.Journal,
		snapshots:         dependencies.Snapshots,
		verifier:          dependencies.Verifier,
		installer:         dependencies.Installer,
		manifestEditor:    dependencies.ManifestEditor,
		workflowRewriter:  workflowRewriter,
		worktreeInspector: dependencies.WorktreeInspector,
		recorder:          recorder,
		clock:             clock,
		options:           options,
	}, nil
}

// Run executes the state machine once. Recoverable failures are reported in the outcome;
// the returned error is reserved for faults such as a failing journal.
func (service *Service) Run(executionContext context.Context) (RunOutcome, error) {
	var outcome RunOutcome
	runError := service.run(executionContext, &outcome)
	return outcome, runError
}

func (service *Service) run(executionContext context.Context, outcome *RunOutcome) error {
	plan := service.options.Plan
	*outcome = RunOutcome{State: StateInit, PackageName: plan.PackageName, AttemptedVersions: []string{}}
	if transitionError := service.transition(outcome, StateInit, ""); transitionError != nil {
		return transitionError
	}

	_ = service.journal.Info(fmt.Sprintf(runStartedTemplateConstant, plan.PackageName, len(plan.Steps)))
	service.inspectWorktree(executionContext)

	if createResult := service.snapshots.Create(); !createResult.Success {
		_ = service.journal.Error(snapshotFailedMessageConstant)
		return service.finish(outcome, StateFailed)
	}
	outcome.SnapshotTaken = true
	if transitionError := service.transition(outcome, StateBackedUp, ""); transitionError != nil {
		return transitionError
	}

	service.applyManifestEdits()
	if transitionError := service.transition(outcome, StateManifestPatched, ""); transitionError != nil {
		return transitionError
	}

	for stepIndex, step := range plan.Steps {
		outcome.AttemptedVersions = append(outcome.AttemptedVersions, step.TargetVersion)
		_ = service.journal.Info(fmt.Sprintf(stepStartedTemplateConstant, stepIndex+1, len(plan.Steps), step.Description))

		stepStartedAt := service.clock()
		stepPassed, failureReason, stepError := service.runStep(executionContext, outcome, step)
		if stepError != nil {
			return stepError
		}

		if !stepPassed {
			service.recorder.ObserveStepDuration(step.TargetVersion, metrics.ResultFailed, service.clock().Sub(stepStartedAt))
			if transitionError := service.transition(outcome, StateStepFailed, step.TargetVersion); transitionError != nil {
				return transitionError
			}
			service.recoverFromFailedStep(executionContext, outcome, step, failureReason)
			if journalError := service.journal.Err(); journalError != nil {
				return fmt.Errorf(journalFailureTemplateConstant, outcome.State, journalError)
			}
			continue
		}

		if transitionError := service.transition(outcome, StateStepSuccess, step.TargetVersion); transitionError != nil {
			return transitionError
		}

		finalized := service.finalize(executionContext, plan.PackageName, step)
		service.recorder.ObserveStepDuration(step.TargetVersion, metrics.ResultFor(finalized), service.clock().Sub(stepStartedAt))
		if !finalized {
			_ = service.journal.Error(fmt.Sprintf(finalVerificationFailedTemplate, plan.PackageName, step.TargetVersion))
			return service.finish(outcome, StateFailed)
		}

		outcome.SucceededVersion = step.TargetVersion
		_ = service.journal.Success(fmt.Sprintf(upgradeSucceededTemplateConstant, plan.PackageName, step.TargetVersion))
		return service.finish(outcome, StateDone)
	}

	_ = service.journal.Error(fmt.Sprintf(allStepsFailedTemplateConstant, plan.PackageName, outcome.AttemptedVersions))
	return service.finish(outcome, StateFailed)
}

// Baseline snapshots the manifest and runs one modern build without changing anything.
func (service *Service) Baseline(executionContext context.Context) (BaselineReport, error) {
	_ = service.journal.Info(baselineStartedMessageConstant)
	service.inspectWorktree(executionContext)

	if createResult := service.snapshots.Create(); !createResult.Success {
		_ = service.journal.Error(snapshotFailedMessageConstant)
		return BaselineReport{}, service.journal.Err()
	}

	buildResult := service.verifier.TestBuild(executionContext, verify.StrategyModern)
	service.recorder.IncBuildVerification(string(verify.StrategyModern), metrics.ResultFor(buildResult.Passed))

	if buildResult.Passed {
		_ = service.journal.Success(baselineReadyMessageConstant)
	} else {
		_ = service.journal.Error(baselineNotReadyMessageConstant)
	}

	return BaselineReport{Ready: buildResult.Passed, Build: buildResult}, service.journal.Err()
}

func (service *Service) runStep(executionContext context.Context, outcome *RunOutcome, step Step) (bool, string, error) {
	if transitionError := service.transition(outcome, StateCleaning, step.TargetVersion); transitionError != nil {
		return false, "", transitionError
	}
	if cleanResult := service.installer.Clean(executionContext); !cleanResult.Success {
		_ = service.journal.Warn(fmt.Sprintf(cleanWarningTemplateConstant, step.TargetVersion))
	}

	if transitionError := service.transition(outcome, StateInstallingTarget, step.TargetVersion); transitionError != nil {
		return false, "", transitionError
	}
	if installResult := service.installer.InstallTarget(executionContext, service.options.Plan.PackageName, step.TargetVersion); !installResult.Success {
		return false, installResult.Message, nil
	}
	service.pinTargetVersion(service.options.Plan.PackageName, step.TargetVersion)

	if transitionError := service.transition(outcome, StateInstallingAll, step.TargetVersion); transitionError != nil {
		return false, "", transitionError
	}
	if installResult := service.installer.InstallAll(executionContext); !installResult.Success {
		return false, installResult.Message, nil
	}

	if transitionError := service.transition(outcome, StateVerifying, step.TargetVersion); transitionError != nil {
		return false, "", transitionError
	}
	for _, strategy := range []verify.Strategy{verify.StrategyModern, verify.StrategyLegacy} {
		if service.verify(executionContext, strategy) {
			return true, "", nil
		}
	}
	return false, fmt.Sprintf(bothStrategiesFailedTemplate, step.TargetVersion), nil
}

func (service *Service) recoverFromFailedStep(executionContext context.Context, outcome *RunOutcome, step Step, failureReason string) {
	_ = service.journal.Warn(fmt.Sprintf(stepFailedTemplateConstant, step.TargetVersion, failureReason))

	restoreResult := service.snapshots.Restore()
	outcome.Restores++
	if !restoreResult.Success {
		_ = service.journal.Error(fmt.Sprintf(restoreFailedTemplateConstant, step.TargetVersion, restoreResult.Message))
		return
	}

	if reinstallResult := service.installer.InstallAll(executionContext); !reinstallResult.Success {
		_ = service.journal.Warn(fmt.Sprintf(reinstallFailedTemplateConstant, step.TargetVersion))
	}
}

func (service *Service) finalize(executionContext context.Context, packageName string, step Step) bool {
	service.patchWorkflow(executionContext)

	if installResult := service.installer.InstallAll(executionContext); !installResult.Success {
		_ = service.journal.Error(fmt.Sprintf(finalInstallFailedTemplateConstant, packageName, step.TargetVersion))
		return false
	}

	return service.verify(executionContext, verify.StrategyLegacy)
}

func (service *Service) verify(executionContext context.Context, strategy verify.Strategy) bool {
	buildResult := service.verifier.TestBuild(executionContext, strategy)
	service.recorder.IncBuildVerification(string(strategy), metrics.ResultFor(buildResult.Passed))
	return buildResult.Passed
}

func (service *Service) patchWorkflow(executionContext context.Context) {
	if len(service.options.WorkflowPath) == 0 {
		return
	}
	patchOutcome, patchError := service.workflowRewriter.Rewrite(executionContext, cipatch.RewriteConfig{
		WorkflowPath: service.options.WorkflowPath,
		Rules:        service.options.WorkflowRules,
	})
	switch {
	case patchError != nil:
		_ = service.journal.Warn(fmt.Sprintf(workflowPatchFailedTemplateConstant, patchError))
	case patchOutcome.Skipped:
		_ = service.journal.Info(fmt.Sprintf(workflowSkippedTemplateConstant, service.options.WorkflowPath))
	case patchOutcome.Updated:
		_ = service.journal.Info(fmt.Sprintf(workflowPatchedTemplateConstant, service.options.WorkflowPath, patchOutcome.AppliedRules))
	default:
		_ = service.journal.Info(fmt.Sprintf(workflowUnchangedTemplateConstant, service.options.WorkflowPath))
	}
}

func (service *Service) applyManifestEdits() {
	edits := make([]manifest.Edit, 0, 2)
	if len(service.options.Homepage) > 0 {
		edits = append(edits, manifest.HomepageEdit(service.options.Homepage))
	}
	if len(service.options.BrowserTargets.Production) > 0 || len(service.options.BrowserTargets.Development) > 0 {
		edits = append(edits, manifest.BrowserTargetsEdit(service.options.BrowserTargets))
	}
	scriptNames := make([]string, 0, len(service.options.Scripts))
	for scriptName := range service.options.Scripts {
		scriptNames = append(scriptNames, scriptName)
	}
	sort.Strings(scriptNames)
	for _, scriptName := range scriptNames {
		edits = append(edits, manifest.ScriptEdit(scriptName, service.options.Scripts[scriptName]))
	}

	for _, edit := range edits {
		if editError := service.applyManifestEdit(edit); editError != nil {
			_ = service.journal.Warn(fmt.Sprintf(manifestEditFailedTemplateConstant, edit.Name, editError))
			continue
		}
		_ = service.journal.Info(fmt.Sprintf(manifestEditAppliedTemplateConstant, edit.Name))
	}
}

func (service *Service) applyManifestEdit(edit manifest.Edit) (editError error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			editError = fmt.Errorf(manifestEditPanicTemplateConstant, edit.Name, recovered)
		}
	}()
	return service.manifestEditor.Apply(edit)
}

// pinTargetVersion makes sure the manifest records the exact version the step installed.
func (service *Service) pinTargetVersion(packageName string, version string) {
	constraint, constraintExists, readError := service.manifestEditor.DependencyVersion(packageName)
	if readError != nil {
		_ = service.journal.Warn(fmt.Sprintf(pinnedVersionUnreadableTemplate, packageName, readError))
		return
	}
	if constraintExists && constraint == version {
		_ = service.journal.Info(fmt.Sprintf(pinnedVersionConfirmedTemplate, packageName, version))
		return
	}
	if editError := service.applyManifestEdit(manifest.DependencyVersionEdit(packageName, version)); editError != nil {
		_ = service.journal.Warn(fmt.Sprintf(pinnedVersionFailedTemplate, packageName, version, editError))
		return
	}
	_ = service.journal.Info(fmt.Sprintf(pinnedVersionCorrectedTemplate, packageName, constraint, version))
}

func (service *Service) inspectWorktree(executionContext context.Context) {
	if service.worktreeInspector == nil {
		return
	}
	report, inspectError := service.worktreeInspector.Inspect(executionContext, service.options.ProjectDirectory, service.options.WatchedFiles)
	if inspectError != nil {
		_ = service.journal.Warn(fmt.Sprintf(worktreeInspectionFailedTemplate, inspectError))
		return
	}
	for _, dirtyFile := range report.DirtyFiles {
		_ = service.journal.Warn(fmt.Sprintf(worktreeDirtyTemplateConstant, dirtyFile.Path, dirtyFile.Staging, dirtyFile.Worktree))
	}
}

func (service *Service) transition(outcome *RunOutcome, state State, version string) error {
	outcome.State = state
	service.logger.Debug(stateTransitionLogMessageConstant, zap.String(logFieldStateConstant, string(state)), zap.String(logFieldVersionConstant, version))
	service.recorder.IncStateTransition(string(state))
	if journalError := service.journal.Err(); journalError != nil {
		return fmt.Errorf(journalFailureTemplateConstant, state, journalError)
	}
	return nil
}

// finish records the run outcome once. A journal that already failed turns any outcome into FAILED.
func (service *Service) finish(outcome *RunOutcome, state State) error {
	if journalError := service.journal.Err(); journalError != nil {
		outcome.SucceededVersion = ""
		_ = service.transition(outcome, StateFailed, "")
		service.recorder.IncRunOutcome(string(StateFailed))
		return fmt.Errorf(journalFailureTemplateConstant, state, journalError)
	}
	transitionError := service.transition(outcome, state, outcome.SucceededVersion)
	service.recorder.IncRunOutcome(string(state))
	return transitionError
}
