package upgrade

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	upgradeFailedMessageConstant        = "upgrade failed"
	upgradeFailedTemplateConstant       = "upgrade of %s ended in state %s"
	unexpectedPanicTemplateConstant     = "unexpected panic: %v"
	unexpectedErrorJournalTemplate      = "Unexpected error during upgrade: %v"
	restoringAfterFailureMessage        = "Restoring the project manifest after a failed run"
	restoreAfterFailureFailedTemplate   = "Restore after failure did not complete: %s"
	restoredAfterFailureMessageConstant = "Project manifest restored to its pre-run state"
	cleanupBackupMessageConstant        = "Removing backup files after a successful run"
	logMessageRunFinishedConstant       = "Upgrade run finished"
	logFieldOutcomeStateConstant        = "outcome_state"
	logFieldSucceededVersionConstant    = "succeeded_version"
	logFieldRestoresConstant            = "restores"
)

// ErrUpgradeFailed indicates the run ended in FAILED.
var ErrUpgradeFailed = errors.New(upgradeFailedMessageConstant)

// Execute drives Run to completion. Any failure path, including recovered panics, restores the
// snapshot when one was taken. A run that does not reach DONE returns an error wrapping
// ErrUpgradeFailed or the unexpected fault.
func (service *Service) Execute(executionContext context.Context) (outcome RunOutcome, runError error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			runError = fmt.Errorf(unexpectedPanicTemplateConstant, recovered)
		}

		if runError != nil {
			_ = service.journal.Error(fmt.Sprintf(unexpectedErrorJournalTemplate, runError))
			if outcome.State != StateFailed {
				if !outcome.State.Terminal() {
					service.recorder.IncRunOutcome(string(StateFailed))
				}
				outcome.State = StateFailed
				outcome.SucceededVersion = ""
			}
		}

		if outcome.Succeeded() && runError == nil {
			if service.options.CleanupBackupOnSuccess {
				_ = service.journal.Info(cleanupBackupMessageConstant)
				service.snapshots.Cleanup()
			}
		} else {
			if outcome.SnapshotTaken {
				service.restoreAfterFailure()
			}
			if runError == nil {
				runError = fmt.Errorf(upgradeFailedTemplateConstant+": %w", outcome.PackageName, outcome.State, ErrUpgradeFailed)
			}
		}

		service.logger.Info(
			logMessageRunFinishedConstant,
			zap.String(logFieldOutcomeStateConstant, string(outcome.State)),
			zap.String(logFieldSucceededVersionConstant, outcome.SucceededVersion),
			zap.Int(logFieldRestoresConstant, outcome.Restores),
		)
	}()

	runError = service.run(executionContext, &outcome)
	return outcome, runError
}

func (service *Service) restoreAfterFailure() {
	_ = service.journal.Warn(restoringAfterFailureMessage)
	restoreResult := service.snapshots.Restore()
	if !restoreResult.Success {
		_ = service.journal.Error(fmt.Sprintf(restoreAfterFailureFailedTemplate, restoreResult.Message))
		return
	}
	_ = service.journal.Info(restoredAfterFailureMessageConstant)
}
