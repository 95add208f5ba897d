package metrics

import "time"

// ResultLabel enumerates outcome labels shared by counters.
type ResultLabel string

// Outcome labels.
const (
	ResultPassed ResultLabel = "passed"
	ResultFailed ResultLabel = "failed"
)

// Recorder receives measurements from the upgrade orchestrator.
type Recorder interface {
	ObserveStepDuration(version string, result ResultLabel, duration time.Duration)
	IncBuildVerification(strategy string, result ResultLabel)
	IncRunOutcome(outcome string)
	IncStateTransition(state string)
}

// NoopRecorder discards every measurement.
type NoopRecorder struct{}

// ObserveStepDuration implements Recorder.
func (NoopRecorder) ObserveStepDuration(string, ResultLabel, time.Duration) {}

// IncBuildVerification implements Recorder.
func (NoopRecorder) IncBuildVerification(string, ResultLabel) {}

// IncRunOutcome implements Recorder.
func (NoopRecorder) IncRunOutcome(string) {}

// IncStateTransition implements Recorder.
func (NoopRecorder) IncStateTransition(string) {}

// ResultFor converts a pass/fail flag to its label.
func ResultFor(passed bool) ResultLabel {
	if passed {
		return ResultPassed
	}
	return ResultFailed
}
