package upgrade

// State is a position in the upgrade state machine.
type State string

// Orchestrator states.
const (
	StateInit             State = "INIT"
	StateBackedUp         State = "BACKED_UP"
	StateManifestPatched  State = "MANIFEST_PATCHED"
	StateCleaning         State = "CLEANING"
	StateInstallingTarget State = "INSTALLING_TARGET"
	StateInstallingAll    State = "INSTALLING_ALL"
	StateVerifying        State = "VERIFYING"
	StateStepSuccess      State = "STEP_SUCCESS"
	StateStepFailed       State = "STEP_FAILED"
	StateDone             State = "DONE"
	StateFailed           State = "FAILED"
)

// Terminal reports whether the run has finished.
func (state State) Terminal() bool {
	return state == StateDone || state == StateFailed
}

// RunOutcome summarizes a finished run.
type RunOutcome struct {
	State             State
	PackageName       string
	SucceededVersion  string
	AttemptedVersions []string
	Restores          int
	SnapshotTaken     bool
}

// Succeeded reports whether the run reached DONE.
func (outcome RunOutcome) Succeeded() bool {
	return outcome.State == StateDone
}
