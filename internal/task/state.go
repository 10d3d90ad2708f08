package task

// State is the lifecycle position of the controller.
//
// Transitions:
//
//	Idle → Confirming → CheckingConflicts → ResolvingConflict → Executing → Completed → Idle
//
// Confirming is skipped when the verb's confirmation flag is off, and
// ResolvingConflict when no conflicts are detected. Executing is never
// skipped. Completed is transient and always advances straight to Idle.
type State int

const (
	StateIdle State = iota
	StateConfirming
	StateCheckingConflicts
	StateResolvingConflict
	StateExecuting
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfirming:
		return "confirming"
	case StateCheckingConflicts:
		return "checking_conflicts"
	case StateResolvingConflict:
		return "resolving_conflict"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	default:
		return "invalid"
	}
}
