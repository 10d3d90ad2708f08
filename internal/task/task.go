// Package task implements the cancellable background operation framework:
// a state machine that walks one filesystem operation at a time through
// confirmation, conflict detection, conflict resolution and background
// execution, without ever blocking the UI goroutine on I/O.
package task

// Verb identifies the kind of operation being performed.
type Verb int

const (
	VerbCreate Verb = iota
	VerbExtract
	VerbCopy
	VerbMove
	VerbDelete
)

func (v Verb) String() string {
	switch v {
	case VerbCreate:
		return "create"
	case VerbExtract:
		return "extract"
	case VerbCopy:
		return "copy"
	case VerbMove:
		return "move"
	case VerbDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Unit is a single item of work: one source file for create, one archive
// entry for extract, one file for copy/move/delete. Target is the path the
// unit would write or remove, and is what conflict detection checks.
type Unit struct {
	Source string
	Target string
	Size   int64
	IsDir  bool
}

// Choice is a conflict resolution decision.
type Choice int

const (
	// ChoiceNone means cancel (ESC) when returned from a dialog, and
	// "no conflict recorded" when returned from a policy lookup.
	ChoiceNone Choice = iota
	ChoiceOverwrite
	ChoiceSkip
)

func (c Choice) String() string {
	switch c {
	case ChoiceOverwrite:
		return "overwrite"
	case ChoiceSkip:
		return "skip"
	default:
		return "none"
	}
}

// AdvanceKind classifies a progress tick.
type AdvanceKind int

const (
	AdvanceSuccess AdvanceKind = iota
	AdvanceSkip
)

// Operation is the pluggable domain strategy: it knows how to enumerate the
// units of one concrete operation and how to process a single unit. All I/O
// lives behind this interface; the framework never touches the filesystem
// except through DetectConflicts.
type Operation interface {
	Verb() Verb

	// Destination is the single destination path of the operation: the
	// archive file for create, the target directory for extract/copy/move,
	// empty for delete.
	Destination() string

	// Summary is the question shown in the confirmation dialog.
	Summary() string

	// Label is the short progress label, e.g. "Packing files.tar.gz".
	Label() string

	// EnumerateUnits lists the units in processing order. Called once, on
	// the controlling goroutine, before any conflict is surfaced.
	EnumerateUnits() ([]Unit, error)

	// ProcessUnit performs the unit's I/O. overwrite reports the resolved
	// conflict policy for the unit's target; units without a conflict get
	// false. Called only from the executor goroutine.
	ProcessUnit(u Unit, overwrite bool) error
}

// Finalizer is implemented by operations that hold open resources across
// units (the archive writer, for one). Finalize runs on the executor
// goroutine after the unit loop ends, with cancelled reporting whether the
// run was cut short.
type Finalizer interface {
	Finalize(cancelled bool) error
}

// Gateway is the UI side of the protocol. Both methods return immediately;
// the respond callback is invoked later, on the controlling goroutine, once
// the user has answered.
type Gateway interface {
	ShowConfirmation(summary string, respond func(confirmed bool))
	ShowConflict(c Conflict, total int, skipOffered bool, respond func(choice Choice, applyToAll bool))
	ShowError(message string)
}

// ProgressSink receives live progress from the executor goroutine.
type ProgressSink interface {
	Begin(total int, label string)
	Advance(kind AdvanceKind)
	SetErrorCount(n int)
	Finish(summary string)
	Cancelled(summary string)
}

// Hooks are the completion-side collaborators, invoked from the executor
// goroutine once per run.
type Hooks interface {
	// InvalidateCache receives every path actually written or removed.
	// Skipped units are never reported.
	InvalidateCache(paths []string)
	RefreshListing()
	MarkDirty()
}

// CompletionFunc is invoked exactly once per run, on the executor goroutine,
// even when the run was cancelled. Supplying one suppresses the default
// summary on the progress sink.
type CompletionFunc func(succeeded, errored int)
