package task

// ConflictKind classifies a detected collision.
type ConflictKind int

const (
	// DestinationExists: the operation's single destination path already
	// exists (archive creation).
	DestinationExists ConflictKind = iota
	// EntryWouldOverwrite: writing a unit's target would clobber an
	// existing file (extraction, copy, move).
	EntryWouldOverwrite
)

// Conflict describes one collision awaiting resolution.
type Conflict struct {
	Path    string
	Kind    ConflictKind
	Size    int64
	IsDir   bool
	Ordinal int // 1-based position among all conflicts of the operation
}

// UnitError is one per-unit failure, kept for the error log.
type UnitError struct {
	Verb Verb
	Path string
	Err  error
}

// Results accumulates the outcome of one run. Mutated by whichever side
// currently owns the context: the controlling goroutine before Executing,
// the executor goroutine during it.
type Results struct {
	Succeeded int
	Skipped   int
	Errored   int
	Errors    []UnitError
	Cancelled bool
}

// OperationContext is the mutable record of one in-flight operation.
// Exactly one exists system-wide; it is created by Controller.Start and
// discarded when the controller returns to Idle.
type OperationContext struct {
	Verb        Verb
	Units       []Unit
	Destination string
	Format      string
	Conflicts   []Conflict
	Results     Results

	cursor       int
	overwriteAll bool
	skipAll      bool
	resolved     map[string]Choice
}

func newOperationContext(verb Verb, destination, format string) *OperationContext {
	return &OperationContext{
		Verb:        verb,
		Destination: destination,
		Format:      format,
		resolved:    map[string]Choice{},
	}
}

// resolve records the choice for the conflict at the cursor and advances it.
func (c *OperationContext) resolve(choice Choice, applyToAll bool) {
	conflict := c.Conflicts[c.cursor]
	c.resolved[conflict.Path] = choice
	if applyToAll {
		switch choice {
		case ChoiceOverwrite:
			c.overwriteAll = true
		case ChoiceSkip:
			c.skipAll = true
		}
	}
	c.cursor++
}

// resolveRemaining applies choice to every conflict from the cursor on,
// with no further dialogs.
func (c *OperationContext) resolveRemaining(choice Choice) {
	for ; c.cursor < len(c.Conflicts); c.cursor++ {
		c.resolved[c.Conflicts[c.cursor].Path] = choice
	}
}

// policy returns the resolution recorded for target, or ChoiceNone when the
// target was never in the conflict set.
func (c *OperationContext) policy(target string) Choice {
	return c.resolved[target]
}
