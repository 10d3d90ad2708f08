package task

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrOperationActive is returned by Start while another operation is live.
var ErrOperationActive = errors.New("an operation is already in progress")

// Controller is the state machine coordinating one operation at a time. All
// of its methods must be called from the controlling (UI) goroutine; only
// the executor goroutine it spawns runs elsewhere, and it hands control back
// through finishExecution.
type Controller struct {
	gateway    Gateway
	sink       ProgressSink
	hooks      Hooks
	confirmFor func(Verb) bool
	logger     zerolog.Logger

	// spawn starts the executor worker. Tests replace it with a
	// synchronous runner to make the whole lifecycle deterministic.
	spawn func(func())

	// observer, when set, sees every state transition. Test seam.
	observer func(from, to State)

	mu    sync.Mutex
	state State
	op    Operation
	ctx   *OperationContext
	token *Token
	done  CompletionFunc
}

// NewController wires a controller to its collaborators. confirmFor reports
// whether the given verb requires a confirmation dialog; nil means no verb
// does.
func NewController(gateway Gateway, sink ProgressSink, hooks Hooks, confirmFor func(Verb) bool, logger zerolog.Logger) *Controller {
	return &Controller{
		gateway:    gateway,
		sink:       sink,
		hooks:      hooks,
		confirmFor: confirmFor,
		logger:     logger,
		spawn:      func(f func()) { go f() },
		state:      StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether an operation is live.
func (c *Controller) Busy() bool {
	return c.State() != StateIdle
}

// Start begins a new operation. It is rejected with ErrOperationActive while
// another operation is live (single-flight). The call drives the state
// machine as far as user input allows and returns without blocking on I/O.
func (c *Controller) Start(op Operation, done CompletionFunc) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		c.logger.Warn().
			Stringer("verb", op.Verb()).
			Stringer("state", state).
			Msg("operation rejected: another operation is in progress")
		return ErrOperationActive
	}

	c.op = op
	c.ctx = newOperationContext(op.Verb(), op.Destination(), formatOf(op))
	c.token = &Token{}
	c.done = done

	c.logger.Info().
		Stringer("verb", op.Verb()).
		Str("destination", op.Destination()).
		Msg("starting operation")

	if c.confirmFor != nil && c.confirmFor(op.Verb()) {
		c.setState(StateConfirming)
		summary := op.Summary()
		c.mu.Unlock()
		c.gateway.ShowConfirmation(summary, c.OnConfirmed)
		return nil
	}

	c.setState(StateCheckingConflicts)
	c.mu.Unlock()
	c.checkConflicts()
	return nil
}

// OnConfirmed receives the confirmation dialog's answer. Calls outside
// Confirming are ignored.
func (c *Controller) OnConfirmed(confirmed bool) {
	c.mu.Lock()
	if c.state != StateConfirming {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug().Stringer("state", state).Msg("OnConfirmed ignored outside confirming state")
		return
	}

	if !confirmed {
		verb := c.ctx.Verb
		c.clearLocked()
		c.mu.Unlock()
		c.logger.Info().Stringer("verb", verb).Msg("operation cancelled by user")
		return
	}

	c.setState(StateCheckingConflicts)
	c.mu.Unlock()
	c.checkConflicts()
}

// OnConflictResolved receives one conflict dialog answer. ChoiceNone (ESC)
// abandons the whole operation. Calls outside ResolvingConflict are ignored.
func (c *Controller) OnConflictResolved(choice Choice, applyToAll bool) {
	c.mu.Lock()
	if c.state != StateResolvingConflict {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug().Stringer("state", state).Msg("OnConflictResolved ignored outside resolving state")
		return
	}

	if choice == ChoiceNone {
		verb := c.ctx.Verb
		c.clearLocked()
		c.mu.Unlock()
		c.logger.Info().Stringer("verb", verb).Msg("operation cancelled during conflict resolution")
		return
	}

	if c.ctx.cursor >= len(c.ctx.Conflicts) {
		c.mu.Unlock()
		c.logger.Error().Msg("OnConflictResolved called with no remaining conflicts")
		return
	}

	path := c.ctx.Conflicts[c.ctx.cursor].Path
	c.ctx.resolve(choice, applyToAll)
	c.mu.Unlock()

	c.logger.Info().
		Stringer("choice", choice).
		Bool("apply_to_all", applyToAll).
		Str("path", path).
		Msg("conflict resolved")
	c.resolveNext()
}

// Cancel requests cancellation of the live operation. During Executing it
// only flips the token: the executor observes it at the next unit boundary
// and the run still completes through Completed back to Idle. In the dialog
// states it abandons the operation immediately.
func (c *Controller) Cancel() {
	c.mu.Lock()
	switch c.state {
	case StateIdle, StateCompleted:
		c.mu.Unlock()

	case StateExecuting:
		token := c.token
		c.mu.Unlock()
		token.Cancel()
		c.logger.Info().Msg("cancellation requested during execution")

	default:
		verb := c.ctx.Verb
		c.clearLocked()
		c.mu.Unlock()
		c.logger.Info().Stringer("verb", verb).Msg("operation cancelled")
	}
}

// checkConflicts enumerates units and computes the conflict list.
// Enumeration runs without the mutex, so a concurrent Cancel can abandon the
// operation underneath it; stale results are discarded. Nothing has been
// written yet, so an enumeration failure reports and returns to Idle.
func (c *Controller) checkConflicts() {
	c.mu.Lock()
	if c.state != StateCheckingConflicts {
		c.mu.Unlock()
		return
	}
	op, ctx := c.op, c.ctx
	c.mu.Unlock()

	units, err := op.EnumerateUnits()

	// Cancel may have abandoned the operation while enumeration ran without
	// the mutex; the results then belong to a dead context and are dropped.
	c.mu.Lock()
	if c.state != StateCheckingConflicts || c.ctx != ctx {
		c.mu.Unlock()
		c.logger.Debug().Stringer("verb", ctx.Verb).Msg("enumeration finished after cancellation, discarding")
		return
	}

	if err != nil {
		c.clearLocked()
		c.mu.Unlock()
		c.logger.Error().Err(err).Stringer("verb", ctx.Verb).Msg("unit enumeration failed")
		c.gateway.ShowError(fmt.Sprintf("Cannot prepare %s: %v", ctx.Verb, err))
		return
	}

	ctx.Units = units
	ctx.Conflicts = DetectConflicts(ctx.Verb, units, ctx.Destination)

	if len(ctx.Conflicts) == 0 {
		c.logger.Info().Int("units", len(units)).Msg("no conflicts detected")
		c.setState(StateExecuting)
		c.mu.Unlock()
		c.execute()
		return
	}

	c.logger.Info().
		Int("units", len(units)).
		Int("conflicts", len(ctx.Conflicts)).
		Msg("conflicts detected")
	c.setState(StateResolvingConflict)
	c.mu.Unlock()
	c.resolveNext()
}

// resolveNext surfaces the conflict at the cursor, or advances to Executing
// when every conflict has a choice. An apply-to-all flag resolves all
// remaining conflicts in one pass with no further dialogs.
func (c *Controller) resolveNext() {
	c.mu.Lock()
	if c.state != StateResolvingConflict {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx

	if ctx.overwriteAll {
		ctx.resolveRemaining(ChoiceOverwrite)
	} else if ctx.skipAll {
		ctx.resolveRemaining(ChoiceSkip)
	}

	if ctx.cursor >= len(ctx.Conflicts) {
		c.logger.Info().Msg("all conflicts resolved")
		c.setState(StateExecuting)
		c.mu.Unlock()
		c.execute()
		return
	}

	conflict := ctx.Conflicts[ctx.cursor]
	total := len(ctx.Conflicts)
	skipOffered := skipOfferedFor(ctx.Verb, total)
	c.mu.Unlock()

	c.gateway.ShowConflict(conflict, total, skipOffered, c.OnConflictResolved)
}

// execute spawns the executor worker. The calling goroutine returns to the
// input loop immediately; everything from here to Completed happens on the
// worker.
func (c *Controller) execute() {
	c.mu.Lock()
	op, ctx, token, done := c.op, c.ctx, c.token, c.done
	c.mu.Unlock()

	exec := &Executor{
		Sink:   c.sink,
		Hooks:  c.hooks,
		Logger: c.logger,
	}
	c.spawn(func() {
		exec.Run(op, ctx, token, done)
		c.finishExecution()
	})
}

// finishExecution runs on the worker goroutine once the executor is done:
// Executing → Completed → Idle, with the run summarised to the log.
func (c *Controller) finishExecution() {
	c.mu.Lock()
	if c.state != StateExecuting {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	c.setState(StateCompleted)

	summary := Summarize(ctx.Verb, ctx.Results, len(ctx.Units))
	if ctx.Results.Errored > 0 || ctx.Results.Cancelled {
		c.logger.Warn().Msg(summary)
	} else {
		c.logger.Info().Msg(summary)
	}

	c.setState(StateIdle)
	c.op, c.ctx, c.token, c.done = nil, nil, nil, nil
	c.mu.Unlock()
}

// clearLocked resets to Idle and drops the context. Caller holds the mutex.
func (c *Controller) clearLocked() {
	c.setState(StateIdle)
	c.op, c.ctx, c.token, c.done = nil, nil, nil, nil
}

// setState transitions with logging. Caller holds the mutex.
func (c *Controller) setState(s State) {
	old := c.state
	c.state = s
	c.logger.Debug().Stringer("from", old).Stringer("to", s).Msg("state transition")
	if c.observer != nil {
		c.observer(old, s)
	}
}

// skipOfferedFor reports whether the conflict dialog offers Skip. Create has
// at most one conflict where overwrite is the only sensible action, and a
// single extract conflict cannot be meaningfully skipped either.
func skipOfferedFor(verb Verb, total int) bool {
	if verb == VerbCreate {
		return false
	}
	if verb == VerbExtract && total == 1 {
		return false
	}
	return true
}

func formatOf(op Operation) string {
	if f, ok := op.(interface{ Format() string }); ok {
		return f.Format()
	}
	return ""
}
