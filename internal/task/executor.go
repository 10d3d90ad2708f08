package task

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Executor performs the actual per-unit I/O for one run. Run is invoked on a
// dedicated worker goroutine; nothing it does ever escapes that goroutine as
// a panic or error — every failure becomes a Results mutation plus a log
// record.
type Executor struct {
	Sink   ProgressSink
	Hooks  Hooks
	Logger zerolog.Logger
}

// Run processes ctx.Units in order. Before each unit it checks the
// cancellation token; a cancelled run stops at the unit boundary with the
// remaining units neither read nor written. Units whose targets were
// resolved as Skip are recorded without I/O. Recoverable unit errors are
// counted and the loop continues; fatal ones stop it early with no rollback.
//
// After the loop — however it ended — done is invoked exactly once on this
// goroutine, or a default summary goes to the sink when done is nil, and the
// completion hooks fire for the paths actually written.
func (e *Executor) Run(op Operation, ctx *OperationContext, token *Token, done CompletionFunc) {
	total := len(ctx.Units)
	e.Sink.Begin(total, op.Label())
	e.Logger.Info().
		Stringer("verb", ctx.Verb).
		Int("units", total).
		Msg("execution started")

	// Archive creation writes every unit to the same target, so the
	// written list is deduplicated as it grows.
	var written []string
	seen := make(map[string]struct{})

	for _, u := range ctx.Units {
		if token.Cancelled() {
			ctx.Results.Cancelled = true
			e.Logger.Info().Msg("execution cancelled at unit boundary")
			break
		}

		if ctx.policy(u.Target) == ChoiceSkip {
			ctx.Results.Skipped++
			e.Sink.Advance(AdvanceSkip)
			continue
		}
		overwrite := ctx.policy(u.Target) == ChoiceOverwrite

		err := op.ProcessUnit(u, overwrite)
		if err == nil {
			ctx.Results.Succeeded++
			if _, dup := seen[u.Target]; !dup {
				seen[u.Target] = struct{}{}
				written = append(written, u.Target)
			}
			e.Sink.Advance(AdvanceSuccess)
			continue
		}

		ctx.Results.Errored++
		ctx.Results.Errors = append(ctx.Results.Errors, UnitError{Verb: ctx.Verb, Path: u.Source, Err: err})
		e.Sink.SetErrorCount(ctx.Results.Errored)
		e.Logger.Error().
			Stringer("verb", ctx.Verb).
			Str("path", u.Source).
			Err(err).
			Msg("unit failed")

		if IsFatal(err) {
			e.Logger.Error().Msg("fatal error, stopping execution")
			break
		}
	}

	if f, ok := op.(Finalizer); ok {
		if err := f.Finalize(ctx.Results.Cancelled); err != nil {
			ctx.Results.Errored++
			ctx.Results.Errors = append(ctx.Results.Errors, UnitError{Verb: ctx.Verb, Path: ctx.Destination, Err: err})
			e.Sink.SetErrorCount(ctx.Results.Errored)
			e.Logger.Error().Err(err).Msg("finalize failed")
		}
	}

	res := ctx.Results
	if done != nil {
		done(res.Succeeded, res.Errored)
	} else if res.Cancelled {
		e.Sink.Cancelled(Summarize(ctx.Verb, res, total))
	} else {
		e.Sink.Finish(Summarize(ctx.Verb, res, total))
	}

	// Completion hooks run however the loop ended: a cancelled run still
	// wrote its completed units and the listings must show them.
	if len(written) > 0 {
		e.Hooks.InvalidateCache(written)
	}
	if res.Succeeded > 0 {
		e.Hooks.RefreshListing()
	}
	e.Hooks.MarkDirty()
}

// Summarize renders the one-line outcome of a run: "copy completed: 3
// succeeded, 1 skipped" or "extract cancelled after 2 of 5".
func Summarize(verb Verb, r Results, total int) string {
	if r.Cancelled {
		processed := r.Succeeded + r.Skipped + r.Errored
		return fmt.Sprintf("%s cancelled after %d of %d", verb, processed, total)
	}
	s := fmt.Sprintf("%s completed: %d succeeded", verb, r.Succeeded)
	if r.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", r.Skipped)
	}
	if r.Errored > 0 {
		s += fmt.Sprintf(", %d failed", r.Errored)
	}
	return s
}
