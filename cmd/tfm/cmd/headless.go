package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/larsmagnus/tfm/internal/task"
	"github.com/larsmagnus/tfm/internal/tui"
)

// conflictPolicy is what a headless run answers to every conflict dialog.
type conflictPolicy int

const (
	policyAsk conflictPolicy = iota
	policyOverwrite
	policySkip
)

// cliGateway drives the task controller without the full-screen interface.
// Dialog requests arrive synchronously on the calling goroutine, progress
// from the worker.
type cliGateway struct {
	policy   conflictPolicy
	assume   bool // --yes
	finished chan struct{}
	total    int
	done     int
}

func (g *cliGateway) ShowConfirmation(summary string, respond func(confirmed bool)) {
	if g.assume {
		respond(true)
		return
	}
	result, err := tui.RunConfirm(summary)
	if err != nil || result.Aborted {
		respond(false)
		return
	}
	respond(result.Confirmed)
}

func (g *cliGateway) ShowConflict(c task.Conflict, total int, skipOffered bool, respond func(choice task.Choice, applyToAll bool)) {
	switch {
	case g.policy == policyOverwrite:
		respond(task.ChoiceOverwrite, true)
	case g.policy == policySkip && skipOffered:
		respond(task.ChoiceSkip, true)
	case g.policy == policySkip:
		// Skip is not offered for this operation, so refusing to
		// overwrite means stopping.
		fmt.Fprintf(os.Stderr, "%s exists, pass --overwrite to replace it\n", c.Path)
		respond(task.ChoiceNone, false)
	default:
		fmt.Fprintf(os.Stderr, "%s exists, pass --overwrite or --skip\n", c.Path)
		respond(task.ChoiceNone, false)
	}
}

func (g *cliGateway) ShowError(message string) {
	fmt.Fprintln(os.Stderr, message)
}

func (g *cliGateway) Begin(total int, label string) {
	g.total = total
	g.done = 0
	fmt.Printf("%s (%d files)\n", label, total)
}

func (g *cliGateway) Advance(kind task.AdvanceKind) {
	g.done++
	if g.done%50 == 0 || g.done == g.total {
		fmt.Printf("  %d/%d\n", g.done, g.total)
	}
}

func (g *cliGateway) SetErrorCount(n int) {}

func (g *cliGateway) Finish(summary string) {
	fmt.Println(summary)
	close(g.finished)
}

func (g *cliGateway) Cancelled(summary string) {
	fmt.Println(summary)
	close(g.finished)
}

type nopHooks struct{}

func (nopHooks) InvalidateCache(paths []string) {}
func (nopHooks) RefreshListing()                {}
func (nopHooks) MarkDirty()                     {}

// runHeadless drives op through the controller and blocks until it settles.
func runHeadless(op task.Operation, confirm bool, policy conflictPolicy, assume bool, logger zerolog.Logger) error {
	gw := &cliGateway{policy: policy, assume: assume, finished: make(chan struct{})}

	confirmFor := func(task.Verb) bool { return confirm && !assume }
	controller := task.NewController(gw, gw, nopHooks{}, confirmFor, logger)

	if err := controller.Start(op, nil); err != nil {
		return err
	}

	// Dialogs resolve synchronously above, so by now the operation is
	// either executing in the background or it never started.
	if !controller.Busy() {
		select {
		case <-gw.finished:
			// Finished before we looked.
		default:
			return fmt.Errorf("aborted")
		}
		return nil
	}

	<-gw.finished
	return nil
}
