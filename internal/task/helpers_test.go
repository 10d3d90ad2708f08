package task

import (
	"github.com/rs/zerolog"
)

// conflictAnswer is one scripted reply to a conflict dialog.
type conflictAnswer struct {
	choice Choice
	all    bool
}

// fakeGateway answers dialogs synchronously from a script, which exercises
// the controller's re-entrancy the same way a TUI overlay would.
type fakeGateway struct {
	confirmAnswer    bool
	confirmCalls     int
	confirmSummaries []string

	conflictsShown []Conflict
	totalsShown    []int
	skipOffered    []bool
	answers        []conflictAnswer

	errorsShown []string

	// hold suppresses automatic responses; pending holds the callbacks.
	hold            bool
	pendingConfirm  func(bool)
	pendingConflict func(Choice, bool)
}

func (g *fakeGateway) ShowConfirmation(summary string, respond func(bool)) {
	g.confirmCalls++
	g.confirmSummaries = append(g.confirmSummaries, summary)
	if g.hold {
		g.pendingConfirm = respond
		return
	}
	respond(g.confirmAnswer)
}

func (g *fakeGateway) ShowConflict(c Conflict, total int, skipOffered bool, respond func(Choice, bool)) {
	g.conflictsShown = append(g.conflictsShown, c)
	g.totalsShown = append(g.totalsShown, total)
	g.skipOffered = append(g.skipOffered, skipOffered)
	if g.hold {
		g.pendingConflict = respond
		return
	}
	i := len(g.conflictsShown) - 1
	if i >= len(g.answers) {
		respond(ChoiceNone, false)
		return
	}
	a := g.answers[i]
	respond(a.choice, a.all)
}

func (g *fakeGateway) ShowError(message string) {
	g.errorsShown = append(g.errorsShown, message)
}

type fakeSink struct {
	begun      bool
	total      int
	label      string
	successes  int
	skips      int
	errorCount int
	finished   []string
	cancelled  []string
}

func (s *fakeSink) Begin(total int, label string) {
	s.begun = true
	s.total = total
	s.label = label
}

func (s *fakeSink) Advance(kind AdvanceKind) {
	if kind == AdvanceSkip {
		s.skips++
	} else {
		s.successes++
	}
}

func (s *fakeSink) SetErrorCount(n int) { s.errorCount = n }
func (s *fakeSink) Finish(summary string) {
	s.finished = append(s.finished, summary)
}
func (s *fakeSink) Cancelled(summary string) {
	s.cancelled = append(s.cancelled, summary)
}

type fakeHooks struct {
	invalidated  [][]string
	refreshCalls int
	dirtyCalls   int
}

func (h *fakeHooks) InvalidateCache(paths []string) {
	h.invalidated = append(h.invalidated, paths)
}
func (h *fakeHooks) RefreshListing() { h.refreshCalls++ }
func (h *fakeHooks) MarkDirty()      { h.dirtyCalls++ }

// fakeOp is a scriptable domain operation.
type fakeOp struct {
	verb    Verb
	dest    string
	units   []Unit
	enumErr error

	failWith   map[string]error // source path → error from ProcessUnit
	processed  []string
	overwrites map[string]bool

	// onProcess runs before each unit is recorded, with the 0-based index
	// of the processed unit. Used to trigger mid-run cancellation.
	onProcess func(i int)

	// onEnumerate runs at the top of EnumerateUnits. Used to park
	// enumeration while the test drives the controller from outside.
	onEnumerate func()

	finalized       bool
	finalizeErr     error
	finalizedCancel bool
}

func (o *fakeOp) Verb() Verb          { return o.verb }
func (o *fakeOp) Destination() string { return o.dest }
func (o *fakeOp) Summary() string     { return "confirm " + o.verb.String() + "?" }
func (o *fakeOp) Label() string       { return o.verb.String() + " in progress" }

func (o *fakeOp) EnumerateUnits() ([]Unit, error) {
	if o.onEnumerate != nil {
		o.onEnumerate()
	}
	if o.enumErr != nil {
		return nil, o.enumErr
	}
	return o.units, nil
}

func (o *fakeOp) ProcessUnit(u Unit, overwrite bool) error {
	if o.onProcess != nil {
		o.onProcess(len(o.processed))
	}
	o.processed = append(o.processed, u.Source)
	if o.overwrites == nil {
		o.overwrites = map[string]bool{}
	}
	o.overwrites[u.Source] = overwrite
	if err, ok := o.failWith[u.Source]; ok {
		return err
	}
	return nil
}

// finalizingOp adds a Finalize hook on top of fakeOp.
type finalizingOp struct {
	fakeOp
}

func (o *finalizingOp) Finalize(cancelled bool) error {
	o.finalized = true
	o.finalizedCancel = cancelled
	return o.finalizeErr
}

// harness bundles a controller with synchronous execution and its fakes.
type harness struct {
	ctrl    *Controller
	gateway *fakeGateway
	sink    *fakeSink
	hooks   *fakeHooks
	trace   []State
}

func newHarness(confirmFor func(Verb) bool) *harness {
	h := &harness{
		gateway: &fakeGateway{confirmAnswer: true},
		sink:    &fakeSink{},
		hooks:   &fakeHooks{},
	}
	h.ctrl = NewController(h.gateway, h.sink, h.hooks, confirmFor, zerolog.Nop())
	h.ctrl.spawn = func(f func()) { f() }
	h.ctrl.observer = func(from, to State) {
		h.trace = append(h.trace, to)
	}
	return h
}

func confirmAll(Verb) bool  { return true }
func confirmNone(Verb) bool { return false }

func sourceUnits(n int) []Unit {
	units := make([]Unit, n)
	for i := range units {
		units[i] = Unit{
			Source: "src" + string(rune('a'+i)),
			Target: "/nonexistent/tfm-test-target-" + string(rune('a'+i)),
		}
	}
	return units
}
