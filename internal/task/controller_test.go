package task

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestTransitionTableFullRun(t *testing.T) {
	tmp := t.TempDir()
	existing := filepath.Join(tmp, "taken.txt")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	op := &fakeOp{
		verb: VerbExtract,
		dest: tmp,
		units: []Unit{
			{Source: "taken.txt", Target: existing},
			{Source: "fresh.txt", Target: filepath.Join(tmp, "fresh.txt")},
		},
	}

	h := newHarness(confirmAll)
	h.gateway.answers = []conflictAnswer{{choice: ChoiceOverwrite}}

	if err := h.ctrl.Start(op, nil); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	want := []State{
		StateConfirming,
		StateCheckingConflicts,
		StateResolvingConflict,
		StateExecuting,
		StateCompleted,
		StateIdle,
	}
	if !reflect.DeepEqual(h.trace, want) {
		t.Fatalf("transition trace = %v, want %v", h.trace, want)
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("final state = %v, want idle", h.ctrl.State())
	}
}

func TestStartRejectedWhileActive(t *testing.T) {
	h := newHarness(confirmAll)
	h.gateway.hold = true

	first := &fakeOp{verb: VerbCopy, units: sourceUnits(1)}
	if err := h.ctrl.Start(first, nil); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if h.ctrl.State() != StateConfirming {
		t.Fatalf("state = %v, want confirming", h.ctrl.State())
	}

	second := &fakeOp{verb: VerbDelete, units: sourceUnits(1)}
	err := h.ctrl.Start(second, nil)
	if !errors.Is(err, ErrOperationActive) {
		t.Fatalf("second Start error = %v, want ErrOperationActive", err)
	}
	if h.ctrl.State() != StateConfirming {
		t.Errorf("rejected Start changed state to %v", h.ctrl.State())
	}
}

func TestInvalidEventsAreNoOps(t *testing.T) {
	h := newHarness(confirmAll)

	h.ctrl.OnConfirmed(true)
	h.ctrl.OnConflictResolved(ChoiceOverwrite, false)
	h.ctrl.Cancel()

	if h.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.ctrl.State())
	}
	if len(h.trace) != 0 {
		t.Errorf("invalid events caused transitions: %v", h.trace)
	}
}

func TestConfirmationSkippedWhenFlagOff(t *testing.T) {
	h := newHarness(confirmNone)
	op := &fakeOp{verb: VerbCopy, units: sourceUnits(2)}

	if err := h.ctrl.Start(op, nil); err != nil {
		t.Fatal(err)
	}

	if h.gateway.confirmCalls != 0 {
		t.Errorf("confirmation dialog shown %d times, want 0", h.gateway.confirmCalls)
	}
	for _, s := range h.trace {
		if s == StateConfirming {
			t.Fatalf("confirming entered with flag off: %v", h.trace)
		}
	}
}

func TestConfirmDeclinedReturnsIdle(t *testing.T) {
	h := newHarness(confirmAll)
	h.gateway.confirmAnswer = false
	op := &fakeOp{verb: VerbDelete, units: sourceUnits(3)}

	if err := h.ctrl.Start(op, nil); err != nil {
		t.Fatal(err)
	}

	if h.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.ctrl.State())
	}
	if len(op.processed) != 0 {
		t.Errorf("declined operation processed %d units", len(op.processed))
	}
	want := []State{StateConfirming, StateIdle}
	if !reflect.DeepEqual(h.trace, want) {
		t.Errorf("trace = %v, want %v", h.trace, want)
	}
}

func TestNoConflictsSkipsResolving(t *testing.T) {
	h := newHarness(confirmNone)
	op := &fakeOp{verb: VerbCopy, units: sourceUnits(2)}

	if err := h.ctrl.Start(op, nil); err != nil {
		t.Fatal(err)
	}

	want := []State{StateCheckingConflicts, StateExecuting, StateCompleted, StateIdle}
	if !reflect.DeepEqual(h.trace, want) {
		t.Fatalf("trace = %v, want %v", h.trace, want)
	}
	if len(h.gateway.conflictsShown) != 0 {
		t.Errorf("conflict dialog shown with empty conflict list")
	}
}

func TestEscDuringConflictResolutionReturnsIdle(t *testing.T) {
	tmp := t.TempDir()
	for _, name := range []string{"a", "b"} {
		if err := os.WriteFile(filepath.Join(tmp, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	op := &fakeOp{
		verb: VerbCopy,
		dest: tmp,
		units: []Unit{
			{Source: "a", Target: filepath.Join(tmp, "a")},
			{Source: "b", Target: filepath.Join(tmp, "b")},
		},
	}

	h := newHarness(confirmNone)
	h.gateway.answers = []conflictAnswer{{choice: ChoiceNone}}

	if err := h.ctrl.Start(op, nil); err != nil {
		t.Fatal(err)
	}

	if h.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.ctrl.State())
	}
	if len(op.processed) != 0 {
		t.Errorf("cancelled operation processed %d units", len(op.processed))
	}
}

func TestApplyToAllShowsExactlyOneDialog(t *testing.T) {
	tmp := t.TempDir()
	units := make([]Unit, 3)
	for i, name := range []string{"a", "b", "c"} {
		target := filepath.Join(tmp, name)
		if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		units[i] = Unit{Source: name, Target: target}
	}
	op := &fakeOp{verb: VerbCopy, dest: tmp, units: units}

	h := newHarness(confirmNone)
	h.gateway.answers = []conflictAnswer{{choice: ChoiceSkip, all: true}}

	if err := h.ctrl.Start(op, nil); err != nil {
		t.Fatal(err)
	}

	if len(h.gateway.conflictsShown) != 1 {
		t.Fatalf("dialogs shown = %d, want 1", len(h.gateway.conflictsShown))
	}
	if h.sink.skips != 3 {
		t.Errorf("skipped = %d, want 3", h.sink.skips)
	}
	if len(op.processed) != 0 {
		t.Errorf("skip-all still processed %d units", len(op.processed))
	}
}

func TestConflictOrdinalsAndTotals(t *testing.T) {
	tmp := t.TempDir()
	units := make([]Unit, 4)
	for i, name := range []string{"a", "b", "c", "d"} {
		target := filepath.Join(tmp, name)
		if i%2 == 0 { // a and c pre-exist
			if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
				t.Fatal(err)
			}
		}
		units[i] = Unit{Source: name, Target: target}
	}
	op := &fakeOp{verb: VerbExtract, dest: tmp, units: units}

	h := newHarness(confirmNone)
	h.gateway.answers = []conflictAnswer{
		{choice: ChoiceOverwrite},
		{choice: ChoiceSkip},
	}

	if err := h.ctrl.Start(op, nil); err != nil {
		t.Fatal(err)
	}

	if len(h.gateway.conflictsShown) != 2 {
		t.Fatalf("dialogs shown = %d, want 2", len(h.gateway.conflictsShown))
	}
	if h.gateway.conflictsShown[0].Ordinal != 1 || h.gateway.conflictsShown[1].Ordinal != 2 {
		t.Errorf("ordinals = %d, %d, want 1, 2",
			h.gateway.conflictsShown[0].Ordinal, h.gateway.conflictsShown[1].Ordinal)
	}
	for _, total := range h.gateway.totalsShown {
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
	}
	// a overwritten, b and d written fresh, c skipped
	if h.sink.successes != 3 || h.sink.skips != 1 {
		t.Errorf("successes = %d skips = %d, want 3 and 1", h.sink.successes, h.sink.skips)
	}
	if !op.overwrites["a"] {
		t.Errorf("unit a processed without overwrite")
	}
	if op.overwrites["b"] || op.overwrites["d"] {
		t.Errorf("non-conflicting unit processed with overwrite")
	}
}

func TestSkipOfferedRules(t *testing.T) {
	cases := []struct {
		verb  Verb
		total int
		want  bool
	}{
		{VerbCreate, 1, false},
		{VerbExtract, 1, false},
		{VerbExtract, 2, true},
		{VerbCopy, 1, true},
		{VerbMove, 3, true},
	}
	for _, tc := range cases {
		if got := skipOfferedFor(tc.verb, tc.total); got != tc.want {
			t.Errorf("skipOfferedFor(%v, %d) = %v, want %v", tc.verb, tc.total, got, tc.want)
		}
	}
}

func TestCancellationMidRun(t *testing.T) {
	h := newHarness(confirmNone)
	op := &fakeOp{verb: VerbCopy, units: sourceUnits(5)}
	op.onProcess = func(i int) {
		if i == 2 {
			// Third unit is in flight; the token stops the loop before
			// the fourth.
			h.ctrl.Cancel()
		}
	}

	var cbSucceeded, cbErrored int
	cbCalls := 0
	done := func(s, e int) {
		cbCalls++
		cbSucceeded, cbErrored = s, e
	}

	if err := h.ctrl.Start(op, done); err != nil {
		t.Fatal(err)
	}

	if len(op.processed) != 3 {
		t.Errorf("processed = %d units, want 3", len(op.processed))
	}
	if cbCalls != 1 {
		t.Fatalf("completion callback invoked %d times, want 1", cbCalls)
	}
	if cbSucceeded+cbErrored > 3 {
		t.Errorf("succeeded+errored = %d, exceeds processed units", cbSucceeded+cbErrored)
	}
	if len(h.sink.finished)+len(h.sink.cancelled) != 0 {
		t.Errorf("default summary emitted despite callback")
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.ctrl.State())
	}
}

func TestCancellationBeforeFirstUnit(t *testing.T) {
	h := newHarness(confirmNone)
	op := &fakeOp{verb: VerbCopy, units: sourceUnits(4)}

	// The synchronous spawner runs the worker inline, so pre-cancel the
	// token the moment Executing is entered.
	realSpawn := h.ctrl.spawn
	h.ctrl.spawn = func(f func()) {
		h.ctrl.token.Cancel()
		realSpawn(f)
	}

	var gotS, gotE int
	calls := 0
	if err := h.ctrl.Start(op, func(s, e int) { calls++; gotS, gotE = s, e }); err != nil {
		t.Fatal(err)
	}

	if len(op.processed) != 0 {
		t.Errorf("processed %d units after pre-cancellation", len(op.processed))
	}
	if calls != 1 || gotS != 0 || gotE != 0 {
		t.Errorf("callback = (%d, %d) x%d, want (0, 0) x1", gotS, gotE, calls)
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.ctrl.State())
	}
}

func TestCancellationDuringEnumeration(t *testing.T) {
	h := newHarness(confirmNone)
	op := &fakeOp{verb: VerbCopy, units: sourceUnits(3)}

	// Park enumeration so Cancel lands while units are still being listed,
	// then release it and let Start finish.
	entered := make(chan struct{})
	release := make(chan struct{})
	op.onEnumerate = func() {
		close(entered)
		<-release
	}

	startErr := make(chan error, 1)
	go func() { startErr <- h.ctrl.Start(op, nil) }()

	<-entered
	h.ctrl.Cancel()
	close(release)

	if err := <-startErr; err != nil {
		t.Fatal(err)
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.ctrl.State())
	}
	if h.sink.begun {
		t.Error("execution began for an abandoned operation")
	}
	if len(op.processed) != 0 {
		t.Errorf("processed %d units after cancellation", len(op.processed))
	}

	// The controller is free for the next operation.
	next := &fakeOp{verb: VerbDelete, units: sourceUnits(1)}
	if err := h.ctrl.Start(next, nil); err != nil {
		t.Fatalf("controller not reusable after abandoned enumeration: %v", err)
	}
	if len(next.processed) != 1 {
		t.Errorf("follow-up processed = %d units, want 1", len(next.processed))
	}
}

func TestCallbackRunsOffControllingGoroutine(t *testing.T) {
	h := newHarness(confirmNone)
	h.ctrl.spawn = func(f func()) { go f() } // real worker

	gate := make(chan struct{})
	op := &fakeOp{verb: VerbCopy, units: sourceUnits(1)}
	op.onProcess = func(int) { <-gate }

	doneCh := make(chan struct{})
	if err := h.ctrl.Start(op, func(s, e int) { close(doneCh) }); err != nil {
		t.Fatal(err)
	}

	// Start returned while the worker is still blocked inside the unit:
	// the I/O is not on this goroutine.
	if got := h.ctrl.State(); got != StateExecuting {
		t.Fatalf("state after Start = %v, want executing", got)
	}

	close(gate)
	select {
	case <-doneCh:
	case <-time.After(5 * time.Second):
		t.Fatal("completion callback never invoked")
	}

	deadline := time.Now().Add(5 * time.Second)
	for h.ctrl.State() != StateIdle {
		if time.Now().After(deadline) {
			t.Fatal("controller never returned to idle")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRecoverableErrorContinues(t *testing.T) {
	h := newHarness(confirmNone)
	units := sourceUnits(4)
	op := &fakeOp{
		verb:     VerbExtract,
		units:    units,
		failWith: map[string]error{units[1].Source: os.ErrPermission},
	}

	if err := h.ctrl.Start(op, nil); err != nil {
		t.Fatal(err)
	}

	if len(op.processed) != 4 {
		t.Errorf("processed = %d, want 4 (loop must continue past the error)", len(op.processed))
	}
	if h.sink.successes != 3 || h.sink.errorCount != 1 {
		t.Errorf("successes = %d errors = %d, want 3 and 1", h.sink.successes, h.sink.errorCount)
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.ctrl.State())
	}
}

func TestPreflightEnumerationFailure(t *testing.T) {
	h := newHarness(confirmNone)
	op := &fakeOp{verb: VerbExtract, enumErr: errors.New("archive unreadable")}

	if err := h.ctrl.Start(op, nil); err != nil {
		t.Fatal(err)
	}

	if len(h.gateway.errorsShown) != 1 {
		t.Fatalf("errors surfaced = %d, want 1", len(h.gateway.errorsShown))
	}
	for _, s := range h.trace {
		if s == StateExecuting {
			t.Fatalf("executing entered after pre-flight failure: %v", h.trace)
		}
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.ctrl.State())
	}
}

func TestScenarioCreateThreeSources(t *testing.T) {
	tmp := t.TempDir()
	op := &fakeOp{
		verb:  VerbCreate,
		dest:  filepath.Join(tmp, "out.tar.gz"),
		units: sourceUnits(3),
	}

	h := newHarness(confirmNone)
	if err := h.ctrl.Start(op, nil); err != nil {
		t.Fatal(err)
	}

	if h.sink.successes != 3 {
		t.Errorf("successes = %d, want 3", h.sink.successes)
	}
	if len(h.sink.finished) != 1 {
		t.Errorf("finish summaries = %d, want 1", len(h.sink.finished))
	}
	if h.hooks.refreshCalls != 1 || h.hooks.dirtyCalls != 1 {
		t.Errorf("refresh = %d dirty = %d, want 1 and 1", h.hooks.refreshCalls, h.hooks.dirtyCalls)
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.ctrl.State())
	}
}

func TestScenarioExtractSkipAll(t *testing.T) {
	tmp := t.TempDir()
	units := make([]Unit, 5)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		target := filepath.Join(tmp, name)
		if i < 2 { // a and b pre-exist
			if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
				t.Fatal(err)
			}
		}
		units[i] = Unit{Source: name, Target: target}
	}
	op := &fakeOp{verb: VerbExtract, dest: tmp, units: units}

	h := newHarness(confirmNone)
	h.gateway.answers = []conflictAnswer{{choice: ChoiceSkip, all: true}}

	if err := h.ctrl.Start(op, nil); err != nil {
		t.Fatal(err)
	}

	if len(h.gateway.conflictsShown) != 1 {
		t.Errorf("dialogs = %d, want 1", len(h.gateway.conflictsShown))
	}
	if h.sink.skips != 2 || h.sink.successes != 3 {
		t.Errorf("skips = %d successes = %d, want 2 and 3", h.sink.skips, h.sink.successes)
	}
	for _, src := range op.processed {
		if src == "a" || src == "b" {
			t.Errorf("skipped unit %q reached the backend", src)
		}
	}
}

func TestCountsNeverExceedTotal(t *testing.T) {
	h := newHarness(confirmNone)
	units := sourceUnits(6)
	op := &fakeOp{
		verb:  VerbCopy,
		units: units,
		failWith: map[string]error{
			units[2].Source: os.ErrPermission,
			units[4].Source: os.ErrNotExist,
		},
	}

	var mu Results
	if err := h.ctrl.Start(op, func(s, e int) { mu.Succeeded, mu.Errored = s, e }); err != nil {
		t.Fatal(err)
	}

	if mu.Succeeded < 0 || mu.Errored < 0 {
		t.Errorf("negative counts: %+v", mu)
	}
	if mu.Succeeded+mu.Errored+h.sink.skips > len(units) {
		t.Errorf("counts exceed total units: %d+%d+%d > %d",
			mu.Succeeded, mu.Errored, h.sink.skips, len(units))
	}
}
