package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/larsmagnus/tfm/internal/cache"
	"github.com/larsmagnus/tfm/internal/task"
)

// Messages the task framework injects into the update loop. Progress
// messages arrive from the worker goroutine, dialog requests from the update
// loop itself; program.Send is safe from both.
type (
	confirmRequestMsg struct {
		summary string
		respond func(confirmed bool)
	}

	conflictRequestMsg struct {
		conflict    task.Conflict
		total       int
		skipOffered bool
		respond     func(choice task.Choice, applyToAll bool)
	}

	operationErrorMsg struct{ message string }

	progressBeginMsg struct {
		total int
		label string
	}

	progressAdvanceMsg struct{ kind task.AdvanceKind }

	progressErrorsMsg struct{ count int }

	progressDoneMsg struct {
		summary   string
		cancelled bool
	}

	refreshMsg struct{}

	externalChangeMsg struct{ dir string }
)

// gateway bridges the task framework to the running program. It implements
// both the dialog surface and the progress sink by translating each call
// into a message.
type gateway struct {
	mu sync.Mutex
	p  *tea.Program
}

func newGateway() *gateway {
	return &gateway{}
}

func (g *gateway) setProgram(p *tea.Program) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.p = p
}

func (g *gateway) send(msg tea.Msg) {
	g.mu.Lock()
	p := g.p
	g.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (g *gateway) ShowConfirmation(summary string, respond func(confirmed bool)) {
	g.send(confirmRequestMsg{summary: summary, respond: respond})
}

func (g *gateway) ShowConflict(c task.Conflict, total int, skipOffered bool, respond func(choice task.Choice, applyToAll bool)) {
	g.send(conflictRequestMsg{conflict: c, total: total, skipOffered: skipOffered, respond: respond})
}

func (g *gateway) ShowError(message string) {
	g.send(operationErrorMsg{message: message})
}

func (g *gateway) Begin(total int, label string) {
	g.send(progressBeginMsg{total: total, label: label})
}

func (g *gateway) Advance(kind task.AdvanceKind) {
	g.send(progressAdvanceMsg{kind: kind})
}

func (g *gateway) SetErrorCount(n int) {
	g.send(progressErrorsMsg{count: n})
}

func (g *gateway) Finish(summary string) {
	g.send(progressDoneMsg{summary: summary})
}

func (g *gateway) Cancelled(summary string) {
	g.send(progressDoneMsg{summary: summary, cancelled: true})
}

// hooks reacts to completed operations: written paths drop their cached
// listings immediately, the redraw happens on the next refresh message.
type hooks struct {
	gw       *gateway
	listings *cache.Cache
}

func newHooks(gw *gateway, listings *cache.Cache) *hooks {
	return &hooks{gw: gw, listings: listings}
}

func (h *hooks) InvalidateCache(paths []string) {
	h.listings.Invalidate(paths)
}

func (h *hooks) RefreshListing() {
	h.gw.send(refreshMsg{})
}

func (h *hooks) MarkDirty() {
	h.gw.send(refreshMsg{})
}
