package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/larsmagnus/tfm/internal/archive"
	"github.com/larsmagnus/tfm/internal/cache"
	"github.com/larsmagnus/tfm/internal/config"
	"github.com/larsmagnus/tfm/internal/fileops"
	"github.com/larsmagnus/tfm/internal/state"
	"github.com/larsmagnus/tfm/internal/task"
	"github.com/larsmagnus/tfm/internal/watcher"
)

type dialogKind int

const (
	dialogNone dialogKind = iota
	dialogConfirm
	dialogConflict
	dialogPackName
)

// Model is the root bubbletea model: two panes, a footer, and at most one
// modal dialog driven by the task controller.
type Model struct {
	cfg      *config.Config
	listings *cache.Cache
	db       *state.DB
	logger   zerolog.Logger

	controller *task.Controller
	watcher    *watcher.Watcher

	panes  [2]*pane
	active int

	showHidden bool
	width      int
	height     int
	message    string
	messageErr bool

	dialog         dialogKind
	confirmText    string
	confirmYes     bool
	confirmRespond func(bool)

	conflict        task.Conflict
	conflictTotal   int
	conflictSkip    bool
	conflictChoice  task.Choice
	conflictRespond func(task.Choice, bool)

	packInput textinput.Model

	bar       progress.Model
	barActive bool
	barLabel  string
	barTotal  int
	barDone   int
	barErrors int
}

func NewModel(cfg *config.Config, listings *cache.Cache, db *state.DB, logger zerolog.Logger) *Model {
	left, right := cfg.LeftDir, cfg.RightDir
	active := 0
	if db != nil {
		left, _ = db.Get(state.KeyLeftDir, left)
		right, _ = db.Get(state.KeyRightDir, right)
		if side, _ := db.Get(state.KeyActive, "left"); side == "right" {
			active = 1
		}
	}

	ti := textinput.New()
	ti.Placeholder = "archive.tar.gz"
	ti.CharLimit = 128
	ti.Width = 40

	return &Model{
		cfg:        cfg,
		listings:   listings,
		db:         db,
		logger:     logger,
		panes:      [2]*pane{newPane(left, listings), newPane(right, listings)},
		active:     active,
		showHidden: cfg.ShowHidden,
		packInput:  ti,
		bar:        progress.New(progress.WithDefaultGradient()),
	}
}

func (m *Model) Init() tea.Cmd {
	if m.watcher != nil {
		for _, p := range m.panes {
			if err := m.watcher.Watch(p.dir); err != nil {
				m.logger.Debug().Err(err).Str("dir", p.dir).Msg("watch failed")
			}
		}
	}
	return nil
}

func (m *Model) pane() *pane      { return m.panes[m.active] }
func (m *Model) otherPane() *pane { return m.panes[1-m.active] }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = msg.Width - 30
		return m, nil

	case confirmRequestMsg:
		m.dialog = dialogConfirm
		m.confirmText = msg.summary
		m.confirmYes = true
		m.confirmRespond = msg.respond
		return m, nil

	case conflictRequestMsg:
		m.dialog = dialogConflict
		m.conflict = msg.conflict
		m.conflictTotal = msg.total
		m.conflictSkip = msg.skipOffered
		m.conflictChoice = task.ChoiceOverwrite
		m.conflictRespond = msg.respond
		return m, nil

	case operationErrorMsg:
		m.dialog = dialogNone
		m.setMessage(msg.message, true)
		return m, nil

	case progressBeginMsg:
		m.barActive = true
		m.barLabel = msg.label
		m.barTotal = msg.total
		m.barDone = 0
		m.barErrors = 0
		return m, nil

	case progressAdvanceMsg:
		m.barDone++
		return m, nil

	case progressErrorsMsg:
		m.barErrors = msg.count
		return m, nil

	case progressDoneMsg:
		m.barActive = false
		m.setMessage(msg.summary, msg.cancelled || m.barErrors > 0)
		return m, nil

	case refreshMsg:
		m.reloadPanes()
		return m, nil

	case externalChangeMsg:
		for _, p := range m.panes {
			if p.dir == msg.dir {
				p.reload(m.showHidden)
			}
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.dialog {
	case dialogConfirm:
		return m.handleConfirmKey(msg)
	case dialogConflict:
		return m.handleConflictKey(msg)
	case dialogPackName:
		return m.handlePackNameKey(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		if m.controller.Busy() {
			m.setMessage("operation in progress, esc to cancel it first", true)
			return m, nil
		}
		m.saveSession()
		return m, tea.Quit

	case key.Matches(msg, keys.Cancel):
		m.controller.Cancel()
		return m, nil

	case key.Matches(msg, keys.Up):
		m.pane().moveCursor(-1)
	case key.Matches(msg, keys.Down):
		m.pane().moveCursor(1)

	case key.Matches(msg, keys.Tab):
		m.active = 1 - m.active

	case key.Matches(msg, keys.Enter):
		return m, m.enterDirectory()

	case key.Matches(msg, keys.Back):
		if m.pane().up(m.showHidden) {
			m.watchPane(m.pane())
		}

	case key.Matches(msg, keys.Mark):
		m.pane().toggleMark()
		m.pane().moveCursor(1)

	case key.Matches(msg, keys.Hidden):
		m.showHidden = !m.showHidden
		m.reloadPanes()

	case key.Matches(msg, keys.Refresh):
		m.listings.Clear()
		m.reloadPanes()

	case key.Matches(msg, keys.Copy):
		return m, m.startCopy()
	case key.Matches(msg, keys.Move):
		return m, m.startMove()
	case key.Matches(msg, keys.Delete):
		return m, m.startDelete()
	case key.Matches(msg, keys.Pack):
		m.openPackPrompt()
	case key.Matches(msg, keys.Unpack):
		return m, m.startUnpack()
	}

	return m, nil
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "n", "N":
		return m, m.closeConfirm(false)
	case "y", "Y":
		return m, m.closeConfirm(true)
	case "left", "right", "tab", "h", "l":
		m.confirmYes = !m.confirmYes
	case "enter":
		return m, m.closeConfirm(m.confirmYes)
	}
	return m, nil
}

// closeConfirm hands the answer back to the controller. The controller may
// respond by requesting the next dialog through program.Send, so the call
// happens on a command goroutine, not inside Update.
func (m *Model) closeConfirm(confirmed bool) tea.Cmd {
	respond := m.confirmRespond
	m.dialog = dialogNone
	m.confirmRespond = nil
	if respond == nil {
		return nil
	}
	return func() tea.Msg {
		respond(confirmed)
		return nil
	}
}

func (m *Model) handleConflictKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, m.closeConflict(task.ChoiceNone, false)
	case "o":
		return m, m.closeConflict(task.ChoiceOverwrite, false)
	case "O":
		return m, m.closeConflict(task.ChoiceOverwrite, true)
	case "s":
		if m.conflictSkip {
			return m, m.closeConflict(task.ChoiceSkip, false)
		}
	case "S":
		if m.conflictSkip {
			return m, m.closeConflict(task.ChoiceSkip, true)
		}
	case "left", "right", "tab":
		if m.conflictSkip {
			if m.conflictChoice == task.ChoiceOverwrite {
				m.conflictChoice = task.ChoiceSkip
			} else {
				m.conflictChoice = task.ChoiceOverwrite
			}
		}
	case "enter":
		return m, m.closeConflict(m.conflictChoice, false)
	}
	return m, nil
}

func (m *Model) closeConflict(choice task.Choice, applyToAll bool) tea.Cmd {
	respond := m.conflictRespond
	m.dialog = dialogNone
	m.conflictRespond = nil
	if respond == nil {
		return nil
	}
	return func() tea.Msg {
		respond(choice, applyToAll)
		return nil
	}
}

func (m *Model) handlePackNameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.dialog = dialogNone
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.packInput.Value())
		m.dialog = dialogNone
		if name == "" {
			return m, nil
		}
		return m, m.startPack(name)
	}

	var cmd tea.Cmd
	m.packInput, cmd = m.packInput.Update(msg)
	return m, cmd
}

func (m *Model) enterDirectory() tea.Cmd {
	p := m.pane()
	e, ok := p.current()
	if !ok {
		return nil
	}
	if e.IsDir {
		if p.enter(m.showHidden) {
			m.watchPane(p)
		}
		return nil
	}
	if archive.IsArchive(e.Name) {
		return m.startUnpack()
	}
	return nil
}

func (m *Model) startCopy() tea.Cmd {
	sources := m.pane().selection()
	if len(sources) == 0 {
		return nil
	}
	op := &fileops.CopyOperation{Sources: sources, Dest: m.otherPane().dir, Logger: m.logger}
	return m.startOperation(op)
}

func (m *Model) startMove() tea.Cmd {
	sources := m.pane().selection()
	if len(sources) == 0 {
		return nil
	}
	op := &fileops.MoveOperation{Sources: sources, Dest: m.otherPane().dir, Logger: m.logger}
	return m.startOperation(op)
}

func (m *Model) startDelete() tea.Cmd {
	sources := m.pane().selection()
	if len(sources) == 0 {
		return nil
	}
	op := &fileops.DeleteOperation{Sources: sources, Logger: m.logger}
	return m.startOperation(op)
}

func (m *Model) openPackPrompt() {
	sources := m.pane().selection()
	if len(sources) == 0 {
		return
	}
	base := filepath.Base(sources[0])
	if len(sources) > 1 {
		base = filepath.Base(m.pane().dir)
	}
	m.packInput.SetValue(base + ".tar.gz")
	m.packInput.CursorEnd()
	m.packInput.Focus()
	m.dialog = dialogPackName
}

func (m *Model) startPack(name string) tea.Cmd {
	sources := m.pane().selection()
	if len(sources) == 0 {
		return nil
	}
	target := filepath.Join(m.otherPane().dir, name)
	op, err := archive.NewCreateOperation(sources, target, m.logger)
	if err != nil {
		m.setMessage(err.Error(), true)
		return nil
	}
	return m.startOperation(op)
}

func (m *Model) startUnpack() tea.Cmd {
	e, ok := m.pane().current()
	if !ok || e.IsDir || !archive.IsArchive(e.Name) {
		m.setMessage("not an archive", true)
		return nil
	}
	src := filepath.Join(m.pane().dir, e.Name)
	op, err := archive.NewExtractOperation(src, m.otherPane().dir, m.logger)
	if err != nil {
		m.setMessage(err.Error(), true)
		return nil
	}
	return m.startOperation(op)
}

// startOperation hands op to the controller on a command goroutine: the
// controller requests its dialogs through program.Send, which must not run
// inside Update.
func (m *Model) startOperation(op task.Operation) tea.Cmd {
	m.pane().clearMarks()
	controller, db, logger := m.controller, m.db, m.logger
	return func() tea.Msg {
		if err := controller.Start(op, nil); err != nil {
			return operationErrorMsg{message: err.Error()}
		}
		if db != nil && op.Destination() != "" {
			if err := db.TouchDestination(op.Destination()); err != nil {
				logger.Debug().Err(err).Msg("recording destination failed")
			}
		}
		return nil
	}
}

func (m *Model) reloadPanes() {
	for _, p := range m.panes {
		p.reload(m.showHidden)
	}
}

func (m *Model) watchPane(p *pane) {
	p.clampCursor()
	if m.watcher != nil {
		if err := m.watcher.Watch(p.dir); err != nil {
			m.logger.Debug().Err(err).Str("dir", p.dir).Msg("watch failed")
		}
	}
}

func (m *Model) setMessage(text string, isErr bool) {
	m.message = text
	m.messageErr = isErr
}

func (m *Model) saveSession() {
	if m.db == nil {
		return
	}
	m.db.Set(state.KeyLeftDir, m.panes[0].dir)
	m.db.Set(state.KeyRightDir, m.panes[1].dir)
	if m.active == 0 {
		m.db.Set(state.KeyActive, "left")
	} else {
		m.db.Set(state.KeyActive, "right")
	}
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	paneWidth := m.width/2 - 2
	paneHeight := m.height - 5

	left := m.panes[0].render(paneWidth, paneHeight, m.active == 0 && m.dialog == dialogNone)
	right := m.panes[1].render(paneWidth, paneHeight, m.active == 1 && m.dialog == dialogNone)
	main := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	footer := m.footerView()

	screen := lipgloss.JoinVertical(lipgloss.Left, main, footer)

	if m.dialog != dialogNone {
		dialog := m.dialogView()
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog,
			lipgloss.WithWhitespaceChars(" "))
	}
	return screen
}

func (m *Model) footerView() string {
	if m.barActive {
		status := fmt.Sprintf("%s %d/%d", m.barLabel, m.barDone, m.barTotal)
		if m.barErrors > 0 {
			status += errorStyle.Render(fmt.Sprintf("  %d errors", m.barErrors))
		}
		ratio := 0.0
		if m.barTotal > 0 {
			ratio = float64(m.barDone) / float64(m.barTotal)
		}
		return status + "\n" + m.bar.ViewAs(ratio) + "  " + helpStyle.Render("esc: cancel")
	}

	if m.message != "" {
		style := messageStyle
		if m.messageErr {
			style = errorStyle
		}
		return style.Render(m.message)
	}

	return helpStyle.Render("space: mark • c: copy • m: move • d: delete • p: pack • u: unpack • tab: pane • q: quit")
}

func (m *Model) dialogView() string {
	switch m.dialog {
	case dialogConfirm:
		return dialogStyle.Render(m.confirmView())
	case dialogConflict:
		return dialogStyle.Render(m.conflictView())
	case dialogPackName:
		return dialogStyle.Render(titleStyle.Render("Archive name") + "\n\n" +
			m.packInput.View() + "\n\n" +
			helpStyle.Render("enter: create • esc: cancel"))
	}
	return ""
}

func (m *Model) confirmView() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.confirmText) + "\n\n")

	yes := lipgloss.NewStyle().Padding(0, 2)
	no := lipgloss.NewStyle().Padding(0, 2)
	if m.confirmYes {
		yes = yes.Background(lipgloss.Color("212")).Foreground(lipgloss.Color("0"))
	} else {
		no = no.Background(lipgloss.Color("212")).Foreground(lipgloss.Color("0"))
	}
	sb.WriteString(fmt.Sprintf("  %s  %s\n", yes.Render("Yes"), no.Render("No")))
	sb.WriteString("\n" + helpStyle.Render("←/→: select • enter: confirm • y/n: quick select • esc: cancel"))
	return sb.String()
}

func (m *Model) conflictView() string {
	var sb strings.Builder

	header := fmt.Sprintf("Conflict %d of %d", m.conflict.Ordinal, m.conflictTotal)
	sb.WriteString(titleStyle.Render(header) + "\n\n")

	what := "exists"
	if m.conflict.Kind == task.EntryWouldOverwrite {
		what = "would be overwritten"
	}
	detail := filepath.Base(m.conflict.Path)
	if m.conflict.IsDir {
		detail += "/"
	} else if m.conflict.Size > 0 {
		detail += fmt.Sprintf(" (%s)", formatBytes(m.conflict.Size))
	}
	sb.WriteString(fmt.Sprintf("%s %s\n\n", detail, what))

	ow := lipgloss.NewStyle().Padding(0, 2)
	sk := lipgloss.NewStyle().Padding(0, 2)
	if m.conflictChoice == task.ChoiceOverwrite {
		ow = ow.Background(lipgloss.Color("212")).Foreground(lipgloss.Color("0"))
	} else {
		sk = sk.Background(lipgloss.Color("212")).Foreground(lipgloss.Color("0"))
	}

	if m.conflictSkip {
		sb.WriteString(fmt.Sprintf("  %s  %s\n", ow.Render("Overwrite"), sk.Render("Skip")))
		sb.WriteString("\n" + helpStyle.Render("o: overwrite • s: skip • shift for all remaining • esc: cancel"))
	} else {
		sb.WriteString(fmt.Sprintf("  %s\n", ow.Render("Overwrite")))
		sb.WriteString("\n" + helpStyle.Render("o: overwrite • O: all remaining • esc: cancel"))
	}
	return sb.String()
}
