package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"

	"github.com/larsmagnus/tfm/internal/cache"
	"github.com/larsmagnus/tfm/internal/config"
	"github.com/larsmagnus/tfm/internal/state"
	"github.com/larsmagnus/tfm/internal/task"
	"github.com/larsmagnus/tfm/internal/watcher"
)

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("212"))
	markedItemStyle   = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("214"))
	paneStyle         = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("63")).
				Padding(0, 1)
	activePaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("212")).
			Padding(0, 1)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("150"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dialogStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("212")).
			Padding(1, 2)
)

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Tab     key.Binding
	Mark    key.Binding
	Copy    key.Binding
	Move    key.Binding
	Delete  key.Binding
	Pack    key.Binding
	Unpack  key.Binding
	Hidden  key.Binding
	Refresh key.Binding
	Cancel  key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Enter:   key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "open")),
	Back:    key.NewBinding(key.WithKeys("backspace", "h"), key.WithHelp("bksp", "parent")),
	Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
	Mark:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "mark")),
	Copy:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy")),
	Move:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "move")),
	Delete:  key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
	Pack:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pack")),
	Unpack:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unpack")),
	Hidden:  key.NewBinding(key.WithKeys("."), key.WithHelp(".", "hidden")),
	Refresh: key.NewBinding(key.WithKeys("r", "f5"), key.WithHelp("r", "refresh")),
	Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// Run starts the full-screen interface and blocks until it exits.
func Run(cfg *config.Config, logger zerolog.Logger) error {
	lipgloss.SetDefaultRenderer(lipgloss.NewRenderer(os.Stderr, termenv.WithColorCache(true)))

	listings := cache.New(logger)

	db, err := state.Open(cfg.StatePath())
	if err != nil {
		logger.Warn().Err(err).Msg("session state unavailable")
		db = nil
	}

	gw := newGateway()
	hooks := newHooks(gw, listings)
	controller := task.NewController(gw, gw, hooks, cfg.ConfirmFor, logger)

	w := watcher.New(listings, func(dir string) {
		gw.send(externalChangeMsg{dir: dir})
	}, logger)
	if err := w.Start(); err != nil {
		logger.Warn().Err(err).Msg("file watcher unavailable")
		w = nil
	} else {
		defer w.Stop()
	}

	m := NewModel(cfg, listings, db, logger)
	m.controller = controller
	m.watcher = w

	p := tea.NewProgram(m, tea.WithAltScreen())
	gw.setProgram(p)

	if db != nil {
		defer db.Close()
	}

	_, err = p.Run()
	return err
}
