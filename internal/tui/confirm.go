package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ConfirmResult is the outcome of a standalone yes/no prompt.
type ConfirmResult struct {
	Confirmed bool
	Aborted   bool
}

// confirmModel is the inline prompt used by the subcommands, which run
// outside the full-screen interface.
type confirmModel struct {
	message  string
	selected bool // true = Yes
	result   ConfirmResult
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.result.Aborted = true
			return m, tea.Quit

		case "left", "right", "tab", "h", "l":
			m.selected = !m.selected
			return m, nil

		case "y", "Y":
			m.result.Confirmed = true
			return m, tea.Quit

		case "n", "N":
			m.result.Confirmed = false
			return m, tea.Quit

		case "enter":
			m.result.Confirmed = m.selected
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m confirmModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(m.message) + "\n\n")

	yes := lipgloss.NewStyle().Padding(0, 2)
	no := lipgloss.NewStyle().Padding(0, 2)
	if m.selected {
		yes = yes.Background(lipgloss.Color("212")).Foreground(lipgloss.Color("0"))
	} else {
		no = no.Background(lipgloss.Color("212")).Foreground(lipgloss.Color("0"))
	}

	sb.WriteString(fmt.Sprintf("  %s  %s\n", yes.Render("Yes"), no.Render("No")))
	sb.WriteString("\n" + helpStyle.Render("←/→: select • enter: confirm • y/n: quick select • esc: cancel"))

	return sb.String()
}

// RunConfirm shows a yes/no prompt and blocks until answered.
func RunConfirm(message string) (ConfirmResult, error) {
	m := confirmModel{message: message, selected: true}
	p := tea.NewProgram(m)

	finalModel, err := p.Run()
	if err != nil {
		return ConfirmResult{Aborted: true}, err
	}

	return finalModel.(confirmModel).result, nil
}
