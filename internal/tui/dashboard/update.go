package dashboard

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles incoming messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampScroll()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case RecordsLoadedMsg:
		m.loading = false
		m.errorMsg = ""
		m.setRecords(msg.Records)
		return m, m.scheduleRefresh()

	case LoadErrorMsg:
		m.loading = false
		m.errorMsg = fmt.Sprintf("Failed to load runs: %v", msg.Err)
		return m, m.scheduleRefresh()

	case RefreshTickMsg:
		m.tickPending = false
		return m, m.reload()

	case ClearErrorMsg:
		m.errorMsg = ""
		return m, nil
	}

	return m, nil
}

// scheduleRefresh keeps at most one refresh tick in flight.
func (m *Model) scheduleRefresh() tea.Cmd {
	if m.tickPending || m.refreshInterval <= 0 {
		return nil
	}
	m.tickPending = true
	return refreshTickCmd(m.refreshInterval)
}

func (m *Model) reload() tea.Cmd {
	if m.loading {
		return nil
	}
	m.loading = true
	return tea.Batch(m.spinner.Tick, loadRecordsCmd(m.store))
}

// handleKeyPress handles keyboard input based on current view mode
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.viewMode {
	case ViewDetail:
		return m.handleDetailKeys(msg)
	case ViewHelp:
		return m.handleHelpKeys(msg)
	default:
		return m.handleListKeys(msg)
	}
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "x":
		m.errorMsg = ""
	case "up", "k":
		m.MoveCursorUp()
	case "down", "j":
		m.MoveCursorDown()
	case "enter":
		if rec, ok := m.Selected(); ok {
			m.selectedID = rec.WorkflowID
			m.viewMode = ViewDetail
		}
	case "r":
		return m, m.reload()
	case "?":
		m.viewMode = ViewHelp
	}
	return m, nil
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		m.viewMode = ViewList
		m.selectedID = ""
	case "r":
		return m, m.reload()
	}
	return m, nil
}

func (m Model) handleHelpKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "?":
		m.viewMode = ViewList
	}
	return m, nil
}
