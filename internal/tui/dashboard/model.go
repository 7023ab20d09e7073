// Package dashboard is an interactive browser over persisted workflow runs.
package dashboard

import (
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
)

// Model is the main dashboard model
type Model struct {
	store   ports.TaskStore
	records []workflow.TaskRecord

	viewMode     ViewMode
	cursor       int
	selectedID   string
	scrollOffset int

	spinner  spinner.Model
	loading  bool
	errorMsg string

	width  int
	height int

	refreshInterval time.Duration
	tickPending     bool
}

// Option configures a Model.
type Option func(*Model)

// WithRefreshInterval reloads the store on a fixed interval.
func WithRefreshInterval(interval time.Duration) Option {
	return func(m *Model) {
		m.refreshInterval = interval
	}
}

// NewModel creates a dashboard over store.
func NewModel(store ports.TaskStore, opts ...Option) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	m := Model{
		store:    store,
		viewMode: ViewList,
		spinner:  s,
		loading:  true,
		width:    80,
		height:   24,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the first load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadRecordsCmd(m.store))
}

// setRecords replaces the snapshot, keeping the cursor on the same run when
// it still exists.
func (m *Model) setRecords(records []workflow.TaskRecord) {
	current := ""
	if rec, ok := m.Selected(); ok {
		current = rec.WorkflowID
	}

	m.records = append([]workflow.TaskRecord(nil), records...)
	sort.SliceStable(m.records, func(i, j int) bool {
		pi, pj := statusPriority(m.records[i].Status), statusPriority(m.records[j].Status)
		if pi != pj {
			return pi < pj
		}
		return m.records[i].UpdatedAt > m.records[j].UpdatedAt
	})

	m.cursor = 0
	for i, rec := range m.records {
		if rec.WorkflowID == current {
			m.cursor = i
			break
		}
	}
	m.clampScroll()
}

// statusPriority orders runs: running > error > created > finished.
func statusPriority(status workflow.Status) int {
	switch status {
	case workflow.StatusRunning:
		return 0
	case workflow.StatusError:
		return 1
	case workflow.StatusCreated:
		return 2
	default:
		return 3
	}
}

// Records returns the current snapshot in display order.
func (m Model) Records() []workflow.TaskRecord {
	return append([]workflow.TaskRecord(nil), m.records...)
}

// CountByStatus returns how many runs are in each status.
func (m Model) CountByStatus() map[workflow.Status]int {
	counts := make(map[workflow.Status]int)
	for _, rec := range m.records {
		counts[rec.Status]++
	}
	return counts
}

// Selected returns the record under the cursor.
func (m Model) Selected() (workflow.TaskRecord, bool) {
	if m.cursor < 0 || m.cursor >= len(m.records) {
		return workflow.TaskRecord{}, false
	}
	return m.records[m.cursor], true
}

// Cursor returns the cursor index.
func (m Model) Cursor() int {
	return m.cursor
}

// ViewMode returns the active screen.
func (m Model) ViewMode() ViewMode {
	return m.viewMode
}

// MoveCursorUp moves cursor up with wrapping
func (m *Model) MoveCursorUp() {
	if len(m.records) == 0 {
		return
	}
	m.cursor--
	if m.cursor < 0 {
		m.cursor = len(m.records) - 1
	}
	m.clampScroll()
}

// MoveCursorDown moves cursor down with wrapping
func (m *Model) MoveCursorDown() {
	if len(m.records) == 0 {
		return
	}
	m.cursor++
	if m.cursor >= len(m.records) {
		m.cursor = 0
	}
	m.clampScroll()
}

func (m Model) visibleRows() int {
	rows := m.height - 10
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m *Model) clampScroll() {
	rows := m.visibleRows()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+rows {
		m.scrollOffset = m.cursor - rows + 1
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}
