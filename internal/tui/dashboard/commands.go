package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/genflow/internal/ports"
)

const loadTimeout = 5 * time.Second

// loadRecordsCmd reads every task record from the store.
func loadRecordsCmd(store ports.TaskStore) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		records, err := store.List(ctx)
		if err != nil {
			return LoadErrorMsg{Err: err}
		}
		return RecordsLoadedMsg{Records: records}
	}
}

// refreshTickCmd schedules the next reload. A zero interval disables it.
func refreshTickCmd(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		return nil
	}
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return RefreshTickMsg{}
	})
}
