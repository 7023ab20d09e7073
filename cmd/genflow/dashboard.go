package main

import (
	"errors"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alexisbeaulieu97/genflow/internal/tui/dashboard"
)

func newDashboardCmd(root *rootFlags) *cobra.Command {
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Browse recorded workflow runs interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("dashboard requires an interactive terminal; use 'genflow status' instead")
			}

			app, err := newApp(cmd.Context(), cmd, root)
			if err != nil {
				return err
			}
			defer app.Close()

			model := dashboard.NewModel(app.tasks, dashboard.WithRefreshInterval(refresh))
			program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&refresh, "refresh", 2*time.Second, "Reload interval (0 disables auto refresh)")

	return cmd
}
