package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	infraconfig "github.com/alexisbeaulieu97/genflow/internal/infrastructure/config"
	"github.com/alexisbeaulieu97/genflow/internal/orchestrator"
	"github.com/alexisbeaulieu97/genflow/internal/stream"
	"github.com/alexisbeaulieu97/genflow/internal/tui"
	apperrors "github.com/alexisbeaulieu97/genflow/pkg/errors"
)

type runOptions struct {
	PlanPath       string
	WorkflowID     string
	NonInteractive bool
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run [plan]",
		Short: "Run a workflow plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.PlanPath = args[0]
			}
			if !opts.NonInteractive {
				opts.NonInteractive = !term.IsTerminal(int(os.Stdout.Fd()))
			}
			if err := validatePlanPath(opts.PlanPath); err != nil {
				return err
			}

			app, err := newApp(cmd.Context(), cmd, root)
			if err != nil {
				return err
			}
			defer app.Close()

			return runPlan(cmd.Context(), app, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.PlanPath, "file", "f", "", "Path to plan file (.yaml, .yml or .json)")
	cmd.Flags().StringVar(&opts.WorkflowID, "workflow-id", "", "Workflow id (generated when empty)")
	cmd.Flags().BoolVar(&opts.NonInteractive, "plain", false, "Print a summary instead of the interactive view")

	return cmd
}

func runPlan(ctx context.Context, app *appContext, opts runOptions, out io.Writer) error {
	sub, err := infraconfig.NewFileLoader(app.logger).Load(ctx, opts.PlanPath)
	if err != nil {
		return err
	}
	if opts.WorkflowID != "" {
		sub.WorkflowID = opts.WorkflowID
	}

	title := strings.TrimSuffix(filepath.Base(opts.PlanPath), filepath.Ext(opts.PlanPath))

	var result orchestrator.Result
	if opts.NonInteractive {
		result, err = runPlain(ctx, app, *sub, title, out)
	} else {
		result, err = runInteractive(ctx, app, *sub, title)
	}
	if err != nil {
		if result.FailedStep != "" {
			return apperrors.NewExecutionError(result.FailedStep, err)
		}
		return err
	}
	return nil
}

// runPlain records every event and replays them through the view model so
// the printed summary matches the interactive one.
func runPlain(ctx context.Context, app *appContext, sub workflow.Submission, title string, out io.Writer) (orchestrator.Result, error) {
	recorder := stream.NewRecorder()
	result, runErr := app.orchestrator.Run(ctx, sub, recorder)

	state := tui.NewModel(title, sub, nil)
	for _, event := range recorder.Events() {
		updated, _ := state.Update(tui.EventMsg{Event: event})
		if m, ok := updated.(tui.Model); ok {
			state = m
		}
	}
	fmt.Fprintln(out, state.View())
	return result, runErr
}

func runInteractive(ctx context.Context, app *appContext, sub workflow.Submission, title string) (orchestrator.Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := stream.NewChannel(0)
	program := tea.NewProgram(tui.NewModel(title, sub, events.Events(), tui.WithCancel(cancel)), tea.WithContext(ctx))

	type outcome struct {
		result orchestrator.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := app.orchestrator.Run(runCtx, sub, events)
		done <- outcome{result: result, err: err}
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return orchestrator.Result{}, fmt.Errorf("run interface: %w", err)
	}
	// The view may quit on a key press before the run has drained.
	cancel()
	res := <-done
	return res.result, res.err
}

func validatePlanPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("plan file is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve plan path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("plan file does not exist: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("plan path %s is a directory", abs)
	}
	return nil
}
