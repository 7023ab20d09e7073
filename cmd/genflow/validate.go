package main

import (
	"fmt"

	"github.com/spf13/cobra"

	infraconfig "github.com/alexisbeaulieu97/genflow/internal/infrastructure/config"
	"github.com/alexisbeaulieu97/genflow/internal/infrastructure/logging"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	var planPath string

	cmd := &cobra.Command{
		Use:   "validate [plan]",
		Short: "Check a plan without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				planPath = args[0]
			}
			if err := validatePlanPath(planPath); err != nil {
				return err
			}
			settings, err := loadSettings(cmd, root, logging.NewNoOpLogger())
			if err != nil {
				return err
			}
			logger, err := newLogger(settings.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			sub, err := infraconfig.NewFileLoader(logger).Load(cmd.Context(), planPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan %s is valid: %d step(s)\n", planPath, len(sub.Plan.Steps))
			return nil
		},
	}

	cmd.Flags().StringVarP(&planPath, "file", "f", "", "Path to plan file (.yaml, .yml or .json)")

	return cmd
}
