package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configFile string
	verbose    bool
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "genflow",
		Short:         "genflow runs multi-step media generation workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to settings file (default: ./genflow.yaml or $XDG_CONFIG_HOME/genflow/genflow.yaml)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format (text, json, logfmt)")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newStatusCmd(flags))
	cmd.AddCommand(newDashboardCmd(flags))
	cmd.AddCommand(newStoryboardCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
