package main

import (
	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/genflow/internal/server"
)

func newServeCmd(root *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), cmd, root)
			if err != nil {
				return err
			}
			defer app.Close()

			if addr == "" {
				addr = app.settings.Server.Addr
			}
			srv := server.New(app.orchestrator,
				server.WithLogger(app.logger),
				server.WithTaskStore(app.tasks),
				server.WithStoryboards(app.storyboards),
			)
			return srv.ListenAndServe(cmd.Context(), addr, app.settings.Server.ShutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}
