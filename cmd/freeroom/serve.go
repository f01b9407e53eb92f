package main

import (
	"github.com/spf13/cobra"

	"freeroom/internal/refresh"
	"freeroom/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string
	var noRefresh bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and refresh events on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}
			var refresher web.Refresher
			if !noRefresh {
				refresher = refresh.Reloading{Config: a.cfg}
			}
			return web.Serve(cmd.Context(), a.cfg, a.store(), refresher)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "Serve stored snapshots only")
	return cmd
}
