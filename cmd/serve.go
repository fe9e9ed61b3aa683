package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/danielolaszy/ticketrelay/internal/logging"
	"github.com/danielolaszy/ticketrelay/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd runs the HTTP relay until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP relay",
	Long: `Run the HTTP relay.

Endpoints:
  GET  /              greeting
  POST /create-issue  relay a ticket ({"title", "description", "labels", "assignees", "ticket_id"})
  GET  /healthz       liveness
  GET  /readyz        tracker credentials check`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, client, err := newRelay(cfg)
		if err != nil {
			return err
		}

		logging.Info("relay configured",
			"tracker", svc.TrackerName(),
			"mode", svc.Mode(),
			"max_issues", cfg.Relay.MaxIssues,
			"timeout", cfg.Relay.Timeout)

		router := server.NewRouter(cfg.Server, server.Deps{
			Submitter: svc,
			Pinger:    client,
			Service:   svc.TrackerName(),
		})

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return server.Run(ctx, router, cfg.Server.ListenAddr)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8000", "address to listen on")
	settings.BindPFlag("listen_addr", serveCmd.Flags().Lookup("addr")) // nolint:errcheck
}
