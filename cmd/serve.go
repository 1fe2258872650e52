package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"faultline/internal/bootstrap"
	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	"faultline/internal/errs"
	"faultline/internal/server"
	"faultline/internal/usecase/intake"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP ingestion server",
	Long:  "Serves the capture, artifact, issue and release APIs plus per-project websocket streams. Runs until interrupted.",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *intake.Service, registry *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		// Schema migration is idempotent; running it here keeps a fresh
		// deployment to a single command.
		if err := app.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		addr, _ := cmd.Flags().GetString("addr")
		if strings.TrimSpace(addr) == "" {
			addr = app.Config.Server.Addr
		}

		srv := server.New(server.Config{
			Addr:            addr,
			ReadTimeout:     app.Config.Server.ReadTimeout,
			WriteTimeout:    app.Config.Server.WriteTimeout,
			ShutdownTimeout: app.Config.Server.ShutdownTimeout,
			Heartbeat:       app.Config.Broadcast.Heartbeat,
			MaxBodyBytes:    app.Config.Artifacts.MaxUploadBytes,
		}, svc, registry)

		if err := srv.Run(ctx); err != nil {
			logging.Error(ctx, "http server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "run http server")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
