package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"faultline/internal/bootstrap"
	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	"faultline/internal/errs"
	"faultline/internal/usecase/intake"
)

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Prune old events and unused artifacts",
}

var retentionSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete events and artifacts older than the given ages",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		eventsAge, _ := cmd.Flags().GetDuration("events-older-than")
		artifactsAge, _ := cmd.Flags().GetDuration("artifacts-older-than")
		if eventsAge <= 0 && artifactsAge <= 0 {
			return errors.New("nothing to sweep (set --events-older-than and/or --artifacts-older-than)")
		}

		now := time.Now().UTC()

		if eventsAge > 0 {
			removed, err := svc.DeleteOldEvents(ctx, now.Add(-eventsAge))
			if err != nil {
				logging.Error(ctx, "sweep events failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "sweep events")
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %d events older than %s\n", removed, eventsAge); err != nil {
				return errs.Wrap(err, "write sweep output")
			}
		}

		if artifactsAge > 0 {
			removed, err := svc.DeleteOldArtifacts(ctx, now.Add(-artifactsAge))
			if err != nil {
				logging.Error(ctx, "sweep artifacts failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "sweep artifacts")
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %d artifacts unused for %s\n", removed, artifactsAge); err != nil {
				return errs.Wrap(err, "write sweep output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(retentionCmd)
	retentionCmd.AddCommand(retentionSweepCmd)

	retentionSweepCmd.Flags().Duration("events-older-than", 0, "Delete crash events received before now minus this age")
	retentionSweepCmd.Flags().Duration("artifacts-older-than", 0, "Delete artifacts not used for symbolication within this age")
}
