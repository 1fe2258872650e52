package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"faultline/internal/bootstrap"
	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	"faultline/internal/errs"
	"faultline/internal/usecase/intake"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Inspect per-release crash health",
}

var releaseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's releases, most recently active first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		project, _ := cmd.Flags().GetString("project")
		limit, _ := cmd.Flags().GetInt("limit")

		items, err := svc.ListReleases(ctx, project, limit)
		if err != nil {
			logging.Error(ctx, "list releases failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list releases")
		}

		if len(items) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no releases"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}

		for _, item := range items {
			if _, err := fmt.Fprintf(
				cmd.OutOrStdout(),
				"%s crashes=%d new_issues=%d regressions=%d last_event=%s\n",
				item.Version,
				item.CrashCount,
				item.NewIssueCount,
				item.RegressionCount,
				item.LastEventAt,
			); err != nil {
				return errs.Wrap(err, "write list item")
			}
		}
		return nil
	}),
}

var releaseShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one release's crash counters",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		project, _ := cmd.Flags().GetString("project")
		version, _ := cmd.Flags().GetString("version")

		item, err := svc.GetRelease(ctx, project, version)
		if err != nil {
			logging.Error(ctx, "show release failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "show release")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", item.Version); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Crashes: %d\n", item.CrashCount); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "NewIssues: %d\n", item.NewIssueCount); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Regressions: %d\n", item.RegressionCount); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "FirstEventAt: %s\n", item.FirstEventAt); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "LastEventAt: %s\n", item.LastEventAt); err != nil {
			return errs.Wrap(err, "write show output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(releaseCmd)
	releaseCmd.AddCommand(releaseListCmd)
	releaseCmd.AddCommand(releaseShowCmd)

	releaseListCmd.Flags().String("project", "", "Project to list")
	releaseListCmd.Flags().Int("limit", 0, "Maximum rows (0 uses the server default)")
	_ = releaseListCmd.MarkFlagRequired("project")

	releaseShowCmd.Flags().String("project", "", "Project the release belongs to")
	releaseShowCmd.Flags().String("version", "", "Release version string")
	_ = releaseShowCmd.MarkFlagRequired("project")
	_ = releaseShowCmd.MarkFlagRequired("version")
}
