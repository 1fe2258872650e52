package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"faultline/internal/bootstrap"
	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	"faultline/internal/errs"
	"faultline/internal/usecase/intake"
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Inspect and manage grouped issues",
}

var issueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's issues",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		project, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetString("status")
		assignee, _ := cmd.Flags().GetString("assignee")
		limit, _ := cmd.Flags().GetInt("limit")

		items, err := svc.ListIssues(ctx, intake.ListIssuesInput{
			ProjectID: project,
			Status:    status,
			Assignee:  assignee,
			Limit:     limit,
		})
		if err != nil {
			logging.Error(ctx, "list issues failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list issues")
		}

		if len(items) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no issues"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}

		for _, item := range items {
			assigneeValue := item.Assignee
			if assigneeValue == "" {
				assigneeValue = "-"
			}
			if _, err := fmt.Fprintf(
				cmd.OutOrStdout(),
				"%s [%s/%s] events=%d assignee=%s %s\n",
				item.ShortID,
				item.Status,
				item.Level,
				item.EventCount,
				assigneeValue,
				item.Title,
			); err != nil {
				return errs.Wrap(err, "write list item")
			}
		}
		return nil
	}),
}

var issueShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show issue detail and recent events",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		project, _ := cmd.Flags().GetString("project")
		issueID, err := issueIDFlag(cmd)
		if err != nil {
			return err
		}

		detail, err := svc.GetIssue(ctx, project, issueID)
		if err != nil {
			logging.Error(ctx, "show issue failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "show issue")
		}

		assignee := detail.Assignee
		if assignee == "" {
			assignee = "-"
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "ShortID: %s\n", detail.ShortID); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Title: %s\n", detail.Title); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", detail.Status); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Priority: %s\n", detail.Priority); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Level: %s\n", detail.Level); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if detail.Culprit != "" {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Culprit: %s\n", detail.Culprit); err != nil {
				return errs.Wrap(err, "write show output")
			}
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Assignee: %s\n", assignee); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "FirstSeen: %s\n", detail.FirstSeen); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "LastSeen: %s\n", detail.LastSeen); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Events: %d\n", detail.EventCount); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if detail.TimesRegressed > 0 {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Regressed: %dx (last in %s)\n", detail.TimesRegressed, detail.RegressedInRelease); err != nil {
				return errs.Wrap(err, "write show output")
			}
		}
		if detail.ResolvedAt != "" {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "ResolvedAt: %s\n", detail.ResolvedAt); err != nil {
				return errs.Wrap(err, "write show output")
			}
		}

		if len(detail.Events) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "\nRecent events: none"); err != nil {
				return errs.Wrap(err, "write show events")
			}
			return nil
		}

		if _, err := fmt.Fprintln(cmd.OutOrStdout(), "\nRecent events:"); err != nil {
			return errs.Wrap(err, "write show events")
		}
		for _, event := range detail.Events {
			release := event.Release
			if release == "" {
				release = "-"
			}
			if _, err := fmt.Fprintf(
				cmd.OutOrStdout(),
				"- %s level=%s release=%s received=%s\n",
				event.EventID,
				event.Level,
				release,
				event.ReceivedAt,
			); err != nil {
				return errs.Wrap(err, "write show event")
			}
		}
		return nil
	}),
}

var issueResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Mark an issue resolved",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		return runIssueTransition(cmd, "resolve", svc.ResolveIssue)
	}),
}

var issueUnresolveCmd = &cobra.Command{
	Use:   "unresolve",
	Short: "Reopen a resolved or ignored issue",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		return runIssueTransition(cmd, "unresolve", svc.UnresolveIssue)
	}),
}

var issueIgnoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Mute an issue without resolving it",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		return runIssueTransition(cmd, "ignore", svc.IgnoreIssue)
	}),
}

var issueAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign an issue to an owner (empty assignee clears)",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		project, _ := cmd.Flags().GetString("project")
		assignee, _ := cmd.Flags().GetString("assignee")
		issueID, err := issueIDFlag(cmd)
		if err != nil {
			return err
		}

		item, err := svc.AssignIssue(ctx, project, issueID, assignee)
		if err != nil {
			logging.Error(ctx, "assign issue failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "assign issue")
		}

		if item.Assignee == "" {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "issue %s: unassigned\n", item.ShortID); err != nil {
				return errs.Wrap(err, "write assign output")
			}
			return nil
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "issue %s: assigned to %s\n", item.ShortID, item.Assignee); err != nil {
			return errs.Wrap(err, "write assign output")
		}
		return nil
	}),
}

var issueDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an issue and its stored events",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		project, _ := cmd.Flags().GetString("project")
		issueID, err := issueIDFlag(cmd)
		if err != nil {
			return err
		}

		if err := svc.DeleteIssue(ctx, project, issueID); err != nil {
			logging.Error(ctx, "delete issue failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "delete issue")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted issue: %d\n", issueID); err != nil {
			return errs.Wrap(err, "write delete output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(issueCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueResolveCmd)
	issueCmd.AddCommand(issueUnresolveCmd)
	issueCmd.AddCommand(issueIgnoreCmd)
	issueCmd.AddCommand(issueAssignCmd)
	issueCmd.AddCommand(issueDeleteCmd)

	issueListCmd.Flags().String("project", "", "Project to list")
	issueListCmd.Flags().String("status", "", "Filter by status (unresolved|resolved|ignored)")
	issueListCmd.Flags().String("assignee", "", "Filter by assignee")
	issueListCmd.Flags().Int("limit", 0, "Maximum rows (0 uses the server default)")
	_ = issueListCmd.MarkFlagRequired("project")

	for _, sub := range []*cobra.Command{issueShowCmd, issueResolveCmd, issueUnresolveCmd, issueIgnoreCmd, issueAssignCmd, issueDeleteCmd} {
		sub.Flags().String("project", "", "Project the issue belongs to")
		sub.Flags().Uint64("issue", 0, "Numeric issue id")
		_ = sub.MarkFlagRequired("project")
		_ = sub.MarkFlagRequired("issue")
	}
	issueAssignCmd.Flags().String("assignee", "", "Owner to assign (empty clears)")
}

func runIssueTransition(cmd *cobra.Command, action string, transition func(context.Context, string, uint64) (intake.IssueItem, error)) error {
	ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

	project, _ := cmd.Flags().GetString("project")
	issueID, err := issueIDFlag(cmd)
	if err != nil {
		return err
	}

	item, err := transition(ctx, project, issueID)
	if err != nil {
		logging.Error(ctx, action+" issue failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrapf(err, "%s issue", action)
	}

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "issue %s: %s\n", item.ShortID, item.Status); err != nil {
		return errs.Wrapf(err, "write %s output", action)
	}
	return nil
}

func issueIDFlag(cmd *cobra.Command) (uint64, error) {
	issueID, _ := cmd.Flags().GetUint64("issue")
	if issueID == 0 {
		return 0, errors.New("issue id is required (set --issue)")
	}
	return issueID, nil
}
