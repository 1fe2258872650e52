package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"faultline/internal/bootstrap"
	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	"faultline/internal/errs"
	"faultline/internal/usecase/console"
	"faultline/internal/usecase/intake"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the live issue triage console",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		project, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetString("status")
		assignee, _ := cmd.Flags().GetString("assignee")
		operator, _ := cmd.Flags().GetString("operator")
		limit, _ := cmd.Flags().GetInt("limit")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 5 * time.Second
		}

		model := console.NewModel(ctx, svc, console.Options{
			Project:         project,
			StatusFilter:    status,
			AssigneeFilter:  assignee,
			Operator:        operator,
			Limit:           limit,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().String("project", "", "Project to follow")
	consoleCmd.Flags().String("status", "unresolved", "Status filter (unresolved|resolved|ignored|all)")
	consoleCmd.Flags().String("assignee", "", "Optional assignee filter")
	consoleCmd.Flags().String("operator", "", "Name recorded on assign actions (default: console)")
	consoleCmd.Flags().Int("limit", 0, "Maximum queue rows (0 uses the service default)")
	consoleCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
	_ = consoleCmd.MarkFlagRequired("project")
}
