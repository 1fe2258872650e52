package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/usecase/intake"
)

const maxShownEvents = 4
const maxAuditLines = 8
const defaultListLimit = 50

type Options struct {
	Project         string
	StatusFilter    string
	AssigneeFilter  string
	Operator        string
	Limit           int
	RefreshInterval time.Duration
}

type consoleModel struct {
	ctx             context.Context
	service         *intake.Service
	project         string
	statusFilter    string
	assigneeFilter  string
	operator        string
	limit           int
	refreshInterval time.Duration

	issues        []intake.IssueItem
	selectedIndex int
	detail        intake.IssueDetail
	hasDetail     bool
	status        string
	auditLogs     []string
}

type issuesLoadedMsg struct {
	items []intake.IssueItem
	err   error
}

type issueDetailLoadedMsg struct {
	issueID uint64
	detail  intake.IssueDetail
	err     error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action  string
	shortID string
	result  string
	err     error
}

func NewModel(ctx context.Context, service *intake.Service, options Options) tea.Model {
	operator := strings.TrimSpace(options.Operator)
	if operator == "" {
		operator = "console"
	}
	limit := options.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &consoleModel{
		ctx:             ctx,
		service:         service,
		project:         strings.TrimSpace(options.Project),
		statusFilter:    normalizeStatusFilter(options.StatusFilter),
		assigneeFilter:  strings.TrimSpace(options.AssigneeFilter),
		operator:        operator,
		limit:           limit,
		refreshInterval: interval,
		status:          "initializing",
	}
}

func (m *consoleModel) Init() tea.Cmd {
	return tea.Batch(m.loadIssuesCmd(), m.tickCmd())
}

func (m *consoleModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadIssuesCmd(), m.tickCmd())
	case issuesLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.issues = msg.items
		if len(m.issues) == 0 {
			m.selectedIndex = 0
			m.hasDetail = false
			m.status = "queue is empty"
			return m, nil
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		if m.selectedIndex >= len(m.issues) {
			m.selectedIndex = len(m.issues) - 1
		}
		m.status = fmt.Sprintf("refreshed, %d issues", len(m.issues))
		return m, m.loadSelectedIssueDetailCmd()
	case issueDetailLoadedMsg:
		if !m.isCurrentSelectedIssue(msg.issueID) {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			m.status = "detail load failed: " + msg.err.Error()
			return m, nil
		}
		m.hasDetail = true
		m.detail = msg.detail
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.appendAuditLog(msg.action, msg.shortID, "failed", msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
			m.appendAuditLog(msg.action, msg.shortID, msg.result, nil)
		}
		return m, m.loadIssuesCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadIssuesCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadSelectedIssueDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.issues)-1 {
				m.selectedIndex++
				return m, m.loadSelectedIssueDetailCmd()
			}
			return m, nil
		case "r":
			return m, m.transitionCmd("resolve", m.service.ResolveIssue)
		case "u":
			return m, m.transitionCmd("unresolve", m.service.UnresolveIssue)
		case "i":
			return m, m.transitionCmd("ignore", m.service.IgnoreIssue)
		case "a":
			return m, m.assignOrUnassignCmd()
		case "x":
			return m, m.deleteCmd()
		}
	}
	return m, nil
}

func (m *consoleModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Faultline Console"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"project=%s status=%s assignee=%s operator=%s refresh=%s",
		m.project,
		firstNonEmpty(m.statusFilter, "all"),
		firstNonEmpty(m.assigneeFilter, "-"),
		m.operator,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Queue"))
	builder.WriteString("\n")
	if len(m.issues) == 0 {
		builder.WriteString(dimStyle.Render("- no issues"))
		builder.WriteString("\n\n")
	} else {
		for index, item := range m.issues {
			line := fmt.Sprintf(
				"%s [%s/%s] events=%d assignee=%s %s",
				item.ShortID,
				item.Status,
				item.Level,
				item.EventCount,
				firstNonEmpty(item.Assignee, "-"),
				item.Title,
			)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		builder.WriteString(fmt.Sprintf("ShortID: %s\n", m.detail.ShortID))
		builder.WriteString(fmt.Sprintf("Title: %s\n", m.detail.Title))
		builder.WriteString(fmt.Sprintf("Status: %s\n", m.detail.Status))
		builder.WriteString(fmt.Sprintf("Priority: %s\n", m.detail.Priority))
		builder.WriteString(fmt.Sprintf("Culprit: %s\n", firstNonEmpty(m.detail.Culprit, "-")))
		builder.WriteString(fmt.Sprintf("Assignee: %s\n", firstNonEmpty(m.detail.Assignee, "-")))
		builder.WriteString(fmt.Sprintf("First Seen: %s\n", m.detail.FirstSeen))
		builder.WriteString(fmt.Sprintf("Last Seen: %s\n", m.detail.LastSeen))
		builder.WriteString(fmt.Sprintf("Events: %d\n", m.detail.EventCount))
		if m.detail.TimesRegressed > 0 {
			builder.WriteString(fmt.Sprintf("Regressed: %dx (last in %s)\n", m.detail.TimesRegressed, firstNonEmpty(m.detail.RegressedInRelease, "-")))
		}
		if m.detail.ResolvedAt != "" {
			builder.WriteString(fmt.Sprintf("Resolved At: %s\n", m.detail.ResolvedAt))
		}
		builder.WriteString("\nRecent Events:\n")
		events := m.detail.Events
		if len(events) == 0 {
			builder.WriteString("- none\n")
		} else {
			// Events arrive newest first, so the window is the head of the slice.
			end := maxShownEvents
			if end > len(events) {
				end = len(events)
			}
			for _, event := range events[:end] {
				builder.WriteString(fmt.Sprintf("- %s %s %s\n", shortEventID(event.EventID), event.Level, event.ReceivedAt))
			}
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Actions"))
	builder.WriteString("\n")
	builder.WriteString("- r resolve\n")
	builder.WriteString("- u unresolve\n")
	builder.WriteString("- i ignore\n")
	builder.WriteString("- a assign/unassign\n")
	builder.WriteString("- x delete\n")
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  g refresh  r/u/i/a/x actions  q quit"))
	return builder.String()
}

func (m *consoleModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *consoleModel) loadIssuesCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.service.ListIssues(m.ctx, intake.ListIssuesInput{
			ProjectID: m.project,
			Status:    m.statusFilter,
			Assignee:  m.assigneeFilter,
			Limit:     m.limit,
		})
		if err != nil {
			return issuesLoadedMsg{err: err}
		}
		return issuesLoadedMsg{items: items}
	}
}

func (m *consoleModel) loadSelectedIssueDetailCmd() tea.Cmd {
	selected, ok := m.selectedIssue()
	if !ok {
		return nil
	}

	return func() tea.Msg {
		detail, err := m.service.GetIssue(m.ctx, m.project, selected.IssueID)
		if err != nil {
			return issueDetailLoadedMsg{issueID: selected.IssueID, err: err}
		}
		return issueDetailLoadedMsg{issueID: selected.IssueID, detail: detail}
	}
}

func (m *consoleModel) transitionCmd(action string, transition func(context.Context, string, uint64) (intake.IssueItem, error)) tea.Cmd {
	selected, ok := m.selectedIssue()
	if !ok {
		m.status = "no issue selected"
		return nil
	}
	m.status = action + " in progress..."
	return func() tea.Msg {
		item, err := transition(m.ctx, m.project, selected.IssueID)
		if err != nil {
			return actionDoneMsg{action: action, shortID: selected.ShortID, err: err}
		}
		return actionDoneMsg{action: action, shortID: selected.ShortID, result: item.Status}
	}
}

func (m *consoleModel) assignOrUnassignCmd() tea.Cmd {
	selected, ok := m.selectedIssue()
	if !ok {
		m.status = "no issue selected"
		return nil
	}
	m.status = "assign/unassign in progress..."
	return func() tea.Msg {
		latest, err := m.service.GetIssue(m.ctx, m.project, selected.IssueID)
		if err != nil {
			return actionDoneMsg{action: "assign/unassign", shortID: selected.ShortID, err: err}
		}

		assignee := strings.TrimSpace(latest.Assignee)
		if assignee == "" {
			item, err := m.service.AssignIssue(m.ctx, m.project, selected.IssueID, m.operator)
			if err != nil {
				return actionDoneMsg{action: "assign", shortID: selected.ShortID, err: err}
			}
			return actionDoneMsg{action: "assign", shortID: selected.ShortID, result: item.Assignee}
		}

		if assignee != m.operator {
			return actionDoneMsg{
				action:  "unassign",
				shortID: selected.ShortID,
				err:     fmt.Errorf("issue already assigned to %s", assignee),
			}
		}
		if _, err := m.service.AssignIssue(m.ctx, m.project, selected.IssueID, ""); err != nil {
			return actionDoneMsg{action: "unassign", shortID: selected.ShortID, err: err}
		}
		return actionDoneMsg{action: "unassign", shortID: selected.ShortID, result: "unassigned"}
	}
}

func (m *consoleModel) deleteCmd() tea.Cmd {
	selected, ok := m.selectedIssue()
	if !ok {
		m.status = "no issue selected"
		return nil
	}
	m.status = "delete in progress..."
	return func() tea.Msg {
		if err := m.service.DeleteIssue(m.ctx, m.project, selected.IssueID); err != nil {
			return actionDoneMsg{action: "delete", shortID: selected.ShortID, err: err}
		}
		return actionDoneMsg{action: "delete", shortID: selected.ShortID, result: "deleted"}
	}
}

func (m *consoleModel) selectedIssue() (intake.IssueItem, bool) {
	if len(m.issues) == 0 {
		return intake.IssueItem{}, false
	}
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.issues) {
		return intake.IssueItem{}, false
	}
	return m.issues[m.selectedIndex], true
}

func (m *consoleModel) isCurrentSelectedIssue(issueID uint64) bool {
	selected, ok := m.selectedIssue()
	if !ok {
		return false
	}
	return selected.IssueID == issueID
}

func (m *consoleModel) appendAuditLog(action string, shortID string, result string, opErr error) {
	outcome := strings.TrimSpace(result)
	if opErr != nil {
		outcome = "error: " + opErr.Error()
	}
	if outcome == "" {
		outcome = "ok"
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s operator=%s issue=%s action=%s result=%s", timestamp, m.operator, shortID, action, outcome)
	m.auditLogs = append([]string{line}, m.auditLogs...)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[:maxAuditLines]
	}

	logging.Info(m.ctx, "console action",
		slog.String("time", timestamp),
		slog.String("operator", m.operator),
		slog.String("short_id", shortID),
		slog.String("action", action),
		slog.String("result", outcome),
	)
}

func normalizeStatusFilter(input string) string {
	value := strings.TrimSpace(strings.ToLower(input))
	if value == "" || value == "all" {
		return ""
	}
	return value
}

func shortEventID(eventID string) string {
	if len(eventID) > 8 {
		return eventID[:8]
	}
	return eventID
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized != "" {
			return normalized
		}
	}
	return ""
}
