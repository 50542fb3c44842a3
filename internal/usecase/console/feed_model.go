package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"campussync/internal/bootstrap/logging"
	domainfeed "campussync/internal/domain/feed"
	"campussync/internal/ports"
	feedsvc "campussync/internal/usecase/feed"
	livesync "campussync/internal/usecase/sync"
)

const maxShownEvents = 6
const maxActionLines = 8

type Options struct {
	RefreshInterval time.Duration
}

type feedModel struct {
	ctx             context.Context
	service         *feedsvc.Service
	notifier        *livesync.Notifier
	refreshInterval time.Duration

	reports       []domainfeed.Report
	alerts        []domainfeed.EmergencyAlert
	events        []domainfeed.Event
	loading       bool
	selectedIndex int
	status        string
	actionLog     []string

	principal domainfeed.Principal
	signedIn  bool
}

type snapshotMsg struct {
	reports []domainfeed.Report
	alerts  []domainfeed.EmergencyAlert
	events  []domainfeed.Event
	loading bool
}

type tickMsg struct{}

type actionDoneMsg struct {
	action   string
	reportID string
	result   string
	err      error
}

func NewFeedModel(ctx context.Context, service *feedsvc.Service, notifier *livesync.Notifier, identity ports.Identity, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	model := &feedModel{
		ctx:             ctx,
		service:         service,
		notifier:        notifier,
		refreshInterval: interval,
		status:          "starting up",
	}
	if identity != nil {
		principal, signedIn, err := identity.CurrentUser(ctx)
		if err == nil && signedIn {
			model.principal = principal
			model.signedIn = true
		}
	}
	return model
}

func (m *feedModel) Init() tea.Cmd {
	return tea.Batch(m.loadSnapshotCmd(), m.tickCmd())
}

func (m *feedModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadSnapshotCmd(), m.tickCmd())
	case snapshotMsg:
		m.reports = msg.reports
		m.alerts = msg.alerts
		m.events = msg.events
		m.loading = msg.loading
		if len(m.reports) == 0 {
			m.selectedIndex = 0
			if m.loading {
				m.status = "waiting for first snapshot"
			} else {
				m.status = "no reports"
			}
			return m, nil
		}
		if m.selectedIndex >= len(m.reports) {
			m.selectedIndex = len(m.reports) - 1
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		m.status = fmt.Sprintf("refreshed, %d reports", len(m.reports))
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.appendActionLog(msg.action, msg.reportID, "failed", msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
			m.appendActionLog(msg.action, msg.reportID, msg.result, nil)
		}
		return m, m.loadSnapshotCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadSnapshotCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.reports)-1 {
				m.selectedIndex++
			}
			return m, nil
		case "f":
			return m, m.toggleFollowCmd()
		case "s":
			return m, m.advanceStatusCmd()
		case "d":
			return m, m.deleteReportCmd()
		}
	}
	return m, nil
}

func (m *feedModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	alertStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Campus Feed Console"))
	builder.WriteString("\n")
	user := "anonymous"
	if m.signedIn {
		user = m.principal.DisplayName
		if m.principal.IsAdmin() {
			user += " (admin)"
		}
	}
	builder.WriteString(dimStyle.Render(fmt.Sprintf("user=%s refresh=%s loading=%t", user, m.refreshInterval, m.loading)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Emergency Alerts"))
	builder.WriteString("\n")
	if len(m.alerts) == 0 {
		builder.WriteString(dimStyle.Render("- none active"))
		builder.WriteString("\n\n")
	} else {
		for _, alert := range m.alerts {
			builder.WriteString(alertStyle.Render(fmt.Sprintf("! %s", alert.Title)))
			builder.WriteString(" " + firstNonEmptyLine(alert.Message))
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Reports"))
	builder.WriteString("\n")
	if len(m.reports) == 0 {
		builder.WriteString(dimStyle.Render("- no reports"))
		builder.WriteString("\n\n")
	} else {
		for index, report := range m.reports {
			followMark := " "
			if m.signedIn && report.IsFollowedBy(m.principal.ID) {
				followMark = "*"
			}
			line := fmt.Sprintf("%s [%s/%s] %s by=%s", followMark, report.Type, report.Status, report.Title, firstNonEmpty(report.CreatedByName, "-"))
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Recent Events"))
	builder.WriteString("\n")
	if len(m.events) == 0 {
		builder.WriteString(dimStyle.Render("- none"))
		builder.WriteString("\n\n")
	} else {
		shown := m.events
		if len(shown) > maxShownEvents {
			shown = shown[:maxShownEvents]
		}
		for _, event := range shown {
			builder.WriteString(fmt.Sprintf("- %s %s %s\n", event.Kind, event.Title, firstNonEmptyLine(event.Message)))
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Action Log"))
	builder.WriteString("\n")
	if len(m.actionLog) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.actionLog {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  g refresh  f follow  s status  d delete  q quit"))
	return builder.String()
}

func (m *feedModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *feedModel) loadSnapshotCmd() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{
			reports: m.service.Reports(),
			alerts:  m.service.Alerts(),
			events:  m.notifier.Recent(),
			loading: m.service.Loading(),
		}
	}
}

func (m *feedModel) toggleFollowCmd() tea.Cmd {
	report, ok := m.selectedReport()
	if !ok {
		m.status = "no report selected"
		return nil
	}
	reportID := report.ID
	m.status = "toggling follow..."
	return func() tea.Msg {
		following, err := m.service.ToggleFollow(m.ctx, reportID)
		if err != nil {
			return actionDoneMsg{action: "follow", reportID: reportID, err: err}
		}
		result := "unfollowed"
		if following {
			result = "following"
		}
		return actionDoneMsg{action: "follow", reportID: reportID, result: result}
	}
}

func (m *feedModel) advanceStatusCmd() tea.Cmd {
	report, ok := m.selectedReport()
	if !ok {
		m.status = "no report selected"
		return nil
	}
	next := nextStatus(report.Status)
	reportID := report.ID
	m.status = "updating status..."
	return func() tea.Msg {
		if err := m.service.UpdateStatus(m.ctx, reportID, next); err != nil {
			return actionDoneMsg{action: "status", reportID: reportID, err: err}
		}
		return actionDoneMsg{action: "status", reportID: reportID, result: string(next)}
	}
}

func (m *feedModel) deleteReportCmd() tea.Cmd {
	report, ok := m.selectedReport()
	if !ok {
		m.status = "no report selected"
		return nil
	}
	reportID := report.ID
	m.status = "deleting..."
	return func() tea.Msg {
		if err := m.service.DeleteReport(m.ctx, reportID); err != nil {
			return actionDoneMsg{action: "delete", reportID: reportID, err: err}
		}
		return actionDoneMsg{action: "delete", reportID: reportID, result: "deleted"}
	}
}

func (m *feedModel) selectedReport() (domainfeed.Report, bool) {
	if len(m.reports) == 0 {
		return domainfeed.Report{}, false
	}
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.reports) {
		return domainfeed.Report{}, false
	}
	return m.reports[m.selectedIndex], true
}

func (m *feedModel) appendActionLog(action string, reportID string, result string, opErr error) {
	outcome := strings.TrimSpace(result)
	if opErr != nil {
		outcome = "error: " + opErr.Error()
	}
	if outcome == "" {
		outcome = "ok"
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s report=%s action=%s result=%s", timestamp, reportID, action, outcome)
	m.actionLog = append([]string{line}, m.actionLog...)
	if len(m.actionLog) > maxActionLines {
		m.actionLog = m.actionLog[:maxActionLines]
	}

	logging.Info(m.ctx, "console action",
		slog.String("time", timestamp),
		slog.String("report_id", reportID),
		slog.String("action", action),
		slog.String("result", outcome),
	)
}

func nextStatus(current domainfeed.ReportStatus) domainfeed.ReportStatus {
	switch current {
	case domainfeed.StatusOpen:
		return domainfeed.StatusInReview
	case domainfeed.StatusInReview:
		return domainfeed.StatusResolved
	default:
		return domainfeed.StatusOpen
	}
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

func firstNonEmptyLine(body string) string {
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line != "" {
			return line
		}
	}
	return ""
}
