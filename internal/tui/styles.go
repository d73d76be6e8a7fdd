package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/jcdickinson/faultbook/internal/kb"
	"github.com/jcdickinson/faultbook/internal/nav"
)

var (
	accent  = lipgloss.Color("205")
	border  = lipgloss.Color("240")
	warning = lipgloss.Color("#FFC107")
	danger  = lipgloss.Color("#e53935")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	crumbStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	cursorStyle = lipgloss.NewStyle().Reverse(true)
	matchStyle  = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(warning)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(danger)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1)
	focusedColumnStyle = columnStyle.BorderForeground(accent)

	noticeStyle = lipgloss.NewStyle().
			Foreground(warning).
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(warning).
			PaddingLeft(1)
)

var severityStyles = map[kb.Severity]lipgloss.Style{
	kb.SeverityHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(danger),
	kb.SeverityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#FF9800")),
	kb.SeverityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#8BC34A")),
}

// badge renders the severity label, colored when it is recognized.
func badge(f nav.FaultSummary) string {
	if f.Severity == "" {
		return ""
	}
	if style, ok := severityStyles[f.Level]; ok {
		return style.Render(" " + f.Severity + " ")
	}
	return mutedStyle.Render(f.Severity)
}
