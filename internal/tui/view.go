package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jcdickinson/faultbook/internal/nav"
)

const help = "↑/↓ move · → open · ← back · tab faults · ⌫ up · / search · q quit"

func (m Model) View() string {
	if m.fatal != nil {
		return m.errorView()
	}
	if m.view == nil {
		return mutedStyle.Render("Loading knowledge base…")
	}

	sections := []string{m.header()}
	if m.input.Focused() || m.view.SearchMode {
		sections = append(sections, m.input.View())
	}

	if m.view.SearchMode {
		sections = append(sections, m.resultsView())
	} else {
		if m.view.Notice != "" {
			sections = append(sections, noticeStyle.Render(m.view.Notice))
		}
		sections = append(sections, m.columnsView())
		if m.view.Detail != nil {
			sections = append(sections, m.detail.View())
		}
	}

	footer := mutedStyle.Render(help)
	if m.status != "" {
		footer = errorStyle.Render(m.status)
	} else if m.busy {
		footer = mutedStyle.Render("loading…")
	}
	sections = append(sections, footer)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) errorView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		errorStyle.Render("Knowledge base unavailable"),
		"",
		m.fatal.Error(),
		"",
		mutedStyle.Render("r retry · q quit"),
	)
}

func (m Model) header() string {
	crumbs := []string{"Home"}
	for _, c := range m.view.Breadcrumb {
		crumbs = append(crumbs, c.ID)
	}
	return titleStyle.Render("faultbook") + "  " + crumbStyle.Render(strings.Join(crumbs, " › "))
}

func (m Model) columnsView() string {
	var cols []string
	for i, level := range m.view.Levels {
		cols = append(cols, m.levelView(level, i == m.column))
	}
	if len(m.view.Breadcrumb) > 0 {
		cols = append(cols, m.faultsView(m.column >= len(m.view.Levels)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) levelView(level nav.Level, focused bool) string {
	lines := []string{titleStyle.Render(level.Title)}
	for i, item := range level.Items {
		label := item.Name
		if item.HasChildren {
			label += " ▸"
		}
		switch {
		case focused && i == m.cursors[level.Depth]:
			label = cursorStyle.Render(label)
		case item.Active:
			label = activeStyle.Render(label)
		}
		lines = append(lines, label)
	}
	if len(level.Items) == 0 {
		lines = append(lines, mutedStyle.Render("No subcategories"))
	}

	style := columnStyle
	if focused {
		style = focusedColumnStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) faultsView(focused bool) string {
	lines := []string{titleStyle.Render("Faults")}
	if len(m.view.Faults) == 0 {
		lines = append(lines, mutedStyle.Render("No faults recorded"))
	}
	for i, f := range m.view.Faults {
		row := strings.TrimSpace(fmt.Sprintf("%s %s", f.Code, f.Title))
		if i == m.view.Selected {
			if focused {
				row = cursorStyle.Render(row)
			} else {
				row = activeStyle.Render(row)
			}
		}
		if b := badge(f); b != "" {
			row += " " + b
		}
		lines = append(lines, row)
	}

	style := columnStyle
	if focused {
		style = focusedColumnStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) resultsView() string {
	if len(m.view.Results) == 0 {
		return mutedStyle.Render(fmt.Sprintf("No matches for %q. Only opened categories are searched.", m.view.Query))
	}
	lines := make([]string, len(m.view.Results))
	for i, r := range m.view.Results {
		h := r.Highlight
		name := h.Before + matchStyle.Render(h.Match) + h.After
		if h.Match == "" {
			name = r.Name
		}
		line := name + "  " + mutedStyle.Render(r.Trail)
		if i == m.result {
			line = "▸ " + line
		} else {
			line = "  " + line
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
