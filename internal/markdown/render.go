package markdown

import (
	"fmt"
	"strings"

	"github.com/jcdickinson/faultbook/internal/kb"
	"github.com/jcdickinson/faultbook/internal/nav"
)

var severityBadges = map[kb.Severity]string{
	kb.SeverityHigh:   "🔴 high",
	kb.SeverityMedium: "🟠 medium",
	kb.SeverityLow:    "🟢 low",
}

// Badge renders a fault's severity for Markdown output. Unclassified labels
// are shown verbatim.
func Badge(f *kb.Fault) string {
	if b, ok := severityBadges[f.Level()]; ok {
		return b
	}
	return f.Severity
}

// Fault renders the full detail of one fault record.
func Fault(f *kb.Fault) string {
	var b strings.Builder

	title := f.DisplayTitle()
	switch {
	case f.Code != "" && title != "":
		fmt.Fprintf(&b, "## %s: %s\n\n", f.Code, title)
	case f.Code != "":
		fmt.Fprintf(&b, "## %s\n\n", f.Code)
	default:
		fmt.Fprintf(&b, "## %s\n\n", title)
	}
	if badge := Badge(f); badge != "" {
		fmt.Fprintf(&b, "**Severity:** %s\n\n", badge)
	}
	if f.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", f.Description)
	}

	writeList(&b, "Symptoms", f.Symptoms)
	writeList(&b, "Causes", f.Causes)

	if len(f.Solutions) > 0 {
		b.WriteString("### Solutions\n\n")
		for i, s := range f.Solutions {
			switch s.Kind {
			case kb.SolutionBlock:
				fmt.Fprintf(&b, "%d. **%s**\n\n", i+1, s.Title)
				for _, line := range strings.Split(s.Content, "\n") {
					fmt.Fprintf(&b, "   %s\n", line)
				}
				b.WriteString("\n")
			default:
				fmt.Fprintf(&b, "%d. %s\n", i+1, s.Text)
			}
		}
		b.WriteString("\n")
	}

	writeList(&b, "Prevention", f.Prevention)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

// View renders the fault list of a navigation view: breadcrumb, notice, a
// summary table, then the detail of the selected fault. In search mode it
// renders the result list instead.
func View(v *nav.View) string {
	var b strings.Builder

	if v.SearchMode {
		fmt.Fprintf(&b, "# Search: %s\n\n", v.Query)
		if len(v.Results) == 0 {
			b.WriteString("No matching faults or categories.\n")
			return b.String()
		}
		for _, r := range v.Results {
			h := r.Highlight
			name := escape(r.Name)
			if h.Match != "" {
				name = escape(h.Before) + "**" + escape(h.Match) + "**" + escape(h.After)
			}
			fmt.Fprintf(&b, "- %s (%s)\n", name, escape(r.Trail))
		}
		return b.String()
	}

	crumbs := []string{"Home"}
	for _, c := range v.Breadcrumb {
		crumbs = append(crumbs, c.ID)
	}
	fmt.Fprintf(&b, "# %s\n\n", escape(strings.Join(crumbs, " › ")))

	if v.Notice != "" {
		fmt.Fprintf(&b, "> **Notice:** %s\n\n", v.Notice)
	}

	if len(v.Faults) == 0 {
		if len(v.Breadcrumb) > 0 {
			b.WriteString("No faults recorded for this category.\n")
		}
		return b.String()
	}

	b.WriteString("| Code | Title | Severity |\n|---|---|---|\n")
	for i, f := range v.Faults {
		marker := ""
		if i == v.Selected {
			marker = " ◀"
		}
		fmt.Fprintf(&b, "| %s | %s%s | %s |\n", cell(f.Code), cell(f.Title), marker, cell(f.Severity))
	}
	b.WriteString("\n")

	if v.Detail != nil {
		b.WriteString(Fault(v.Detail))
	}
	return b.String()
}

var escaper = strings.NewReplacer(`*`, `\*`, `_`, `\_`, "`", "\\`", `[`, `\[`, `]`, `\]`)

func escape(s string) string { return escaper.Replace(s) }

func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}
