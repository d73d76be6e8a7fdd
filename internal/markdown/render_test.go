package markdown

import (
	"strings"
	"testing"

	"github.com/jcdickinson/faultbook/internal/kb"
	"github.com/jcdickinson/faultbook/internal/nav"
)

func sampleFault() *kb.Fault {
	return &kb.Fault{
		Code:        "E1",
		Title:       "Timeout",
		Severity:    "高",
		Description: "Requests time out.",
		Symptoms:    []string{"slow pages"},
		Causes:      []string{"packet loss"},
		Solutions: []kb.Solution{
			{Kind: kb.SolutionText, Text: "restart the router"},
			{Kind: kb.SolutionBlock, Title: "Check the route", Content: "ip route show\nping gateway"},
		},
		Prevention: []string{"monitor latency"},
	}
}

func TestFault(t *testing.T) {
	t.Parallel()
	got := Fault(sampleFault())

	for _, want := range []string{
		"## E1: Timeout\n",
		"**Severity:** 🔴 high",
		"Requests time out.",
		"### Symptoms\n\n- slow pages\n",
		"### Causes\n\n- packet loss\n",
		"1. restart the router\n",
		"2. **Check the route**\n",
		"   ip route show\n   ping gateway\n",
		"### Prevention\n\n- monitor latency\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Index(got, "Symptoms") > strings.Index(got, "Solutions") {
		t.Error("sections out of order")
	}
}

func TestFault_Sparse(t *testing.T) {
	t.Parallel()

	t.Run("name_only", func(t *testing.T) {
		got := Fault(&kb.Fault{Name: "Fan noise", Severity: "loud"})
		if !strings.HasPrefix(got, "## Fan noise\n") {
			t.Errorf("unexpected heading: %q", got)
		}
		if !strings.Contains(got, "**Severity:** loud") {
			t.Errorf("unclassified severity should be shown verbatim: %q", got)
		}
		if strings.Contains(got, "###") {
			t.Errorf("empty sections rendered: %q", got)
		}
	})

	t.Run("code_only", func(t *testing.T) {
		got := Fault(&kb.Fault{Code: "X9"})
		if got != "## X9\n" {
			t.Errorf("got %q", got)
		}
	})
}

func TestView(t *testing.T) {
	t.Parallel()

	t.Run("faults", func(t *testing.T) {
		f := sampleFault()
		got := View(&nav.View{
			Breadcrumb: []nav.Crumb{{Index: 0, Kind: "category", ID: "Network"}},
			Notice:     "check cables",
			Faults:     []nav.FaultSummary{{Code: "E1", Title: "Timeout", Severity: "高", Level: kb.SeverityHigh}, {Code: "E2", Title: "a|b"}},
			Selected:   0,
			Detail:     f,
		})
		for _, want := range []string{
			"# Home › Network\n",
			"> **Notice:** check cables",
			"| E1 | Timeout ◀ | 高 |",
			`| E2 | a\|b |  |`,
			"## E1: Timeout",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("missing %q in:\n%s", want, got)
			}
		}
	})

	t.Run("empty_category", func(t *testing.T) {
		got := View(&nav.View{Breadcrumb: []nav.Crumb{{ID: "Empty"}}, Selected: -1})
		if !strings.Contains(got, "No faults recorded") {
			t.Errorf("got %q", got)
		}
	})

	t.Run("home", func(t *testing.T) {
		got := View(&nav.View{Selected: -1})
		if got != "# Home\n\n" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("search", func(t *testing.T) {
		got := View(&nav.View{
			SearchMode: true,
			Query:      "time",
			Results: []nav.ResultView{
				{Name: "Timeouts", Highlight: nav.Highlight{Match: "Time", After: "outs"}, Trail: "Network › Timeouts"},
				{Name: "Network", Highlight: nav.Highlight{Before: "Network"}, Trail: "Network"},
			},
		})
		for _, want := range []string{"# Search: time", "- **Time**outs (Network › Timeouts)", "- Network (Network)"} {
			if !strings.Contains(got, want) {
				t.Errorf("missing %q in:\n%s", want, got)
			}
		}
	})

	t.Run("search_no_results", func(t *testing.T) {
		got := View(&nav.View{SearchMode: true, Query: "zz"})
		if !strings.Contains(got, "No matching") {
			t.Errorf("got %q", got)
		}
	})
}
