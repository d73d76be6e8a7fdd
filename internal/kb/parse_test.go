package kb

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, key, src string) *Document {
	t.Helper()
	doc, err := Parse(key, []byte(src))
	if err != nil {
		t.Fatalf("parsing %s: %v", key, err)
	}
	return doc
}

func names(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestParse_NodeChildAliasPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		node string
		want []string
	}{
		{"none", `{"name":"n"}`, []string{}},
		{"subcategories", `{"name":"n","subcategories":[{"name":"s"}]}`, []string{"s"}},
		{"ssubcategories", `{"name":"n","ssubcategories":[{"name":"ss"}]}`, []string{"ss"}},
		{"children", `{"name":"n","children":[{"name":"c"}]}`, []string{"c"}},
		{"subcategories over ssubcategories", `{"name":"n","subcategories":[{"name":"s"}],"ssubcategories":[{"name":"ss"}]}`, []string{"s"}},
		{"subcategories over children", `{"name":"n","children":[{"name":"c"}],"subcategories":[{"name":"s"}]}`, []string{"s"}},
		{"ssubcategories over children", `{"name":"n","children":[{"name":"c"}],"ssubcategories":[{"name":"ss"}]}`, []string{"ss"}},
		{"empty alias skipped", `{"name":"n","subcategories":[],"children":[{"name":"c"}]}`, []string{"c"}},
		{"categories ignored below document level", `{"name":"n","categories":[{"name":"x"}]}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, "root", `{"categories":[`+tt.node+`]}`)
			got := names(doc.Root.Children[0].Children)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("children mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_DocumentChildAliasPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{"categories", `{"categories":[{"name":"a"}]}`, []string{"a"}},
		{"subcategories", `{"subcategories":[{"name":"b"}]}`, []string{"b"}},
		{"children", `{"children":[{"name":"c"}]}`, []string{"c"}},
		{"categories first", `{"children":[{"name":"c"}],"subcategories":[{"name":"b"}],"categories":[{"name":"a"}]}`, []string{"a"}},
		{"subcategories over children", `{"children":[{"name":"c"}],"subcategories":[{"name":"b"}]}`, []string{"b"}},
		{"ssubcategories not a document alias", `{"ssubcategories":[{"name":"x"}]}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, "x.json", tt.doc)
			if diff := cmp.Diff(tt.want, names(doc.Root.Children)); diff != "" {
				t.Errorf("children mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_FaultAliasPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		node string
		want []string
	}{
		{"none", `{"name":"n"}`, nil},
		{"faults", `{"name":"n","faults":[{"code":"F1"}]}`, []string{"F1"}},
		{"items", `{"name":"n","items":[{"code":"I1"}]}`, []string{"I1"}},
		{"faults over items", `{"name":"n","items":[{"code":"I1"}],"faults":[{"code":"F1"}]}`, []string{"F1"}},
		{"empty faults falls back to items", `{"name":"n","faults":[],"items":[{"code":"I1"}]}`, []string{"I1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, "root", `{"categories":[`+tt.node+`]}`)
			var got []string
			for _, f := range doc.Root.Children[0].Faults {
				got = append(got, f.Code)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("faults mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Deterministic(t *testing.T) {
	t.Parallel()
	src := `{"categories":[{"name":"A","subcategories":[{"name":"A1","faults":[{"code":"E1"}]}],"children":[{"name":"ignored"}]}]}`
	a := mustParse(t, "root", src)
	b := mustParse(t, "root", src)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("parse not deterministic (-first +second):\n%s", diff)
	}
}

func TestParse_FieldsAndSolutions(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, "root", `{
		"name": "Root",
		"notice": "top notice",
		"categories": [{
			"name": "Network",
			"notice": "check cables",
			"file": "network.json",
			"faults": [{
				"code": "E1",
				"name": "Timeout name",
				"severity": "高",
				"description": "requests time out",
				"symptoms": ["slow", "hangs"],
				"causes": ["packet loss"],
				"solutions": [
					"restart router",
					{"title": "Check route", "content": "ip route show"},
					42
				],
				"prevention": ["monitor latency"]
			}]
		}]
	}`)

	if doc.Key != "root" || doc.Root.Name != "Root" || doc.Root.Notice != "top notice" {
		t.Fatalf("unexpected root: %+v", doc.Root)
	}
	n := doc.Root.Children[0]
	if n.Notice != "check cables" || n.ExternalRef != "network.json" {
		t.Errorf("unexpected node fields: %+v", n)
	}

	want := Fault{
		Code:        "E1",
		Name:        "Timeout name",
		Severity:    "高",
		Description: "requests time out",
		Symptoms:    []string{"slow", "hangs"},
		Causes:      []string{"packet loss"},
		Solutions: []Solution{
			{Kind: SolutionText, Text: "restart router"},
			{Kind: SolutionBlock, Title: "Check route", Content: "ip route show"},
			{Kind: SolutionText, Text: "42"},
		},
		Prevention: []string{"monitor latency"},
	}
	if diff := cmp.Diff(want, n.Faults[0]); diff != "" {
		t.Errorf("fault mismatch (-want +got):\n%s", diff)
	}
	if got := n.Faults[0].DisplayTitle(); got != "Timeout name" {
		t.Errorf("DisplayTitle = %q, want name fallback", got)
	}
	if got := n.Faults[0].Level(); got != SeverityHigh {
		t.Errorf("Level = %v, want high", got)
	}
}

func TestParse_TitleBeatsName(t *testing.T) {
	t.Parallel()
	f := Fault{Title: "title", Name: "name"}
	if got := f.DisplayTitle(); got != "title" {
		t.Errorf("DisplayTitle = %q, want title", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()
	for _, src := range []string{"", "   ", "null", "[1,2]", `{"categories":`, `{"categories":[{"name":"x","symptoms":"nope","faults":[{"symptoms":5}]}]}`} {
		if _, err := Parse("bad.json", []byte(src)); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", src)
		}
	}
}

func TestSolution_MarshalRoundTrip(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, "root", `{"categories":[{"name":"n","faults":[{"solutions":["a",{"title":"t","content":"c"}]}]}]}`)
	got, err := doc.Root.Children[0].Faults[0].Solutions[1].MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"title":"t","content":"c"}` {
		t.Errorf("block marshaled as %s", got)
	}
	got, err = doc.Root.Children[0].Faults[0].Solutions[0].MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `"a"` {
		t.Errorf("text marshaled as %s", got)
	}
}
