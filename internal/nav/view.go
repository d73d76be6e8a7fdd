package nav

import (
	"context"

	"github.com/jcdickinson/faultbook/internal/kb"
)

// View is a render-ready snapshot of a navigator. Selected is the index of
// Detail within Faults, or -1 when the current category has no faults.
type View struct {
	Levels     []Level        `json:"levels"`
	Breadcrumb []Crumb        `json:"breadcrumb"`
	Notice     string         `json:"notice,omitempty"`
	Faults     []FaultSummary `json:"faults"`
	Selected   int            `json:"selected"`
	Detail     *kb.Fault      `json:"detail,omitempty"`
	SearchMode bool           `json:"search_mode"`
	Query      string         `json:"query,omitempty"`
	Results    []ResultView   `json:"results,omitempty"`
}

// Level is one navigation column.
type Level struct {
	Depth int    `json:"depth"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

type Item struct {
	Name        string `json:"name"`
	HasChildren bool   `json:"has_children"`
	External    bool   `json:"external,omitempty"`
	Active      bool   `json:"active,omitempty"`
}

// Crumb is one breadcrumb entry; home is index -1 and not listed.
type Crumb struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	ID    string `json:"id"`
}

type FaultSummary struct {
	Code     string      `json:"code,omitempty"`
	Title    string      `json:"title,omitempty"`
	Severity string      `json:"severity,omitempty"`
	Level    kb.Severity `json:"level"`
}

type ResultView struct {
	Name      string    `json:"name"`
	Highlight Highlight `json:"highlight"`
	Trail     string    `json:"trail"`
	Path      []string  `json:"path"`
}

// Highlight is a result name split around the first match of the query.
// Match is empty when the node matched on its notice or faults.
type Highlight struct {
	Before string `json:"before"`
	Match  string `json:"match,omitempty"`
	After  string `json:"after,omitempty"`
}

// View renders the current state. It never fetches external documents; only
// the root document is loaded if it is not yet.
func (n *Navigator) View(ctx context.Context) (*View, error) {
	root, err := n.tree.Root(ctx)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	st := n.stateLocked()
	n.mu.Unlock()

	v := &View{
		Breadcrumb: make([]Crumb, len(st.Path)),
		Selected:   -1,
		SearchMode: st.SearchMode,
		Query:      st.Query,
	}

	v.Levels = append(v.Levels, n.level(1, root.Root.Children, st.Path))
	for i, e := range st.Path {
		v.Breadcrumb[i] = Crumb{Index: i, Kind: e.Kind, ID: e.ID}
		// An external category whose document failed to load still gets
		// its (empty) column.
		children := n.tree.CachedChildren(e.Node)
		if len(children) > 0 || e.Node.ExternalRef != "" {
			v.Levels = append(v.Levels, n.level(i+2, children, st.Path))
		}
	}

	for i := len(st.Path) - 1; i >= 0; i-- {
		if notice := st.Path[i].Node.Notice; notice != "" {
			v.Notice = notice
			break
		}
	}

	if len(st.Path) > 0 {
		faults := n.tree.Faults(st.Path[len(st.Path)-1].Node)
		for _, f := range faults {
			v.Faults = append(v.Faults, FaultSummary{
				Code:     f.Code,
				Title:    f.DisplayTitle(),
				Severity: f.Severity,
				Level:    f.Level(),
			})
		}
		if len(faults) > 0 {
			v.Selected = 0
			if st.Fault >= 0 && st.Fault < len(faults) {
				v.Selected = st.Fault
			}
			detail := faults[v.Selected]
			v.Detail = &detail
		}
	}

	if st.SearchMode {
		v.Results = make([]ResultView, len(st.Results))
		for i, r := range st.Results {
			before, match, after, _ := kb.Highlight(r.Node.Name, st.Query)
			path := make([]string, len(r.Path))
			for j, p := range r.Path {
				path[j] = p.Name
			}
			v.Results[i] = ResultView{
				Name:      r.Node.Name,
				Highlight: Highlight{Before: before, Match: match, After: after},
				Trail:     kb.Trail(r.Path),
				Path:      path,
			}
		}
	}
	return v, nil
}

func (n *Navigator) level(depth int, nodes []*kb.Node, path []PathEntry) Level {
	var active *kb.Node
	if depth <= len(path) {
		active = path[depth-1].Node
	}
	l := Level{Depth: depth, Title: LevelTitle(depth), Items: make([]Item, len(nodes))}
	for i, c := range nodes {
		l.Items[i] = Item{
			Name:        c.Name,
			HasChildren: len(c.Children) > 0 || c.ExternalRef != "",
			External:    c.ExternalRef != "",
			Active:      c == active,
		}
	}
	return l
}
