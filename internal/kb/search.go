package kb

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Result is one matching node together with its root-to-node path. The path
// includes the node itself as its last element.
type Result struct {
	Node *Node
	Path []*Node
}

// Lookup returns an already-loaded document by key.
type Lookup func(key string) (*Document, bool)

// Search walks the tree in pre-order starting at the root document's
// categories and returns every node whose name, notice or faults contain the
// query, case-insensitively. External documents are only entered when lookup
// already holds them.
func Search(root *Document, lookup Lookup, query string) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || root == nil || root.Root == nil {
		return nil
	}

	w := &walker{lookup: lookup, query: q}
	for _, n := range root.Root.Children {
		w.visit(n, nil, nil)
	}
	return w.results
}

type walker struct {
	lookup  Lookup
	query   string
	results []Result
}

// visit evaluates n and then its children. parent is never modified: every
// path is a fresh slice so sibling branches cannot share a backing array.
func (w *walker) visit(n *Node, parent []*Node, refs []string) {
	path := make([]*Node, len(parent)+1)
	copy(path, parent)
	path[len(parent)] = n

	var external *Document
	if len(n.Children) == 0 && n.ExternalRef != "" && n.ExternalRef != RootKey && w.lookup != nil && !slices.Contains(refs, n.ExternalRef) {
		external, _ = w.lookup(n.ExternalRef)
	}

	faults := n.Faults
	if len(faults) == 0 && external != nil {
		faults = external.Root.Faults
	}
	if w.matches(n, faults) {
		w.results = append(w.results, Result{Node: n, Path: path})
	}

	children := n.Children
	childRefs := refs
	if len(children) == 0 && external != nil {
		children = external.Root.Children
		childRefs = append(slices.Clip(refs), n.ExternalRef)
	}
	for _, c := range children {
		w.visit(c, path, childRefs)
	}
}

func (w *walker) matches(n *Node, faults []Fault) bool {
	if w.contains(n.Name) || w.contains(n.Notice) {
		return true
	}
	for i := range faults {
		if MatchFault(&faults[i], w.query) {
			return true
		}
	}
	return false
}

func (w *walker) contains(s string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), w.query)
}

// MatchFault reports whether a fault's code, title, name, description, or any
// symptom or cause contains the lower-cased query.
func MatchFault(f *Fault, query string) bool {
	has := func(s string) bool {
		return s != "" && strings.Contains(strings.ToLower(s), query)
	}
	if has(f.Code) || has(f.Title) || has(f.Name) || has(f.Description) {
		return true
	}
	return slices.ContainsFunc(f.Symptoms, has) || slices.ContainsFunc(f.Causes, has)
}

// Highlight splits name around the first case-insensitive occurrence of query.
// ok is false when the query does not occur in the name itself (the node
// matched on its faults or notice).
func Highlight(name, query string) (before, match, after string, ok bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return name, "", "", false
	}
	for i := range name {
		if !strings.HasPrefix(strings.ToLower(name[i:]), q) {
			continue
		}
		for j := i + 1; j <= len(name); j++ {
			if j < len(name) && !utf8.RuneStart(name[j]) {
				continue
			}
			if strings.ToLower(name[i:j]) == q {
				return name[:i], name[i:j], name[j:], true
			}
		}
	}
	return name, "", "", false
}

// Trail renders a path as "a › b › c".
func Trail(path []*Node) string {
	names := make([]string, len(path))
	for i, n := range path {
		names[i] = n.Name
	}
	return strings.Join(names, " › ")
}
