package nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jcdickinson/faultbook/internal/kb"
)

var (
	ErrInvalidLevel = errors.New("invalid navigation level")
	ErrNotAChild    = errors.New("item is not a child of the selected category")
	ErrInvalidIndex = errors.New("index out of range")
)

// Tree is the part of the document store the navigator reads from.
type Tree interface {
	Root(ctx context.Context) (*kb.Document, error)
	Children(ctx context.Context, n *kb.Node) []*kb.Node
	CachedChildren(n *kb.Node) []*kb.Node
	Faults(n *kb.Node) []kb.Fault
	Cached(key string) (*kb.Document, bool)
}

// PathEntry is one step of the active path.
type PathEntry struct {
	Kind string
	ID   string
	Node *kb.Node
}

var levelKinds = []string{"category", "subcategory", "sub-subcategory", "sub-sub-subcategory", "sub-sub-sub-subcategory"}

var levelTitles = []string{"Categories", "Subcategories", "Sub-subcategories", "Sub-sub-subcategories", "Sub-sub-sub-subcategories"}

// LevelKind names the kind of a path entry at the given 1-based depth.
func LevelKind(depth int) string {
	if depth >= 1 && depth <= len(levelKinds) {
		return levelKinds[depth-1]
	}
	return fmt.Sprintf("level %d", depth)
}

// LevelTitle is the column heading for the given 1-based depth.
func LevelTitle(depth int) string {
	if depth >= 1 && depth <= len(levelTitles) {
		return levelTitles[depth-1]
	}
	return fmt.Sprintf("Level %d", depth)
}

func entryFor(depth int, n *kb.Node) PathEntry {
	return PathEntry{Kind: LevelKind(depth), ID: n.Name, Node: n}
}

// State is a snapshot of the navigator.
type State struct {
	Path       []PathEntry
	SearchMode bool
	Query      string
	Results    []kb.Result
	// Fault is the selected fault index on the current node; -1 means the
	// first one.
	Fault int
}

// Navigator owns one session's navigation state. It is safe for concurrent
// use; operations are serialized.
type Navigator struct {
	tree Tree

	mu         sync.Mutex
	path       []PathEntry
	searchMode bool
	query      string
	results    []kb.Result
	fault      int
}

func New(tree Tree) *Navigator {
	return &Navigator{tree: tree, fault: -1}
}

// State returns a copy of the current state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stateLocked()
}

func (n *Navigator) stateLocked() State {
	return State{
		Path:       slices.Clone(n.path),
		SearchMode: n.searchMode,
		Query:      n.query,
		Results:    slices.Clone(n.results),
		Fault:      n.fault,
	}
}

// Current returns the node at the end of the path, or nil at home.
func (n *Navigator) Current() *kb.Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.path) == 0 {
		return nil
	}
	return n.path[len(n.path)-1].Node
}

// levelItems returns the items shown at a 1-based level: the root categories
// for level 1, otherwise the children of path entry level-1.
func (n *Navigator) levelItems(ctx context.Context, level int) ([]*kb.Node, error) {
	if level == 1 {
		root, err := n.tree.Root(ctx)
		if err != nil {
			return nil, err
		}
		return root.Root.Children, nil
	}
	return n.tree.CachedChildren(n.path[level-2].Node), nil
}

// SelectChild makes item the entry at the given 1-based level, dropping
// everything deeper, and resolves the item's children so the next level can
// be shown. A failed external fetch leaves the item without children.
func (n *Navigator) SelectChild(ctx context.Context, level int, item *kb.Node) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if level < 1 || level > len(n.path)+1 {
		return fmt.Errorf("%w: %d (path has %d entries)", ErrInvalidLevel, level, len(n.path))
	}
	items, err := n.levelItems(ctx, level)
	if err != nil {
		return err
	}
	if item == nil || !slices.Contains(items, item) {
		return ErrNotAChild
	}
	n.selectLocked(ctx, level, item)
	return nil
}

// SelectChildAt selects the index-th item of a level.
func (n *Navigator) SelectChildAt(ctx context.Context, level, index int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if level < 1 || level > len(n.path)+1 {
		return fmt.Errorf("%w: %d (path has %d entries)", ErrInvalidLevel, level, len(n.path))
	}
	items, err := n.levelItems(ctx, level)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(items) {
		return fmt.Errorf("%w: item %d of %d", ErrInvalidIndex, index, len(items))
	}
	n.selectLocked(ctx, level, items[index])
	return nil
}

// SelectChildNamed selects the first item of a level with the given name.
func (n *Navigator) SelectChildNamed(ctx context.Context, level int, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if level < 1 || level > len(n.path)+1 {
		return fmt.Errorf("%w: %d (path has %d entries)", ErrInvalidLevel, level, len(n.path))
	}
	items, err := n.levelItems(ctx, level)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(items, func(c *kb.Node) bool { return c.Name == name })
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotAChild, name)
	}
	n.selectLocked(ctx, level, items[i])
	return nil
}

func (n *Navigator) selectLocked(ctx context.Context, level int, item *kb.Node) {
	n.path = append(n.path[:level-1:level-1], entryFor(level, item))
	n.fault = -1
	n.searchMode = false

	children := n.tree.Children(ctx, item)
	slog.Debug("category selected", "level", level, "name", item.Name, "children", len(children))
}

// Open walks from home through the named categories, one per level.
func (n *Navigator) Open(ctx context.Context, names []string) error {
	n.Home()
	for i, name := range names {
		if err := n.SelectChildNamed(ctx, i+1, name); err != nil {
			return fmt.Errorf("opening %s: %w", strings.Join(names[:i+1], "/"), err)
		}
	}
	return nil
}

// SelectBreadcrumb truncates the path so that entry index is the last one.
// Index -1 is home.
func (n *Navigator) SelectBreadcrumb(index int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if index < -1 || index >= len(n.path) {
		return fmt.Errorf("%w: breadcrumb %d of %d", ErrInvalidIndex, index, len(n.path))
	}
	n.path = n.path[:index+1 : index+1]
	n.fault = -1
	n.searchMode = false
	return nil
}

// Home clears the path.
func (n *Navigator) Home() {
	_ = n.SelectBreadcrumb(-1)
}

// SubmitSearch searches everything loaded so far. A blank query resets the
// search instead.
func (n *Navigator) SubmitSearch(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		n.ResetSearch()
		return nil
	}

	root, err := n.tree.Root(ctx)
	if err != nil {
		return err
	}
	results := kb.Search(root, n.tree.Cached, query)
	slog.Info("search", "query", query, "results", len(results))

	n.mu.Lock()
	defer n.mu.Unlock()
	n.searchMode = true
	n.query = query
	n.results = results
	return nil
}

// SelectSearchResult jumps to the index-th result of the active search.
func (n *Navigator) SelectSearchResult(index int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.searchMode || index < 0 || index >= len(n.results) {
		return fmt.Errorf("%w: result %d of %d", ErrInvalidIndex, index, len(n.results))
	}
	r := n.results[index]
	path := make([]PathEntry, len(r.Path))
	for i, node := range r.Path {
		path[i] = entryFor(i+1, node)
	}
	n.path = path
	n.searchMode = false
	n.fault = -1
	return nil
}

// ResetSearch leaves search mode and forgets the last query.
func (n *Navigator) ResetSearch() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.searchMode = false
	n.query = ""
	n.results = nil
}

// SelectFault chooses which fault of the current category is shown in detail.
func (n *Navigator) SelectFault(index int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.path) == 0 {
		return fmt.Errorf("%w: no category selected", ErrInvalidIndex)
	}
	faults := n.tree.Faults(n.path[len(n.path)-1].Node)
	if index < 0 || index >= len(faults) {
		return fmt.Errorf("%w: fault %d of %d", ErrInvalidIndex, index, len(faults))
	}
	n.fault = index
	return nil
}
