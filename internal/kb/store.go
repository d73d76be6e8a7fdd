package kb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// RootKey is the cache key of the root document.
const RootKey = "root"

// Store is the session document cache. Each key is fetched at most once:
// concurrent requests for the same key share one fetch, successful documents
// are kept for the lifetime of the Store, and failures are never cached.
type Store struct {
	source  Source
	rootRef string

	mu    sync.RWMutex
	docs  map[string]*Document
	group singleflight.Group
}

func NewStore(source Source, rootRef string) *Store {
	if rootRef == "" {
		rootRef = "categories.json"
	}
	return &Store{
		source:  source,
		rootRef: rootRef,
		docs:    make(map[string]*Document),
	}
}

// Source returns the store's document source.
func (s *Store) Source() Source { return s.source }

// Root returns the root document, loading it on first use.
func (s *Store) Root(ctx context.Context) (*Document, error) {
	doc, err := s.load(ctx, RootKey, s.rootRef)
	if err != nil {
		return nil, &LoadError{Ref: s.rootRef, Err: err}
	}
	return doc, nil
}

// Resolve returns the external document for ref, fetching it if it is not
// cached yet.
func (s *Store) Resolve(ctx context.Context, ref string) (*Document, error) {
	if ref == RootKey {
		return nil, &FetchError{Ref: ref, Err: fmt.Errorf("%q is reserved for the root document", RootKey)}
	}
	doc, err := s.load(ctx, ref, ref)
	if err != nil {
		return nil, &FetchError{Ref: ref, Err: err}
	}
	return doc, nil
}

// Cached returns an external document only if it is already loaded. The
// root document is never returned here, so a node whose reference spells
// RootKey cannot alias the root.
func (s *Store) Cached(ref string) (*Document, bool) {
	if ref == RootKey {
		return nil, false
	}
	return s.cached(ref)
}

// RootLoaded reports whether the root document is in the cache.
func (s *Store) RootLoaded() bool {
	_, ok := s.cached(RootKey)
	return ok
}

func (s *Store) cached(key string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	return doc, ok
}

// Keys lists the cached document keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// load fetches key once for all concurrent callers. The shared fetch is
// detached from any single caller's context: a caller that gives up returns
// its own ctx error while the others keep waiting for the result.
func (s *Store) load(ctx context.Context, key, ref string) (*Document, error) {
	if doc, ok := s.cached(key); ok {
		return doc, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		// A fetch for this key may have finished between the check above and
		// winning the flight.
		if doc, ok := s.cached(key); ok {
			return doc, nil
		}

		slog.Debug("fetching document", "key", key, "ref", ref, "source", s.source.String())
		data, err := s.source.Fetch(fetchCtx, ref)
		if err != nil {
			return nil, err
		}
		doc, err := Parse(key, data)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.docs[key] = doc
		s.mu.Unlock()
		slog.Info("document loaded", "key", key, "categories", len(doc.Root.Children))
		return doc, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Document), nil
	}
}

// Children returns the effective children of n: its inline children, or else
// the top-level categories of its external document. A failed external fetch
// is logged and yields no children.
func (s *Store) Children(ctx context.Context, n *Node) []*Node {
	if len(n.Children) > 0 {
		return n.Children
	}
	if n.ExternalRef == "" {
		return nil
	}
	doc, err := s.Resolve(ctx, n.ExternalRef)
	if err != nil {
		slog.Warn("external document unavailable", "node", n.Name, "ref", n.ExternalRef, "error", err)
		return nil
	}
	return doc.Root.Children
}

// CachedChildren is Children without fetching.
func (s *Store) CachedChildren(n *Node) []*Node {
	if len(n.Children) > 0 {
		return n.Children
	}
	if n.ExternalRef == "" {
		return nil
	}
	if doc, ok := s.Cached(n.ExternalRef); ok {
		return doc.Root.Children
	}
	return nil
}

// Faults returns the inline faults of n, or the faults of its external
// document when that is already loaded.
func (s *Store) Faults(n *Node) []Fault {
	if len(n.Faults) > 0 {
		return n.Faults
	}
	if n.ExternalRef == "" {
		return nil
	}
	if doc, ok := s.Cached(n.ExternalRef); ok {
		return doc.Root.Faults
	}
	return nil
}

// Search runs a query over everything loaded so far. Only the root document
// may be fetched; external documents that were never opened stay invisible.
func (s *Store) Search(ctx context.Context, query string) ([]Result, error) {
	root, err := s.Root(ctx)
	if err != nil {
		return nil, err
	}
	return Search(root, s.Cached, query), nil
}

// PreloadReport lists which external references were loaded by Preload.
type PreloadReport struct {
	Loaded []string `json:"loaded"`
	Failed []string `json:"failed,omitempty"`
}

// Preload resolves every external reference reachable from the root, level
// by level, with at most concurrency fetches in flight. Individual failures
// are reported, not returned. onDone, if set, is called after each fetch.
func (s *Store) Preload(ctx context.Context, concurrency int, onDone func(ref string, err error)) (PreloadReport, error) {
	var report PreloadReport

	root, err := s.Root(ctx)
	if err != nil {
		return report, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	frontier := []*Node{root.Root}

	for len(frontier) > 0 {
		refs := collectRefs(frontier, seen)
		frontier = nil

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, ref := range refs {
			g.Go(func() error {
				doc, err := s.Resolve(gctx, ref)
				mu.Lock()
				defer mu.Unlock()
				if onDone != nil {
					onDone(ref, err)
				}
				if err != nil {
					slog.Warn("preload failed", "ref", ref, "error", err)
					report.Failed = append(report.Failed, ref)
					return nil
				}
				report.Loaded = append(report.Loaded, ref)
				frontier = append(frontier, doc.Root)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	sort.Strings(report.Loaded)
	sort.Strings(report.Failed)
	return report, nil
}

// collectRefs gathers unseen external references below the given nodes.
func collectRefs(nodes []*Node, seen map[string]bool) []string {
	var refs []string
	var walk func(n *Node)
	walk = func(n *Node) {
		if len(n.Children) > 0 {
			for _, c := range n.Children {
				walk(c)
			}
			return
		}
		if n.ExternalRef != "" && n.ExternalRef != RootKey && !seen[n.ExternalRef] {
			seen[n.ExternalRef] = true
			refs = append(refs, n.ExternalRef)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return refs
}
