package kb

import (
	"context"
	"slices"
)

// Expand returns a deep copy of the root document with every external
// reference replaced by the content it points to. With fetch set, missing
// documents are loaded; otherwise only cached ones are inlined and the rest
// keep their ExternalRef.
func (s *Store) Expand(ctx context.Context, fetch bool) (*Node, error) {
	root, err := s.Root(ctx)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, root.Root, fetch, nil), nil
}

func (s *Store) expand(ctx context.Context, n *Node, fetch bool, refs []string) *Node {
	out := &Node{
		Name:        n.Name,
		Notice:      n.Notice,
		ExternalRef: n.ExternalRef,
		Faults:      slices.Clone(n.Faults),
	}

	children := n.Children
	if len(children) == 0 && n.ExternalRef != "" && !slices.Contains(refs, n.ExternalRef) {
		var doc *Document
		if fetch {
			doc, _ = s.Resolve(ctx, n.ExternalRef)
		} else {
			doc, _ = s.Cached(n.ExternalRef)
		}
		if doc != nil {
			out.ExternalRef = ""
			children = doc.Root.Children
			if len(out.Faults) == 0 {
				out.Faults = slices.Clone(doc.Root.Faults)
			}
			refs = append(slices.Clip(refs), n.ExternalRef)
		}
	}

	for _, c := range children {
		out.Children = append(out.Children, s.expand(ctx, c, fetch, refs))
	}
	return out
}
