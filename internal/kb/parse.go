package kb

import (
	"bytes"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// rawNode is the loose on-disk shape. A node may carry its children and
// faults under any of several legacy field names.
type rawNode struct {
	Name           string    `json:"name"`
	Notice         string    `json:"notice"`
	File           string    `json:"file"`
	Categories     []rawNode `json:"categories"`
	Subcategories  []rawNode `json:"subcategories"`
	SSubcategories []rawNode `json:"ssubcategories"`
	Children       []rawNode `json:"children"`
	Faults         []Fault   `json:"faults"`
	Items          []Fault   `json:"items"`
}

// childList returns the children of a node nested inside a document.
// Priority: subcategories, ssubcategories, children.
func (r *rawNode) childList() []rawNode {
	return firstNonEmpty(r.Subcategories, r.SSubcategories, r.Children)
}

// documentChildList returns the top-level children of a whole document
// (the root file or an external file). Priority: categories, subcategories,
// children.
func (r *rawNode) documentChildList() []rawNode {
	return firstNonEmpty(r.Categories, r.Subcategories, r.Children)
}

// faultList returns the fault records. Priority: faults, items.
func (r *rawNode) faultList() []Fault {
	return firstNonEmpty(r.Faults, r.Items)
}

func firstNonEmpty[T any](lists ...[]T) []T {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

// Parse decodes a knowledge-base document and normalizes every alias into the
// canonical Node shape.
func Parse(key string, data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.New("empty document")
	}

	var raw rawNode
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling document %s: %w", key, err)
	}

	root := &Node{
		Name:        raw.Name,
		Notice:      raw.Notice,
		ExternalRef: raw.File,
		Faults:      raw.faultList(),
	}
	root.Children = normalizeAll(raw.documentChildList())
	return &Document{Key: key, Root: root}, nil
}

func normalize(raw *rawNode) *Node {
	n := &Node{
		Name:        raw.Name,
		Notice:      raw.Notice,
		ExternalRef: raw.File,
		Faults:      raw.faultList(),
	}
	n.Children = normalizeAll(raw.childList())
	return n
}

func normalizeAll(raws []rawNode) []*Node {
	if len(raws) == 0 {
		return nil
	}
	nodes := make([]*Node, len(raws))
	for i := range raws {
		nodes[i] = normalize(&raws[i])
	}
	return nodes
}
