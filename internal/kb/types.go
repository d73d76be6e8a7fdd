package kb

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// Document is one parsed knowledge-base file: the root categories.json or an
// external file referenced by a node.
type Document struct {
	Key  string
	Root *Node
}

// Node is a category at any depth of the hierarchy. Children and Faults are
// already resolved from their legacy aliases at ingestion.
type Node struct {
	Name        string  `json:"name" yaml:"name"`
	Notice      string  `json:"notice,omitempty" yaml:"notice,omitempty"`
	ExternalRef string  `json:"file,omitempty" yaml:"file,omitempty"`
	Children    []*Node `json:"children,omitempty" yaml:"children,omitempty"`
	Faults      []Fault `json:"faults,omitempty" yaml:"faults,omitempty"`
}

// Fault is a leaf diagnostic record.
type Fault struct {
	Code        string     `json:"code,omitempty" yaml:"code,omitempty"`
	Title       string     `json:"title,omitempty" yaml:"title,omitempty"`
	Name        string     `json:"name,omitempty" yaml:"name,omitempty"`
	Severity    string     `json:"severity,omitempty" yaml:"severity,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Symptoms    []string   `json:"symptoms,omitempty" yaml:"symptoms,omitempty"`
	Causes      []string   `json:"causes,omitempty" yaml:"causes,omitempty"`
	Solutions   []Solution `json:"solutions,omitempty" yaml:"solutions,omitempty"`
	Prevention  []string   `json:"prevention,omitempty" yaml:"prevention,omitempty"`
}

// DisplayTitle returns the title, falling back to the name.
func (f Fault) DisplayTitle() string {
	if f.Title != "" {
		return f.Title
	}
	return f.Name
}

// Level classifies the free-text severity.
func (f Fault) Level() Severity {
	return Classify(f.Severity)
}

type SolutionKind int

const (
	SolutionText SolutionKind = iota
	SolutionBlock
)

// Solution is either a plain text step or a titled content block (usually a
// command or config snippet).
type Solution struct {
	Kind    SolutionKind
	Text    string
	Title   string
	Content string
}

type solutionBlock struct {
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

func (s *Solution) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = Solution{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return fmt.Errorf("decoding solution text: %w", err)
		}
		*s = Solution{Kind: SolutionText, Text: text}
	case '{':
		var block solutionBlock
		if err := json.Unmarshal(trimmed, &block); err != nil {
			return fmt.Errorf("decoding solution block: %w", err)
		}
		*s = Solution{Kind: SolutionBlock, Title: block.Title, Content: block.Content}
	default:
		// Numbers and booleans show up in hand-written files; keep them as text.
		*s = Solution{Kind: SolutionText, Text: string(trimmed)}
	}
	return nil
}

func (s Solution) MarshalJSON() ([]byte, error) {
	if s.Kind == SolutionBlock {
		return json.Marshal(solutionBlock{Title: s.Title, Content: s.Content})
	}
	return json.Marshal(s.Text)
}

func (s Solution) MarshalYAML() (interface{}, error) {
	if s.Kind == SolutionBlock {
		return solutionBlock{Title: s.Title, Content: s.Content}, nil
	}
	return s.Text, nil
}
