package kb

import "fmt"

// LoadError reports that the root document could not be loaded. Nothing can
// be shown without it.
type LoadError struct {
	Ref string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading knowledge base %s: %v", e.Ref, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FetchError reports that an external document referenced by a node could not
// be fetched or parsed. The node is treated as having no children.
type FetchError struct {
	Ref string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("loading external document %s: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
