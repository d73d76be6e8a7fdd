package rpc

import (
	"github.com/jcdickinson/faultbook/internal/kb"
	"github.com/jcdickinson/faultbook/internal/nav"
)

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResponse is the response body for POST /search.
type SearchResponse struct {
	Results []nav.ResultView `json:"results"`
}

// ShowRequest is the request body for POST /show. Path names one category
// per level, starting from the root categories.
type ShowRequest struct {
	Path []string `json:"path"`
}

// ShowResponse is the response body for POST /show.
type ShowResponse struct {
	View     *nav.View `json:"view"`
	Markdown string    `json:"markdown"`
}

// TreeRequest is the request body for POST /tree.
type TreeRequest struct {
	// Fetch loads every external document first; otherwise only what is
	// already cached is expanded.
	Fetch bool `json:"fetch,omitempty"`
}

// TreeResponse is the response body for POST /tree.
type TreeResponse struct {
	Root *kb.Node `json:"root"`
}

// PreloadRequest is the request body for POST /preload.
type PreloadRequest struct {
	Concurrency int `json:"concurrency,omitempty"`
}

// ProgressLine is a single line of NDJSON streamed from the preload endpoint.
type ProgressLine struct {
	Type    string            `json:"type"` // "progress" or "result"
	Message string            `json:"message,omitempty"`
	Result  *kb.PreloadReport `json:"result,omitempty"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Source   string   `json:"source"`
	Root     string   `json:"root"`
	Loaded   bool     `json:"loaded"`
	Cached   []string `json:"cached"`
	Sessions int      `json:"sessions"`
	Error    string   `json:"error,omitempty"`
}

// SessionResponse is returned by every session endpoint.
type SessionResponse struct {
	ID   string    `json:"id"`
	View *nav.View `json:"view"`
}

// SelectChildRequest is the request body for POST /sessions/{id}/select.
// Exactly one of Index or Name identifies the item.
type SelectChildRequest struct {
	Level int    `json:"level"`
	Index *int   `json:"index,omitempty"`
	Name  string `json:"name,omitempty"`
}

// IndexRequest carries a single index, for breadcrumb, fault and result
// selection.
type IndexRequest struct {
	Index int `json:"index"`
}

// QueryRequest is the request body for POST /sessions/{id}/search.
type QueryRequest struct {
	Query string `json:"query"`
}
