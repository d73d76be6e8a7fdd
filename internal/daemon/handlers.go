package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	md "github.com/jcdickinson/faultbook/internal/markdown"
	"github.com/jcdickinson/faultbook/internal/nav"
	"github.com/jcdickinson/faultbook/internal/rpc"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := rpc.StatusResponse{
		Source: s.store.Source().String(),
		Root:   s.cfg.Data.Root,
		Cached: s.store.Keys(),
	}
	resp.Loaded = s.store.RootLoaded()

	s.sessionsMu.RLock()
	resp.Sessions = len(s.sessions)
	s.sessionsMu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req rpc.SearchRequest
	if !decode(w, r, &req) {
		return
	}

	n := nav.New(s.store)
	if err := n.SubmitSearch(r.Context(), req.Query); err != nil {
		writeFailure(w, err)
		return
	}
	v, err := n.View(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}

	results := v.Results
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	if results == nil {
		results = []nav.ResultView{}
	}
	writeJSON(w, http.StatusOK, rpc.SearchResponse{Results: results})
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	var req rpc.ShowRequest
	if !decode(w, r, &req) {
		return
	}

	n := nav.New(s.store)
	if err := n.Open(r.Context(), req.Path); err != nil {
		writeFailure(w, err)
		return
	}
	v, err := n.View(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rpc.ShowResponse{View: v, Markdown: md.View(v)})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	var req rpc.TreeRequest
	if !decode(w, r, &req) {
		return
	}

	root, err := s.store.Expand(r.Context(), req.Fetch)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rpc.TreeResponse{Root: root})
}

func (s *Server) handlePreload(w http.ResponseWriter, r *http.Request) {
	var req rpc.PreloadRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Concurrency <= 0 {
		req.Concurrency = s.cfg.Data.PreloadConcurrency
	}

	// The root must load before the stream starts so its failure can still
	// be reported with a status code.
	if _, err := s.store.Root(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	send := func(line rpc.ProgressLine) bool {
		if err := enc.Encode(line); err != nil {
			slog.Warn("daemon: client disconnected", "error", err)
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	start := time.Now()
	report, err := s.store.Preload(r.Context(), req.Concurrency, func(ref string, err error) {
		msg := "loaded " + ref
		if err != nil {
			msg = fmt.Sprintf("failed %s: %v", ref, err)
		}
		send(rpc.ProgressLine{Type: "progress", Message: msg})
	})
	if err != nil {
		send(rpc.ProgressLine{Type: "progress", Message: fmt.Sprintf("preload stopped: %v", err)})
	}
	slog.Info("daemon: preload finished", "loaded", len(report.Loaded), "failed", len(report.Failed), "duration", time.Since(start))
	send(rpc.ProgressLine{Type: "result", Result: &report})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		s.exit(0)
	}()
}
