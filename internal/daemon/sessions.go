package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	md "github.com/jcdickinson/faultbook/internal/markdown"
	"github.com/jcdickinson/faultbook/internal/nav"
	"github.com/jcdickinson/faultbook/internal/rpc"
)

var errUnknownSession = errors.New("unknown session")

// liveSession is a navigator plus the last time a client touched it.
type liveSession struct {
	nav      *nav.Navigator
	lastUsed time.Time
}

func (s *Server) session(r *http.Request) (string, *nav.Navigator, error) {
	id := chi.URLParam(r, "id")
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	ls, ok := s.sessions[id]
	if !ok {
		return id, nil, fmt.Errorf("%w: %s", errUnknownSession, id)
	}
	ls.lastUsed = s.now()
	return id, ls.nav, nil
}

// expireSessions drops sessions idle for longer than the daemon expiration.
// Clients that go away without deleting their session are cleaned up here.
func (s *Server) expireSessions() {
	cutoff := s.now().Add(-s.expiration)
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	for id, ls := range s.sessions {
		if ls.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			slog.Info("daemon: session expired", "session", id, "idle", s.now().Sub(ls.lastUsed))
		}
	}
}

// respond renders the session's view after a successful operation.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, id string, n *nav.Navigator) {
	v, err := n.View(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rpc.SessionResponse{ID: id, View: v})
}

// withSession resolves the session and applies op before responding.
func (s *Server) withSession(op func(r *http.Request, n *nav.Navigator) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, n, err := s.session(r)
		if err != nil {
			writeFailure(w, err)
			return
		}
		if err := op(r, n); err != nil {
			writeFailure(w, err)
			return
		}
		s.respond(w, r, id, n)
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	n := nav.New(s.store)
	v, err := n.View(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}

	id := uuid.NewString()
	s.sessionsMu.Lock()
	s.sessions[id] = &liveSession{nav: n, lastUsed: s.now()}
	s.sessionsMu.Unlock()

	writeJSON(w, http.StatusCreated, rpc.SessionResponse{ID: id, View: v})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(func(*http.Request, *nav.Navigator) error { return nil })(w, r)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, _, err := s.session(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.sessionsMu.Lock()
	delete(s.sessions, id)
	s.sessionsMu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSelectChild(w http.ResponseWriter, r *http.Request) {
	var req rpc.SelectChildRequest
	if !decode(w, r, &req) {
		return
	}
	s.withSession(func(r *http.Request, n *nav.Navigator) error {
		if req.Index != nil {
			return n.SelectChildAt(r.Context(), req.Level, *req.Index)
		}
		return n.SelectChildNamed(r.Context(), req.Level, req.Name)
	})(w, r)
}

func (s *Server) handleSelectBreadcrumb(w http.ResponseWriter, r *http.Request) {
	var req rpc.IndexRequest
	if !decode(w, r, &req) {
		return
	}
	s.withSession(func(_ *http.Request, n *nav.Navigator) error {
		return n.SelectBreadcrumb(req.Index)
	})(w, r)
}

func (s *Server) handleSelectFault(w http.ResponseWriter, r *http.Request) {
	var req rpc.IndexRequest
	if !decode(w, r, &req) {
		return
	}
	s.withSession(func(_ *http.Request, n *nav.Navigator) error {
		return n.SelectFault(req.Index)
	})(w, r)
}

func (s *Server) handleSessionSearch(w http.ResponseWriter, r *http.Request) {
	var req rpc.QueryRequest
	if !decode(w, r, &req) {
		return
	}
	s.withSession(func(r *http.Request, n *nav.Navigator) error {
		return n.SubmitSearch(r.Context(), req.Query)
	})(w, r)
}

func (s *Server) handleSelectResult(w http.ResponseWriter, r *http.Request) {
	var req rpc.IndexRequest
	if !decode(w, r, &req) {
		return
	}
	s.withSession(func(_ *http.Request, n *nav.Navigator) error {
		return n.SelectSearchResult(req.Index)
	})(w, r)
}

func (s *Server) handleResetSearch(w http.ResponseWriter, r *http.Request) {
	s.withSession(func(_ *http.Request, n *nav.Navigator) error {
		n.ResetSearch()
		return nil
	})(w, r)
}

// handleDetail renders the session's fault panel as Markdown, or as HTML
// with format=html.
func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	_, n, err := s.session(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	v, err := n.View(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}

	out := md.View(v)
	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(out))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(md.ToHTML(out))
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}
