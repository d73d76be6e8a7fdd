package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jcdickinson/faultbook/internal/kb"
	"github.com/jcdickinson/faultbook/internal/nav"
	"github.com/jcdickinson/faultbook/internal/rpc"
)

// Backend owns browsing sessions. *daemon.Client is the usual implementation;
// Local runs them in process.
type Backend interface {
	CreateSession(ctx context.Context) (*rpc.SessionResponse, error)
	DeleteSession(ctx context.Context, id string) error
	SelectChild(ctx context.Context, id string, req rpc.SelectChildRequest) (*rpc.SessionResponse, error)
	SelectBreadcrumb(ctx context.Context, id string, index int) (*rpc.SessionResponse, error)
	SelectFault(ctx context.Context, id string, index int) (*rpc.SessionResponse, error)
	SubmitSearch(ctx context.Context, id, query string) (*rpc.SessionResponse, error)
	SelectSearchResult(ctx context.Context, id string, index int) (*rpc.SessionResponse, error)
	ResetSearch(ctx context.Context, id string) (*rpc.SessionResponse, error)
}

var errNoSession = errors.New("no such session")

// Local serves sessions straight from a document store, without a daemon.
type Local struct {
	store *kb.Store

	mu       sync.Mutex
	sessions map[string]*nav.Navigator
}

func NewLocal(store *kb.Store) *Local {
	return &Local{store: store, sessions: make(map[string]*nav.Navigator)}
}

func (l *Local) CreateSession(ctx context.Context) (*rpc.SessionResponse, error) {
	n := nav.New(l.store)
	v, err := n.View(ctx)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	l.mu.Lock()
	l.sessions[id] = n
	l.mu.Unlock()
	return &rpc.SessionResponse{ID: id, View: v}, nil
}

func (l *Local) DeleteSession(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", errNoSession, id)
	}
	delete(l.sessions, id)
	return nil
}

func (l *Local) with(ctx context.Context, id string, op func(n *nav.Navigator) error) (*rpc.SessionResponse, error) {
	l.mu.Lock()
	n, ok := l.sessions[id]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoSession, id)
	}
	if err := op(n); err != nil {
		return nil, err
	}
	v, err := n.View(ctx)
	if err != nil {
		return nil, err
	}
	return &rpc.SessionResponse{ID: id, View: v}, nil
}

func (l *Local) SelectChild(ctx context.Context, id string, req rpc.SelectChildRequest) (*rpc.SessionResponse, error) {
	return l.with(ctx, id, func(n *nav.Navigator) error {
		if req.Index != nil {
			return n.SelectChildAt(ctx, req.Level, *req.Index)
		}
		return n.SelectChildNamed(ctx, req.Level, req.Name)
	})
}

func (l *Local) SelectBreadcrumb(ctx context.Context, id string, index int) (*rpc.SessionResponse, error) {
	return l.with(ctx, id, func(n *nav.Navigator) error { return n.SelectBreadcrumb(index) })
}

func (l *Local) SelectFault(ctx context.Context, id string, index int) (*rpc.SessionResponse, error) {
	return l.with(ctx, id, func(n *nav.Navigator) error { return n.SelectFault(index) })
}

func (l *Local) SubmitSearch(ctx context.Context, id, query string) (*rpc.SessionResponse, error) {
	return l.with(ctx, id, func(n *nav.Navigator) error { return n.SubmitSearch(ctx, query) })
}

func (l *Local) SelectSearchResult(ctx context.Context, id string, index int) (*rpc.SessionResponse, error) {
	return l.with(ctx, id, func(n *nav.Navigator) error { return n.SelectSearchResult(index) })
}

func (l *Local) ResetSearch(ctx context.Context, id string) (*rpc.SessionResponse, error) {
	return l.with(ctx, id, func(n *nav.Navigator) error {
		n.ResetSearch()
		return nil
	})
}
