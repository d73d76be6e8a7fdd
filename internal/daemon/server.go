package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/jcdickinson/faultbook/internal/config"
	"github.com/jcdickinson/faultbook/internal/kb"
	"github.com/jcdickinson/faultbook/internal/nav"
)

type Server struct {
	cfg        *config.Config
	store      *kb.Store
	socketPath string
	router     chi.Router
	httpServer *http.Server
	listeners  []net.Listener

	mu         sync.Mutex
	expTimer   *time.Timer
	expiration time.Duration
	// exit terminates the process after an idle timeout or a shutdown request.
	exit func(code int)

	sessionsMu sync.RWMutex
	sessions   map[string]*liveSession
	now        func() time.Time
}

func NewServer(cfg *config.Config, store *kb.Store, socketPath string) *Server {
	expSec := cfg.Daemon.ExpirationSeconds
	if expSec <= 0 {
		expSec = 600
	}

	s := &Server{
		cfg:        cfg,
		store:      store,
		socketPath: socketPath,
		expiration: time.Duration(expSec) * time.Second,
		exit:       os.Exit,
		sessions:   make(map[string]*liveSession),
		now:        time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(slog.Default()))

	r.Post("/shutdown", s.handleShutdown)

	r.Group(func(r chi.Router) {
		r.Use(s.expirationReset)

		r.Get("/status", s.handleStatus)
		r.Post("/search", s.handleSearch)
		r.Post("/show", s.handleShow)
		r.Post("/tree", s.handleTree)
		r.Post("/preload", s.handlePreload)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/detail", s.handleDetail)
			r.Post("/select", s.handleSelectChild)
			r.Post("/breadcrumb", s.handleSelectBreadcrumb)
			r.Post("/fault", s.handleSelectFault)
			r.Post("/search", s.handleSessionSearch)
			r.Post("/result", s.handleSelectResult)
			r.Post("/reset-search", s.handleResetSearch)
		})
	})

	s.router = r
}

func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	listeners := []net.Listener{listener}

	if addr := s.cfg.Daemon.HTTPAddr; addr != "" {
		tcp, err := net.Listen("tcp", addr)
		if err != nil {
			listener.Close()
			return fmt.Errorf("listening on %s: %w", addr, err)
		}
		listeners = append(listeners, tcp)
		slog.Info("daemon: serving HTTP", "addr", tcp.Addr().String())
	}

	httpServer := &http.Server{
		Handler:     s,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listeners = listeners
	s.httpServer = httpServer
	s.expTimer = time.AfterFunc(s.expiration, s.expire)
	s.mu.Unlock()

	slog.Info("daemon: listening", "socket", s.socketPath, "source", s.store.Source().String(), "expiration", s.expiration)

	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		go func() { errCh <- httpServer.Serve(l) }()
	}
	for range listeners {
		if err := <-errCh; err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serving: %w", err)
		}
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	var errs []error

	s.mu.Lock()
	if s.expTimer != nil {
		s.expTimer.Stop()
	}
	httpServer, listeners := s.httpServer, s.listeners
	s.mu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("daemon: shutdown error", "error", err)
			errs = append(errs, err)
		}
	}
	for _, l := range listeners {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Error("daemon: listener close error", "error", err)
			errs = append(errs, err)
		}
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		slog.Error("daemon: socket remove error", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) expire() {
	slog.Info("daemon: expiring due to inactivity")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	s.exit(0)
}

func (s *Server) resetExpiration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer.Reset(s.expiration)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps domain errors to HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	var loadErr *kb.LoadError
	switch {
	case errors.As(err, &loadErr):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, errUnknownSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, nav.ErrInvalidLevel), errors.Is(err, nav.ErrNotAChild), errors.Is(err, nav.ErrInvalidIndex):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
