package visualization

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nvandessel/epigraph/internal/epidemic"
)

// Server serves the latest observed snapshot of a running simulation. It is
// itself an observer: every Observe call replaces the snapshot it serves.
type Server struct {
	mu         sync.Mutex
	snapshot   *epidemic.Snapshot
	handlers   map[string]http.Handler
	httpServer *http.Server
	addr       string
}

// NewServer creates a server with no snapshot yet.
func NewServer() *Server {
	return &Server{handlers: make(map[string]http.Handler)}
}

// Handle mounts an extra handler, e.g. a Prometheus /metrics endpoint.
// It must be called before ListenAndServe.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[pattern] = h
}

// Observe stores snap as the snapshot to serve.
func (s *Server) Observe(_ context.Context, snap epidemic.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &snap
	return nil
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ListenAndServe listens on addr ("localhost:0" lets the OS pick a port)
// and blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleTitle)
	mux.HandleFunc("/graph.dot", s.handleDOT)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	for pattern, h := range s.handlers {
		mux.Handle(pattern, h)
	}
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	srv := s.httpServer
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) current(w http.ResponseWriter) (epidemic.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return epidemic.Snapshot{}, false
	}
	return *s.snapshot, true
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	snap, ok := s.current(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, Title(snap))
}

func (s *Server) handleDOT(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	fmt.Fprint(w, RenderDOT(snap))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RenderJSON(snap))
}
