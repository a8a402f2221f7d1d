package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vk/buildgrid/internal/ctxlog"
)

// StaticServer serves a directory over HTTP with a /health endpoint.
type StaticServer struct {
	Root string
	Port int

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
}

// healthHandler answers liveness probes from the end-to-end runners.
func (s *StaticServer) healthHandler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctxlog.FromContext(ctx).Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	}
}

// Start binds the port and serves in the background. The port is bound
// before Start returns, so dependents can connect immediately.
func (s *StaticServer) Start(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return errors.New("static server is already running")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler(ctx))
	mux.Handle("/", http.FileServer(http.Dir(s.Root)))

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.Port, err)
	}
	s.addr = ln.Addr().String()
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.httpServer = srv

	go func() {
		logger.Info("🩺 Static server starting", "address", "http://"+s.addr, "root", s.Root)
		// Serve returns ErrServerClosed on graceful shutdown.
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Static server failed unexpectedly", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address while the server runs.
func (s *StaticServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Shutdown stops the server gracefully. It is a no-op when not running.
func (s *StaticServer) Shutdown(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.addr = ""
	s.mu.Unlock()

	if srv == nil {
		logger.Debug("Static server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down static server...")
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Static server shutdown failed", "error", err)
		return err
	}
	return nil
}
