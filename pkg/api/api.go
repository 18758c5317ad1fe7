// Package api serves the live status of a running sweep as JSON over HTTP on
// a Unix domain socket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/lc/ipsniper/internal/buildinfo"
	"github.com/lc/ipsniper/internal/engine"
	"github.com/lc/ipsniper/internal/log"
	"github.com/lc/ipsniper/internal/socket"
)

// StatusPath is the route of the status endpoint.
const StatusPath = "/v1/status"

// StatusSource provides sweep snapshots. *engine.Engine satisfies it.
type StatusSource interface {
	Snapshot() engine.Stats
}

// StatusResponse is the body returned by StatusPath.
type StatusResponse struct {
	engine.Stats
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// Server answers status requests for one sweep.
type Server struct {
	src StatusSource
	srv *http.Server
}

// New returns a Server reporting on src.
func New(src StatusSource) *Server {
	s := &Server{src: src}
	mux := http.NewServeMux()
	mux.HandleFunc(StatusPath, s.handleStatus)
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe listens on the socket at path and serves until Shutdown.
func (s *Server) ListenAndServe(path string) error {
	ln, err := socket.Listen(path)
	if err != nil {
		return fmt.Errorf("status socket %s: %w", path, err)
	}
	log.Infof("api: serving status on %s", path)
	return s.Serve(ln)
}

// Serve serves on ln. It returns nil once Shutdown has been called.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := StatusResponse{
		Stats:   s.src.Snapshot(),
		Version: buildinfo.Version,
		Commit:  buildinfo.Commit,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warnf("api: encoding status: %v", err)
	}
}
