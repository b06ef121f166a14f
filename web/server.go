// Package web serves the dashboard endpoints: the websocket event stream,
// the loop status and the runtime configuration.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/T-REX-XP/MMM-Gestures-Modern/config"
	"github.com/T-REX-XP/MMM-Gestures-Modern/poll"
	"github.com/T-REX-XP/MMM-Gestures-Modern/util"
)

const readHeaderTimeout = 5 * time.Second

type Server struct {
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// New builds the server. events is mounted at /ws, the status snapshot at
// /api/status and the config handler for cfile at /api/config.
func New(listen string, events http.Handler, status *util.Latest[poll.Status], cfile string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", events)
	mux.HandleFunc("GET /api/status", statusHandler(status))
	mux.HandleFunc("/api/config", config.ConfigHandler(cfile))

	return &Server{
		srv: &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		done: make(chan struct{}),
	}
}

func statusHandler(status *util.Latest[poll.Status]) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		if err := enc.Encode(status.Value()); err != nil {
			slog.Error("Failed to encode status", "error", err)
		}
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	s.listener = l
	slog.Info("Web server listening", "addr", l.Addr().String())

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting requests and waits for running ones until ctx
// expires. Hijacked websocket connections are closed by the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return err
}
