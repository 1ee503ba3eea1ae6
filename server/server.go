// Package server exposes the completion engine as a language server, over
// stdio for a single editor or over WebSocket for any number of them.
package server

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	glspserver "github.com/tliron/glsp/server"
	"go.uber.org/zap"

	"github.com/teranos/texsense/am"
	"github.com/teranos/texsense/errors"
	"github.com/teranos/texsense/logger"
)

// ShutdownTimeout bounds how long ListenAndServe waits for open connections.
const ShutdownTimeout = 5 * time.Second

// stdioCloseWait bounds how long RunStdio waits for the reader to stop.
const stdioCloseWait = time.Second

// LSPPath is where the WebSocket endpoint is mounted.
const LSPPath = "/lsp"

// Server creates one Session per editor connection.
type Server struct {
	gate      *am.Gate
	resources fs.FS
	logger    *zap.SugaredLogger
	debug     bool

	mu       sync.Mutex
	sessions map[*Session]io.Closer // transport, nil for stdio
	wg       sync.WaitGroup
}

// New creates a server. resources holds the static completion data.
func New(gate *am.Gate, resources fs.FS, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		gate:      gate,
		resources: resources,
		logger:    log,
		sessions:  make(map[*Session]io.Closer),
	}
}

// SetDebug enables JSON-RPC message tracing in the protocol layer.
func (s *Server) SetDebug(debug bool) {
	s.debug = debug
}

func (s *Server) newSession(ctx context.Context, transport io.Closer, log *zap.SugaredLogger) *Session {
	session := NewSession(ctx, s.gate, s.resources, log)
	s.mu.Lock()
	s.sessions[session] = transport
	s.mu.Unlock()
	return session
}

func (s *Server) endSession(session *Session) {
	session.Close()
	s.mu.Lock()
	delete(s.sessions, session)
	s.mu.Unlock()
}

// Sessions reports the number of connected editors.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunStdio serves a single editor on stdin/stdout until the stream closes
// or ctx is done. On ctx done the stream is closed, which ends the process's
// stdio, so callers should return right after.
func (s *Server) RunStdio(ctx context.Context) error {
	session := s.newSession(ctx, nil, s.logger)
	defer s.endSession(session)

	s.logger.Infow("Serving LSP over stdio")
	conn := glspserver.NewServer(session.Handler(), ServerName, s.debug).GetStdio()
	select {
	case <-conn.DisconnectNotify():
		s.logger.Infow("LSP stdio stream closed")
	case <-ctx.Done():
		s.logger.Infow("Stopping LSP stdio server")
		if err := conn.Close(); err != nil {
			s.logger.Debugw("Closing stdio stream", logger.FieldError, err)
		}
		// A terminal stdin may not unblock on close
		select {
		case <-conn.DisconnectNotify():
		case <-time.After(stdioCloseWait):
		}
	}
	return nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

// checkOrigin accepts clients without an Origin header and browsers on
// localhost only.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// HandleWebSocket upgrades HTTP to WebSocket and serves LSP on it until the
// client disconnects.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.logger.Infow("LSP WebSocket connection request", logger.FieldRemote, r.RemoteAddr)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("Failed to upgrade WebSocket", logger.FieldError, err)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()

	session := s.newSession(context.Background(), conn, s.logger.With(logger.FieldRemote, r.RemoteAddr))
	defer s.endSession(session)

	s.logger.Infow("Serving LSP over WebSocket", logger.FieldRemote, r.RemoteAddr)
	glspserver.NewServer(session.Handler(), ServerName, s.debug).ServeWebSocket(conn)
	s.logger.Infow("LSP WebSocket connection closed", logger.FieldRemote, r.RemoteAddr)
}

// Mux returns the HTTP routes: the LSP endpoint and a health check.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(LSPPath, s.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "ok %d\n", s.Sessions())
	})
	return mux
}

// ListenAndServe serves WebSocket clients on port until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("LSP WebSocket server listening",
			logger.FieldAddress, addr,
			"path", LSPPath,
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "listen on %s", addr)
	case <-ctx.Done():
	}

	s.logger.Infow("Initiating server shutdown")
	s.closeSessions()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("HTTP shutdown timed out", logger.FieldError, err)
	}
	<-errCh

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Infow("All connections closed cleanly")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("Connection shutdown timed out", "timeout", ShutdownTimeout)
	}
	return nil
}

// closeSessions cancels work in every session and closes its transport.
// Hijacked WebSocket connections are not closed by http.Server.Shutdown.
func (s *Server) closeSessions() {
	s.mu.Lock()
	sessions := make(map[*Session]io.Closer, len(s.sessions))
	for session, transport := range s.sessions {
		sessions[session] = transport
	}
	s.mu.Unlock()

	for session, transport := range sessions {
		session.Close()
		if transport != nil {
			transport.Close()
		}
	}
}
