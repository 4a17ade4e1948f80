// Package ws serves the calculator protocol over WebSocket. Text frames
// carry JSON messages and binary frames carry MessagePack; each response
// uses the frame type of its request.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/zylisp/calc/logger"
	"github.com/zylisp/calc/operations"
	"github.com/zylisp/calc/protocol"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Server is a WebSocket calculator server.
type Server struct {
	addr     string
	handler  *operations.Handler
	log      *logger.Logger
	router   *httprouter.Router
	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener
	conns    map[*websocket.Conn]bool
	ready    chan struct{}
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewServer creates a WebSocket server that will listen on addr.
func NewServer(addr string, handler *operations.Handler) *Server {
	if handler == nil {
		handler = operations.NewHandler(nil)
	}
	s := &Server{
		addr:    addr,
		handler: handler,
		log:     logger.Global().WithPrefix("ws"),
		router:  httprouter.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[*websocket.Conn]bool),
		ready: make(chan struct{}),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/repl", s.handleRepl)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/history", s.handleHistory)
}

// ServeHTTP lets the server be mounted without Start, e.g. under httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on the configured address and blocks until ctx is
// cancelled or the HTTP server fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on tcp: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.server = &http.Server{Handler: s.router}
	srv := s.server
	s.mu.Unlock()
	close(s.ready)

	s.log.Info("listening on ws://%s/repl", listener.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop shuts down the HTTP server and closes open WebSocket connections.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[*websocket.Conn]bool)
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Handler returns the operations handler serving requests.
func (s *Server) Handler() *operations.Handler {
	return s.handler
}

func (s *Server) handleRepl(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Failed to upgrade WebSocket: %v", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.serveConn(conn, r.URL.Query().Get("session"))
}

// serveConn answers requests on conn until it closes. session, when set,
// is the default calculator session for requests that name none.
func (s *Server) serveConn(conn *websocket.Conn, session string) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	conn.SetReadLimit(maxMessageSize)

	for {
		frameType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("WebSocket read error: %v", err)
			}
			return
		}

		format := formatFor(frameType)
		req := &protocol.Message{}
		var resp *protocol.Message
		if err := protocol.Unmarshal(format, data, req); err != nil {
			resp = &protocol.Message{
				Status:        []string{protocol.StatusError},
				ProtocolError: fmt.Sprintf("malformed %s frame: %v", format, err),
			}
		} else {
			if req.Session == "" {
				req.Session = session
			}
			resp = s.handler.Handle(req)
		}

		out, err := protocol.Marshal(format, resp)
		if err != nil {
			s.log.Error("Failed to marshal response: %v", err)
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(frameType, out); err != nil {
			s.log.Warn("Failed to write message: %v", err)
			return
		}
	}
}

func formatFor(frameType int) string {
	if frameType == websocket.BinaryMessage {
		return "msgpack"
	}
	return "json"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"time":     time.Now().Format(time.RFC3339),
		"sessions": len(s.handler.Sessions()),
	})
}

// handleHistory returns the shared ledger as a JSON array, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.handler.Ledger().Entries()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
