package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/zylisp/calc/logger"
	"github.com/zylisp/calc/operations"
	"github.com/zylisp/calc/protocol"
)

// Server implements a stream calculator server. It listens on TCP by
// default; NewNetworkServer selects another stream network such as "unix".
type Server struct {
	network  string
	addr     string
	codec    string
	handler  *operations.Handler
	log      *logger.Logger
	listener net.Listener
	conns    map[net.Conn]bool
	ready    chan struct{}
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a new TCP calculator server.
func NewServer(addr string, codec string, handler *operations.Handler) *Server {
	return NewNetworkServer("tcp", addr, codec, handler)
}

// NewNetworkServer creates a calculator server on the given stream network.
func NewNetworkServer(network, addr, codec string, handler *operations.Handler) *Server {
	if handler == nil {
		handler = operations.NewHandler(nil)
	}
	return &Server{
		network: network,
		addr:    addr,
		codec:   codec,
		handler: handler,
		log:     logger.Global().WithPrefix(network),
		conns:   make(map[net.Conn]bool),
		ready:   make(chan struct{}),
	}
}

// Start begins listening for connections and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := protocol.CheckFormat(s.codec); err != nil {
		return err
	}

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	listener, err := net.Listen(s.network, s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.network, err)
	}
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	s.log.Info("listening on %s (%s)", listener.Addr(), s.codec)

	s.wg.Add(1)
	go s.acceptLoop(listener)

	<-s.ctx.Done()
	return s.ctx.Err()
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[net.Conn]bool)
	s.mu.Unlock()

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

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept: %v", err)
			continue
		}

		s.mu.Lock()
		s.conns[conn] = true
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection processes requests from a single connection until the
// peer hangs up or sends something undecodable.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	codec, err := protocol.NewCodec(s.codec, conn)
	if err != nil {
		s.log.Error("codec: %v", err)
		return
	}

	for {
		req := &protocol.Message{}
		if err := codec.Decode(req); err != nil {
			s.log.Debug("connection %s closed: %v", conn.RemoteAddr(), err)
			return
		}

		resp := s.handler.Handle(req)

		if err := codec.Encode(resp); err != nil {
			s.log.Warn("encode response: %v", err)
			return
		}
	}
}
