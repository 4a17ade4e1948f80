package inprocess

import (
	"context"
	"errors"
	"sync"

	"github.com/zylisp/calc/operations"
	"github.com/zylisp/calc/protocol"
)

// ErrServerStopped is returned when a request reaches a stopped server.
var ErrServerStopped = errors.New("server stopped")

// request pairs a message with the client that sent it.
type request struct {
	clientID string
	msg      *protocol.Message
}

// Server implements an in-process calculator server using Go channels for
// message passing. Requests are handled one at a time, in arrival order.
type Server struct {
	handler  *operations.Handler
	requests chan request
	clients  map[string]chan *protocol.Message // clientID -> response channel
	mu       sync.RWMutex
	started  chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a new in-process server dispatching to handler.
func NewServer(handler *operations.Handler) *Server {
	return &Server{
		handler:  handler,
		requests: make(chan request, 100),
		clients:  make(map[string]chan *protocol.Message),
		started:  make(chan struct{}),
	}
}

// Start begins processing requests.
// It blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.processRequests()
	close(s.started)

	<-s.ctx.Done()
	return s.ctx.Err()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	for _, ch := range s.clients {
		close(ch)
	}
	s.clients = make(map[string]chan *protocol.Message)
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

// Addr returns the address (always "in-process" for this transport).
func (s *Server) Addr() string {
	return "in-process"
}

// Handler returns the operation handler the server dispatches to.
func (s *Server) Handler() *operations.Handler {
	return s.handler
}

func (s *Server) processRequests() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.requests:
			resp := s.handler.Handle(req.msg)

			s.mu.RLock()
			respChan, exists := s.clients[req.clientID]
			if exists {
				select {
				case respChan <- resp:
				default:
					// client is not reading; drop rather than stall others
				}
			}
			s.mu.RUnlock()
		}
	}
}

// registerClient registers a new client and returns its response channel.
func (s *Server) registerClient(clientID string) chan *protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	respChan := make(chan *protocol.Message, 16)
	s.clients[clientID] = respChan
	return respChan
}

func (s *Server) unregisterClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, exists := s.clients[clientID]; exists {
		close(ch)
		delete(s.clients, clientID)
	}
}

// sendRequest queues a request. It waits for Start so that clients may
// connect before the server goroutine is running.
func (s *Server) sendRequest(ctx context.Context, clientID string, msg *protocol.Message) error {
	select {
	case <-s.started:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case s.requests <- request{clientID: clientID, msg: msg}:
		return nil
	case <-s.ctx.Done():
		return ErrServerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
