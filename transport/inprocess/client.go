package inprocess

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/zylisp/calc/protocol"
)

// Client implements an in-process calculator client. Each client edits
// its own calculator session unless one is set with SetSession.
type Client struct {
	server    *Server
	responses chan *protocol.Message
	clientID  string
	session   string
	mu        sync.Mutex
	msgID     uint64
}

// NewClient creates a new in-process client.
func NewClient() *Client {
	id := uuid.NewString()
	return &Client{
		clientID: id,
		session:  id,
	}
}

// Connect connects the client to an in-process server.
func (c *Client) Connect(ctx context.Context, server *Server) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if server == nil {
		return fmt.Errorf("in-process client requires a server")
	}
	c.server = server
	c.responses = server.registerClient(c.clientID)
	return nil
}

// SetSession selects the calculator session requests apply to.
func (c *Client) SetSession(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
}

// Session returns the calculator session requests apply to.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Send delivers req and waits for the matching response. ID and Session
// are filled in when empty.
func (c *Client) Send(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.server == nil {
		return nil, fmt.Errorf("not connected")
	}
	c.msgID++
	if req.ID == "" {
		req.ID = strconv.FormatUint(c.msgID, 10)
	}
	if req.Session == "" {
		req.Session = c.session
	}

	if err := c.server.sendRequest(ctx, c.clientID, req); err != nil {
		return nil, err
	}

	for {
		select {
		case resp, ok := <-c.responses:
			if !ok {
				return nil, ErrServerStopped
			}
			if resp.ID != req.ID {
				// late response to a request whose caller gave up
				continue
			}
			return resp, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Eval evaluates code without changing the session buffer or history.
func (c *Client) Eval(ctx context.Context, code string) (*protocol.Message, error) {
	return c.Send(ctx, &protocol.Message{Op: protocol.OpEval, Code: code})
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.server != nil {
		c.server.unregisterClient(c.clientID)
		c.server = nil
	}
	return nil
}
