package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/zylisp/calc/protocol"
)

// Client implements a stream calculator client.
type Client struct {
	network string
	format  string
	session string
	conn    net.Conn
	codec   protocol.Codec
	mu      sync.Mutex
	msgID   uint64
}

// NewClient creates a new TCP client using the given codec format.
func NewClient(codecFormat string) *Client {
	return NewNetworkClient("tcp", codecFormat)
}

// NewNetworkClient creates a client for another stream network.
func NewNetworkClient(network, codecFormat string) *Client {
	return &Client{network: network, format: codecFormat}
}

// Connect establishes a connection to a server.
func (c *Client) Connect(ctx context.Context, addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, c.network, addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s server: %w", c.network, err)
	}

	codec, err := protocol.NewCodec(c.format, conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create codec: %w", err)
	}
	c.conn = conn
	c.codec = codec
	return nil
}

// SetSession selects the calculator session requests apply to. Requests
// carrying their own Session are left alone.
func (c *Client) SetSession(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
}

// Send writes req and reads the response. The exchange is synchronous, so
// requests on one client are serialized.
func (c *Client) Send(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.codec == nil {
		return nil, fmt.Errorf("not connected")
	}

	c.msgID++
	if req.ID == "" {
		req.ID = strconv.FormatUint(c.msgID, 10)
	}
	if req.Session == "" {
		req.Session = c.session
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	if err := c.codec.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	resp := &protocol.Message{}
	if err := c.codec.Decode(resp); err != nil {
		return nil, fmt.Errorf("failed to receive response: %w", err)
	}
	return resp, nil
}

// Eval evaluates code without touching any session buffer or history.
func (c *Client) Eval(ctx context.Context, code string) (*protocol.Message, error) {
	return c.Send(ctx, &protocol.Message{Op: protocol.OpEval, Code: code})
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.codec != nil {
		c.codec.Close()
		c.codec = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}
