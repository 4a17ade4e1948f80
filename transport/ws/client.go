package ws

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zylisp/calc/protocol"
)

// Client is a WebSocket calculator client.
type Client struct {
	format  string
	session string
	conn    *websocket.Conn
	mu      sync.Mutex
	msgID   uint64
}

// NewClient creates a client that sends frames in the given codec format.
// "msgpack" selects binary frames; anything else sends JSON text frames.
func NewClient(codecFormat string) *Client {
	if codecFormat == "" {
		codecFormat = "json"
	}
	return &Client{format: codecFormat}
}

// Connect dials a server. addr may be a full ws:// URL or a bare host:port,
// in which case the /repl path is used.
func (c *Client) Connect(ctx context.Context, addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := protocol.CheckFormat(c.format); err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, URL(addr), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to ws server: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)
	c.conn = conn
	return nil
}

// URL normalizes addr to a WebSocket endpoint URL.
func URL(addr string) string {
	if !strings.HasPrefix(addr, "ws://") && !strings.HasPrefix(addr, "wss://") {
		addr = "ws://" + addr
	}
	scheme := strings.Index(addr, "://") + 3
	if !strings.Contains(addr[scheme:], "/") {
		addr += "/repl"
	}
	return addr
}

// SetSession selects the calculator session requests apply to.
func (c *Client) SetSession(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
}

// Send writes req as one frame and reads the response frame.
func (c *Client) Send(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	c.msgID++
	if req.ID == "" {
		req.ID = strconv.FormatUint(c.msgID, 10)
	}
	if req.Session == "" {
		req.Session = c.session
	}

	data, err := protocol.Marshal(c.format, req)
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	frameType := websocket.TextMessage
	if c.format == "msgpack" {
		frameType = websocket.BinaryMessage
	}
	if err := c.conn.WriteMessage(frameType, data); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	_, out, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to receive response: %w", err)
	}
	resp := &protocol.Message{}
	if err := protocol.Unmarshal(c.format, out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Eval evaluates code without touching any session buffer or history.
func (c *Client) Eval(ctx context.Context, code string) (*protocol.Message, error) {
	return c.Send(ctx, &protocol.Message{Op: protocol.OpEval, Code: code})
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
