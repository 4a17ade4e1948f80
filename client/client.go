package client

import (
	"github.com/zylisp/calc/history"
	"github.com/zylisp/calc/server"
)

// Client represents a direct calculator client
type Client struct {
	server *server.Server
}

// NewClient creates a new client
func NewClient(srv *server.Server) *Client {
	return &Client{server: srv}
}

// Send sends an expression to the server and returns the result
func (c *Client) Send(expr string) (string, error) {
	return c.server.Eval(expr)
}

// History returns the committed entries, oldest first.
func (c *Client) History() []history.Entry {
	return c.server.Session().Ledger().Entries()
}

// Reset resets the server state
func (c *Client) Reset() {
	c.server.Reset()
}
