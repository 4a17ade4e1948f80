// Package calc exposes the calculator engine over pluggable transports.
//
// A Server hosts calculator sessions sharing one history ledger; a Client
// talks to it over in-process channels, TCP, a Unix socket or WebSocket.
// Evaluation failures are returned as data in the response message, never
// as Go errors.
package calc

import (
	"context"
	"fmt"
	"strings"

	"github.com/zylisp/calc/operations"
	"github.com/zylisp/calc/protocol"
	"github.com/zylisp/calc/transport/inprocess"
	"github.com/zylisp/calc/transport/tcp"
	"github.com/zylisp/calc/transport/unix"
	"github.com/zylisp/calc/transport/ws"
)

// Transport names accepted by ServerConfig.
const (
	TransportInProcess = "in-process"
	TransportTCP       = "tcp"
	TransportUnix      = "unix"
	TransportWS        = "ws"
)

// Server defines the calculator server interface.
type Server interface {
	// Start begins listening for connections.
	// It blocks until the context is cancelled or an error occurs.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the server.
	// It waits for active connections to complete within the context deadline.
	Stop(ctx context.Context) error

	// Addr returns the address the server is listening on.
	// The format depends on the transport type.
	Addr() string
}

// Client defines the calculator client interface.
type Client interface {
	// Connect establishes a connection to a server at the given address.
	// The transport is auto-detected from the address format.
	Connect(ctx context.Context, addr string) error

	// Send delivers an arbitrary request and returns the response.
	Send(ctx context.Context, req *protocol.Message) (*protocol.Message, error)

	// Eval evaluates an expression without touching any session.
	// The returned error is for protocol/transport errors only.
	Eval(ctx context.Context, code string) (*protocol.Message, error)

	// Close closes the client connection.
	Close() error
}

// ServerConfig provides configuration for creating a server.
type ServerConfig struct {
	// Transport is one of "in-process", "tcp", "unix" or "ws".
	Transport string

	// Addr is the address to bind to.
	//   - in-process: ignored
	//   - unix: path to socket file (e.g., "/tmp/calc.sock")
	//   - tcp, ws: host:port (e.g., "localhost:5555" or ":5555")
	Addr string

	// Codec is "json" or "msgpack". Stream transports use it for every
	// connection; WebSocket picks the codec per frame.
	Codec string

	// Handler serves requests. A nil Handler gets a fresh in-memory ledger.
	Handler *operations.Handler
}

// NewServer creates a new server with the given configuration.
func NewServer(config ServerConfig) (Server, error) {
	if config.Codec == "" {
		config.Codec = "json"
	}
	if err := protocol.CheckFormat(config.Codec); err != nil {
		return nil, err
	}
	if config.Handler == nil {
		config.Handler = operations.NewHandler(nil)
	}

	switch config.Transport {
	case TransportInProcess, "":
		return inprocess.NewServer(config.Handler), nil
	case TransportUnix:
		if config.Addr == "" {
			return nil, fmt.Errorf("unix transport requires Addr")
		}
		return unix.NewServer(config.Addr, config.Codec, config.Handler), nil
	case TransportTCP:
		if config.Addr == "" {
			return nil, fmt.Errorf("tcp transport requires Addr")
		}
		return tcp.NewServer(config.Addr, config.Codec, config.Handler), nil
	case TransportWS:
		if config.Addr == "" {
			return nil, fmt.Errorf("ws transport requires Addr")
		}
		return ws.NewServer(config.Addr, config.Handler), nil
	default:
		return nil, fmt.Errorf("unknown transport: %s", config.Transport)
	}
}

// transportClient is what every transport's client provides once connected.
type transportClient interface {
	Send(ctx context.Context, req *protocol.Message) (*protocol.Message, error)
	Eval(ctx context.Context, code string) (*protocol.Message, error)
	SetSession(session string)
	Close() error
}

// NewClient creates a client using the JSON codec.
// The transport will be auto-detected when Connect is called.
func NewClient() *UniversalClient {
	return NewClientWithCodec("json")
}

// NewClientWithCodec creates a client using the given codec.
func NewClientWithCodec(codec string) *UniversalClient {
	return &UniversalClient{codec: codec}
}

// UniversalClient is a client that auto-detects the transport from the address.
type UniversalClient struct {
	codec     string
	session   string
	transport string
	impl      transportClient
}

// Connect establishes a connection to a server, auto-detecting the transport.
func (c *UniversalClient) Connect(ctx context.Context, addr string) error {
	transport, target := detectTransport(addr)

	var impl transportClient
	switch transport {
	case TransportInProcess:
		return fmt.Errorf("in-process transport requires ConnectInProcess")
	case TransportUnix:
		client := unix.NewClient(c.codec)
		if err := client.Connect(ctx, target); err != nil {
			return err
		}
		impl = client
	case TransportTCP:
		client := tcp.NewClient(c.codec)
		if err := client.Connect(ctx, target); err != nil {
			return err
		}
		impl = client
	case TransportWS:
		client := ws.NewClient(c.codec)
		if err := client.Connect(ctx, target); err != nil {
			return err
		}
		impl = client
	default:
		return fmt.Errorf("unknown transport: %s", transport)
	}
	c.attach(transport, impl)
	return nil
}

// ConnectInProcess connects to a server created with the in-process
// transport.
func (c *UniversalClient) ConnectInProcess(ctx context.Context, server Server) error {
	s, ok := server.(*inprocess.Server)
	if !ok {
		return fmt.Errorf("not an in-process server: %T", server)
	}
	client := inprocess.NewClient()
	if err := client.Connect(ctx, s); err != nil {
		return err
	}
	c.attach(TransportInProcess, client)
	return nil
}

func (c *UniversalClient) attach(transport string, impl transportClient) {
	if c.session != "" {
		impl.SetSession(c.session)
	}
	c.transport = transport
	c.impl = impl
}

// Transport returns the detected transport, or "" before Connect.
func (c *UniversalClient) Transport() string {
	return c.transport
}

// SetSession selects the calculator session edits apply to.
func (c *UniversalClient) SetSession(session string) {
	c.session = session
	if c.impl != nil {
		c.impl.SetSession(session)
	}
}

// Send delivers an arbitrary request.
func (c *UniversalClient) Send(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	if c.impl == nil {
		return nil, fmt.Errorf("not connected")
	}
	return c.impl.Send(ctx, req)
}

// Eval sends code to be evaluated.
func (c *UniversalClient) Eval(ctx context.Context, code string) (*protocol.Message, error) {
	if c.impl == nil {
		return nil, fmt.Errorf("not connected")
	}
	return c.impl.Eval(ctx, code)
}

// Close closes the client connection.
func (c *UniversalClient) Close() error {
	if c.impl == nil {
		return nil
	}
	err := c.impl.Close()
	c.impl = nil
	c.transport = ""
	return err
}

// detectTransport detects the transport type from an address string and
// returns the address with any scheme prefix the transport does not want.
func detectTransport(addr string) (transport, target string) {
	switch {
	case strings.HasPrefix(addr, "unix://"):
		return TransportUnix, strings.TrimPrefix(addr, "unix://")
	case strings.HasPrefix(addr, "tcp://"):
		return TransportTCP, strings.TrimPrefix(addr, "tcp://")
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		return TransportWS, addr
	case addr == "" || addr == TransportInProcess:
		return TransportInProcess, ""
	case addr[0] == '/' || addr[0] == '.':
		return TransportUnix, addr
	default:
		return TransportTCP, addr
	}
}
