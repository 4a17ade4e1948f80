// Package unix serves the calculator protocol over a Unix domain socket.
// It reuses the stream server from package tcp on the "unix" network.
package unix

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/zylisp/calc/operations"
	"github.com/zylisp/calc/transport/tcp"
)

// Server is a calculator server bound to a socket file.
type Server struct {
	*tcp.Server
	path string
}

// NewServer creates a Unix socket server at path.
func NewServer(path string, codec string, handler *operations.Handler) *Server {
	return &Server{
		Server: tcp.NewNetworkServer("unix", path, codec, handler),
		path:   path,
	}
}

// Start removes a stale socket file left by an earlier run, then serves
// until ctx is cancelled. The socket file is removed on return.
func (s *Server) Start(ctx context.Context) error {
	if err := removeStale(s.path); err != nil {
		return err
	}
	defer os.Remove(s.path)
	return s.Server.Start(ctx)
}

func removeStale(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}

// Client is a calculator client for a Unix socket server.
type Client struct {
	*tcp.Client
}

// NewClient creates a Unix socket client.
func NewClient(codecFormat string) *Client {
	return &Client{Client: tcp.NewNetworkClient("unix", codecFormat)}
}
