// Package server runs a calculator session in-process without any
// transport. It backs the one-shot CLI commands.
package server

import (
	"errors"
	"fmt"

	"github.com/zylisp/calc/calculator"
	"github.com/zylisp/calc/history"
)

// ErrEmpty is returned by Eval for blank input.
var ErrEmpty = errors.New("nothing to evaluate")

// Server represents a direct calculator server
type Server struct {
	session *calculator.Session
}

// NewServer creates a server committing to ledger. A nil ledger keeps
// history in memory.
func NewServer(ledger *history.Ledger, opts ...calculator.Option) *Server {
	return &Server{session: calculator.New(ledger, opts...)}
}

// Eval evaluates an expression, records it in history and returns the
// formatted result.
func (s *Server) Eval(source string) (string, error) {
	s.session.SetText(source)
	res, ok := s.session.Evaluate()
	if !ok {
		return "", ErrEmpty
	}
	if res.Err != nil {
		// leave the buffer usable for the next call
		s.session.Clear()
		return "", fmt.Errorf("eval error: %w", res.Err)
	}
	return res.Text, nil
}

// Session returns the underlying calculator session.
func (s *Server) Session() *calculator.Session {
	return s.session
}

// Reset clears the buffer and the history
func (s *Server) Reset() {
	s.session.Clear()
	s.session.ClearHistory()
}
