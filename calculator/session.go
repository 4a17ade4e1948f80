// Package calculator ties the input buffer, the evaluator and the history
// ledger into an editing session.
//
// Every edit recomputes a live preview. Evaluate commits: the result (or
// the error marker) is appended to the ledger and replaces the buffer.
package calculator

import (
	"errors"
	"strings"
	"sync"

	"github.com/zylisp/calc/buffer"
	"github.com/zylisp/calc/evaluator"
	"github.com/zylisp/calc/history"
)

// DefaultErrorMarker replaces the buffer contents when an evaluation fails.
const DefaultErrorMarker = "Error"

// ErrNoSuchEntry is returned by Recall for an index outside the ledger.
var ErrNoSuchEntry = errors.New("no such history entry")

// State is what a front end renders after each command.
type State struct {
	Text       string `json:"text"`
	Cursor     int    `json:"cursor"`
	Preview    string `json:"preview,omitempty"`
	HasPreview bool   `json:"has_preview"`
}

// Result describes a committed evaluation.
type Result struct {
	Expression string
	Value      float64
	// Text is the formatted value, or the error marker on failure.
	Text  string
	Err   error
	Entry history.Entry
}

// Option configures a Session.
type Option func(*Session)

// WithErrorMarker sets the text shown in the buffer after a failed
// evaluation.
func WithErrorMarker(marker string) Option {
	return func(s *Session) {
		if marker != "" {
			s.marker = marker
		}
	}
}

// Session is a single user's calculator. All methods are safe for
// concurrent use; commands are applied one at a time.
type Session struct {
	mu      sync.Mutex
	buf     *buffer.Buffer
	ledger  *history.Ledger
	marker  string
	errored bool
	preview string
	hasPrev bool
}

// New creates a session with an empty buffer writing to ledger. Sessions
// may share a ledger.
func New(ledger *history.Ledger, opts ...Option) *Session {
	if ledger == nil {
		ledger = history.New(nil)
	}
	s := &Session{
		buf:    buffer.New(),
		ledger: ledger,
		marker: DefaultErrorMarker,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ledger returns the history ledger the session commits to.
func (s *Session) Ledger() *history.Ledger {
	return s.ledger
}

// ErrorMarker returns the text used for failed evaluations.
func (s *Session) ErrorMarker() string {
	return s.marker
}

// State returns the current buffer and preview.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() State {
	st := s.buf.State()
	return State{Text: st.Text, Cursor: st.Cursor, Preview: s.preview, HasPreview: s.hasPrev}
}

// changed must be called with s.mu held after every buffer mutation.
func (s *Session) changed() State {
	if s.errored {
		s.preview, s.hasPrev = "", false
	} else {
		s.preview, s.hasPrev = evaluator.Preview(s.buf.Text())
	}
	return s.state()
}

// leaveError drops the error marker before an edit so the buffer is
// usable again.
func (s *Session) leaveError() {
	if s.errored {
		s.buf.Clear()
		s.errored = false
	}
}

// Insert types text at the cursor.
func (s *Session) Insert(text string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveError()
	s.buf.Insert(text)
	return s.changed()
}

// DeleteBackward removes the character before the cursor.
func (s *Session) DeleteBackward() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errored {
		s.leaveError()
	} else {
		s.buf.DeleteBackward()
	}
	return s.changed()
}

// DeleteForward removes the character after the cursor.
func (s *Session) DeleteForward() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errored {
		s.leaveError()
	} else {
		s.buf.DeleteForward()
	}
	return s.changed()
}

// MoveLeft moves the cursor back one rune.
func (s *Session) MoveLeft() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.MoveLeft()
	return s.state()
}

// MoveRight moves the cursor forward one rune.
func (s *Session) MoveRight() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.MoveRight()
	return s.state()
}

// MoveHome moves the cursor to the start of the buffer.
func (s *Session) MoveHome() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.MoveHome()
	return s.state()
}

// MoveEnd moves the cursor past the last rune.
func (s *Session) MoveEnd() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.MoveEnd()
	return s.state()
}

// MoveTo places the cursor at offset.
func (s *Session) MoveTo(offset int) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.buf.MoveTo(offset)
	return s.state(), err
}

// Clear empties the buffer.
func (s *Session) Clear() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errored = false
	s.buf.Clear()
	return s.changed()
}

// SetText replaces the buffer with raw, cursor at the end.
func (s *Session) SetText(raw string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errored = false
	s.buf.SetText(raw)
	return s.changed()
}

// Recall loads the expression of history entry i into the buffer.
func (s *Session) Recall(i int) (State, error) {
	e, ok := s.ledger.At(i)
	if !ok {
		return s.State(), ErrNoSuchEntry
	}
	return s.SetText(e.Expression), nil
}

// Evaluate commits the buffer. It returns false when there is nothing to
// evaluate: an empty buffer or one showing the error marker. Otherwise
// the outcome is appended to the ledger and replaces the buffer; failures
// are reported in Result.Err.
func (s *Session) Evaluate() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expression := s.buf.Text()
	if s.errored || strings.TrimSpace(expression) == "" {
		return Result{}, false
	}

	res := Result{Expression: expression}
	v, err := evaluator.Evaluate(expression)
	if err != nil {
		res.Err = err
		res.Text = s.marker
		res.Entry = s.ledger.AppendFailure(expression, s.marker)
		s.buf.SetText(s.marker)
		s.errored = true
	} else {
		res.Value = v
		res.Text = evaluator.Format(v)
		res.Entry = s.ledger.Append(expression, res.Text)
		s.buf.SetText(res.Text)
	}
	s.changed()
	return res, true
}

// ClearHistory empties the shared ledger.
func (s *Session) ClearHistory() {
	s.ledger.Clear()
}
