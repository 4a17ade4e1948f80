package operations

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zylisp/calc/calculator"
	"github.com/zylisp/calc/evaluator"
	"github.com/zylisp/calc/history"
	"github.com/zylisp/calc/protocol"
)

// DefaultSession is used for requests that do not name a session.
const DefaultSession = "default"

// Version is reported by the describe operation.
const Version = "0.1.0"

// Handler processes request messages against a set of calculator sessions
// that share one history ledger. It is safe for concurrent use.
type Handler struct {
	ledger   *history.Ledger
	opts     []calculator.Option
	mu       sync.Mutex
	sessions map[string]*calculator.Session
}

// NewHandler creates a handler committing to ledger. The options are
// applied to every session it creates.
func NewHandler(ledger *history.Ledger, opts ...calculator.Option) *Handler {
	if ledger == nil {
		ledger = history.New(nil)
	}
	return &Handler{
		ledger:   ledger,
		opts:     opts,
		sessions: make(map[string]*calculator.Session),
	}
}

// Ledger returns the shared history ledger.
func (h *Handler) Ledger() *history.Ledger {
	return h.ledger
}

// Session returns the named session, creating it on first use.
func (h *Handler) Session(id string) *calculator.Session {
	if id == "" {
		id = DefaultSession
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	if !ok {
		s = calculator.New(h.ledger, h.opts...)
		h.sessions[id] = s
	}
	return s
}

// CloseSession forgets the named session.
func (h *Handler) CloseSession(id string) {
	if id == "" {
		id = DefaultSession
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

// Sessions returns the ids of the live sessions, sorted.
func (h *Handler) Sessions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Handle processes a request message and returns a response message.
// It dispatches to the appropriate operation handler based on the Op field.
func (h *Handler) Handle(req *protocol.Message) *protocol.Message {
	resp := &protocol.Message{
		ID:      req.ID,
		Session: req.Session,
	}

	switch req.Op {
	case protocol.OpEval:
		return h.handleEval(req, resp)
	case protocol.OpInsert, protocol.OpDelete, protocol.OpDeleteForward,
		protocol.OpMove, protocol.OpSet, protocol.OpClear, protocol.OpState, protocol.OpRecall:
		return h.handleEdit(req, resp)
	case protocol.OpCommit:
		return h.handleCommit(req, resp)
	case protocol.OpHistory:
		resp.Entries = h.ledger.Entries()
		resp.Status = []string{protocol.StatusDone}
		return resp
	case protocol.OpClearHistory:
		h.ledger.Clear()
		resp.Status = []string{protocol.StatusDone}
		return resp
	case protocol.OpDescribe:
		return h.handleDescribe(req, resp)
	case protocol.OpClose:
		h.CloseSession(req.Session)
		resp.Status = []string{protocol.StatusDone}
		return resp
	default:
		return protocolError(resp, "unknown operation: %q", req.Op)
	}
}

// handleEval evaluates Code without touching any session or the ledger.
func (h *Handler) handleEval(req *protocol.Message, resp *protocol.Message) *protocol.Message {
	v, err := evaluator.Evaluate(req.Code)
	if err != nil {
		setEvalError(resp, err)
		return resp
	}
	resp.Value = v
	resp.Result = evaluator.Format(v)
	resp.Status = []string{protocol.StatusDone}
	return resp
}

func (h *Handler) handleEdit(req *protocol.Message, resp *protocol.Message) *protocol.Message {
	s := h.Session(req.Session)

	var (
		st  calculator.State
		err error
	)
	switch req.Op {
	case protocol.OpInsert:
		st = s.Insert(req.Code)
	case protocol.OpDelete:
		st = s.DeleteBackward()
	case protocol.OpDeleteForward:
		st = s.DeleteForward()
	case protocol.OpSet:
		st = s.SetText(req.Code)
	case protocol.OpClear:
		st = s.Clear()
	case protocol.OpState:
		st = s.State()
	case protocol.OpRecall:
		st, err = s.Recall(req.Index)
	case protocol.OpMove:
		st, err = move(s, req.Code, req.Index)
	}
	if err != nil {
		return protocolError(resp, "%s: %v", req.Op, err)
	}

	setState(resp, st)
	resp.Status = []string{protocol.StatusDone}
	return resp
}

func move(s *calculator.Session, direction string, offset int) (calculator.State, error) {
	switch direction {
	case "left":
		return s.MoveLeft(), nil
	case "right":
		return s.MoveRight(), nil
	case "home":
		return s.MoveHome(), nil
	case "end":
		return s.MoveEnd(), nil
	case "to":
		return s.MoveTo(offset)
	default:
		return s.State(), fmt.Errorf("unknown direction %q", direction)
	}
}

// handleCommit evaluates the session buffer and records it in the ledger.
func (h *Handler) handleCommit(req *protocol.Message, resp *protocol.Message) *protocol.Message {
	s := h.Session(req.Session)
	res, ok := s.Evaluate()
	setState(resp, s.State())
	if !ok {
		resp.Status = []string{protocol.StatusDone}
		return resp
	}

	resp.Result = res.Text
	if res.Err != nil {
		setEvalError(resp, res.Err)
		return resp
	}
	resp.Value = res.Value
	resp.Status = []string{protocol.StatusDone}
	return resp
}

// handleDescribe returns information about the server's capabilities.
func (h *Handler) handleDescribe(req *protocol.Message, resp *protocol.Message) *protocol.Message {
	resp.Status = []string{protocol.StatusDone}
	resp.Data = map[string]interface{}{
		"versions": map[string]interface{}{
			"calc":     Version,
			"protocol": Version,
		},
		"ops": []interface{}{
			protocol.OpEval,
			protocol.OpInsert,
			protocol.OpDelete,
			protocol.OpDeleteForward,
			protocol.OpMove,
			protocol.OpSet,
			protocol.OpClear,
			protocol.OpCommit,
			protocol.OpState,
			protocol.OpRecall,
			protocol.OpHistory,
			protocol.OpClearHistory,
			protocol.OpDescribe,
			protocol.OpClose,
		},
		"transports": []interface{}{"in-process", "unix", "tcp", "ws"},
		"codecs":     []interface{}{"json", "msgpack"},
		"sessions":   len(h.Sessions()),
		"history":    h.ledger.Len(),
	}
	return resp
}

func setState(resp *protocol.Message, st calculator.State) {
	resp.Text = st.Text
	resp.Cursor = st.Cursor
	resp.Preview = st.Preview
	resp.HasPreview = st.HasPreview
}

func setEvalError(resp *protocol.Message, err error) {
	resp.Error = err.Error()
	var evalErr *evaluator.EvalError
	if errors.As(err, &evalErr) {
		resp.ErrorKind = evalErr.Kind.String()
	}
	resp.Status = []string{protocol.StatusDone, protocol.StatusEvalError}
}

func protocolError(resp *protocol.Message, format string, args ...interface{}) *protocol.Message {
	resp.Status = []string{protocol.StatusError}
	resp.ProtocolError = fmt.Sprintf(format, args...)
	return resp
}
