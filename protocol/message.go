package protocol

import "github.com/zylisp/calc/history"

// Operation names understood by the server.
const (
	OpEval          = "eval"
	OpInsert        = "insert"
	OpDelete        = "delete"
	OpDeleteForward = "delete-forward"
	OpMove          = "move"
	OpSet           = "set"
	OpClear         = "clear"
	OpCommit        = "commit"
	OpState         = "state"
	OpRecall        = "recall"
	OpHistory       = "history"
	OpClearHistory  = "clear-history"
	OpDescribe      = "describe"
	OpClose         = "close"
)

// Status flags carried in Message.Status.
const (
	StatusDone = "done"
	// StatusError marks a protocol-level failure; see ProtocolError.
	StatusError = "error"
	// StatusEvalError marks a request that completed but whose
	// expression failed to evaluate; see Error and ErrorKind.
	StatusEvalError = "eval-error"
)

// Message represents a protocol message exchanged between client and server.
// Requests set Op, ID and the operation's arguments; responses echo ID and
// carry the outcome.
type Message struct {
	// Op is the operation name (e.g., "eval", "insert", "commit")
	Op string `json:"op,omitempty"`

	// ID is a unique message identifier for correlating requests and responses
	ID string `json:"id"`

	// Session selects the calculator session the edit applies to
	Session string `json:"session,omitempty"`

	// Code is the expression for eval, the text for insert and set, and
	// the direction ("left", "right", "home", "end", "to") for move
	Code string `json:"code,omitempty"`

	// Index is the history index for recall and the offset for move "to"
	Index int `json:"index,omitempty"`

	// Status contains status flags: "done", "error", "eval-error"
	Status []string `json:"status,omitempty"`

	// Text and Cursor describe the session buffer after an edit
	Text   string `json:"text,omitempty"`
	Cursor int    `json:"cursor,omitempty"`

	// Preview is the live result for the current buffer, if any
	Preview    string `json:"preview,omitempty"`
	HasPreview bool   `json:"has_preview,omitempty"`

	// Value is the numeric result of eval and commit
	Value interface{} `json:"value,omitempty"`

	// Result is the formatted result, or the error marker
	Result string `json:"result,omitempty"`

	// Error and ErrorKind describe an evaluation failure. They are data,
	// not protocol failures.
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	// Entries holds the ledger for the history operation
	Entries []history.Entry `json:"entries,omitempty"`

	// ProtocolError contains protocol-level errors only (not evaluation errors)
	// Examples: malformed messages, connection issues, unknown operations
	ProtocolError string `json:"protocol_error,omitempty"`

	// Data contains additional operation-specific data
	Data map[string]interface{} `json:"data,omitempty"`
}

// HasStatus reports whether flag is among the message's status flags.
func (m *Message) HasStatus(flag string) bool {
	for _, s := range m.Status {
		if s == flag {
			return true
		}
	}
	return false
}
