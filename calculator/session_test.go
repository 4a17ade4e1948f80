package calculator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zylisp/calc/evaluator"
	"github.com/zylisp/calc/history"
	"github.com/zylisp/calc/storage"
)

func typeKeys(s *Session, keys ...string) State {
	var st State
	for _, k := range keys {
		st = s.Insert(k)
	}
	return st
}

func TestPreviewFollowsEdits(t *testing.T) {
	s := New(nil)

	st := typeKeys(s, "2", "+")
	assert.False(t, st.HasPreview)
	assert.Empty(t, st.Preview)

	st = s.Insert("3")
	assert.True(t, st.HasPreview)
	assert.Equal(t, "5", st.Preview)

	st = s.Insert("/0")
	assert.False(t, st.HasPreview, "division by zero yields no preview")

	st = s.Clear()
	assert.Equal(t, State{}, st, "empty buffer and failed preview look the same")
}

func TestEvaluateCommits(t *testing.T) {
	s := New(nil)
	typeKeys(s, "50", "%", "+", "10", "%")

	res, ok := s.Evaluate()
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, "0.6", res.Text)
	assert.InDelta(t, 0.6, res.Value, 1e-12)

	st := s.State()
	assert.Equal(t, "0.6", st.Text)
	assert.Equal(t, 3, st.Cursor)

	entry, found := s.Ledger().At(0)
	require.True(t, found)
	assert.Equal(t, "50%+10%", entry.Expression)
	assert.Equal(t, "0.6", entry.Result)
	assert.False(t, entry.Error)
}

func TestEvaluateFailureShowsMarker(t *testing.T) {
	s := New(nil, WithErrorMarker("ERR"))
	s.Insert("10/0")

	res, ok := s.Evaluate()
	require.True(t, ok)
	assert.True(t, errors.Is(res.Err, &evaluator.EvalError{Kind: evaluator.DivisionByZero}))
	assert.Equal(t, "ERR", res.Text)

	st := s.State()
	assert.Equal(t, "ERR", st.Text)
	assert.False(t, st.HasPreview)

	entry, _ := s.Ledger().At(0)
	assert.True(t, entry.Error)
	assert.Equal(t, "ERR", entry.Result)

	_, ok = s.Evaluate()
	assert.False(t, ok, "evaluating the marker is a no-op")
	assert.Equal(t, 1, s.Ledger().Len())

	st = s.Insert("7")
	assert.Equal(t, "7", st.Text, "typing replaces the marker")
	assert.Equal(t, "7", st.Preview)
}

func TestBackspaceClearsMarker(t *testing.T) {
	s := New(nil)
	s.Insert("(1+2")
	_, ok := s.Evaluate()
	require.True(t, ok)

	st := s.DeleteBackward()
	assert.Equal(t, State{}, st)
}

func TestEvaluateEmptyIsNoop(t *testing.T) {
	s := New(nil)
	_, ok := s.Evaluate()
	assert.False(t, ok)

	s.Insert("  ")
	_, ok = s.Evaluate()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Ledger().Len())
}

func TestResultCanBeContinued(t *testing.T) {
	s := New(nil)
	s.Insert("2-5")
	s.Evaluate()

	st := s.Insert("*2")
	assert.Equal(t, "-3*2", st.Text)
	assert.Equal(t, "-6", st.Preview)
}

func TestCursorEditing(t *testing.T) {
	s := New(nil)
	s.Insert("12")
	s.MoveLeft()
	st := s.Insert("+")
	assert.Equal(t, "1+2", st.Text)
	assert.Equal(t, "3", st.Preview)

	st = s.MoveHome()
	assert.Equal(t, 0, st.Cursor)
	st = s.MoveLeft()
	assert.Equal(t, 0, st.Cursor)
	st = s.DeleteForward()
	assert.Equal(t, "+2", st.Text)

	st = s.MoveEnd()
	assert.Equal(t, 2, st.Cursor)
	st = s.MoveRight()
	assert.Equal(t, 2, st.Cursor)

	_, err := s.MoveTo(5)
	assert.Error(t, err)
	st, err = s.MoveTo(1)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Cursor)
}

func TestRecall(t *testing.T) {
	s := New(nil)
	s.Insert("6*7")
	s.Evaluate()

	st, err := s.Recall(0)
	require.NoError(t, err)
	assert.Equal(t, "6*7", st.Text)
	assert.Equal(t, "42", st.Preview)

	_, err = s.Recall(3)
	assert.ErrorIs(t, err, ErrNoSuchEntry)
}

func TestSharedLedgerAndClearHistory(t *testing.T) {
	store := storage.NewMemory()
	ledger := history.New(store)
	defer ledger.Close()

	a := New(ledger)
	b := New(ledger)
	a.Insert("1+1")
	a.Evaluate()
	b.Insert("2+2")
	b.Evaluate()
	assert.Equal(t, 2, ledger.Len())

	a.ClearHistory()
	a.ClearHistory()
	assert.Equal(t, 0, b.Ledger().Len())
	require.NoError(t, ledger.Sync())
	_, ok, _ := store.Get(history.DefaultKey)
	assert.False(t, ok)
}
