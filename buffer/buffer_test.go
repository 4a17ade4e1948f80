package buffer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsert(t *testing.T) {
	b := New()
	st := b.Insert("12")
	assert.Equal(t, State{Text: "12", Cursor: 2}, st)

	b.MoveLeft()
	st = b.Insert("+")
	assert.Equal(t, State{Text: "1+2", Cursor: 2}, st)

	st = b.Insert("((")
	assert.Equal(t, "1+((2", st.Text)
	assert.Equal(t, 4, st.Cursor)

	st = b.Insert("")
	assert.Equal(t, 4, st.Cursor)
}

func TestInsertMultibyte(t *testing.T) {
	b := New()
	b.Insert("2×3")
	assert.Equal(t, 3, b.Cursor())
	assert.Equal(t, 3, b.Len())

	b.DeleteBackward()
	b.DeleteBackward()
	assert.Equal(t, "2", b.Text())
}

func TestDeleteBackward(t *testing.T) {
	b := NewFromString("123")
	st := b.DeleteBackward()
	assert.Equal(t, State{Text: "12", Cursor: 2}, st)

	b.MoveHome()
	st = b.DeleteBackward()
	assert.Equal(t, State{Text: "12", Cursor: 0}, st, "delete at offset 0 is a no-op")

	empty := New()
	st = empty.DeleteBackward()
	assert.Equal(t, State{}, st)
}

func TestDeleteForward(t *testing.T) {
	b := NewFromString("123")
	st := b.DeleteForward()
	assert.Equal(t, State{Text: "123", Cursor: 3}, st, "delete at end is a no-op")

	b.MoveHome()
	st = b.DeleteForward()
	assert.Equal(t, State{Text: "23", Cursor: 0}, st)
}

func TestClear(t *testing.T) {
	b := NewFromString("1+1")
	first := b.Clear()
	second := b.Clear()
	assert.Equal(t, State{}, first)
	assert.Equal(t, first, second)
}

func TestSetText(t *testing.T) {
	b := NewFromString("9")
	b.MoveHome()
	st := b.SetText("4*5")
	assert.Equal(t, State{Text: "4*5", Cursor: 3}, st)

	st = b.SetText("\xff1")
	assert.Equal(t, 2, st.Cursor)
}

func TestMove(t *testing.T) {
	b := NewFromString("abc")

	assert.Equal(t, 3, b.MoveRight().Cursor)
	assert.Equal(t, 2, b.MoveLeft().Cursor)
	assert.Equal(t, 0, b.MoveHome().Cursor)
	assert.Equal(t, 0, b.MoveLeft().Cursor)
	assert.Equal(t, 3, b.MoveEnd().Cursor)

	st, err := b.MoveTo(1)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Cursor)

	st, err = b.MoveTo(4)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)
	assert.Equal(t, 1, st.Cursor)

	_, err = b.MoveTo(-1)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)
}

func TestCursorStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tokens := []string{"1", "+", "(", ")", "%", "25", "é", ""}
	b := New()

	for i := 0; i < 5000; i++ {
		switch rng.Intn(8) {
		case 0, 1, 2:
			b.Insert(tokens[rng.Intn(len(tokens))])
		case 3:
			b.DeleteBackward()
		case 4:
			b.DeleteForward()
		case 5:
			b.MoveLeft()
		case 6:
			b.MoveRight()
		case 7:
			if rng.Intn(10) == 0 {
				b.Clear()
			} else {
				b.MoveTo(rng.Intn(b.Len()+3) - 1)
			}
		}
		require.GreaterOrEqual(t, b.Cursor(), 0)
		require.LessOrEqual(t, b.Cursor(), b.Len())
		require.Equal(t, b.Len(), len([]rune(b.Text())))
	}
}
