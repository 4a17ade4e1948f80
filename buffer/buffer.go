// Package buffer holds the editable expression text and its cursor.
//
// A Buffer is not safe for concurrent use; it is meant to be owned by a
// single session which serialises edits.
package buffer

import "errors"

// ErrOffsetOutOfRange is returned by MoveTo when the offset lies outside
// the text.
var ErrOffsetOutOfRange = errors.New("offset out of range")

// State is an immutable snapshot of a buffer.
type State struct {
	Text   string
	Cursor int // rune offset, 0 <= Cursor <= RuneCount(Text)
}

// Buffer is an expression line with a cursor. Offsets count runes, not
// bytes. The cursor always satisfies 0 <= cursor <= Len().
type Buffer struct {
	text   []rune
	cursor int
}

// New creates an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// NewFromString creates a buffer holding s with the cursor at the end.
func NewFromString(s string) *Buffer {
	b := &Buffer{}
	b.SetText(s)
	return b
}

// Text returns the current text.
func (b *Buffer) Text() string {
	return string(b.text)
}

// Cursor returns the cursor offset.
func (b *Buffer) Cursor() int {
	return b.cursor
}

// Len returns the text length in runes.
func (b *Buffer) Len() int {
	return len(b.text)
}

// State returns a snapshot of text and cursor.
func (b *Buffer) State() State {
	return State{Text: string(b.text), Cursor: b.cursor}
}

// Insert places s at the cursor and advances the cursor past it. The
// text is not checked against any grammar, so partial input such as "(("
// is accepted. Invalid UTF-8 bytes are stored as U+FFFD.
func (b *Buffer) Insert(s string) State {
	if s == "" {
		return b.State()
	}
	ins := []rune(s)
	text := make([]rune, 0, len(b.text)+len(ins))
	text = append(text, b.text[:b.cursor]...)
	text = append(text, ins...)
	text = append(text, b.text[b.cursor:]...)
	b.text = text
	b.cursor += len(ins)
	return b.State()
}

// DeleteBackward removes the rune before the cursor. At offset 0 it does
// nothing.
func (b *Buffer) DeleteBackward() State {
	if b.cursor == 0 {
		return b.State()
	}
	b.text = append(b.text[:b.cursor-1], b.text[b.cursor:]...)
	b.cursor--
	return b.State()
}

// DeleteForward removes the rune under the cursor. At the end of the text
// it does nothing.
func (b *Buffer) DeleteForward() State {
	if b.cursor == len(b.text) {
		return b.State()
	}
	b.text = append(b.text[:b.cursor], b.text[b.cursor+1:]...)
	return b.State()
}

// Clear empties the buffer.
func (b *Buffer) Clear() State {
	b.text = nil
	b.cursor = 0
	return b.State()
}

// SetText replaces the whole text and moves the cursor to the end.
func (b *Buffer) SetText(raw string) State {
	b.text = []rune(raw)
	b.cursor = len(b.text)
	return b.State()
}

// MoveLeft moves the cursor one rune left, stopping at 0.
func (b *Buffer) MoveLeft() State {
	if b.cursor > 0 {
		b.cursor--
	}
	return b.State()
}

// MoveRight moves the cursor one rune right, stopping at the end.
func (b *Buffer) MoveRight() State {
	if b.cursor < len(b.text) {
		b.cursor++
	}
	return b.State()
}

// MoveHome puts the cursor at offset 0.
func (b *Buffer) MoveHome() State {
	b.cursor = 0
	return b.State()
}

// MoveEnd puts the cursor after the last rune.
func (b *Buffer) MoveEnd() State {
	b.cursor = len(b.text)
	return b.State()
}

// MoveTo puts the cursor at offset. Offsets outside [0, Len()] leave the
// cursor unchanged and return ErrOffsetOutOfRange.
func (b *Buffer) MoveTo(offset int) (State, error) {
	if offset < 0 || offset > len(b.text) {
		return b.State(), ErrOffsetOutOfRange
	}
	b.cursor = offset
	return b.State(), nil
}
