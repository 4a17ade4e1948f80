// Package tui is the terminal front end: a bubbletea model that maps
// keys onto calculator session commands.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zylisp/calc/calculator"
	"github.com/zylisp/calc/history"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	resultStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	historyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// DefaultHistoryLines is how many ledger entries the view shows.
const DefaultHistoryLines = 8

type pasteMsg struct {
	text string
	err  error
}

type copiedMsg struct {
	text string
	err  error
}

// Option configures a Model.
type Option func(*Model)

// WithClipboard replaces the system clipboard.
func WithClipboard(c Clipboard) Option {
	return func(m *Model) { m.clipboard = c }
}

// WithHistoryLines sets how many history entries are shown.
func WithHistoryLines(n int) Option {
	return func(m *Model) {
		if n >= 0 {
			m.historyLines = n
		}
	}
}

// WithKeyMap replaces the default bindings.
func WithKeyMap(k KeyMap) Option {
	return func(m *Model) { m.keys = k }
}

// Model is the calculator screen.
type Model struct {
	session      *calculator.Session
	keys         KeyMap
	help         help.Model
	clipboard    Clipboard
	state        calculator.State
	historyLines int
	// recall is the ledger index shown by up/down, Len() when browsing
	// is not active.
	recall   int
	status   string
	quitting bool
}

// New creates a model driving session.
func New(session *calculator.Session, opts ...Option) Model {
	m := Model{
		session:      session,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		clipboard:    &systemClipboard{},
		historyLines: DefaultHistoryLines,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.state = session.State()
	m.recall = session.Ledger().Len()
	return m
}

// Run starts a full-screen program and blocks until the user quits.
func Run(session *calculator.Session, opts ...Option) error {
	_, err := tea.NewProgram(New(session, opts...), tea.WithAltScreen()).Run()
	return err
}

// State returns the buffer state last rendered.
func (m Model) State() calculator.State {
	return m.state
}

// Status returns the transient status line.
func (m Model) Status() string {
	return m.status
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case pasteMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.edited(m.session.Insert(msg.text))
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = fmt.Sprintf("copied %q", msg.text)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""

	// Bracketed paste arrives as one rune message and must not trigger
	// bindings such as "=".
	if msg.Paste && msg.Type == tea.KeyRunes {
		m.edited(m.session.Insert(string(msg.Runes)))
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Evaluate):
		if res, ok := m.session.Evaluate(); ok && res.Err != nil {
			m.status = res.Err.Error()
		}
		m.edited(m.session.State())

	case key.Matches(msg, m.keys.Clear):
		m.edited(m.session.Clear())

	case key.Matches(msg, m.keys.ClearHistory):
		m.session.ClearHistory()
		m.recall = 0
		m.status = "history cleared"

	case key.Matches(msg, m.keys.Backspace):
		m.edited(m.session.DeleteBackward())

	case key.Matches(msg, m.keys.Delete):
		m.edited(m.session.DeleteForward())

	case key.Matches(msg, m.keys.Left):
		m.state = m.session.MoveLeft()

	case key.Matches(msg, m.keys.Right):
		m.state = m.session.MoveRight()

	case key.Matches(msg, m.keys.Home):
		m.state = m.session.MoveHome()

	case key.Matches(msg, m.keys.End):
		m.state = m.session.MoveEnd()

	case key.Matches(msg, m.keys.Prev):
		m.browse(-1)

	case key.Matches(msg, m.keys.Next):
		m.browse(1)

	case key.Matches(msg, m.keys.Paste):
		return m, m.paste()

	case key.Matches(msg, m.keys.Copy):
		return m, m.copy(m.state.Text)

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case msg.Type == tea.KeyRunes:
		m.edited(m.session.Insert(string(msg.Runes)))

	case msg.Type == tea.KeySpace:
		m.edited(m.session.Insert(" "))
	}
	return m, nil
}

// edited records a new state and ends history browsing.
func (m *Model) edited(st calculator.State) {
	m.state = st
	m.recall = m.session.Ledger().Len()
}

// browse moves through history by delta. Moving past the newest entry
// clears the buffer.
func (m *Model) browse(delta int) {
	n := m.session.Ledger().Len()
	i := m.recall + delta
	switch {
	case i < 0 || n == 0:
		return
	case i >= n:
		if m.recall < n {
			m.state = m.session.Clear()
		}
		m.recall = n
		return
	}
	st, err := m.session.Recall(i)
	if err != nil {
		m.status = err.Error()
		return
	}
	m.state = st
	m.recall = i
}

func (m Model) paste() tea.Cmd {
	c := m.clipboard
	return func() tea.Msg {
		text, err := c.Read()
		return pasteMsg{text: text, err: err}
	}
}

func (m Model) copy(text string) tea.Cmd {
	c := m.clipboard
	return func() tea.Msg {
		return copiedMsg{text: text, err: c.Write(text)}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("calc"))
	b.WriteString("\n")

	b.WriteString(promptStyle.Render("> "))
	b.WriteString(renderBuffer(m.state))
	b.WriteString("\n")

	if m.state.HasPreview {
		b.WriteString(previewStyle.Render("= " + m.state.Preview))
	}
	b.WriteString("\n\n")

	for _, e := range lastEntries(m.session.Ledger(), m.historyLines) {
		b.WriteString(renderEntry(e))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// renderBuffer draws the text with the rune under the cursor highlighted.
func renderBuffer(st calculator.State) string {
	runes := []rune(st.Text)
	if st.Cursor >= len(runes) {
		return st.Text + cursorStyle.Render(" ")
	}
	return string(runes[:st.Cursor]) +
		cursorStyle.Render(string(runes[st.Cursor])) +
		string(runes[st.Cursor+1:])
}

func renderEntry(e history.Entry) string {
	result := resultStyle.Render(e.Result)
	if e.Error {
		result = errorStyle.Render(e.Result)
	}
	return historyStyle.Render(e.Expression+" = ") + result
}

func lastEntries(l *history.Ledger, n int) []history.Entry {
	if n == 0 {
		return nil
	}
	all := l.Entries()
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}
