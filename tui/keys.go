package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap binds keys to calculator commands. Printable runes that match no
// binding are inserted at the cursor.
type KeyMap struct {
	Evaluate     key.Binding
	Clear        key.Binding
	ClearHistory key.Binding
	Backspace    key.Binding
	Delete       key.Binding
	Left         key.Binding
	Right        key.Binding
	Home         key.Binding
	End          key.Binding
	Prev         key.Binding
	Next         key.Binding
	Paste        key.Binding
	Copy         key.Binding
	Help         key.Binding
	Quit         key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Evaluate: key.NewBinding(
			key.WithKeys("enter", "="),
			key.WithHelp("enter/=", "evaluate"),
		),
		Clear: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear"),
		),
		ClearHistory: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear history"),
		),
		Backspace: key.NewBinding(
			key.WithKeys("backspace"),
			key.WithHelp("⌫", "delete"),
		),
		Delete: key.NewBinding(
			key.WithKeys("delete"),
			key.WithHelp("del", "delete forward"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "ctrl+b"),
			key.WithHelp("←", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "ctrl+f"),
			key.WithHelp("→", "right"),
		),
		Home: key.NewBinding(
			key.WithKeys("home", "ctrl+a"),
			key.WithHelp("home", "start"),
		),
		End: key.NewBinding(
			key.WithKeys("end", "ctrl+e"),
			key.WithHelp("end", "end"),
		),
		Prev: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "older"),
		),
		Next: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "newer"),
		),
		Paste: key.NewBinding(
			key.WithKeys("ctrl+v"),
			key.WithHelp("ctrl+v", "paste"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+d"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Evaluate, k.Clear, k.Prev, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Evaluate, k.Clear, k.ClearHistory},
		{k.Backspace, k.Delete, k.Left, k.Right, k.Home, k.End},
		{k.Prev, k.Next, k.Paste, k.Copy},
		{k.Help, k.Quit},
	}
}
