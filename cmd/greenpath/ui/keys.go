package ui

import "github.com/charmbracelet/bubbles/key"

// SelectionKeys are the bindings of the selection page.
type SelectionKeys struct {
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	Apply  key.Binding
	Finish key.Binding
	Reload key.Binding
	Quit   key.Binding
}

func DefaultSelectionKeys() SelectionKeys {
	return SelectionKeys{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle: key.NewBinding(key.WithKeys(" ", "space", "x"), key.WithHelp("space", "select")),
		Apply:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		Finish: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop & report")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k SelectionKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.Apply, k.Finish, k.Reload, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k SelectionKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// ViewerKeys are the bindings of the results page.
type ViewerKeys struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

func DefaultViewerKeys() ViewerKeys {
	return ViewerKeys{
		Up:   key.NewBinding(key.WithKeys("up", "k", "pgup"), key.WithHelp("↑/k", "scroll up")),
		Down: key.NewBinding(key.WithKeys("down", "j", "pgdown"), key.WithHelp("↓/j", "scroll down")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

func (k ViewerKeys) ShortHelp() []key.Binding { return []key.Binding{k.Up, k.Down, k.Quit} }

func (k ViewerKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }
