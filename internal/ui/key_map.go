package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the progress view.
type keyMap struct {
	quit  key.Binding
	force key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit:  key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "cancel")),
		force: key.NewBinding(key.WithKeys("ctrl+\\"), key.WithHelp("ctrl+\\", "quit now")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit, k.force}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.quit, k.force}}
}
