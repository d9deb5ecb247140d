package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	enter     key.Binding
	copy      key.Binding
	back      key.Binding
	next      key.Binding
	reshuffle key.Binding
	stop      key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		copy:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "shuffle copy")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		next:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		reshuffle: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reshuffle")),
		stop:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.enter, k.copy, k.back},
		{k.next, k.reshuffle, k.stop},
		{k.quit},
	}
}
