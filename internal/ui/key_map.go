package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	enter     key.Binding
	back      key.Binding
	cam       key.Binding
	master    key.Binding
	clean     key.Binding
	final     key.Binding
	submit    key.Binding
	submitAll key.Binding
	discard   key.Binding
	edit      key.Binding
	remove    key.Binding
	reload    key.Binding
	next      key.Binding
	save      key.Binding
	yes       key.Binding
	no        key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		cam:       key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "cam")),
		master:    key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "master")),
		clean:     key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "clean")),
		final:     key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "final")),
		submit:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "submit")),
		submitAll: key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "submit all")),
		discard:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "discard")),
		edit:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		remove:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		next:      key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
		save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		yes:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:        key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// toggles pairs the stage keys with their stages, in display order.
func (k keyMap) toggles() []key.Binding {
	return []key.Binding{k.cam, k.master, k.clean, k.final}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.enter, k.submit, k.reload, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.cam, k.master, k.clean, k.final},
		{k.submit, k.submitAll, k.discard},
		{k.edit, k.remove, k.reload, k.quit},
	}
}
