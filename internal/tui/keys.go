package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines key bindings used across the TUI.
type KeyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Quit     key.Binding
	Refresh  key.Binding

	// Dashboard
	NextTarget key.Binding
	PrevTarget key.Binding
	NextWindow key.Binding
	NextMA     key.Binding

	// Target list
	Up     key.Binding
	Down   key.Binding
	Select key.Binding

	// Backtest form
	NextField key.Binding
	Increase  key.Binding
	Decrease  key.Binding
	Run       key.Binding
}

// DefaultKeyMap provides the default key bindings for the TUI.
var DefaultKeyMap = KeyMap{
	Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
	ShiftTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Refresh:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh")),

	NextTarget: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "next index")),
	PrevTarget: key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "prev index")),
	NextWindow: key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "cycle window")),
	NextMA:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "cycle score MA")),

	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),

	NextField: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "next field")),
	Increase:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "increase")),
	Decrease:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "decrease")),
	Run:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run")),
}
