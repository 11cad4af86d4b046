package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap はプロフィールビューアのキーバインド。
type KeyMap struct {
	Previous key.Binding
	Next     key.Binding
	Refresh  key.Binding
	Quit     key.Binding
}

// DefaultKeyMap は標準のキーバインド。矢印キーとvim風のh/lを併用する。
var DefaultKeyMap = KeyMap{
	Previous: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "previous"),
	),
	Next: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "next"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
