package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

type keyMap struct {
	Quit       key.Binding
	Send       key.Binding
	FocusNext  key.Binding
	NewConvo   key.Binding
	Delete     key.Binding
	Refresh    key.Binding
	Up         key.Binding
	Down       key.Binding
	Select     key.Binding
	ToggleHelp key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send prompt"),
		),
		FocusNext: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch focus"),
		),
		NewConvo: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new conversation"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "delete conversation"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh list"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "previous conversation"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next conversation"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open conversation"),
		),
		ToggleHelp: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("ctrl+h", "help"),
		),
	}
}

type helpModel struct {
	keys  keyMap
	width int
	theme Theme
}

func newHelpModel(theme Theme) helpModel {
	return helpModel{keys: defaultKeyMap(), width: 80, theme: theme}
}

func (m *helpModel) SetWidth(width int) {
	m.width = width
}

func (m helpModel) View() string {
	keyStyle := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Accent)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(m.theme.TextMuted)

	var b strings.Builder
	b.WriteString(m.theme.TopBarTitle.Render("duckchat help"))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("composer"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s  send prompt\n", keyStyle.Render("enter")))
	b.WriteString(fmt.Sprintf("  %s  new conversation\n", keyStyle.Render("ctrl+n")))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("conversations"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s  switch focus between list and composer\n", keyStyle.Render("tab")))
	b.WriteString(fmt.Sprintf("  %s  move through the list\n", keyStyle.Render("up/down")))
	b.WriteString(fmt.Sprintf("  %s  open the highlighted conversation\n", keyStyle.Render("enter")))
	b.WriteString(fmt.Sprintf("  %s  delete the highlighted conversation\n", keyStyle.Render("ctrl+d")))
	b.WriteString(fmt.Sprintf("  %s  refresh from the backend\n", keyStyle.Render("ctrl+r")))
	b.WriteString("\n")

	b.WriteString(m.theme.Footer.Render("ctrl+h close help | ctrl+c quit"))
	return b.String()
}
