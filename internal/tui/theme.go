package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

type ThemeName string

const (
	ThemePorcelain ThemeName = "porcelain"
	ThemeMidnight  ThemeName = "midnight"
)

type Theme struct {
	Name ThemeName

	TextPrimary lipgloss.AdaptiveColor
	TextMuted   lipgloss.AdaptiveColor

	Accent  lipgloss.AdaptiveColor
	Success lipgloss.AdaptiveColor
	Warn    lipgloss.AdaptiveColor
	Error   lipgloss.AdaptiveColor
	Border  lipgloss.AdaptiveColor

	TopBar      lipgloss.Style
	TopBarTitle lipgloss.Style
	TopBarMeta  lipgloss.Style

	Sidebar        lipgloss.Style
	SidebarTitle   lipgloss.Style
	ListItem       lipgloss.Style
	ListItemActive lipgloss.Style
	ListPreview    lipgloss.Style
	StatusBadge    lipgloss.Style

	Pane        lipgloss.Style
	PaneFocused lipgloss.Style
	Footer      lipgloss.Style
	InputBox    lipgloss.Style
	InputBoxF   lipgloss.Style
	Spinner     lipgloss.Style

	RoleYou lipgloss.Style
	RoleAI  lipgloss.Style
	RoleSys lipgloss.Style

	EventReasoning lipgloss.Style
	EventTool      lipgloss.Style
	EventError     lipgloss.Style

	ErrorText lipgloss.Style
	WarnText  lipgloss.Style
	OKText    lipgloss.Style
}

func NewTheme() Theme {
	name := ThemeName(os.Getenv("DUCKCHAT_THEME"))
	if name != ThemeMidnight {
		name = ThemePorcelain
	}

	t := Theme{Name: name}

	t.TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2933", Dark: "#E5E7EB"}
	t.TextMuted = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	t.Accent = lipgloss.AdaptiveColor{Light: "#2563EB", Dark: "#60A5FA"}
	t.Success = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	t.Warn = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	t.Error = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	t.Border = lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#374151"}
	if name == ThemeMidnight {
		t.Accent = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	}

	t.TopBar = lipgloss.NewStyle().Padding(0, 1)
	t.TopBarTitle = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.TopBarMeta = lipgloss.NewStyle().Foreground(t.TextMuted)

	t.Sidebar = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(t.Border).
		Padding(0, 1)
	t.SidebarTitle = lipgloss.NewStyle().Bold(true).Foreground(t.TextMuted)
	t.ListItem = lipgloss.NewStyle().Foreground(t.TextPrimary)
	t.ListItemActive = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.ListPreview = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.StatusBadge = lipgloss.NewStyle().Foreground(t.TextMuted)

	t.Pane = lipgloss.NewStyle().Padding(0, 1)
	t.PaneFocused = t.Pane.Copy().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Accent)
	t.Footer = lipgloss.NewStyle().Foreground(t.TextMuted).Padding(0, 1)
	t.InputBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)
	t.InputBoxF = t.InputBox.Copy().BorderForeground(t.Accent)
	t.Spinner = lipgloss.NewStyle().Foreground(t.Accent)

	t.RoleYou = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.RoleAI = lipgloss.NewStyle().Bold(true).Foreground(t.Success)
	t.RoleSys = lipgloss.NewStyle().Foreground(t.TextMuted)

	t.EventReasoning = lipgloss.NewStyle().Foreground(t.TextMuted).Italic(true)
	t.EventTool = lipgloss.NewStyle().Foreground(t.Warn)
	t.EventError = lipgloss.NewStyle().Foreground(t.Error)

	t.ErrorText = lipgloss.NewStyle().Foreground(t.Error)
	t.WarnText = lipgloss.NewStyle().Foreground(t.Warn)
	t.OKText = lipgloss.NewStyle().Foreground(t.Success)

	return t
}
