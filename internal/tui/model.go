package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"duckchat/internal/app"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type focusArea int

const (
	focusComposer focusArea = iota
	focusList
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var starterPrompts = []string{
	"Show me top 5 products by revenue",
	"List customers from last month",
	"Analyze sales trends by region",
	"What are the latest orders?",
}

type sessionsLoadedMsg struct {
	list []app.ConversationSummary
	err  error
}

type refetchDoneMsg struct {
	cmd    app.RefetchCommand
	detail *app.ConversationDetail
	err    error
}

type createdMsg struct {
	cmd  app.CreateConversationCommand
	resp *app.CreateConversationResponse
	err  error
}

type appendedMsg struct {
	cmd  app.AppendMessageCommand
	resp *app.AppendMessageResponse
	err  error
}

type deletedMsg struct {
	cmd app.DeleteConversationCommand
	err error
}

type settingsLoadedMsg struct {
	settings *app.Settings
	err      error
}

type healthMsg struct{ ok bool }

type streamNoticeMsg struct{ notice app.StreamNotice }

type spinMsg struct{}

// Model is the interactive shell. All state transitions run on the
// bubbletea update loop; the controller's commands are executed as tea
// commands whose results come back as messages.
type Model struct {
	app   *app.Application
	theme Theme
	keys  keyMap
	help  helpModel

	width  int
	height int
	ready  bool

	focus      focusArea
	input      textarea.Model
	transcript viewport.Model
	listIndex  int

	showHelp  bool
	healthy   bool
	spinFrame int
}

func New(application *app.Application) *Model {
	theme := NewTheme()

	ta := textarea.New()
	ta.Placeholder = "Ask the analytics agent..."
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.Prompt = "▍ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	return &Model{
		app:     application,
		theme:   theme,
		keys:    defaultKeyMap(),
		help:    newHelpModel(theme),
		focus:   focusComposer,
		input:   ta,
		healthy: true,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.loadSessionsCmd(),
		m.loadSettingsCmd(),
		m.healthCmd(),
		m.waitStreamCmd(),
	)
}

func (m *Model) requestTimeout() time.Duration {
	return time.Duration(m.app.Config.RequestTimeoutMs) * time.Millisecond
}

// dispatch turns controller commands into the asynchronous work they name.
func (m *Model) dispatch(commands []app.Command) tea.Cmd {
	var cmds []tea.Cmd
	for _, command := range commands {
		switch c := command.(type) {
		case app.RefetchCommand:
			cmds = append(cmds, m.refetchCmd(c))
		case app.RefreshListCommand:
			cmds = append(cmds, m.loadSessionsCmd())
		case app.CreateConversationCommand:
			cmds = append(cmds, m.createCmd(c))
		case app.AppendMessageCommand:
			cmds = append(cmds, m.appendCmd(c))
		case app.DeleteConversationCommand:
			cmds = append(cmds, m.deleteCmd(c))
		}
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m *Model) loadSessionsCmd() tea.Cmd {
	client := m.app.Client
	timeout := m.requestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		list, err := client.ListConversations(ctx)
		return sessionsLoadedMsg{list: list, err: err}
	}
}

func (m *Model) refetchCmd(cmd app.RefetchCommand) tea.Cmd {
	client := m.app.Client
	timeout := m.requestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		detail, err := client.GetConversation(ctx, cmd.ConversationID, true)
		return refetchDoneMsg{cmd: cmd, detail: detail, err: err}
	}
}

func (m *Model) createCmd(cmd app.CreateConversationCommand) tea.Cmd {
	client := m.app.Client
	timeout := m.requestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := client.CreateConversation(ctx, app.CreateConversationRequest{Question: cmd.Prompt})
		return createdMsg{cmd: cmd, resp: resp, err: err}
	}
}

func (m *Model) appendCmd(cmd app.AppendMessageCommand) tea.Cmd {
	client := m.app.Client
	timeout := m.requestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := client.AppendMessage(ctx, cmd.ConversationID, app.AppendMessageRequest{
			Role:    app.RoleUser,
			Content: map[string]interface{}{"text": cmd.Prompt},
			Model:   cmd.Model,
		})
		return appendedMsg{cmd: cmd, resp: resp, err: err}
	}
}

func (m *Model) deleteCmd(cmd app.DeleteConversationCommand) tea.Cmd {
	client := m.app.Client
	timeout := m.requestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := client.DeleteConversation(ctx, cmd.ConversationID)
		return deletedMsg{cmd: cmd, err: err}
	}
}

func (m *Model) loadSettingsCmd() tea.Cmd {
	client := m.app.Client
	timeout := m.requestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		settings, err := client.GetSettings(ctx)
		return settingsLoadedMsg{settings: settings, err: err}
	}
}

func (m *Model) healthCmd() tea.Cmd {
	client := m.app.Client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return healthMsg{ok: client.Health(ctx)}
	}
}

// waitStreamCmd pumps the next connector notice into the update loop.
func (m *Model) waitStreamCmd() tea.Cmd {
	notices := m.app.Stream.Notices()
	return func() tea.Msg {
		return streamNoticeMsg{notice: <-notices}
	}
}

func (m *Model) spinCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg { return spinMsg{} })
}

func (m *Model) streamBusy() bool {
	state := m.app.Stream.State()
	return state == app.StreamConnecting || state == app.StreamStreaming
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.SetWidth(msg.Width)
		m.input.SetWidth(msg.Width - m.sidebarWidth() - 8)
		m.transcript = viewport.New(msg.Width-m.sidebarWidth()-4, m.transcriptHeight())
		m.ready = true
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionsLoadedMsg:
		if msg.err != nil {
			m.app.Logger.Error("list conversations failed", map[string]interface{}{"error": msg.err.Error()})
			return m, nil
		}
		cmds := m.app.Controller.HandleSessionsLoaded(msg.list)
		m.clampListIndex()
		return m, m.dispatch(cmds)

	case refetchDoneMsg:
		cmds := m.app.Controller.HandleRefetchCompleted(msg.cmd, msg.detail, msg.err)
		m.refreshTranscript()
		return m, m.dispatch(cmds)

	case createdMsg:
		cmds := m.app.Controller.HandleConversationCreated(msg.cmd, msg.resp, msg.err)
		m.clampListIndex()
		return m, tea.Batch(m.dispatch(cmds), m.spinCmd())

	case appendedMsg:
		cmds := m.app.Controller.HandleMessageAppended(msg.cmd, msg.resp, msg.err)
		return m, tea.Batch(m.dispatch(cmds), m.spinCmd())

	case deletedMsg:
		cmds := m.app.Controller.HandleConversationDeleted(msg.cmd, msg.err)
		m.clampListIndex()
		m.refreshTranscript()
		return m, m.dispatch(cmds)

	case settingsLoadedMsg:
		if msg.err == nil && msg.settings != nil && m.app.Config.DefaultModel == "" && msg.settings.LLMModel != "" {
			m.app.Controller.SetDefaultModel(msg.settings.LLMModel)
		}
		return m, nil

	case healthMsg:
		m.healthy = msg.ok
		return m, nil

	case streamNoticeMsg:
		cmds := m.app.Controller.HandleStreamNotice(msg.notice)
		m.refreshTranscript()
		next := []tea.Cmd{m.waitStreamCmd(), m.dispatch(cmds)}
		if m.streamBusy() {
			next = append(next, m.spinCmd())
		}
		return m, tea.Batch(next...)

	case spinMsg:
		if !m.streamBusy() {
			return m, nil
		}
		m.spinFrame = (m.spinFrame + 1) % len(spinnerFrames)
		return m, m.spinCmd()
	}

	if m.focus == focusComposer {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.app.Stream.Unsubscribe()
		return m, tea.Quit

	case key.Matches(msg, m.keys.ToggleHelp):
		m.showHelp = !m.showHelp
		return m, nil
	}

	if m.showHelp {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.FocusNext):
		if m.focus == focusComposer {
			m.focus = focusList
			m.input.Blur()
		} else {
			m.focus = focusComposer
			m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.NewConvo):
		m.app.Controller.ClearError()
		cmds := m.app.Controller.HandleNewConversationRequested()
		m.refreshTranscript()
		m.focus = focusComposer
		m.input.Focus()
		return m, m.dispatch(cmds)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadSessionsCmd()
	}

	if m.focus == focusList {
		return m.handleListKey(msg)
	}

	if key.Matches(msg, m.keys.Send) {
		prompt := strings.TrimSpace(m.input.Value())
		if prompt == "" {
			return m, nil
		}
		m.input.Reset()
		cmds := m.app.Controller.HandlePromptSubmitted(prompt)
		m.refreshTranscript()
		return m, tea.Batch(m.dispatch(cmds), m.spinCmd())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	summaries := m.app.Store.Summaries()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.listIndex > 0 {
			m.listIndex--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.listIndex < len(summaries)-1 {
			m.listIndex++
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.listIndex >= 0 && m.listIndex < len(summaries) {
			cmds := m.app.Controller.HandleConversationSelected(summaries[m.listIndex])
			m.refreshTranscript()
			return m, tea.Batch(m.dispatch(cmds), m.spinCmd())
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if m.listIndex >= 0 && m.listIndex < len(summaries) {
			cmds := m.app.Controller.HandleDeleteRequested(summaries[m.listIndex].ID)
			return m, m.dispatch(cmds)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) clampListIndex() {
	n := len(m.app.Store.Summaries())
	if m.listIndex >= n {
		m.listIndex = n - 1
	}
	if m.listIndex < 0 {
		m.listIndex = 0
	}
}

func (m *Model) sidebarWidth() int {
	if m.width < 100 {
		return 28
	}
	return 34
}

func (m *Model) transcriptHeight() int {
	h := m.height - 9
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	m.transcript.SetContent(m.renderTranscript())
	m.transcript.GotoBottom()
}

func (m *Model) renderTranscript() string {
	detail := m.app.Store.Detail()
	events := m.app.Stream.Events()

	var b strings.Builder
	if detail == nil {
		if m.app.Controller.SelectedID() == "" {
			b.WriteString(m.theme.TopBarMeta.Render("Start a conversation:"))
			b.WriteString("\n\n")
			for _, s := range starterPrompts {
				b.WriteString("  " + m.theme.ListPreview.Render(s) + "\n")
			}
			return b.String()
		}
		b.WriteString(m.theme.TopBarMeta.Render("Loading conversation..."))
		return b.String()
	}

	for _, msg := range detail.Messages {
		text := messageText(msg.Content)
		if text == "" {
			continue
		}
		switch msg.Role {
		case app.RoleUser:
			b.WriteString(m.theme.RoleYou.Render("you ") + text + "\n\n")
		case app.RoleAssistant:
			b.WriteString(m.theme.RoleAI.Render("agent ") + text + "\n\n")
		default:
			b.WriteString(m.theme.RoleSys.Render(msg.Role+" ") + text + "\n\n")
		}
	}

	if reasoning := reasoningText(events); reasoning != "" {
		b.WriteString(m.theme.EventReasoning.Render("reasoning") + "\n")
		for _, line := range strings.Split(reasoning, "\n") {
			b.WriteString(m.theme.EventReasoning.Render("  "+line) + "\n")
		}
		b.WriteString("\n")
	}

	for _, ev := range events {
		if ev.Type == app.EventTypeReasoning {
			continue
		}
		line := eventLine(ev)
		if line == "" {
			continue
		}
		style := m.theme.EventTool
		if ev.Subtype == app.EventSubtypeError {
			style = m.theme.EventError
		}
		b.WriteString(style.Render(line) + "\n")
	}
	return b.String()
}

func (m *Model) renderSidebar() string {
	summaries := m.app.Store.Summaries()
	width := m.sidebarWidth() - 2

	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("CONVERSATIONS"))
	b.WriteString("\n\n")
	if len(summaries) == 0 {
		b.WriteString(m.theme.ListPreview.Render("No conversations yet."))
	}
	selected := m.app.Controller.SelectedID()
	for i, s := range summaries {
		label := truncate(summaryTitle(s), width-8)
		badge := m.theme.StatusBadge.Render("[" + s.Status + "]")
		style := m.theme.ListItem
		marker := "  "
		if s.ID == selected {
			style = m.theme.ListItemActive
		}
		if m.focus == focusList && i == m.listIndex {
			marker = "> "
		}
		b.WriteString(marker + style.Render(label) + " " + badge + "\n")
		if preview := summaryPreview(s); preview != "" {
			b.WriteString("  " + m.theme.ListPreview.Render(truncate(preview, width)) + "\n")
		}
	}
	return m.theme.Sidebar.Width(m.sidebarWidth()).Height(m.transcriptHeight()).Render(b.String())
}

func (m *Model) renderStatusLine() string {
	controller := m.app.Controller

	if err := controller.LastError(); err != "" {
		return m.theme.ErrorText.Render("✗ " + err)
	}
	if controller.TransportDown() {
		return m.theme.WarnText.Render("connection lost, retrying...")
	}
	switch m.app.Stream.State() {
	case app.StreamConnecting:
		return m.theme.Spinner.Render(spinnerFrames[m.spinFrame]) + " connecting to run..."
	case app.StreamStreaming:
		return m.theme.Spinner.Render(spinnerFrames[m.spinFrame]) + " agent working..."
	case app.StreamError:
		return m.theme.WarnText.Render("stream interrupted")
	}
	if !m.healthy {
		return m.theme.WarnText.Render("backend unreachable")
	}
	return m.theme.OKText.Render("ready")
}

func (m *Model) View() string {
	if !m.ready {
		return "starting duckchat..."
	}
	if m.showHelp {
		return m.help.View()
	}

	top := m.theme.TopBar.Render(
		m.theme.TopBarTitle.Render("duckchat") + "  " +
			m.theme.TopBarMeta.Render(m.app.Config.BackendURL),
	)

	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderSidebar(),
		m.theme.Pane.Width(m.width-m.sidebarWidth()-2).Render(m.transcript.View()),
	)

	inputStyle := m.theme.InputBox
	if m.focus == focusComposer {
		inputStyle = m.theme.InputBoxF
	}

	footer := m.theme.Footer.Render("tab focus | ctrl+n new | ctrl+d delete | ctrl+h help | ctrl+c quit")

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		top,
		body,
		m.renderStatusLine(),
		inputStyle.Render(m.input.View()),
		footer,
	)
}
