package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Connector is the slice of StreamConnector the controller drives. Tests
// substitute a fake to assert subscription churn.
type Connector interface {
	Subscribe(runID, url string)
	Unsubscribe()
	Reset()
}

// Command is asynchronous work the controller wants done. The caller (the
// TUI loop or a headless driver) executes it and feeds the completion back
// in as another Handle* call. Keeping the network out of the controller
// makes every race in this file a plain unit test.
type Command interface{ isCommand() }

// RefetchCommand asks for an authoritative detail fetch of a conversation.
// Epoch is captured at issue time; a completion carrying a stale epoch is
// discarded without touching the store.
type RefetchCommand struct {
	ConversationID string
	Epoch          uint64
}

// RefreshListCommand asks for a fresh GET /sessions.
type RefreshListCommand struct{}

// CreateConversationCommand starts a new conversation from a prompt.
type CreateConversationCommand struct {
	Prompt string
	TempID string
}

// AppendMessageCommand posts a user turn to an existing conversation.
type AppendMessageCommand struct {
	ConversationID string
	Prompt         string
	Model          string
}

// DeleteConversationCommand deletes a conversation server-side.
type DeleteConversationCommand struct {
	ConversationID string
}

func (RefetchCommand) isCommand()            {}
func (RefreshListCommand) isCommand()        {}
func (CreateConversationCommand) isCommand() {}
func (AppendMessageCommand) isCommand()      {}
func (DeleteConversationCommand) isCommand() {}

const (
	refetchReasonSelect   = "select"
	refetchReasonTerminal = "terminal"
)

// RunLifecycleController decides which run the connector should stream for
// the selected conversation and reconciles conversation state when that run
// concludes. It consumes discrete events and emits Commands; it never
// performs I/O itself. All Handle* methods must be called from one
// goroutine (the bubbletea update loop).
type RunLifecycleController struct {
	store      *ConversationStore
	connector  Connector
	resolveURL func(path string) string
	logger     *Logger

	defaultModel string

	selectedID      string
	pendingCreateID string
	boundRunID      string
	handled         map[string]bool
	epoch           uint64
	refetchPending  bool
	refetchReason   string
	refetchQueued   string

	lastError     string
	transportDown bool
}

func NewRunLifecycleController(store *ConversationStore, connector Connector, resolveURL func(string) string, logger *Logger) *RunLifecycleController {
	if resolveURL == nil {
		resolveURL = func(path string) string { return path }
	}
	return &RunLifecycleController{
		store:      store,
		connector:  connector,
		resolveURL: resolveURL,
		logger:     logger,
		handled:    make(map[string]bool),
	}
}

func (c *RunLifecycleController) SelectedID() string { return c.selectedID }

// LastError is the inline error text for the most recent failed user
// action, empty when there is none.
func (c *RunLifecycleController) LastError() string { return c.lastError }

func (c *RunLifecycleController) ClearError() { c.lastError = "" }

// TransportDown reports whether the live feed is currently lost (the
// "connection lost, retrying" indicator).
func (c *RunLifecycleController) TransportDown() bool { return c.transportDown }

// SetDefaultModel records the model attached to appended messages, usually
// sourced from backend settings.
func (c *RunLifecycleController) SetDefaultModel(model string) { c.defaultModel = model }

// HandleSessionsLoaded merges an authoritative summary list. The current
// selection is kept when it still exists; with no prior selection the first
// conversation is opened.
func (c *RunLifecycleController) HandleSessionsLoaded(list []ConversationSummary) []Command {
	// An optimistic create not yet confirmed is absent from the server
	// list; keep it visible until the create response lands.
	var optimistic *ConversationSummary
	if c.pendingCreateID != "" {
		if prev, ok := c.store.Summary(c.pendingCreateID); ok {
			optimistic = &prev
		}
	}
	c.store.ReplaceSummaries(list)
	if optimistic != nil {
		c.store.UpsertSummary(*optimistic)
	}

	if len(list) == 0 {
		if c.pendingCreateID == "" && c.selectedID != "" {
			c.clearSelection()
		}
		return nil
	}
	if c.selectedID == "" {
		if c.pendingCreateID != "" {
			return nil
		}
		return c.selectSummary(list[0])
	}
	if match, ok := cachedSummary(list, c.selectedID); ok {
		c.rebind(match.ActiveRunID(), match.EventsURL)
	}
	return nil
}

// HandleConversationSelected switches the view to the given conversation:
// the previous subscription and event log are torn down before anything for
// the new conversation is established.
func (c *RunLifecycleController) HandleConversationSelected(summary ConversationSummary) []Command {
	c.pendingCreateID = ""
	return c.selectSummary(summary)
}

func (c *RunLifecycleController) selectSummary(summary ConversationSummary) []Command {
	c.selectedID = summary.ID
	c.bumpEpoch()
	c.handled = make(map[string]bool)
	c.store.SetDetail(nil)
	c.boundRunID = ""
	c.connector.Unsubscribe()
	c.rebind(summary.ActiveRunID(), summary.EventsURL)
	return c.issueRefetch(refetchReasonSelect)
}

// HandleNewConversationRequested clears the selection so the next submitted
// prompt creates a conversation.
func (c *RunLifecycleController) HandleNewConversationRequested() []Command {
	c.pendingCreateID = ""
	c.clearSelection()
	return nil
}

func (c *RunLifecycleController) clearSelection() {
	c.selectedID = ""
	c.bumpEpoch()
	c.handled = make(map[string]bool)
	c.store.SetDetail(nil)
	c.boundRunID = ""
	c.connector.Unsubscribe()
}

// HandlePromptSubmitted routes a user prompt: append to the selected
// conversation, or create a new one with an optimistic summary at the head
// of the list.
func (c *RunLifecycleController) HandlePromptSubmitted(prompt string) []Command {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}
	c.lastError = ""

	if c.selectedID == "" || c.selectedID == c.pendingCreateID {
		tempID := "pending-" + uuid.NewString()
		now := time.Now().UTC().Format(time.RFC3339)
		title := clip(prompt, 80)
		preview := clip(prompt, PreviewMaxLen)
		c.store.UpsertSummary(ConversationSummary{
			ID:                 tempID,
			Title:              &title,
			Status:             StatusActive,
			CreatedAt:          now,
			UpdatedAt:          now,
			LastMessagePreview: &preview,
		})
		c.pendingCreateID = tempID
		c.selectedID = tempID
		c.bumpEpoch()
		c.handled = make(map[string]bool)
		return []Command{CreateConversationCommand{Prompt: prompt, TempID: tempID}}
	}

	conversationID := c.selectedID
	c.store.AppendLocalMessage(conversationID, ChatMessage{
		ID:        "local-" + uuid.NewString(),
		Role:      RoleUser,
		Content:   map[string]interface{}{"text": prompt},
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Seq:       nextSeq(c.store.Detail()),
	})
	if summary, ok := c.store.Summary(conversationID); ok {
		preview := clip(prompt, PreviewMaxLen)
		summary.Status = StatusActive
		summary.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		summary.LastMessagePreview = &preview
		c.store.UpsertSummary(summary)
	}
	return []Command{AppendMessageCommand{
		ConversationID: conversationID,
		Prompt:         prompt,
		Model:          c.defaultModel,
	}}
}

// HandleConversationCreated resolves an optimistic create: the authoritative
// entry replaces the temporary one and the new run starts streaming.
func (c *RunLifecycleController) HandleConversationCreated(cmd CreateConversationCommand, resp *CreateConversationResponse, err error) []Command {
	if err != nil {
		c.lastError = fmt.Sprintf("create conversation: %v", err)
		c.store.RemoveSummary(cmd.TempID)
		if c.selectedID == cmd.TempID {
			c.clearSelection()
		}
		c.pendingCreateID = ""
		c.logger.Error("create conversation failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	realID := resp.ConversationRef()
	optimistic, hadOptimistic := c.store.Summary(cmd.TempID)
	c.store.RemoveSummary(cmd.TempID)
	confirmed := optimistic
	if !hadOptimistic {
		now := time.Now().UTC().Format(time.RFC3339)
		title := clip(cmd.Prompt, 80)
		preview := clip(cmd.Prompt, PreviewMaxLen)
		confirmed = ConversationSummary{Title: &title, Status: StatusActive, CreatedAt: now, UpdatedAt: now, LastMessagePreview: &preview}
	}
	confirmed.ID = realID
	confirmed.Status = StatusActive
	confirmed.RunID = resp.RunID
	confirmed.EventsURL = resp.EventsURL
	c.store.UpsertSummary(confirmed)

	if c.selectedID == cmd.TempID || c.selectedID == "" {
		c.selectedID = realID
		c.bumpEpoch()
		c.handled = make(map[string]bool)
	}
	c.pendingCreateID = ""
	if c.selectedID == realID {
		c.rebind(confirmed.ActiveRunID(), confirmed.EventsURL)
		return append(c.issueRefetch(refetchReasonSelect), RefreshListCommand{})
	}
	return []Command{RefreshListCommand{}}
}

// HandleMessageAppended resolves a follow-up submission: the conversation
// stays selected and the queued run (if any) replaces the old binding.
func (c *RunLifecycleController) HandleMessageAppended(cmd AppendMessageCommand, resp *AppendMessageResponse, err error) []Command {
	if err != nil {
		c.lastError = fmt.Sprintf("send message: %v", err)
		c.logger.Error("append message failed", map[string]interface{}{
			"conversation_id": cmd.ConversationID,
			"error":           err.Error(),
		})
		return nil
	}
	if summary, ok := c.store.Summary(cmd.ConversationID); ok {
		if resp.RunID != "" {
			summary.RunID = resp.RunID
			summary.EventsURL = resp.EventsURL
		}
		summary.Status = StatusActive
		c.store.UpsertSummary(summary)
	}
	if c.selectedID == cmd.ConversationID {
		runID := resp.RunID
		eventsURL := resp.EventsURL
		if runID == "" {
			if summary, ok := c.store.Summary(cmd.ConversationID); ok {
				runID = summary.RunID
				eventsURL = summary.EventsURL
			}
		}
		c.rebind(runID, eventsURL)
	}
	return []Command{RefreshListCommand{}}
}

// HandleStreamNotice reacts to connector activity. A terminal event for the
// bound run triggers exactly one authoritative refetch; anything arriving
// for a run that is no longer bound is ignored.
func (c *RunLifecycleController) HandleStreamNotice(notice StreamNotice) []Command {
	switch notice.Kind {
	case NoticeOpened:
		c.transportDown = false
		return nil
	case NoticeError:
		c.transportDown = true
		return nil
	case NoticeClosed:
		// Clean close without a terminal event: unknown completion. The
		// backend is the only party that knows how the run ended, so
		// reconcile against it rather than assuming success or failure.
		c.transportDown = true
		if notice.RunID == "" || notice.RunID != c.boundRunID || c.selectedID == "" {
			return nil
		}
		if c.handled[notice.RunID] {
			return nil
		}
		return c.issueRefetch(refetchReasonTerminal)
	case NoticeEvent:
		if notice.RunID == "" || notice.RunID != c.boundRunID || c.selectedID == "" {
			return nil
		}
		if !notice.Event.Terminal() {
			return nil
		}
		if c.handled[notice.RunID] {
			return nil
		}
		c.handled[notice.RunID] = true
		return c.issueRefetch(refetchReasonTerminal)
	}
	return nil
}

// HandleRefetchCompleted merges an authoritative detail fetch. A completion
// that no longer matches the current selection or epoch is discarded whole:
// the user has moved on and this response must not overwrite their view.
func (c *RunLifecycleController) HandleRefetchCompleted(cmd RefetchCommand, detail *ConversationDetail, err error) []Command {
	if cmd.Epoch != c.epoch || cmd.ConversationID != c.selectedID {
		return nil
	}
	c.refetchPending = false
	reason := c.refetchReason
	c.refetchReason = ""
	queued := c.refetchQueued
	c.refetchQueued = ""

	if err != nil {
		// Leave prior state untouched: a conversation still marked active
		// with its last known run id is consistent, a false idle is not.
		c.logger.Error("detail refetch failed", map[string]interface{}{
			"conversation_id": cmd.ConversationID,
			"error":           err.Error(),
		})
		if queued != "" {
			return c.issueRefetch(queued)
		}
		return nil
	}

	c.store.SetDetail(detail)

	summary, ok := c.store.Summary(cmd.ConversationID)
	if !ok {
		summary = ConversationSummary{
			ID:        detail.ID,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
	}
	summary.Status = detail.Status
	if detail.RunID != "" {
		summary.RunID = detail.RunID
	}
	if detail.EventsURL != "" {
		summary.EventsURL = detail.EventsURL
	}
	summary.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if preview := lastMessagePreview(detail); preview != "" {
		summary.LastMessagePreview = &preview
	}
	c.store.UpsertSummary(summary)

	// A follow-up run queued server-side keeps streaming under its new id;
	// otherwise the conversation is done and the connector goes idle.
	nextRun := ""
	eventsURL := ""
	if detail.Status == StatusActive {
		nextRun = detail.RunID
		eventsURL = detail.EventsURL
		if nextRun == "" {
			nextRun = summary.RunID
			eventsURL = summary.EventsURL
		}
	}
	c.rebind(nextRun, eventsURL)

	var cmds []Command
	if queued != "" {
		cmds = append(cmds, c.issueRefetch(queued)...)
	}
	if reason == refetchReasonTerminal {
		cmds = append(cmds, RefreshListCommand{})
	}
	return cmds
}

// HandleDeleteRequested starts deletion of a conversation.
func (c *RunLifecycleController) HandleDeleteRequested(id string) []Command {
	if id == "" {
		return nil
	}
	return []Command{DeleteConversationCommand{ConversationID: id}}
}

// HandleConversationDeleted applies a completed deletion.
func (c *RunLifecycleController) HandleConversationDeleted(cmd DeleteConversationCommand, err error) []Command {
	if err != nil {
		c.lastError = fmt.Sprintf("delete conversation: %v", err)
		return nil
	}
	c.store.RemoveSummary(cmd.ConversationID)
	if c.selectedID == cmd.ConversationID {
		c.clearSelection()
	}
	return []Command{RefreshListCommand{}}
}

// bumpEpoch invalidates every in-flight refetch issued for the previous
// selection.
func (c *RunLifecycleController) bumpEpoch() {
	c.epoch++
	c.refetchPending = false
	c.refetchReason = ""
	c.refetchQueued = ""
}

// issueRefetch emits at most one outstanding refetch for the current
// selection. A trigger arriving while one is in flight is queued, not
// dropped: the in-flight response was generated before this trigger, so a
// fresh fetch must follow it or the state it reports goes stale for good.
func (c *RunLifecycleController) issueRefetch(reason string) []Command {
	if c.selectedID == "" {
		return nil
	}
	if c.refetchPending {
		if c.refetchQueued == "" || reason == refetchReasonTerminal {
			c.refetchQueued = reason
		}
		return nil
	}
	c.refetchPending = true
	c.refetchReason = reason
	return []Command{RefetchCommand{ConversationID: c.selectedID, Epoch: c.epoch}}
}

// rebind points the connector at a run. Identity comparison against the
// previous binding keeps a re-evaluation of unchanged state from tearing
// down a healthy subscription.
func (c *RunLifecycleController) rebind(runID, eventsPath string) {
	if runID == c.boundRunID {
		return
	}
	c.boundRunID = runID
	if runID == "" {
		c.connector.Unsubscribe()
		return
	}
	if eventsPath == "" {
		// Conventional per-run feed location when the backend response
		// did not carry one.
		eventsPath = "/api/v1/agent/" + runID + "/events"
	}
	c.connector.Subscribe(runID, c.resolveURL(eventsPath))
}

func cachedSummary(list []ConversationSummary, id string) (ConversationSummary, bool) {
	for _, item := range list {
		if item.ID == id {
			return item, true
		}
	}
	return ConversationSummary{}, false
}

func lastMessagePreview(detail *ConversationDetail) string {
	if detail == nil {
		return ""
	}
	for i := len(detail.Messages) - 1; i >= 0; i-- {
		if s := ExtractPreview(detail.Messages[i].Content); s != "" {
			return s
		}
	}
	return ""
}

func nextSeq(detail *ConversationDetail) int {
	if detail == nil {
		return 1
	}
	return len(detail.Messages) + 1
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
