package app

// Wire types for the analytics agent backend. Field names follow the
// backend's JSON exactly; content payloads are loosely structured and are
// kept as interface{} values for the renderer and ExtractPreview to probe.

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ID                 string  `json:"id"`
	Title              *string `json:"title"`
	Status             string  `json:"status"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
	LastMessagePreview *string `json:"last_message_preview"`
	RunID              string  `json:"run_id,omitempty"`
	EventsURL          string  `json:"events_url,omitempty"`
}

// ActiveRunID returns the run that should be streamed for this summary:
// the linked run id while the conversation is active, otherwise nothing.
// A stale run_id on an idle conversation never streams.
func (s *ConversationSummary) ActiveRunID() string {
	if s == nil || s.Status != StatusActive {
		return ""
	}
	return s.RunID
}

// ChatMessage is one persisted message within a conversation.
type ChatMessage struct {
	ID        string      `json:"id"`
	Role      string      `json:"role"`
	Content   interface{} `json:"content"`
	CreatedAt string      `json:"created_at"`
	Seq       int         `json:"seq"`
}

// ConversationDetail is the full view of one conversation, messages ordered
// by seq. Events are present only when the detail was fetched with
// include_events=true.
type ConversationDetail struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Messages  []ChatMessage `json:"messages"`
	Events    []AgentEvent  `json:"events,omitempty"`
	RunID     string        `json:"run_id,omitempty"`
	EventsURL string        `json:"events_url,omitempty"`
}

// AgentEvent is one unit of agent progress pushed over the live feed or
// persisted alongside a conversation.
type AgentEvent struct {
	Type      string                 `json:"type"`
	Subtype   string                 `json:"subtype"`
	Content   interface{}            `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp string                 `json:"timestamp"`
}

// Terminal reports whether this event concludes its run: the first of
// run/end or message/final decides termination.
func (e AgentEvent) Terminal() bool {
	return (e.Type == EventTypeRun && e.Subtype == EventSubtypeEnd) ||
		(e.Type == EventTypeMessage && e.Subtype == EventSubtypeFinal)
}

const (
	StatusActive = "active"
	StatusIdle   = "idle"
	StatusError  = "error"

	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"

	EventTypeReasoning = "reasoning"
	EventTypeTool      = "tool"
	EventTypeMessage   = "message"
	EventTypeRun       = "run"

	EventSubtypeStart = "start"
	EventSubtypeChunk = "chunk"
	EventSubtypeEnd   = "end"
	EventSubtypeFinal = "final"
	EventSubtypeError = "error"
)

// CreateConversationRequest starts a new conversation, optionally kicking
// off a first run from the question.
type CreateConversationRequest struct {
	Question string                 `json:"question,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CreateConversationResponse acknowledges a created conversation. Some
// backend versions return the conversation id as conversation_id, older ones
// as id; ConversationRef resolves that.
type CreateConversationResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id,omitempty"`
	RunID          string `json:"run_id,omitempty"`
	EventsURL      string `json:"events_url,omitempty"`
}

func (r CreateConversationResponse) ConversationRef() string {
	if r.ConversationID != "" {
		return r.ConversationID
	}
	return r.ID
}

// AppendMessageRequest posts a user turn to an existing conversation.
type AppendMessageRequest struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
	Model   string      `json:"model,omitempty"`
}

// AppendMessageResponse acknowledges an appended message and names the run
// queued to answer it, if any.
type AppendMessageResponse struct {
	Status    string `json:"status"`
	RunID     string `json:"run_id,omitempty"`
	EventsURL string `json:"events_url,omitempty"`
}

// Settings is the backend-held user settings document. Only the LLM fields
// are consumed here, for default model selection.
type Settings struct {
	LLMAPIKey string `json:"llm_api_key,omitempty"`
	LLMModel  string `json:"llm_model,omitempty"`
}
