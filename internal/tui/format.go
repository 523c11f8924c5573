package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"duckchat/internal/app"
)

// messageText renders a message's loosely structured content for the
// transcript. Unlike the list preview this keeps the full text.
func messageText(content interface{}) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]interface{}:
		if s, ok := v["text"].(string); ok {
			return strings.TrimSpace(s)
		}
		if s := app.ExtractPreview(v); s != "" {
			return s
		}
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprint(content)
	}
	return string(raw)
}

// reasoningText joins the reason fragments of all reasoning events, the way
// the agent's thinking is shown as one block while a run is live.
func reasoningText(events []app.AgentEvent) string {
	var parts []string
	for _, ev := range events {
		if ev.Type != app.EventTypeReasoning {
			continue
		}
		if m, ok := ev.Content.(map[string]interface{}); ok {
			if reason, ok := m["reason"].(string); ok && strings.TrimSpace(reason) != "" {
				parts = append(parts, strings.TrimSpace(reason))
				continue
			}
		}
		if s := app.ExtractPreview(ev.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// eventLine formats one live event as a single activity row.
func eventLine(ev app.AgentEvent) string {
	switch ev.Type {
	case app.EventTypeReasoning:
		if m, ok := ev.Content.(map[string]interface{}); ok {
			if reason, ok := m["reason"].(string); ok && strings.TrimSpace(reason) != "" {
				return "· " + strings.TrimSpace(reason)
			}
		}
		if s := app.ExtractPreview(ev.Content); s != "" {
			return "· " + s
		}
		return "· thinking"
	case app.EventTypeTool:
		name := ""
		if m, ok := ev.Content.(map[string]interface{}); ok {
			if s, ok := m["name"].(string); ok {
				name = s
			}
		}
		if name == "" {
			name = "tool"
		}
		switch ev.Subtype {
		case app.EventSubtypeStart:
			return "▶ " + name
		case app.EventSubtypeEnd:
			return "✓ " + name
		case app.EventSubtypeError:
			return "✗ " + name
		}
		return "• " + name
	case app.EventTypeMessage:
		if s := app.ExtractPreview(ev.Content); s != "" {
			return s
		}
		return ""
	case app.EventTypeRun:
		switch ev.Subtype {
		case app.EventSubtypeStart:
			return "run started"
		case app.EventSubtypeEnd:
			return "run finished"
		case app.EventSubtypeError:
			return "run failed"
		}
	}
	return ""
}

// summaryTitle is the sidebar label for a conversation.
func summaryTitle(s app.ConversationSummary) string {
	if s.Title != nil && strings.TrimSpace(*s.Title) != "" {
		return strings.TrimSpace(*s.Title)
	}
	return "Untitled"
}

func summaryPreview(s app.ConversationSummary) string {
	if s.LastMessagePreview == nil {
		return ""
	}
	return strings.TrimSpace(*s.LastMessagePreview)
}

// truncate cuts s to width runes with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
