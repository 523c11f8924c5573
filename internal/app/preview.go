package app

import (
	"encoding/json"
	"sort"
	"strings"
)

// PreviewMaxLen caps list previews the same way the backend does.
const PreviewMaxLen = 160

// previewKeys are probed in order on structured content. An explicit final
// answer wins over intermediate structure.
var previewKeys = []string{"final_answer", "answer", "text", "summary", "message", "preview"}

// ExtractPreview pulls a short display string out of a loosely structured
// message or event payload. It never fails: anything it cannot make sense of
// yields "". Strings that themselves decode as JSON are unwrapped first, so
// a double-encoded payload still previews its inner answer.
func ExtractPreview(value interface{}) string {
	return truncatePreview(extract(value, 0))
}

// extract carries a depth guard so cyclic-looking payloads (deeply nested
// content wrappers) terminate.
func extract(value interface{}, depth int) string {
	if value == nil || depth > 16 {
		return ""
	}
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return ""
		}
		if looksLikeJSON(trimmed) {
			var decoded interface{}
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return extract(decoded, depth+1)
			}
		}
		return trimmed
	case []interface{}:
		for _, item := range v {
			if s := extract(item, depth+1); s != "" {
				return s
			}
		}
		return ""
	case map[string]interface{}:
		return extractFromMap(v, depth)
	case json.RawMessage:
		var decoded interface{}
		if err := json.Unmarshal(v, &decoded); err != nil {
			return ""
		}
		return extract(decoded, depth+1)
	default:
		return ""
	}
}

func extractFromMap(m map[string]interface{}, depth int) string {
	for _, key := range previewKeys {
		raw, ok := m[key]
		if !ok || raw == nil {
			continue
		}
		if s, ok := raw.(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
			continue
		}
		if s := extract(raw, depth+1); s != "" {
			return s
		}
	}

	if nested, ok := m["content"]; ok {
		if s := extract(nested, depth+1); s != "" {
			return s
		}
	}

	// A transcript-shaped payload previews its assistant turns first; a run
	// that produced no assistant output falls back to whatever was said.
	if rawMessages, ok := m["messages"].([]interface{}); ok {
		if s := extractFromMessages(rawMessages, depth, true); s != "" {
			return s
		}
		if s := extractFromMessages(rawMessages, depth, false); s != "" {
			return s
		}
	}

	// Last resort: walk the remaining values. Keys are sorted so the result
	// does not depend on map iteration order.
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if key == "messages" || key == "content" || isPreviewKey(key) {
			continue
		}
		if s := extract(m[key], depth+1); s != "" {
			return s
		}
	}
	return ""
}

func extractFromMessages(items []interface{}, depth int, assistantOnly bool) string {
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			if !assistantOnly {
				if s := extract(item, depth+1); s != "" {
					return s
				}
			}
			continue
		}
		if assistantOnly {
			role, _ := entry["role"].(string)
			if role != RoleAssistant {
				continue
			}
		}
		if content, ok := entry["content"]; ok {
			if s := extract(content, depth+1); s != "" {
				return s
			}
		}
		if s := extract(entry, depth+1); s != "" {
			return s
		}
	}
	return ""
}

func isPreviewKey(key string) bool {
	for _, k := range previewKeys {
		if k == key {
			return true
		}
	}
	return false
}

func looksLikeJSON(s string) bool {
	switch s[0] {
	case '{', '[', '"':
		return true
	}
	return false
}

func truncatePreview(s string) string {
	if len(s) <= PreviewMaxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= PreviewMaxLen {
		return s
	}
	return string(runes[:PreviewMaxLen])
}
