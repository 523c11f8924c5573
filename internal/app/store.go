package app

import "sync"

// ConversationStore holds the cached summary list plus the detail of the
// conversation currently on screen. Readers get snapshot copies; writers
// replace state whole, never piecemeal. The mutex exists because the TUI's
// update loop and headless commands may share one store — within the TUI
// everything runs on the bubbletea loop.
type ConversationStore struct {
	mu        sync.RWMutex
	summaries []ConversationSummary
	detail    *ConversationDetail
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{}
}

// Summaries returns a copy of the cached list in server order.
func (s *ConversationStore) Summaries() []ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ConversationSummary, len(s.summaries))
	copy(out, s.summaries)
	return out
}

// Summary returns the cached summary for id, if present.
func (s *ConversationStore) Summary(id string) (ConversationSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.summaries {
		if item.ID == id {
			return item, true
		}
	}
	return ConversationSummary{}, false
}

// ReplaceSummaries swaps in an authoritative list from the server.
func (s *ConversationStore) ReplaceSummaries(list []ConversationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = make([]ConversationSummary, len(list))
	copy(s.summaries, list)
}

// UpsertSummary replaces the entry with the same id in place, or inserts the
// summary at the head of the list. Head insertion is what the optimistic
// create path wants: the new conversation shows up first until the next
// server list reconciles ordering.
func (s *ConversationStore) UpsertSummary(summary ConversationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.summaries {
		if item.ID == summary.ID {
			s.summaries[i] = summary
			return
		}
	}
	s.summaries = append([]ConversationSummary{summary}, s.summaries...)
}

// RemoveSummary drops the entry with the given id; unknown ids are a no-op.
func (s *ConversationStore) RemoveSummary(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.summaries[:0]
	for _, item := range s.summaries {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	s.summaries = kept
}

// Detail returns the currently held conversation detail, or nil.
func (s *ConversationStore) Detail() *ConversationDetail {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detail
}

// SetDetail replaces the held detail wholesale. Passing nil clears it.
func (s *ConversationStore) SetDetail(detail *ConversationDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detail = detail
}

// AppendLocalMessage adds an optimistic message to the open detail before
// the server has confirmed it. No-op when no detail is loaded or the detail
// belongs to a different conversation.
func (s *ConversationStore) AppendLocalMessage(conversationID string, msg ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detail == nil || s.detail.ID != conversationID {
		return
	}
	next := *s.detail
	next.Messages = append(append([]ChatMessage{}, s.detail.Messages...), msg)
	s.detail = &next
}
