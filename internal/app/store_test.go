package app

import "testing"

func summaryWithID(id string) ConversationSummary {
	return ConversationSummary{ID: id, Status: StatusIdle}
}

func TestStoreUpsertSummary_InsertsAtHead(t *testing.T) {
	store := NewConversationStore()
	store.UpsertSummary(summaryWithID("a"))
	store.UpsertSummary(summaryWithID("b"))

	got := store.Summaries()
	if len(got) != 2 {
		t.Fatalf("len(Summaries()) = %d, want 2", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("order = [%s %s], want [b a]", got[0].ID, got[1].ID)
	}
}

func TestStoreUpsertSummary_ReplacesInPlace(t *testing.T) {
	store := NewConversationStore()
	store.ReplaceSummaries([]ConversationSummary{summaryWithID("a"), summaryWithID("b")})

	updated := summaryWithID("b")
	updated.Status = StatusActive
	store.UpsertSummary(updated)

	got := store.Summaries()
	if len(got) != 2 {
		t.Fatalf("len(Summaries()) = %d, want 2", len(got))
	}
	if got[1].ID != "b" || got[1].Status != StatusActive {
		t.Fatalf("summary b = %+v, want active in place", got[1])
	}
}

func TestStoreRemoveSummary(t *testing.T) {
	store := NewConversationStore()
	store.ReplaceSummaries([]ConversationSummary{summaryWithID("a"), summaryWithID("b")})

	store.RemoveSummary("a")
	store.RemoveSummary("missing")

	got := store.Summaries()
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("Summaries() = %+v, want only b", got)
	}
}

func TestStoreSummaries_ReturnsSnapshot(t *testing.T) {
	store := NewConversationStore()
	store.ReplaceSummaries([]ConversationSummary{summaryWithID("a")})

	snapshot := store.Summaries()
	snapshot[0].ID = "mutated"

	if got, _ := store.Summary("a"); got.ID != "a" {
		t.Fatalf("store summary mutated through snapshot: %+v", got)
	}
}

func TestStoreAppendLocalMessage(t *testing.T) {
	store := NewConversationStore()
	store.SetDetail(&ConversationDetail{ID: "conv", Status: StatusActive})

	store.AppendLocalMessage("conv", ChatMessage{ID: "m1", Role: RoleUser, Seq: 1})
	store.AppendLocalMessage("other", ChatMessage{ID: "m2", Role: RoleUser, Seq: 1})

	detail := store.Detail()
	if len(detail.Messages) != 1 || detail.Messages[0].ID != "m1" {
		t.Fatalf("detail.Messages = %+v, want only m1", detail.Messages)
	}
}

func TestStoreAppendLocalMessage_NoDetail(t *testing.T) {
	store := NewConversationStore()
	store.AppendLocalMessage("conv", ChatMessage{ID: "m1"})
	if store.Detail() != nil {
		t.Fatal("expected no detail to be created")
	}
}
