package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := DefaultConfig()
	cfg.BackendURL = server.URL + "/api/v1/chat"
	return NewClient(cfg, NewLogger(nil)), server
}

func TestClientListConversations(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/sessions" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]ConversationSummary{{ID: "c1", Status: StatusIdle}})
	}))

	got, err := client.ListConversations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("ListConversations() = %+v, want one summary c1", got)
	}
}

func TestClientGetConversation_IncludeEvents(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/sessions/c1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("include_events") != "true" {
			t.Error("expected include_events=true")
		}
		_ = json.NewEncoder(w).Encode(ConversationDetail{ID: "c1", Status: StatusActive, RunID: "r1"})
	}))

	got, err := client.GetConversation(context.Background(), "c1", true)
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != "r1" {
		t.Fatalf("detail.RunID = %q, want r1", got.RunID)
	}
}

func TestClientCreateConversation(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/chat/sessions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req CreateConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		if req.Question != "top 5 products" {
			t.Errorf("question = %q", req.Question)
		}
		_ = json.NewEncoder(w).Encode(CreateConversationResponse{
			ID: "c9", ConversationID: "c9", RunID: "r9", EventsURL: "/api/v1/agent/r9/events",
		})
	}))

	got, err := client.CreateConversation(context.Background(), CreateConversationRequest{Question: "top 5 products"})
	if err != nil {
		t.Fatal(err)
	}
	if got.ConversationRef() != "c9" || got.RunID != "r9" {
		t.Fatalf("CreateConversation() = %+v", got)
	}
}

func TestClientAppendMessage(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/sessions/c1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(AppendMessageResponse{Status: "queued", RunID: "r2"})
	}))

	got, err := client.AppendMessage(context.Background(), "c1", AppendMessageRequest{
		Role: RoleUser, Content: map[string]interface{}{"text": "hi"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != "r2" {
		t.Fatalf("AppendMessage().RunID = %q, want r2", got.RunID)
	}
}

func TestClientDeleteConversation_ErrorSurfacesStatus(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	err := client.DeleteConversation(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type = %T, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusNotFound {
		t.Fatalf("StatusCode = %d, want 404", reqErr.StatusCode)
	}
}

func TestClientSettingsRoundTrip(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/settings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(Settings{LLMModel: "duck-1"})
		case http.MethodPut:
			var s Settings
			_ = json.NewDecoder(r.Body).Decode(&s)
			_ = json.NewEncoder(w).Encode(s)
		}
	}))

	got, err := client.GetSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.LLMModel != "duck-1" {
		t.Fatalf("GetSettings().LLMModel = %q, want duck-1", got.LLMModel)
	}

	updated, err := client.UpdateSettings(context.Background(), Settings{LLMModel: "duck-2"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.LLMModel != "duck-2" {
		t.Fatalf("UpdateSettings().LLMModel = %q, want duck-2", updated.LLMModel)
	}
}

func TestClientHealth(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("health probe hit %s, want /health", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	if !client.Health(context.Background()) {
		t.Fatal("Health() = false, want true")
	}
}

func TestClientEventsURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BackendURL = "http://backend:9000/api/v1/chat"
	client := NewClient(cfg, NewLogger(nil))

	tests := []struct {
		in   string
		want string
	}{
		{"/api/v1/agent/r1/events", "http://backend:9000/api/v1/agent/r1/events"},
		{"api/v1/agent/r1/events", "http://backend:9000/api/v1/agent/r1/events"},
		{"http://other:1234/feed", "http://other:1234/feed"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := client.EventsURL(tc.in); got != tc.want {
			t.Fatalf("EventsURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
