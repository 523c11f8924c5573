package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func streamConfig(autoReconnect bool) Config {
	cfg := DefaultConfig()
	cfg.AutoReconnect = autoReconnect
	cfg.ReconnectIntervalMs = 30
	return cfg
}

func writeEventLine(t *testing.T, w http.ResponseWriter, line string) {
	t.Helper()
	if _, err := fmt.Fprintln(w, line); err != nil {
		return
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func nextNotice(t *testing.T, c *StreamConnector) StreamNotice {
	t.Helper()
	select {
	case notice := <-c.Notices():
		return notice
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for stream notice")
		return StreamNotice{}
	}
}

func waitForKind(t *testing.T, c *StreamConnector, kind NoticeKind) StreamNotice {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case notice := <-c.Notices():
			if notice.Kind == kind {
				return notice
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s notice", kind)
		}
	}
}

func TestStreamConnector_DeliversEventsInOrderAndStopsOnTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEventLine(t, w, `{"type":"reasoning","subtype":"chunk","content":{"reason":"thinking"}}`)
		writeEventLine(t, w, `not valid json at all`)
		writeEventLine(t, w, `{"type":"tool","subtype":"start","content":{"name":"query"}}`)
		writeEventLine(t, w, `{"type":"run","subtype":"end","content":null}`)
		// Anything after the terminal event must never reach the log.
		writeEventLine(t, w, `{"type":"reasoning","subtype":"chunk","content":{"reason":"late"}}`)
	}))
	defer server.Close()

	c := NewStreamConnector(streamConfig(false), NewLogger(nil))
	c.Subscribe("r1", server.URL)

	if notice := nextNotice(t, c); notice.Kind != NoticeOpened {
		t.Fatalf("first notice = %s, want opened", notice.Kind)
	}

	var terminal StreamNotice
	for i := 0; i < 3; i++ {
		notice := nextNotice(t, c)
		if notice.Kind != NoticeEvent {
			t.Fatalf("notice %d kind = %s, want event", i, notice.Kind)
		}
		terminal = notice
	}
	if !terminal.Event.Terminal() {
		t.Fatalf("last event = %+v, want terminal", terminal.Event)
	}

	events := c.Events()
	if len(events) != 3 {
		t.Fatalf("len(Events()) = %d, want 3 (malformed dropped, post-terminal ignored)", len(events))
	}
	if events[0].Type != EventTypeReasoning || events[1].Type != EventTypeTool || events[2].Type != EventTypeRun {
		t.Fatalf("event order = %s,%s,%s", events[0].Type, events[1].Type, events[2].Type)
	}
	if got := c.State(); got != StreamIdle {
		t.Fatalf("State() after terminal = %s, want idle", got)
	}
}

func TestStreamConnector_SubscribeEmptyRunStaysIdle(t *testing.T) {
	c := NewStreamConnector(streamConfig(false), NewLogger(nil))
	c.Subscribe("", "")
	if got := c.State(); got != StreamIdle {
		t.Fatalf("State() = %s, want idle", got)
	}
	select {
	case notice := <-c.Notices():
		t.Fatalf("unexpected notice %+v", notice)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStreamConnector_ResubscribeReplacesLog(t *testing.T) {
	gate := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		run := r.URL.Query().Get("run")
		if run == "first" {
			// Hold the first connection open until the test is done with it.
			<-gate
			return
		}
		writeEventLine(t, w, `{"type":"message","subtype":"final","content":{"text":"second run answer"}}`)
	}))
	defer server.Close()
	defer close(gate)

	c := NewStreamConnector(streamConfig(false), NewLogger(nil))
	c.Subscribe("r-first", server.URL+"/?run=first")
	c.Subscribe("r-second", server.URL+"/?run=second")

	waitForKind(t, c, NoticeEvent)

	events := c.Events()
	if len(events) != 1 {
		t.Fatalf("len(Events()) = %d, want 1 event from the second run only", len(events))
	}
	if ExtractPreview(events[0].Content) != "second run answer" {
		t.Fatalf("event content = %+v, want second run answer", events[0].Content)
	}
	if got := c.RunID(); got != "r-second" {
		t.Fatalf("RunID() = %q, want r-second", got)
	}
}

func TestStreamConnector_CleanCloseWithoutTerminalReportsClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEventLine(t, w, `{"type":"reasoning","subtype":"chunk","content":{"reason":"partial"}}`)
	}))
	defer server.Close()

	c := NewStreamConnector(streamConfig(false), NewLogger(nil))
	c.Subscribe("r1", server.URL)

	notice := waitForKind(t, c, NoticeClosed)
	if notice.RunID != "r1" {
		t.Fatalf("closed notice run id = %q, want r1", notice.RunID)
	}
	if got := c.State(); got != StreamError {
		t.Fatalf("State() after clean close = %s, want error", got)
	}
}

func TestStreamConnector_ErrorWithoutAutoReconnectStaysDown(t *testing.T) {
	var connections atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connections.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewStreamConnector(streamConfig(false), NewLogger(nil))
	c.Subscribe("r1", server.URL)

	waitForKind(t, c, NoticeError)
	time.Sleep(150 * time.Millisecond)

	if got := connections.Load(); got != 1 {
		t.Fatalf("connections = %d, want 1 (no reconnect when disabled)", got)
	}
	if got := c.State(); got != StreamError {
		t.Fatalf("State() = %s, want error until caller resets", got)
	}
}

func TestStreamConnector_AutoReconnectRetriesOnce(t *testing.T) {
	var connections atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if connections.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeEventLine(t, w, `{"type":"run","subtype":"end","content":null}`)
	}))
	defer server.Close()

	c := NewStreamConnector(streamConfig(true), NewLogger(nil))
	c.Subscribe("r1", server.URL)

	waitForKind(t, c, NoticeError)
	notice := waitForKind(t, c, NoticeEvent)
	if !notice.Event.Terminal() {
		t.Fatalf("event after reconnect = %+v, want terminal", notice.Event)
	}
	if got := connections.Load(); got != 2 {
		t.Fatalf("connections = %d, want 2", got)
	}
	if got := c.State(); got != StreamIdle {
		t.Fatalf("State() = %s, want idle", got)
	}
}

func TestStreamConnector_ResetAfterErrorRedials(t *testing.T) {
	var connections atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if connections.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeEventLine(t, w, `{"type":"run","subtype":"end","content":null}`)
	}))
	defer server.Close()

	c := NewStreamConnector(streamConfig(false), NewLogger(nil))
	c.Subscribe("r1", server.URL)
	waitForKind(t, c, NoticeError)

	c.Reset()
	waitForKind(t, c, NoticeEvent)
	if got := c.State(); got != StreamIdle {
		t.Fatalf("State() after reset = %s, want idle", got)
	}
}

// A terminal event cancels its own transport; the notice reporting it must
// still reach the pump even when the buffer is full at that moment.
func TestStreamConnector_TerminalNoticeSurvivesFullBuffer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 600; i++ {
			writeEventLine(t, w, `{"type":"reasoning","subtype":"chunk","content":{"reason":"chunk"}}`)
		}
		writeEventLine(t, w, `{"type":"run","subtype":"end","content":null}`)
	}))
	defer server.Close()

	c := NewStreamConnector(streamConfig(false), NewLogger(nil))
	c.Subscribe("r1", server.URL)

	// Let the reader saturate the buffer before draining anything.
	fillDeadline := time.Now().Add(3 * time.Second)
	for len(c.Notices()) < cap(c.Notices()) && time.Now().Before(fillDeadline) {
		time.Sleep(10 * time.Millisecond)
	}

	drainDeadline := time.After(5 * time.Second)
	for {
		select {
		case notice := <-c.Notices():
			if notice.Kind == NoticeEvent && notice.Event.Terminal() {
				return
			}
		case <-drainDeadline:
			t.Fatal("terminal notice never delivered through a full buffer")
		}
	}
}

func TestStreamConnector_UnsubscribeIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEventLine(t, w, `{"type":"reasoning","subtype":"chunk","content":{"reason":"x"}}`)
		<-r.Context().Done()
	}))
	defer server.Close()

	c := NewStreamConnector(streamConfig(true), NewLogger(nil))
	c.Subscribe("r1", server.URL)
	waitForKind(t, c, NoticeEvent)

	c.Unsubscribe()
	c.Unsubscribe()

	if got := c.State(); got != StreamIdle {
		t.Fatalf("State() = %s, want idle", got)
	}
	if got := len(c.Events()); got != 0 {
		t.Fatalf("len(Events()) after unsubscribe = %d, want 0", got)
	}
}
