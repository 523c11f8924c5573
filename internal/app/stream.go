package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

type StreamState string

const (
	StreamIdle       StreamState = "idle"
	StreamConnecting StreamState = "connecting"
	StreamStreaming  StreamState = "streaming"
	StreamError      StreamState = "error"
)

type NoticeKind string

const (
	NoticeOpened NoticeKind = "opened"
	NoticeEvent  NoticeKind = "event"
	NoticeClosed NoticeKind = "closed"
	NoticeError  NoticeKind = "error"
)

// StreamNotice is one item the connector hands to the UI pump: the stream
// opened, delivered an event, closed without a terminal event, or failed.
type StreamNotice struct {
	Kind  NoticeKind
	RunID string
	Event AgentEvent
	Err   error
}

// StreamConnector owns at most one live subscription to a run's event feed:
// a long-lived GET whose body is newline-delimited JSON, one AgentEvent per
// line. Events accumulate in arrival order; malformed lines are dropped and
// logged. Each subscription gets a new generation number, and a reader
// goroutine whose generation no longer matches cannot touch the log — that
// is what keeps a torn-down conversation's events out of the next one.
type StreamConnector struct {
	httpClient        *http.Client
	logger            *Logger
	autoReconnect     bool
	reconnectInterval time.Duration

	mu             sync.Mutex
	state          StreamState
	runID          string
	url            string
	events         []AgentEvent
	lastErr        string
	sawTerminal    bool
	gen            uint64
	cancel         context.CancelFunc
	reconnectTimer *time.Timer

	notices chan StreamNotice
}

func NewStreamConnector(cfg Config, logger *Logger) *StreamConnector {
	// No client timeout: the feed stays open for the life of the run.
	return &StreamConnector{
		httpClient:        &http.Client{},
		logger:            logger,
		autoReconnect:     cfg.AutoReconnect,
		reconnectInterval: time.Duration(cfg.ReconnectIntervalMs) * time.Millisecond,
		state:             StreamIdle,
		notices:           make(chan StreamNotice, 512),
	}
}

// Notices is the channel the UI pumps for stream activity.
func (c *StreamConnector) Notices() <-chan StreamNotice { return c.notices }

func (c *StreamConnector) State() StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *StreamConnector) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

func (c *StreamConnector) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Events returns a copy of the log for the current subscription, in arrival
// order.
func (c *StreamConnector) Events() []AgentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]AgentEvent, len(c.events))
	copy(out, c.events)
	return out
}

// Subscribe tears down any existing subscription, clears the log, and opens
// a new feed for (runID, url). An empty run id or url parks the connector in
// idle.
func (c *StreamConnector) Subscribe(runID, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.runID = runID
	c.url = url
	c.events = nil
	c.lastErr = ""
	c.sawTerminal = false
	if runID == "" || url == "" {
		c.state = StreamIdle
		return
	}
	c.dialLocked()
}

// Unsubscribe closes the transport, drops the log, and clears the binding.
// Idempotent.
func (c *StreamConnector) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.runID = ""
	c.url = ""
	c.events = nil
	c.lastErr = ""
	c.sawTerminal = false
	c.state = StreamIdle
}

// Reset clears the log and error and re-dials if a run is still bound. The
// reconnect timer calls this when it fires; callers use it to retry after an
// error when auto-reconnect is off.
func (c *StreamConnector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.events = nil
	c.lastErr = ""
	c.sawTerminal = false
	if c.runID == "" || c.url == "" {
		c.state = StreamIdle
		return
	}
	c.dialLocked()
}

func (c *StreamConnector) teardownLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *StreamConnector) dialLocked() {
	c.state = StreamConnecting
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.read(ctx, c.gen, c.runID, c.url)
}

func (c *StreamConnector) read(ctx context.Context, gen uint64, runID, url string) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.handleError(gen, runID, err)
		return
	}
	resp, err := c.httpClient.Do(request)
	if err != nil {
		if ctx.Err() == nil {
			c.handleError(gen, runID, err)
		}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		c.handleError(gen, runID, fmt.Errorf("stream status %d", resp.StatusCode))
		return
	}

	if !c.handleOpened(gen, runID) {
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// Tolerate SSE-framed backends.
		line = strings.TrimPrefix(line, "data:")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !c.handleLine(gen, runID, line) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() == nil {
			c.handleError(gen, runID, err)
		}
		return
	}
	c.handleClosed(gen, runID)
}

func (c *StreamConnector) handleOpened(gen uint64, runID string) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.state = StreamStreaming
	c.lastErr = ""
	c.mu.Unlock()
	c.notify(gen, StreamNotice{Kind: NoticeOpened, RunID: runID})
	return true
}

// handleLine parses and appends one feed line. It returns false when the
// reader should stop: its generation went stale or the run just terminated.
func (c *StreamConnector) handleLine(gen uint64, runID, line string) bool {
	var event AgentEvent
	if err := json.Unmarshal([]byte(line), &event); err != nil || event.Type == "" {
		c.logger.Warn("dropping malformed stream event", map[string]interface{}{
			"run_id": runID,
			"error":  fmt.Sprint(err),
		})
		return true
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.events = append(c.events, event)
	terminal := event.Terminal()
	if terminal {
		// The run has visibly ended; do not keep the transport open.
		c.sawTerminal = true
		c.state = StreamIdle
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}
	c.mu.Unlock()

	c.notify(gen, StreamNotice{Kind: NoticeEvent, RunID: runID, Event: event})
	return !terminal
}

func (c *StreamConnector) handleError(gen uint64, runID string, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = StreamError
	c.lastErr = err.Error()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	c.logger.Warn("stream connection lost", map[string]interface{}{
		"run_id": runID,
		"error":  err.Error(),
	})
	c.notify(gen, StreamNotice{Kind: NoticeError, RunID: runID, Err: err})
}

// handleClosed runs when the feed ends cleanly without a terminal event.
// The connector cannot know how the run finished; it reports the close and
// lets the controller reconcile against the backend.
func (c *StreamConnector) handleClosed(gen uint64, runID string) {
	c.mu.Lock()
	if gen != c.gen || c.sawTerminal {
		c.mu.Unlock()
		return
	}
	c.state = StreamError
	c.lastErr = "stream closed before run completion"
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	c.notify(gen, StreamNotice{Kind: NoticeClosed, RunID: runID})
}

// scheduleReconnectLocked arms at most one pending reconnect. Repeated error
// signals while a timer is pending coalesce into that timer.
func (c *StreamConnector) scheduleReconnectLocked() {
	if !c.autoReconnect || c.reconnectTimer != nil {
		return
	}
	gen := c.gen
	c.reconnectTimer = time.AfterFunc(c.reconnectInterval, func() {
		c.mu.Lock()
		stale := gen != c.gen
		c.reconnectTimer = nil
		c.mu.Unlock()
		if !stale {
			c.Reset()
		}
	})
}

// notify hands a notice to the pump. The send blocks while the reader's
// generation is still current: a terminal event cancels its own transport,
// and that cancellation must not drop the notice reporting the termination.
// Once the generation goes stale the notice belongs to a torn-down
// subscription and is dropped.
func (c *StreamConnector) notify(gen uint64, notice StreamNotice) {
	for {
		select {
		case c.notices <- notice:
			return
		case <-time.After(25 * time.Millisecond):
		}
		c.mu.Lock()
		stale := gen != c.gen
		c.mu.Unlock()
		if stale {
			return
		}
	}
}
