package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the analytics agent backend over plain JSON REST. The
// live event feed has its own connection and lives in StreamConnector.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *Logger
}

// RequestError is a REST call that reached the backend but came back
// non-2xx, or whose body could not be decoded. It is surfaced to the caller
// as-is; there is no automatic retry.
type RequestError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("%s: status %d %s", e.Op, e.StatusCode, body)
}

func (e *RequestError) Unwrap() error { return e.Err }

func NewClient(cfg Config, logger *Logger) *Client {
	timeout := time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	return &Client{
		BaseURL: NormalizeBackendURL(cfg.BackendURL),
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var out []ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetConversation(ctx context.Context, id string, includeEvents bool) (*ConversationDetail, error) {
	path := "/sessions/" + id
	if includeEvents {
		path += "?include_events=true"
	}
	var out ConversationDetail
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (*CreateConversationResponse, error) {
	var out CreateConversationResponse
	if err := c.do(ctx, http.MethodPost, "/sessions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AppendMessage(ctx context.Context, conversationID string, req AppendMessageRequest) (*AppendMessageResponse, error) {
	var out AppendMessageResponse
	if err := c.do(ctx, http.MethodPost, "/sessions/"+conversationID+"/messages", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+id, nil, nil)
}

func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var out Settings
	if err := c.do(ctx, http.MethodGet, "/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSettings(ctx context.Context, s Settings) (*Settings, error) {
	var out Settings
	if err := c.do(ctx, http.MethodPut, "/settings", s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health probes GET /health on the backend host. The health endpoint sits at
// the server root, not under the chat API prefix.
func (c *Client) Health(ctx context.Context) bool {
	root := c.BaseURL
	if i := strings.Index(root, "/api/"); i >= 0 {
		root = root[:i]
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(request)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 300
}

// EventsURL resolves a per-run events path against the backend host. Paths
// arrive host-relative (e.g. /api/v1/agent/{run}/events), so the chat API
// prefix is stripped from the base first.
func (c *Client) EventsURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	root := c.BaseURL
	if i := strings.Index(root, "/api/"); i >= 0 {
		root = root[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return root + path
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &RequestError{Op: op, Err: err}
		}
		reader = bytes.NewReader(payload)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(request)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	if resp.StatusCode >= 300 {
		c.Logger.Warn("request failed", map[string]interface{}{
			"op":     op,
			"status": resp.StatusCode,
		})
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
