package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client is a hand-written HTTP client for the queue engine's introspection
// API (spec.md §6's "Connection interface" surfaced over HTTP rather than
// as an in-process queue.Client). There is no OpenAPI spec to generate it
// from in this retrieval pack, so it talks to the routes in
// internal/api/routes.go directly with net/http, in the functional-options
// shape the rest of this package already uses.
type Client struct {
	baseURL string
	opts    *options
	ws      *WebSocketClient
}

// New creates a new Client pointed at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{baseURL: baseURL, opts: o}, nil
}

// ConnectWebSocket establishes a WebSocket connection for real-time events.
func (c *Client) ConnectWebSocket(ctx context.Context) error {
	if c.ws != nil && c.ws.IsConnected() {
		return nil
	}
	c.ws = newWebSocketClient(c.baseURL, c.opts.apiKey)
	return c.ws.Connect(ctx)
}

// Events returns a channel that receives WebSocket events. Must call
// ConnectWebSocket first.
func (c *Client) Events() <-chan *Event {
	if c.ws == nil {
		ch := make(chan *Event)
		close(ch)
		return ch
	}
	return c.ws.Events()
}

// CloseWebSocket closes the WebSocket connection.
func (c *Client) CloseWebSocket() error {
	if c.ws == nil {
		return nil
	}
	return c.ws.Close()
}

// SubscribeEvents subscribes to specific event types.
func (c *Client) SubscribeEvents(eventTypes ...EventType) error {
	if c.ws == nil {
		return fmt.Errorf("websocket not connected")
	}
	return c.ws.Subscribe(eventTypes...)
}

// Stats mirrors queue.Stats, the body of GET /api/v1/queues/{queue}/statistics.
type Stats struct {
	Total                 int64       `json:"total"`
	Finished              int64       `json:"finished"`
	TotalPendingTime      int64       `json:"total_pending_time"`
	TotalProcessingTime   int64       `json:"total_processing_time"`
	AveragePendingTime    interface{} `json:"average_pending_time"`
	AverageProcessingTime interface{} `json:"average_processing_time"`
	FailedTasks           int64       `json:"failed_tasks"`
	BlockedGroups         int64       `json:"blocked_groups"`
	BlockedTasks          int64       `json:"blocked_tasks"`
	PendingTasks          int64       `json:"pending_tasks"`
}

// Enqueue posts args to a named queue's ingress list. args[0] is the group id.
func (c *Client) Enqueue(ctx context.Context, queueName string, args []interface{}) error {
	body := map[string]interface{}{"args": args}
	_, err := c.doJSON(ctx, http.MethodPost, "/api/v1/queues/"+url.PathEscape(queueName)+"/tasks", body, nil)
	return err
}

// Statistics fetches the derived statistics for a named queue.
func (c *Client) Statistics(ctx context.Context, queueName string) (*Stats, error) {
	var stats Stats
	_, err := c.doJSON(ctx, http.MethodGet, "/api/v1/queues/"+url.PathEscape(queueName)+"/statistics", nil, &stats)
	return &stats, err
}

// FailedTasks fetches the FAILED listing for a named queue.
func (c *Client) FailedTasks(ctx context.Context, queueName string) ([][]interface{}, error) {
	var out struct {
		Tasks [][]interface{} `json:"tasks"`
	}
	_, err := c.doJSON(ctx, http.MethodGet, "/api/v1/queues/"+url.PathEscape(queueName)+"/failed", nil, &out)
	return out.Tasks, err
}

// BlockedGroups fetches the BLOCKED listing for a named queue.
func (c *Client) BlockedGroups(ctx context.Context, queueName string) ([]string, error) {
	var out struct {
		Groups []string `json:"groups"`
	}
	_, err := c.doJSON(ctx, http.MethodGet, "/api/v1/queues/"+url.PathEscape(queueName)+"/blocked", nil, &out)
	return out.Groups, err
}

// RecentlyFinishedTasks fetches the RECENT listing for a named queue.
func (c *Client) RecentlyFinishedTasks(ctx context.Context, queueName string) ([][]interface{}, error) {
	var out struct {
		Tasks [][]interface{} `json:"tasks"`
	}
	_, err := c.doJSON(ctx, http.MethodGet, "/api/v1/queues/"+url.PathEscape(queueName)+"/recent", nil, &out)
	return out.Tasks, err
}

// Reschedule triggers §4.4's collapse of FAILED/BLOCKED back into SOURCE
// and returns the number of tasks moved.
func (c *Client) Reschedule(ctx context.Context, queueName string) (int, error) {
	var out struct {
		Moved int `json:"moved"`
	}
	_, err := c.doJSON(ctx, http.MethodPost, "/api/v1/queues/"+url.PathEscape(queueName)+"/reschedule", nil, &out)
	return out.Moved, err
}

// Queues lists every registered queue name.
func (c *Client) Queues(ctx context.Context) ([]string, error) {
	var out struct {
		Queues []string `json:"queues"`
	}
	_, err := c.doJSON(ctx, http.MethodGet, "/api/v1/queues", nil, &out)
	return out.Queues, err
}

// WorkerInfo mirrors worker.WorkerInfo, one entry of ListWorkers.
type WorkerInfo struct {
	ID            string   `json:"id"`
	State         string   `json:"state"`
	ActiveGroups  []string `json:"active_groups"`
	Concurrency   int      `json:"concurrency"`
	LastHeartbeat string   `json:"last_heartbeat"`
}

// ListWorkers returns every currently registered worker.
func (c *Client) ListWorkers(ctx context.Context) ([]WorkerInfo, error) {
	var out struct {
		Workers []WorkerInfo `json:"workers"`
	}
	_, err := c.doJSON(ctx, http.MethodGet, "/admin/workers", nil, &out)
	return out.Workers, err
}

// PauseWorker pauses a worker by id.
func (c *Client) PauseWorker(ctx context.Context, workerID string) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/admin/workers/"+url.PathEscape(workerID)+"/pause", nil, nil)
	return err
}

// ResumeWorker resumes a paused worker by id.
func (c *Client) ResumeWorker(ctx context.Context, workerID string) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/admin/workers/"+url.PathEscape(workerID)+"/resume", nil, nil)
	return err
}

// HealthStatus mirrors the body of GET /admin/health.
type HealthStatus struct {
	Status string `json:"status"`
	Redis  string `json:"redis"`
}

// CheckHealth checks the health of the API server.
func (c *Client) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	_, err := c.doJSON(ctx, http.MethodGet, "/admin/health", nil, &out)
	return &out, err
}

// apiError is returned for any non-2xx response, matching
// handlers.ErrorResponse's wire shape.
type apiError struct {
	StatusCode int
	Err        string
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Err, e.StatusCode, e.Message)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.opts.applyHeaders()(req); err != nil {
		return nil, err
	}

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return resp, &apiError{StatusCode: resp.StatusCode, Err: errBody.Error, Message: errBody.Message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}
