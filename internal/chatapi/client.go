package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Service is the Conversation Service as seen by clients.
type Service interface {
	History(ctx context.Context, agentID string) ([]HistoryItem, error)
	Cost(ctx context.Context, agentID string) (float64, error)
	Agents(ctx context.Context) ([]Agent, error)
	CreateAgent(ctx context.Context, req CreateAgentRequest) (Agent, error)
	// SendMessage registers a paid message. Callers must never retry it
	// automatically.
	SendMessage(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error)
}

// Default client settings.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("conversation service status %d: %s", e.StatusCode, e.Message)
}

// HTTPClient implements Service over HTTP.
type HTTPClient struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithRetries sets retry count and initial delay for read requests.
func WithRetries(n int, delay time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
		c.retryDelay = delay
	}
}

// NewHTTPClient creates a client for the service at baseURL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Service = (*HTTPClient)(nil)

// History returns the stored conversation with agentID in order.
func (c *HTTPClient) History(ctx context.Context, agentID string) ([]HistoryItem, error) {
	var out []HistoryItem
	if err := c.get(ctx, "/chat/messages", agentQuery(agentID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cost returns the current per-message cost for agentID.
func (c *HTTPClient) Cost(ctx context.Context, agentID string) (float64, error) {
	var out CostResponse
	if err := c.get(ctx, "/chat/cost", agentQuery(agentID), &out); err != nil {
		return 0, err
	}
	return out.Cost, nil
}

// Agents lists the configured agents.
func (c *HTTPClient) Agents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	if err := c.get(ctx, "/agents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AgentStats returns exchange statistics for agentID.
func (c *HTTPClient) AgentStats(ctx context.Context, agentID string) (AgentStats, error) {
	var out AgentStats
	if err := c.get(ctx, "/agents/"+url.PathEscape(agentID)+"/stats", nil, &out); err != nil {
		return AgentStats{}, err
	}
	return out, nil
}

// CreateAgent creates an agent.
func (c *HTTPClient) CreateAgent(ctx context.Context, req CreateAgentRequest) (Agent, error) {
	var out Agent
	if err := c.post(ctx, "/agents", req, &out); err != nil {
		return Agent{}, err
	}
	return out, nil
}

// SendMessage posts a paid message. It is attempted exactly once.
func (c *HTTPClient) SendMessage(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error) {
	var out SendMessageResponse
	if err := c.post(ctx, "/chat", req, &out); err != nil {
		return SendMessageResponse{}, err
	}
	return out, nil
}

func agentQuery(agentID string) url.Values {
	if agentID == "" {
		return nil
	}
	return url.Values{"agentId": []string{agentID}}
}

// get performs an idempotent GET with exponential backoff on transport
// errors and 5xx/429 responses.
func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		err = c.do(req, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if se, ok := err.(*StatusError); ok && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		var er ErrorResponse
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
