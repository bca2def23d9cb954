// Package apiclient talks to the intake endpoint over HTTP on behalf of the
// conversation controller.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"inquiry-agent/internal/domain"
)

const defaultTimeout = 90 * time.Second

// APIError is a non-2xx answer from the endpoint.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apiclient: status %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// UserMessage is the server's human-readable error text.
func (e *APIError) UserMessage() string {
	return e.Message
}

type Client struct {
	endpoint   string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New returns a client posting to endpoint, the full URL of the chat route.
func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("apiclient: endpoint must not be empty")
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatRequest struct {
	Action   string               `json:"action"`
	Messages []domain.ChatMessage `json:"messages"`
	Audio    string               `json:"audio,omitempty"`
}

type submitRequest struct {
	Action string `json:"action"`
	domain.Submission
}

type submitResponse struct {
	Success    bool              `json:"success"`
	CalPrefill domain.CalPrefill `json:"calPrefill"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage, audio string) (domain.TurnReply, error) {
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	var out domain.TurnReply
	if err := c.post(ctx, chatRequest{Action: "chat", Messages: messages, Audio: audio}, &out); err != nil {
		return domain.TurnReply{}, err
	}
	return out, nil
}

func (c *Client) Submit(ctx context.Context, sub domain.Submission) (domain.CalPrefill, error) {
	if sub.Messages == nil {
		sub.Messages = []domain.ChatMessage{}
	}
	var out submitResponse
	if err := c.post(ctx, submitRequest{Action: "submit", Submission: sub}, &out); err != nil {
		return domain.CalPrefill{}, err
	}
	if !out.Success {
		return domain.CalPrefill{}, errors.New("apiclient: submit was not acknowledged")
	}
	return out.CalPrefill, nil
}

func (c *Client) post(ctx context.Context, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("apiclient: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("apiclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-Id", uuid.NewString())

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("apiclient: read response body: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		return &APIError{StatusCode: res.StatusCode, Code: e.Code, Message: e.Error}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}
