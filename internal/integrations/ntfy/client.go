// Package ntfy publishes push notifications to an ntfy.sh topic.
package ntfy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://ntfy.sh"

type Priority string

const (
	PriorityUrgent  Priority = "urgent"
	PriorityHigh    Priority = "high"
	PriorityDefault Priority = "default"
)

type Client struct {
	baseURL    string
	topic      string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(topic string, opts ...Option) (*Client, error) {
	topic = strings.Trim(strings.TrimSpace(topic), "/")
	if topic == "" {
		return nil, errors.New("ntfy: topic must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		topic:      topic,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Push publishes one message.
func (c *Client) Push(ctx context.Context, title, body string, priority Priority) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.topic, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("ntfy: create request: %w", err)
	}
	req.Header.Set("Title", title)
	req.Header.Set("Priority", string(priority))
	if priority == PriorityUrgent {
		req.Header.Set("Tags", "rotating_light")
	} else {
		req.Header.Set("Tags", "warning")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("ntfy: unexpected status %d: %s", res.StatusCode, string(buf))
	}
	return nil
}
