// Package gemini adapts Google's Gemini models to the chat contract used by
// the intent extractor.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"inquiry-agent/internal/domain"
)

// TokenSource yields the API key.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client lazily opens one genai client on first use and reuses it.
type Client struct {
	tokens      TokenSource
	temperature float32
	maxTokens   int32
	opts        []option.ClientOption

	mu     sync.Mutex
	client *genai.Client
}

func NewClient(tokens TokenSource, temperature float32, maxTokens int32, opts ...option.ClientOption) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("gemini: token source must not be nil")
	}
	return &Client{tokens: tokens, temperature: temperature, maxTokens: maxTokens, opts: opts}, nil
}

func (c *Client) genaiClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	key, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini: resolve api key: %w", err)
	}
	opts := append([]option.ClientOption{option.WithAPIKey(key)}, c.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	c.client = client
	return client, nil
}

// Chat maps system messages to the model's system instruction, earlier turns
// to chat history and sends the final user turn.
func (c *Client) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	if model == "" {
		return "", errors.New("gemini: model must not be empty")
	}
	system, history, last, err := splitConversation(messages)
	if err != nil {
		return "", err
	}

	client, err := c.genaiClient(ctx)
	if err != nil {
		return "", err
	}

	gm := client.GenerativeModel(model)
	gm.SetTemperature(c.temperature)
	if c.maxTokens > 0 {
		gm.SetMaxOutputTokens(c.maxTokens)
	}
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := gm.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("gemini: send message: %w", err)
	}
	return responseText(resp)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// splitConversation separates system text, prior turns and the final user
// prompt. Adjacent turns with the same role are merged, since the chat
// history must alternate between user and model.
func splitConversation(messages []domain.ChatMessage) (string, []*genai.Content, string, error) {
	var (
		system  []string
		history []*genai.Content
	)
	turns := make([]domain.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == m.Role {
			turns[n-1].Content += "\n\n" + m.Content
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != domain.RoleUser {
		return "", nil, "", errors.New("gemini: conversation must end with a user message")
	}
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return strings.Join(system, "\n\n"), history, turns[len(turns)-1].Content, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: no candidates in response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}
