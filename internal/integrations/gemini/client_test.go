package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"

	"inquiry-agent/internal/domain"
)

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

func TestNewClient_NilTokens(t *testing.T) {
	_, err := NewClient(nil, 0.7, 512)
	require.Error(t, err)
}

func TestChat_Validation(t *testing.T) {
	c, err := NewClient(staticTokens("key"), 0.7, 512)
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), "", []domain.ChatMessage{{Role: "user", Content: "hi"}})
	require.ErrorContains(t, err, "model")

	_, err = c.Chat(context.Background(), "gemini-1.5-flash", []domain.ChatMessage{{Role: "assistant", Content: "hi"}})
	require.ErrorContains(t, err, "end with a user message")
}

func TestSplitConversation(t *testing.T) {
	system, history, last, err := splitConversation([]domain.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "I need a logo"},
		{Role: "assistant", Content: "What style?"},
		{Role: "user", Content: "Minimal"},
	})
	require.NoError(t, err)
	require.Equal(t, "be brief", system)
	require.Equal(t, "Minimal", last)
	require.Len(t, history, 2)
	require.Equal(t, "user", history[0].Role)
	require.Equal(t, "model", history[1].Role)
	require.Equal(t, genai.Text("What style?"), history[1].Parts[0])
}

func TestSplitConversation_MergesRepeatedRoles(t *testing.T) {
	_, history, last, err := splitConversation([]domain.ChatMessage{
		{Role: "user", Content: "I need a logo"},
		{Role: "assistant", Content: "What style?"},
		{Role: "user", Content: "Minimal"},
		{Role: "user", Content: "Minimal, black and white"},
	})
	require.NoError(t, err)
	require.Equal(t, "Minimal\n\nMinimal, black and white", last)
	require.Len(t, history, 2)

	_, history, last, err = splitConversation([]domain.ChatMessage{
		{Role: "user", Content: "Hi"},
		{Role: "user", Content: "Anyone there?"},
		{Role: "assistant", Content: "Yes"},
		{Role: "user", Content: "A website"},
	})
	require.NoError(t, err)
	require.Equal(t, "A website", last)
	require.Len(t, history, 2)
	require.Equal(t, genai.Text("Hi\n\nAnyone there?"), history[0].Parts[0])
}

func TestSplitConversation_RequiresTrailingUser(t *testing.T) {
	_, _, _, err := splitConversation([]domain.ChatMessage{
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello"},
	})
	require.Error(t, err)
}

func TestResponseText(t *testing.T) {
	_, err := responseText(nil)
	require.Error(t, err)

	text, err := responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello "), genai.Text("there")}},
	}}})
	require.NoError(t, err)
	require.Equal(t, "Hello there", text)
}

func TestClose_WithoutClient(t *testing.T) {
	c, err := NewClient(staticTokens("key"), 0.7, 512)
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
