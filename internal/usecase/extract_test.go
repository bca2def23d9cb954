package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"inquiry-agent/internal/domain"
)

type capturingLLM struct {
	answer   string
	err      error
	model    string
	captured []domain.ChatMessage
	calls    int
}

func (c *capturingLLM) Chat(_ context.Context, model string, msgs []domain.ChatMessage) (string, error) {
	c.calls++
	c.model = model
	c.captured = msgs
	return c.answer, c.err
}

const wellFormedReply = `Love it. What's your timeline?
---EXTRACTED---
{"project_type":"brand","budget_signal":"mid","urgency":"soon","sentiment":"excited","summary":"Needs a brand refresh."}
---END---`

func TestParseExtraction_WellFormed(t *testing.T) {
	got := ParseExtraction(wellFormedReply)
	require.Equal(t, "Love it. What's your timeline?", got.Reply)
	intent, ok := got.Parsed()
	require.True(t, ok)
	require.Equal(t, domain.ExtractedIntent{
		ProjectType:  "brand",
		BudgetSignal: "mid",
		Urgency:      "soon",
		Sentiment:    "excited",
		Summary:      "Needs a brand refresh.",
	}, intent)
}

func TestParseExtraction_IsDeterministic(t *testing.T) {
	require.Equal(t, ParseExtraction(wellFormedReply), ParseExtraction(wellFormedReply))
}

func TestParseExtraction_Unparsed(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		reply string
	}{
		{name: "no block", raw: "Tell me more.", reply: "Tell me more."},
		{name: "missing end", raw: "Hi\n---EXTRACTED---\n{}", reply: "Hi\n---EXTRACTED---\n{}"},
		{name: "invalid json", raw: "Hi\n---EXTRACTED---\n{not json}\n---END---", reply: "Hi"},
		{name: "empty", raw: "   ", reply: fallbackReply},
		{name: "null body", raw: "Hi there.\n---EXTRACTED---\nnull\n---END---", reply: "Hi there."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseExtraction(tc.raw)
			_, ok := got.Parsed()
			require.False(t, ok)
			require.Nil(t, got.Intent())
			require.Equal(t, tc.reply, got.Reply)
		})
	}
}

func TestParseExtraction_OnlyBlockUsesFallbackReply(t *testing.T) {
	got := ParseExtraction("---EXTRACTED---\n{\"project_type\":\"web\"}\n---END---")
	require.Equal(t, fallbackReply, got.Reply)
	intent, ok := got.Parsed()
	require.True(t, ok)
	require.Equal(t, "web", intent.ProjectType)
}

func TestParseExtraction_FirstBlockWins(t *testing.T) {
	raw := "A\n---EXTRACTED---\n{\"urgency\":\"immediate\"}\n---END---\nB\n---EXTRACTED---\n{\"urgency\":\"flexible\"}\n---END---"
	intent, ok := ParseExtraction(raw).Parsed()
	require.True(t, ok)
	require.Equal(t, "immediate", intent.Urgency)
}

func TestNormalizeIntent(t *testing.T) {
	got := NormalizeIntent(domain.ExtractedIntent{
		ProjectType:  "Web",
		BudgetSignal: "gigantic",
		Urgency:      " soon ",
		Sentiment:    "angry",
		Summary:      "  " + strings.Repeat("x", 600) + "  ",
	})
	require.Equal(t, "web", got.ProjectType)
	require.Empty(t, got.BudgetSignal)
	require.Equal(t, "soon", got.Urgency)
	require.Empty(t, got.Sentiment)
	require.Len(t, got.Summary, maxSummaryLen)
}

func TestExtractor_Analyze(t *testing.T) {
	llm := &capturingLLM{answer: wellFormedReply}
	ex, err := NewExtractor(llm, "gpt-4o-mini")
	require.NoError(t, err)

	conv := []domain.ChatMessage{{Role: domain.RoleUser, Content: "We need a new logo"}}
	out, err := ex.Analyze(context.Background(), conv)
	require.NoError(t, err)
	require.Equal(t, "Love it. What's your timeline?", out.Reply)
	require.NotNil(t, out.Extracted)
	require.Equal(t, "brand", out.Extracted.ProjectType)

	require.Equal(t, "gpt-4o-mini", llm.model)
	require.Len(t, llm.captured, 2)
	require.Equal(t, domain.RoleSystem, llm.captured[0].Role)
	require.Contains(t, llm.captured[0].Content, "---EXTRACTED---")
	require.Contains(t, llm.captured[0].Content, "brand|web|motion|graphic|other")
	require.Equal(t, conv[0], llm.captured[1])
}

func TestExtractor_MalformedBlockIsNotAnError(t *testing.T) {
	ex, err := NewExtractor(&capturingLLM{answer: "Sure!\n---EXTRACTED---\n{oops\n---END---"}, "m")
	require.NoError(t, err)
	out, err := ex.Analyze(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "Sure!", out.Reply)
	require.Nil(t, out.Extracted)
}

func TestExtractor_ChatError(t *testing.T) {
	boom := errors.New("boom")
	ex, err := NewExtractor(&capturingLLM{err: boom}, "m")
	require.NoError(t, err)
	_, err = ex.Analyze(context.Background(), nil)
	require.ErrorIs(t, err, boom)
}

func TestNewExtractor_Validation(t *testing.T) {
	_, err := NewExtractor(nil, "m")
	require.Error(t, err)
	_, err = NewExtractor(&capturingLLM{}, " ")
	require.Error(t, err)
}
