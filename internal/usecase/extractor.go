package usecase

import (
	"context"
	"errors"
	"strings"

	"inquiry-agent/internal/domain"
)

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

// Analysis is one assistant turn.
type Analysis struct {
	Reply     string
	Extracted *domain.ExtractedIntent
}

// Extractor runs the conversation through the prompted chat model and
// parses the reply.
type Extractor struct {
	llm   LLMClient
	model string
}

func NewExtractor(llm LLMClient, model string) (*Extractor, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	return &Extractor{llm: llm, model: model}, nil
}

// Analyze returns the model's reply with the extraction block removed. Only
// the chat call itself can fail; parse problems yield a nil Extracted.
func (e *Extractor) Analyze(ctx context.Context, conversation []domain.ChatMessage) (Analysis, error) {
	raw, err := e.llm.Chat(ctx, e.model, buildPromptMessages(conversation))
	if err != nil {
		return Analysis{}, err
	}
	parsed := ParseExtraction(raw)
	return Analysis{Reply: parsed.Reply, Extracted: parsed.Intent()}, nil
}
