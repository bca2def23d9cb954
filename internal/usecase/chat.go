package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"inquiry-agent/internal/domain"
	"inquiry-agent/internal/ratelimit"
)

const defaultAudioMIME = "audio/webm"

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, conversation []domain.ChatMessage) (Analysis, error)
}

type RateLimiter interface {
	CheckAll(ctx context.Context, identity string, rules ...ratelimit.Rule) (ratelimit.Result, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ChatService runs one conversational turn: validate, rate-limit new
// conversations, transcribe audio when present, then extract.
type ChatService struct {
	transcriber Transcriber
	analyzer    Analyzer
	limiter     RateLimiter
	logger      *slog.Logger
}

type ChatInput struct {
	Messages []domain.ChatMessage
	// Audio is raw base64 or a data URL.
	Audio    string
	ClientIP string
}

type ChatOutput struct {
	Reply      string
	Extracted  *domain.ExtractedIntent
	Transcript string
}

func NewChatService(t Transcriber, a Analyzer, l RateLimiter, logger *slog.Logger) (*ChatService, error) {
	if t == nil {
		return nil, errors.New("usecase: transcriber must not be nil")
	}
	if a == nil {
		return nil, errors.New("usecase: analyzer must not be nil")
	}
	if l == nil {
		return nil, errors.New("usecase: rate limiter must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{transcriber: t, analyzer: a, limiter: l, logger: logger}, nil
}

func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	if err := validateChatMessages(in.Messages); err != nil {
		return ChatOutput{}, err
	}
	audio, mimeType, err := decodeAudio(in.Audio)
	if err != nil {
		return ChatOutput{}, err
	}
	if len(in.Messages) == 0 && audio == nil {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_request", "Send a message or a recording to get started.", nil)
	}

	if len(in.Messages) <= 1 {
		res, err := s.limiter.CheckAll(ctx, in.ClientIP, ChatHourlyRule, ChatDailyRule)
		if err != nil {
			return ChatOutput{}, newError(ErrorInternal, "rate_limit_error", "Something went wrong. Please try again.", err)
		}
		if !res.Allowed {
			return ChatOutput{}, newError(ErrorRateLimited, "chat_rate_limited",
				"You've started a lot of conversations. Please try again later.", nil)
		}
	}

	messages := append([]domain.ChatMessage(nil), in.Messages...)
	var transcript string
	if audio != nil {
		transcript, err = s.transcriber.Transcribe(ctx, audio, mimeType)
		if err != nil {
			if errors.Is(err, domain.ErrNotConfigured) {
				return ChatOutput{}, newError(ErrorServiceUnavailable, "transcription_not_configured",
					"Voice input is unavailable right now. Please type your message instead.", err)
			}
			return ChatOutput{}, newError(ErrorUpstream, "transcription_error",
				"We couldn't process that recording. Please try again or type your message.", err)
		}
		transcript = strings.TrimSpace(transcript)
		if transcript == "" {
			return ChatOutput{}, newError(ErrorInvalidInput, "empty_transcript",
				"We couldn't hear anything in that recording. Please try again.", nil)
		}
		messages = mergeTranscript(messages, transcript)
	}

	analysis, err := s.analyzer.Analyze(ctx, messages)
	if err != nil {
		if errors.Is(err, domain.ErrNotConfigured) {
			return ChatOutput{}, newError(ErrorServiceUnavailable, "llm_not_configured",
				"The assistant is unavailable right now. Please try again later.", err)
		}
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return ChatOutput{}, newError(ErrorRateLimited, "llm_rate_limited",
				"The assistant is busy right now. Please try again in a moment.", err)
		}
		return ChatOutput{}, newError(ErrorUpstream, "llm_error", "Something went wrong. Please try again.", err)
	}
	if analysis.Extracted == nil {
		s.logger.WarnContext(ctx, "chat reply carried no usable extraction")
	}

	return ChatOutput{
		Reply:      analysis.Reply,
		Extracted:  analysis.Extracted,
		Transcript: transcript,
	}, nil
}

func validateChatMessages(messages []domain.ChatMessage) error {
	if len(messages) > MaxChatMessages {
		return newError(ErrorInvalidInput, "too_many_messages", "This conversation has reached its limit.", nil)
	}
	for _, m := range messages {
		if !m.IsConversational() {
			return newError(ErrorInvalidInput, "invalid_role", "Invalid message.", nil)
		}
		if utf8.RuneCountInString(m.Content) > MaxMessageChars {
			return newError(ErrorInvalidInput, "message_too_long", "That message is too long. Please shorten it.", nil)
		}
	}
	return nil
}

// decodeAudio accepts raw base64 or a data URL and returns nil audio for an
// empty payload.
func decodeAudio(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", nil
	}
	mimeType := defaultAudioMIME
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", newError(ErrorInvalidInput, "invalid_audio", "Invalid audio payload.", nil)
		}
		if mt, _, _ := strings.Cut(header, ";"); mt != "" {
			mimeType = mt
		}
		payload = data
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxAudioBytes+3 {
		return nil, "", newError(ErrorInvalidInput, "audio_too_large", "That recording is too long. Please keep it under a minute.", nil)
	}
	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", newError(ErrorInvalidInput, "invalid_audio", "Invalid audio payload.", err)
	}
	if len(audio) > MaxAudioBytes {
		return nil, "", newError(ErrorInvalidInput, "audio_too_large", "That recording is too long. Please keep it under a minute.", nil)
	}
	if len(audio) == 0 {
		return nil, "", newError(ErrorInvalidInput, "invalid_audio", "Invalid audio payload.", nil)
	}
	return audio, mimeType, nil
}

// mergeTranscript replaces a trailing user turn with the transcript or
// appends a new user turn.
func mergeTranscript(messages []domain.ChatMessage, transcript string) []domain.ChatMessage {
	turn := domain.ChatMessage{Role: domain.RoleUser, Content: transcript}
	if n := len(messages); n > 0 && messages[n-1].Role == domain.RoleUser {
		messages[n-1] = turn
		return messages
	}
	return append(messages, turn)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
