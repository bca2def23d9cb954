package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"inquiry-agent/internal/domain"
	"inquiry-agent/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"

	actionChat   = "chat"
	actionSubmit = "submit"
)

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type SubmitUseCase interface {
	Submit(ctx context.Context, in usecase.SubmitInput) (usecase.SubmitOutput, error)
}

// Handler serves the intake endpoint. One POST route dispatches on the
// body's action field.
type Handler struct {
	chat   ChatUseCase
	submit SubmitUseCase
	logger *slog.Logger
}

type request struct {
	Action    string                  `json:"action"`
	Messages  []domain.ChatMessage    `json:"messages"`
	Audio     string                  `json:"audio"`
	Name      string                  `json:"name"`
	Email     string                  `json:"email"`
	Source    string                  `json:"source"`
	Extracted *domain.ExtractedIntent `json:"extracted"`
}

type chatResponse struct {
	Reply      string                  `json:"reply"`
	Extracted  *domain.ExtractedIntent `json:"extracted"`
	Transcript string                  `json:"transcript,omitempty"`
}

type submitResponse struct {
	Success    bool              `json:"success"`
	CalPrefill domain.CalPrefill `json:"calPrefill"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func NewHandler(chat ChatUseCase, submit SubmitUseCase, logger *slog.Logger) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if submit == nil {
		return nil, errors.New("handler: submit use case must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{chat: chat, submit: submit, logger: logger}, nil
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID)

	if event.HTTPMethod != "" && event.HTTPMethod != http.MethodPost {
		return errorJSON(http.StatusMethodNotAllowed, "Method not allowed", string(usecase.ErrorInvalidInput), correlationID), nil
	}

	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errorJSON(http.StatusBadRequest, "Invalid request body", string(usecase.ErrorInvalidInput), correlationID), nil
		}
		body = string(decoded)
	}

	var req request
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "err", err)
		return errorJSON(http.StatusBadRequest, "Invalid request body", string(usecase.ErrorInvalidInput), correlationID), nil
	}
	logger = logger.With("action", req.Action)

	switch req.Action {
	case actionChat:
		out, err := h.chat.Chat(ctx, usecase.ChatInput{
			Messages: req.Messages,
			Audio:    req.Audio,
			ClientIP: clientIP(event),
		})
		if err != nil {
			return h.failure(ctx, logger, err, correlationID), nil
		}
		return okJSON(chatResponse{Reply: out.Reply, Extracted: out.Extracted, Transcript: out.Transcript}, correlationID), nil
	case actionSubmit:
		out, err := h.submit.Submit(ctx, usecase.SubmitInput{
			Name:      req.Name,
			Email:     req.Email,
			Source:    req.Source,
			Messages:  req.Messages,
			Extracted: req.Extracted,
		})
		if err != nil {
			return h.failure(ctx, logger, err, correlationID), nil
		}
		logger.InfoContext(ctx, "inquiry captured", "inquiry_id", out.InquiryID)
		return okJSON(submitResponse{Success: true, CalPrefill: out.CalPrefill}, correlationID), nil
	default:
		return errorJSON(http.StatusBadRequest, "Invalid action", string(usecase.ErrorInvalidInput), correlationID), nil
	}
}

func (h *Handler) failure(ctx context.Context, logger *slog.Logger, err error, correlationID string) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logger.ErrorContext(ctx, "unexpected error", "err", err)
		return errorJSON(http.StatusInternalServerError, "Something went wrong. Please try again.", string(usecase.ErrorInternal), correlationID)
	}

	status := statusFor(ucErr.Code)
	attrs := []any{"code", ucErr.Code, "reason", ucErr.Reason}
	if ucErr.Err != nil {
		attrs = append(attrs, "err", ucErr.Err)
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", attrs...)
	} else {
		logger.WarnContext(ctx, "request rejected", attrs...)
	}

	msg := ucErr.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	return errorJSON(status, msg, string(ucErr.Code), correlationID)
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clientIP prefers the CDN header, then the first forwarded hop, then the
// gateway's view of the caller.
func clientIP(event events.APIGatewayProxyRequest) string {
	if ip := header(event.Headers, "cf-connecting-ip"); ip != "" {
		return ip
	}
	if fwd := header(event.Headers, "x-forwarded-for"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(event.RequestContext.Identity.SourceIP); ip != "" {
		return ip
	}
	return "unknown"
}

func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func okJSON(payload any, correlationID string) events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusOK, payload, correlationID)
}

func errorJSON(status int, message, code, correlationID string) events.APIGatewayProxyResponse {
	return jsonResponse(status, errorResponse{Error: message, Code: code}, correlationID)
}

func jsonResponse(status int, payload any, correlationID string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Something went wrong. Please try again.","code":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}
}
