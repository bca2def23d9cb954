// Package app assembles the intake services from configuration. The Lambda,
// sweep and local binaries share it so they wire identical pipelines over
// different stores.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"

	"inquiry-agent/handler"
	"inquiry-agent/internal/config"
	"inquiry-agent/internal/integrations/gemini"
	"inquiry-agent/internal/integrations/ntfy"
	"inquiry-agent/internal/integrations/openai"
	"inquiry-agent/internal/integrations/paramstore"
	"inquiry-agent/internal/integrations/resend"
	"inquiry-agent/internal/notify"
	"inquiry-agent/internal/ratelimit"
	"inquiry-agent/internal/repository"
	"inquiry-agent/internal/usecase"
)

const (
	llmTemperature = 0.7
	llmMaxTokens   = 512

	openAITokenParam = "open-ai-token"
	geminiTokenParam = "gemini-token"
	resendTokenParam = "resend-token"
)

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Secrets holds one token source per hosted collaborator.
type Secrets struct {
	OpenAI TokenSource
	Gemini TokenSource
	Resend TokenSource
}

// ResolveSecrets prefers keys set directly in cfg and falls back to
// Parameter Store under cfg.ParamPrefix. A nil getter or empty prefix leaves
// only the direct keys, which report domain.ErrNotConfigured when empty.
func ResolveSecrets(cfg *config.Config, getter paramstore.Getter) (Secrets, error) {
	pick := func(direct, suffix string) (TokenSource, error) {
		if direct != "" || getter == nil || cfg.ParamPrefix == "" {
			return paramstore.StaticToken(direct), nil
		}
		return paramstore.NewTokenSource(getter, cfg.ParamPrefix, suffix)
	}
	var (
		s   Secrets
		err error
	)
	if s.OpenAI, err = pick(cfg.OpenAIAPIKey, openAITokenParam); err != nil {
		return Secrets{}, err
	}
	if s.Gemini, err = pick(cfg.GeminiAPIKey, geminiTokenParam); err != nil {
		return Secrets{}, err
	}
	if s.Resend, err = pick(cfg.ResendAPIKey, resendTokenParam); err != nil {
		return Secrets{}, err
	}
	return s, nil
}

// Stores are the persistence backends for one deployment.
type Stores struct {
	RateLimit ratelimit.Store
	Inquiries usecase.InquiryWriter
}

// NewLimiter builds the limiter whose sweep horizon covers every rule the
// services charge.
func NewLimiter(cfg *config.Config, store ratelimit.Store, logger *slog.Logger) (*ratelimit.Limiter, error) {
	return ratelimit.New(store,
		ratelimit.WithLogger(logger),
		ratelimit.WithRetention(cfg.RateLimitRetention),
		ratelimit.WithRules(usecase.Rules()...),
	)
}

// Retention is the sweep horizon NewLimiter will use.
func Retention(cfg *config.Config) time.Duration {
	d := max(cfg.RateLimitRetention, ratelimit.DefaultRetention)
	for _, r := range usecase.Rules() {
		d = max(d, r.Window)
	}
	return d
}

// NewRateLimitStore picks the production rate-limit backend: Redis sorted
// sets when RATE_LIMIT_BACKEND=redis, otherwise the DynamoDB table.
func NewRateLimitStore(cfg *config.Config, dynamo *awsdynamodb.Client) (ratelimit.Store, error) {
	if cfg.RateLimitBackend == config.BackendRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return repository.NewRedisRateLimitStore(rdb, Retention(cfg))
	}
	if err := cfg.Require("RATE_LIMIT_TABLE"); err != nil {
		return nil, err
	}
	return repository.NewRateLimitStore(dynamo, cfg.RateLimitTable)
}

// Service is the assembled request path plus resources to release.
type Service struct {
	Handler *handler.Handler
	Limiter *ratelimit.Limiter

	closers []func() error
}

func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func Build(cfg *config.Config, stores Stores, secrets Secrets, logger *slog.Logger) (*Service, error) {
	if stores.RateLimit == nil || stores.Inquiries == nil {
		return nil, errors.New("app: rate limit and inquiry stores are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{}

	limiter, err := NewLimiter(cfg, stores.RateLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("app: limiter: %w", err)
	}
	svc.Limiter = limiter

	openaiClient, err := openai.NewClient(secrets.OpenAI,
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithSampling(llmTemperature, llmMaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("app: openai client: %w", err)
	}

	var llm usecase.LLMClient = openaiClient
	if cfg.LLMProvider == config.ProviderGemini {
		geminiClient, err := gemini.NewClient(secrets.Gemini, llmTemperature, llmMaxTokens)
		if err != nil {
			return nil, fmt.Errorf("app: gemini client: %w", err)
		}
		svc.closers = append(svc.closers, geminiClient.Close)
		llm = geminiClient
	}

	extractor, err := usecase.NewExtractor(llm, cfg.Model())
	if err != nil {
		return nil, fmt.Errorf("app: extractor: %w", err)
	}
	chat, err := usecase.NewChatService(openaiClient, extractor, limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("app: chat service: %w", err)
	}

	opts := []usecase.SubmitOption{
		usecase.WithSubmitLogger(logger),
		usecase.WithNotifyTimeout(cfg.NotifyTimeout),
	}
	if secrets.Resend != nil {
		mailer, err := resend.NewClient(secrets.Resend)
		if err != nil {
			return nil, fmt.Errorf("app: resend client: %w", err)
		}
		notifier, err := notify.NewEmailNotifier(mailer, notify.EmailConfig{
			From:    cfg.EmailFrom,
			AdminTo: cfg.EmailAdminTo,
			Brand:   cfg.Brand,
			SiteURL: cfg.SiteURL,
		})
		if err != nil {
			return nil, fmt.Errorf("app: email notifier: %w", err)
		}
		opts = append(opts, usecase.WithNotifier(notifier))
	}
	if cfg.NtfyTopic != "" {
		pusher, err := ntfy.NewClient(cfg.NtfyTopic)
		if err != nil {
			return nil, fmt.Errorf("app: ntfy client: %w", err)
		}
		opts = append(opts, usecase.WithAlerter(notify.NewPushAlerter(pusher)))
	}
	submit, err := usecase.NewSubmitService(stores.Inquiries, limiter, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: submit service: %w", err)
	}

	h, err := handler.NewHandler(chat, submit, logger)
	if err != nil {
		return nil, fmt.Errorf("app: handler: %w", err)
	}
	svc.Handler = h
	return svc, nil
}
