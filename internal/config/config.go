// Package config loads runtime settings from the environment, with an
// optional .env file for local runs. Only main packages call Load.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
)

type Config struct {
	ParamPrefix    string `mapstructure:"param_prefix"`
	RateLimitTable string `mapstructure:"rate_limit_table"`
	InquiryTable   string `mapstructure:"inquiry_table"`

	LLMProvider   string `mapstructure:"llm_provider"`
	OpenAIModel   string `mapstructure:"openai_model"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
	GeminiModel   string `mapstructure:"gemini_model"`
	// Direct keys bypass Parameter Store; intended for local runs.
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ResendAPIKey string `mapstructure:"resend_api_key"`

	EmailFrom    string `mapstructure:"email_from"`
	EmailAdminTo string `mapstructure:"email_admin_to"`
	Brand        string `mapstructure:"brand"`
	SiteURL      string `mapstructure:"site_url"`
	NtfyTopic    string `mapstructure:"ntfy_topic"`

	RateLimitBackend   string        `mapstructure:"rate_limit_backend"`
	RedisAddr          string        `mapstructure:"redis_addr"`
	RedisPassword      string        `mapstructure:"redis_password"`
	RedisDB            int           `mapstructure:"redis_db"`
	RateLimitRetention time.Duration `mapstructure:"rate_limit_retention"`
	NotifyTimeout      time.Duration `mapstructure:"notify_timeout"`

	LogLevel   string `mapstructure:"log_level"`
	HTTPPort   int    `mapstructure:"http_port"`
	SQLitePath string `mapstructure:"sqlite_path"`
	CalLink    string `mapstructure:"cal_link"`
	APIURL     string `mapstructure:"api_url"`
}

var defaults = map[string]any{
	"param_prefix":         "",
	"rate_limit_table":     "",
	"inquiry_table":        "",
	"llm_provider":         ProviderOpenAI,
	"openai_model":         "gpt-4o-mini",
	"openai_base_url":      "https://api.openai.com",
	"gemini_model":         "gemini-1.5-flash",
	"openai_api_key":       "",
	"gemini_api_key":       "",
	"resend_api_key":       "",
	"email_from":           "Tool <hello@tool.nyc>",
	"email_admin_to":       "hello@tool.nyc",
	"brand":                "Tool",
	"site_url":             "https://tool.nyc",
	"ntfy_topic":           "",
	"rate_limit_backend":   BackendDynamoDB,
	"redis_addr":           "localhost:6379",
	"redis_password":       "",
	"redis_db":             0,
	"rate_limit_retention": "2h",
	"notify_timeout":       "8s",
	"log_level":            "info",
	"http_port":            8080,
	"sqlite_path":          "inquiries.db",
	"cal_link":             "toolnyc/30min",
	"api_url":              "http://localhost:8080/api/ai-chat",
}

// Load reads an optional .env file, then the environment. Keys are the
// upper-cased field names (PARAM_PREFIX, LLM_PROVIDER, ...).
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Existing environment variables win over the file.
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.RateLimitBackend = strings.ToLower(strings.TrimSpace(cfg.RateLimitBackend))
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")

	if cfg.LLMProvider != ProviderOpenAI && cfg.LLMProvider != ProviderGemini {
		return nil, fmt.Errorf("config: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
	if cfg.RateLimitBackend != BackendDynamoDB && cfg.RateLimitBackend != BackendRedis {
		return nil, fmt.Errorf("config: unknown RATE_LIMIT_BACKEND %q", cfg.RateLimitBackend)
	}
	return &cfg, nil
}

// Require reports the first of keys whose value is empty.
func (c *Config) Require(keys ...string) error {
	values := map[string]string{
		"PARAM_PREFIX":     c.ParamPrefix,
		"RATE_LIMIT_TABLE": c.RateLimitTable,
		"INQUIRY_TABLE":    c.InquiryTable,
		"REDIS_ADDR":       c.RedisAddr,
		"API_URL":          c.APIURL,
		"SQLITE_PATH":      c.SQLitePath,
	}
	for _, k := range keys {
		v, ok := values[k]
		if !ok {
			return fmt.Errorf("config: unknown required key %q", k)
		}
		if strings.TrimSpace(v) == "" {
			return errors.New("config: required environment variable is not set: " + k)
		}
	}
	return nil
}

// Model returns the chat model for the active provider.
func (c *Config) Model() string {
	if c.LLMProvider == ProviderGemini {
		return c.GeminiModel
	}
	return c.OpenAIModel
}

// NewLogger builds the JSON slog logger every binary uses.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
