package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"inquiry-agent/internal/config"
	"inquiry-agent/internal/domain"
	"inquiry-agent/internal/integrations/paramstore"
	"inquiry-agent/internal/repository"
)

type mapGetter map[string]string

func (m mapGetter) GetParameter(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", errors.New("parameter not found")
	}
	return v, nil
}

func testConfig(openAIURL string) *config.Config {
	return &config.Config{
		LLMProvider:        config.ProviderOpenAI,
		OpenAIModel:        "gpt-4o-mini",
		OpenAIBaseURL:      openAIURL,
		EmailFrom:          "Tool <hello@tool.nyc>",
		EmailAdminTo:       "hello@tool.nyc",
		RateLimitRetention: 2 * time.Hour,
		NotifyTimeout:      time.Second,
	}
}

func TestResolveSecrets(t *testing.T) {
	cfg := &config.Config{ParamPrefix: "/inquiry/prod", OpenAIAPIKey: "sk-direct"}
	getter := mapGetter{
		"/inquiry/prod/gemini-token": `{"token":"g-key"}`,
	}
	s, err := ResolveSecrets(cfg, getter)
	require.NoError(t, err)

	tok, err := s.OpenAI.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-direct", tok)

	tok, err = s.Gemini.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "g-key", tok)

	_, err = s.Resend.Token(context.Background())
	require.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestResolveSecrets_NoParameterStore(t *testing.T) {
	s, err := ResolveSecrets(&config.Config{}, nil)
	require.NoError(t, err)
	_, err = s.OpenAI.Token(context.Background())
	require.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestBuild_RequiresStores(t *testing.T) {
	_, err := Build(testConfig("http://unused"), Stores{}, Secrets{}, nil)
	require.Error(t, err)
}

func TestBuild_WiresRetentionToLongestRule(t *testing.T) {
	store, err := repository.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()

	svc, err := Build(testConfig("http://unused"), Stores{RateLimit: store, Inquiries: store},
		Secrets{OpenAI: paramstore.StaticToken("sk")}, nil)
	require.NoError(t, err)
	defer svc.Close()
	require.Equal(t, 24*time.Hour, svc.Limiter.Retention())
}

func TestBuild_EndToEndOverSQLite(t *testing.T) {
	openAI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		reply := "Sounds great. When do you need it?\n---EXTRACTED---\n" +
			`{"project_type":"web","budget_signal":"high","urgency":"soon","sentiment":"excited","summary":"New marketing site."}` +
			"\n---END---"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
	defer openAI.Close()

	store, err := repository.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()

	svc, err := Build(testConfig(openAI.URL), Stores{RateLimit: store, Inquiries: store}, Secrets{
		OpenAI: paramstore.StaticToken("sk-test"),
		Resend: paramstore.StaticToken(""),
	}, nil)
	require.NoError(t, err)
	defer svc.Close()

	post := func(body string) events.APIGatewayProxyResponse {
		resp, err := svc.Handler.Handle(context.Background(), events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodPost,
			Headers:    map[string]string{"cf-connecting-ip": "192.0.2.10"},
			Body:       body,
		})
		require.NoError(t, err)
		return resp
	}

	resp := post(`{"action":"chat","messages":[{"role":"user","content":"We need a website"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	var chat struct {
		Reply     string                  `json:"reply"`
		Extracted *domain.ExtractedIntent `json:"extracted"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &chat))
	require.Equal(t, "Sounds great. When do you need it?", chat.Reply)
	require.Equal(t, "web", chat.Extracted.ProjectType)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, post(`{"action":"chat","messages":[{"role":"user","content":"hi"}]}`).StatusCode)
	}
	limited := post(`{"action":"chat","messages":[{"role":"user","content":"again"}]}`)
	require.Equal(t, http.StatusTooManyRequests, limited.StatusCode)

	submitBody := fmt.Sprintf(`{"action":"submit","name":"Jane Doe","email":"jane@x.com","source":"ai_text",`+
		`"messages":[{"role":"user","content":"We need a website"},{"role":"assistant","content":%q}],`+
		`"extracted":{"project_type":"web","budget_signal":"high","urgency":"soon","sentiment":"excited","summary":"New marketing site."}}`,
		chat.Reply)
	for i := 0; i < 3; i++ {
		resp = post(submitBody)
		require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	}
	require.JSONEq(t, `{"success":true,"calPrefill":{"name":"Jane Doe","email":"jane@x.com","notes":"AI Summary: New marketing site.\nSource: ai_text"}}`, resp.Body)

	fourth := post(submitBody)
	require.Equal(t, http.StatusTooManyRequests, fourth.StatusCode)
}

func TestRetention(t *testing.T) {
	require.Equal(t, 24*time.Hour, Retention(&config.Config{}))
	require.Equal(t, 30*time.Hour, Retention(&config.Config{RateLimitRetention: 30 * time.Hour}))
}

func TestNewRateLimitStore(t *testing.T) {
	_, err := NewRateLimitStore(&config.Config{RateLimitBackend: config.BackendDynamoDB}, nil)
	require.Error(t, err)

	store, err := NewRateLimitStore(&config.Config{RateLimitBackend: config.BackendRedis, RedisAddr: "127.0.0.1:1"}, nil)
	require.NoError(t, err)
	require.IsType(t, &repository.RedisRateLimitStore{}, store)
}
