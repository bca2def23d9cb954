package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"

	"inquiry-agent/internal/domain"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
}

func (f *fakeAPI) GetParameter(_ context.Context, _ *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr(`{"k":"v"}`),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
}

func TestGetParameter_HappyPath_SecureString(t *testing.T) {
	typeStr := "SecureString"
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr(`{"k":"v"}`), Type: types.ParameterType(typeStr),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	api := &fakeAPI{}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

// ---------------------------------------------------------------------------
// TokenSource
// ---------------------------------------------------------------------------

type fakeGetter struct {
	vals  []string
	errs  []error
	calls int
	names []string
}

func (f *fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	i := f.calls
	f.calls++
	f.names = append(f.names, name)
	var (
		v   string
		err error
	)
	if i < len(f.vals) {
		v = f.vals[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return v, err
}

func TestNewTokenSource_Validates(t *testing.T) {
	_, err := NewTokenSource(nil, "/inquiry-agent", "open-ai-token")
	require.Error(t, err)
	_, err = NewTokenSource(&fakeGetter{}, " ", "open-ai-token")
	require.Error(t, err)
	_, err = NewTokenSource(&fakeGetter{}, "/inquiry-agent", "/")
	require.Error(t, err)
}

func TestTokenSource_CachesSuccess(t *testing.T) {
	g := &fakeGetter{vals: []string{`{"token":"sk-1"}`}}
	src, err := NewTokenSource(g, "/inquiry-agent/", "open-ai-token")
	require.NoError(t, err)
	require.Equal(t, "/inquiry-agent/open-ai-token", src.Name())

	for i := 0; i < 3; i++ {
		tok, err := src.Token(context.Background())
		require.NoError(t, err)
		require.Equal(t, "sk-1", tok)
	}
	require.Equal(t, 1, g.calls)
	require.Equal(t, []string{"/inquiry-agent/open-ai-token"}, g.names)
}

func TestTokenSource_RetriesAfterFailure(t *testing.T) {
	g := &fakeGetter{
		vals: []string{"", `{"token":"sk-2"}`},
		errs: []error{errors.New("temporary ssm failure"), nil},
	}
	src, err := NewTokenSource(g, "/inquiry-agent", "resend-token")
	require.NoError(t, err)

	_, err = src.Token(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrNotConfigured)
	require.Contains(t, err.Error(), "temporary ssm failure")

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-2", tok)
}

func TestTokenSource_EmptyAndMalformed(t *testing.T) {
	src, err := NewTokenSource(&fakeGetter{vals: []string{`{"other":"value"}`}}, "/p", "t")
	require.NoError(t, err)
	_, err = src.Token(context.Background())
	require.ErrorIs(t, err, domain.ErrNotConfigured)

	src, err = NewTokenSource(&fakeGetter{vals: []string{`{"broken`}}, "/p", "t")
	require.NoError(t, err)
	_, err = src.Token(context.Background())
	require.ErrorContains(t, err, "unmarshal")
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("sk-local").Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-local", tok)

	_, err = StaticToken("").Token(context.Background())
	require.ErrorIs(t, err, domain.ErrNotConfigured)
}
