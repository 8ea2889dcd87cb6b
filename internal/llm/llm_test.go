// internal/llm/llm_test.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAnthropicProvider(AnthropicConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		MaxRetries: 0,
	})
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), "path %s", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "  {\"product_container\": \".card\"}  "}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 120, "output_tokens": 30}
		}`))
	})

	resp, err := provider.Complete(context.Background(), UserText("", 2000, "analyze"))
	require.NoError(t, err)

	assert.Equal(t, `{"product_container": ".card"}`, resp.Text)
	assert.Equal(t, 120, resp.InputTokens)
	assert.Equal(t, 30, resp.OutputTokens)
	assert.Equal(t, 150, resp.TotalTokens())

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 2000, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestAnthropicProvider_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuth},
		{"rate limited", http.StatusTooManyRequests, KindRateLimit},
		{"bad request", http.StatusBadRequest, KindAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"error","message":"nope"}}`))
			})

			_, err := provider.Complete(context.Background(), UserText(DefaultModel, 10, "Hi"))
			require.Error(t, err)

			var le *Error
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.want, le.Kind)
			assert.Equal(t, tt.status, le.StatusCode)
		})
	}
}

func TestAnthropicProvider_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	provider := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-test", BaseURL: url})
	_, err := provider.Complete(context.Background(), UserText(DefaultModel, 10, "Hi"))
	require.Error(t, err)
	assert.Equal(t, KindConnection, KindOf(err))
}

func TestTestConnection(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantOK  bool
		wantMsg string
	}{
		{"ok", nil, true, "Connection successful"},
		{"auth", &Error{Kind: KindAuth}, false, "Invalid API key"},
		{"rate", &Error{Kind: KindRateLimit}, false, "Rate limit exceeded. Please try again later."},
		{"conn", &Error{Kind: KindConnection}, false, "Failed to connect to Anthropic API"},
		{"other", errors.New("boom"), false, "Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen Request
			provider := ProviderFunc(func(ctx context.Context, req Request) (Response, error) {
				seen = req
				return Response{}, tt.err
			})
			ok, msg := TestConnection(context.Background(), provider, "")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantMsg, msg)
			assert.Equal(t, DefaultModel, seen.Model)
			assert.Equal(t, 10, seen.MaxTokens)
		})
	}
}

func TestUsage_ConcurrentAdd(t *testing.T) {
	usage := NewUsage()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			usage.Add(Response{InputTokens: 10, OutputTokens: 5})
		}()
	}
	wg.Wait()

	assert.Equal(t, 300, usage.Total())
	assert.Equal(t, 20, usage.Calls())

	var nilUsage *Usage
	nilUsage.Add(Response{InputTokens: 1})
	assert.Zero(t, nilUsage.Total())
}

func TestIsKnownModel(t *testing.T) {
	assert.True(t, IsKnownModel(DefaultModel))
	assert.False(t, IsKnownModel("gpt-4"))
}
