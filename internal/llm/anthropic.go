// internal/llm/anthropic.go
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures the Anthropic Messages API client.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// AnthropicProvider implements Provider over the official Anthropic SDK.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a provider for one API key.
func NewAnthropicProvider(config AnthropicConfig) *AnthropicProvider {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(config.MaxRetries),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...)}
}

// Factory builds a Provider for a user's API key.
type Factory func(apiKey string) Provider

// NewAnthropicFactory returns a Factory sharing every setting but the key.
func NewAnthropicFactory(base AnthropicConfig) Factory {
	return func(apiKey string) Provider {
		cfg := base
		cfg.APIKey = apiKey
		return NewAnthropicProvider(cfg)
	}
}

// Complete sends req to the Messages API and concatenates the text blocks
// of the reply.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if req.Model == "" {
		req.Model = DefaultModel
	}
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  messages,
	})
	if err != nil {
		return Response{}, classifyAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Response{
		Text:         strings.TrimSpace(text.String()),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		kind := KindAPI
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = KindAuth
		case http.StatusTooManyRequests:
			kind = KindRateLimit
		}
		return &Error{Kind: kind, StatusCode: apiErr.StatusCode, Message: apiErr.Error(), Err: err}
	}
	return &Error{Kind: KindConnection, Message: err.Error(), Err: err}
}
