// internal/llm/models.go
package llm

import (
	"context"
	"fmt"
)

// DefaultModel is used when a credential names no model.
const DefaultModel = "claude-3-5-haiku-latest"

// Model describes a selectable model.
type Model struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// AvailableModels is the catalog offered to users.
var AvailableModels = []Model{
	{ID: "claude-3-5-haiku-latest", Label: "Claude 3.5 Haiku (Fast)"},
	{ID: "claude-sonnet-4-20250514", Label: "Claude Sonnet 4 (Balanced)"},
	{ID: "claude-opus-4-5-20250514", Label: "Claude Opus 4.5 (Most Capable)"},
}

// IsKnownModel reports whether id is in the catalog.
func IsKnownModel(id string) bool {
	for _, m := range AvailableModels {
		if m.ID == id {
			return true
		}
	}
	return false
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (Response, error)

// Complete calls f.
func (f ProviderFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// TestConnection issues a minimal request and reports whether the key
// works, with a message suitable for display.
func TestConnection(ctx context.Context, provider Provider, model string) (bool, string) {
	if model == "" {
		model = DefaultModel
	}
	_, err := provider.Complete(ctx, UserText(model, 10, "Hi"))
	if err == nil {
		return true, "Connection successful"
	}
	switch KindOf(err) {
	case KindAuth:
		return false, "Invalid API key"
	case KindRateLimit:
		return false, "Rate limit exceeded. Please try again later."
	case KindConnection:
		return false, "Failed to connect to Anthropic API"
	}
	return false, fmt.Sprintf("Error: %v", err)
}
