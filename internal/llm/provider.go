// internal/llm/provider.go
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call.
type Request struct {
	Model     string
	MaxTokens int
	Messages  []Message
}

// Response carries the reply text and the tokens it cost.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// TotalTokens is input plus output tokens.
func (r Response) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Provider is the boundary to a hosted language model.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindRateLimit  ErrorKind = "rate_limit"
	KindConnection ErrorKind = "connection"
	KindAPI        ErrorKind = "api"
)

// Error is returned by Provider implementations.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a provider error, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// UserText builds a single user-message request.
func UserText(model string, maxTokens int, prompt string) Request {
	return Request{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []Message{{Role: RoleUser, Content: prompt}},
	}
}
