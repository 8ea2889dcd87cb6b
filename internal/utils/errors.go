// Package utils provides the shared error taxonomy and logging
// abstractions used across the pipeline.
package utils

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns string representation of error severity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode categorizes failures of the discovery and tracking pipeline.
type ErrorCode string

const (
	// Fetching
	ErrCodeFetchBlocked ErrorCode = "FETCH_BLOCKED"
	ErrCodeFetchFailed  ErrorCode = "FETCH_FAILED"
	ErrCodeRenderFailed ErrorCode = "RENDER_FAILED"

	// LLM interaction
	ErrCodeParseFailed  ErrorCode = "PARSE_FAILED"
	ErrCodeNoCredential ErrorCode = "NO_CREDENTIAL"
	ErrCodeLLMFailed    ErrorCode = "LLM_FAILED"

	// Extraction; reported in logs and metrics, never raised
	ErrCodeExtractionEmpty ErrorCode = "EXTRACTION_EMPTY"

	// Infrastructure
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// StructuredError provides rich error information for better debugging and handling
type StructuredError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Severity    ErrorSeverity          `json:"severity"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Cause       error                  `json:"-"`
	Timestamp   time.Time              `json:"timestamp"`
	StackTrace  []string               `json:"stack_trace,omitempty"`
	Retryable   bool                   `json:"retryable"`
	UserMessage string                 `json:"user_message,omitempty"`
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error unwrapping
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// Is matches another StructuredError carrying the same code.
func (e *StructuredError) Is(target error) bool {
	if se, ok := target.(*StructuredError); ok {
		return e.Code == se.Code
	}
	return false
}

// ErrorBuilder provides a fluent interface for creating structured errors
type ErrorBuilder struct {
	error *StructuredError
}

// StackTraceDepth is the number of frames captured by NewError. Zero disables capture.
var StackTraceDepth = 10

// NewError creates a new error builder
func NewError(code ErrorCode, message string) *ErrorBuilder {
	return &ErrorBuilder{
		error: &StructuredError{
			Code:       code,
			Message:    message,
			Severity:   SeverityError,
			Timestamp:  time.Now(),
			StackTrace: captureStackTrace(StackTraceDepth),
		},
	}
}

// Newf is shorthand for NewError(code, fmt.Sprintf(...)).Build().
func Newf(code ErrorCode, format string, args ...interface{}) *StructuredError {
	return NewError(code, fmt.Sprintf(format, args...)).Build()
}

// WithSeverity sets the error severity
func (eb *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	eb.error.Severity = severity
	return eb
}

// WithCause sets the underlying cause
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.error.Cause = cause
	return eb
}

// WithContext adds contextual information
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	if eb.error.Context == nil {
		eb.error.Context = make(map[string]interface{})
	}
	eb.error.Context[key] = value
	return eb
}

// WithRetryable marks the error as retryable
func (eb *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	eb.error.Retryable = retryable
	return eb
}

// WithUserMessage sets a user-friendly message
func (eb *ErrorBuilder) WithUserMessage(message string) *ErrorBuilder {
	eb.error.UserMessage = message
	return eb
}

// Build returns the constructed error
func (eb *ErrorBuilder) Build() *StructuredError {
	return eb.error
}

// WrapError wraps an existing error in a structured error
func WrapError(err error, code ErrorCode, message string) *StructuredError {
	return NewError(code, message).WithCause(err).Build()
}

// CodeOf returns the code of the first StructuredError in err's chain,
// or an empty code.
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// GetUserFriendlyMessage extracts a user-friendly message from an error
func GetUserFriendlyMessage(err error) string {
	var se *StructuredError
	if !errors.As(err, &se) {
		if err == nil {
			return ""
		}
		return "An error occurred. Please try again."
	}
	if se.UserMessage != "" {
		return se.UserMessage
	}

	switch se.Code {
	case ErrCodeFetchBlocked:
		return "The site appears to be blocking automated access."
	case ErrCodeFetchFailed, ErrCodeRenderFailed:
		return "The page could not be retrieved. Check the URL and try again."
	case ErrCodeParseFailed:
		return "The AI response could not be understood."
	case ErrCodeNoCredential:
		return "No API key configured. Please add an API key in settings."
	case ErrCodeLLMFailed:
		return "The AI provider request failed."
	default:
		return "An unexpected error occurred. Please try again or contact support if the problem persists."
	}
}

// captureStackTrace records up to depth caller frames
func captureStackTrace(depth int) []string {
	if depth <= 0 {
		return nil
	}

	var stack []string
	for i := 3; len(stack) < depth; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		funcName := "unknown"
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
		}
		stack = append(stack, fmt.Sprintf("%s:%d (%s)", shortenFilePath(file), line, shortenFuncName(funcName)))
	}
	return stack
}

// shortenFilePath keeps only the last two path components
func shortenFilePath(filePath string) string {
	parts := strings.Split(filePath, "/")
	if len(parts) > 2 {
		return strings.Join(parts[len(parts)-2:], "/")
	}
	return filePath
}

func shortenFuncName(funcName string) string {
	parts := strings.Split(funcName, "/")
	lastPart := parts[len(parts)-1]
	if dotIndex := strings.LastIndex(lastPart, "."); dotIndex != -1 && dotIndex < len(lastPart)-1 {
		return lastPart[dotIndex+1:]
	}
	return lastPart
}
