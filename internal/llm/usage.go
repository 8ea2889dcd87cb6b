// internal/llm/usage.go
package llm

import "sync"

// Usage accumulates token consumption for one pipeline invocation.
// It is safe for concurrent use.
type Usage struct {
	mu     sync.Mutex
	input  int
	output int
	calls  int
}

// NewUsage returns an empty accumulator.
func NewUsage() *Usage {
	return &Usage{}
}

// Add records one response. A nil receiver is a no-op.
func (u *Usage) Add(resp Response) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.input += resp.InputTokens
	u.output += resp.OutputTokens
	u.calls++
}

// Total returns input plus output tokens recorded so far.
func (u *Usage) Total() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.input + u.output
}

// Calls returns the number of recorded responses.
func (u *Usage) Calls() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}
