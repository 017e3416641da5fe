// Package llm talks to the text-generation service that extracts keywords,
// picks among candidates and writes answers.
package llm

import (
	"context"
	"errors"
	"sync"
)

// Oracle turns a prompt into generated text.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrNoScriptedReply is returned by MockOracle once its replies run out.
var ErrNoScriptedReply = errors.New("mock oracle: no scripted reply")

// MockOracle is an Oracle with scripted replies. Respond, when set, takes
// precedence over Replies. Every prompt is recorded.
type MockOracle struct {
	Replies []string
	Respond func(prompt string) (string, error)
	Err     error

	mu      sync.Mutex
	prompts []string
}

// NewMockOracle returns a MockOracle answering with replies in order.
func NewMockOracle(replies ...string) *MockOracle {
	return &MockOracle{Replies: replies}
}

// Complete implements Oracle.
func (m *MockOracle) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Respond != nil {
		return m.Respond(prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Replies) == 0 {
		return "", ErrNoScriptedReply
	}

	reply := m.Replies[0]
	m.Replies = m.Replies[1:]
	return reply, nil
}

// Prompts returns a copy of the prompts seen so far.
func (m *MockOracle) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Calls returns how many times Complete was invoked.
func (m *MockOracle) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
