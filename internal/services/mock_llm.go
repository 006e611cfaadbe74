package services

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/jwebster45206/hackslash/pkg/chat"
)

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	ChatStreamFunc func(ctx context.Context, model string, messages []chat.ChatMessage) iter.Seq2[string, error]
	ChatFunc       func(ctx context.Context, model string, messages []chat.ChatMessage) (string, error)

	// Track calls for testing
	ChatStreamCalls []LLMCall
	ChatCalls       []LLMCall

	mu sync.Mutex // protects all fields above
}

// LLMCall records one request made to the mock.
type LLMCall struct {
	Model    string
	Messages []chat.ChatMessage
	Options  GenerateOptions
}

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		ChatStreamCalls: make([]LLMCall, 0),
		ChatCalls:       make([]LLMCall, 0),
	}
}

// ChatStream records the call and delegates to ChatStreamFunc. The default
// reply is "Mock response" in two fragments.
func (m *MockLLMAPI) ChatStream(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions) iter.Seq2[string, error] {
	m.mu.Lock()
	m.ChatStreamCalls = append(m.ChatStreamCalls, LLMCall{Model: model, Messages: slices.Clone(messages), Options: opts})
	fn := m.ChatStreamFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, model, messages)
	}

	// Default behavior
	return StreamOf("Mock ", "response")
}

// Chat records the call and delegates to ChatFunc.
func (m *MockLLMAPI) Chat(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions) (string, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, LLMCall{Model: model, Messages: slices.Clone(messages), Options: opts})
	fn := m.ChatFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, model, messages)
	}
	return "Mock response", nil
}

// Reset clears all call tracking
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatStreamCalls = make([]LLMCall, 0)
	m.ChatCalls = make([]LLMCall, 0)
}

// SetChatStreamError sets up the mock to fail every stream before any
// fragment.
func (m *MockLLMAPI) SetChatStreamError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatStreamFunc = func(ctx context.Context, model string, messages []chat.ChatMessage) iter.Seq2[string, error] {
		return StreamError(err)
	}
}

// SetChatError sets up the mock to return an error on Chat
func (m *MockLLMAPI) SetChatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, model string, messages []chat.ChatMessage) (string, error) {
		return "", err
	}
}

// StreamCalls returns a copy of the recorded ChatStream calls.
func (m *MockLLMAPI) StreamCalls() []LLMCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ChatStreamCalls)
}

// StreamOf yields the given fragments in order.
func StreamOf(fragments ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range fragments {
			if !yield(f, nil) {
				return
			}
		}
	}
}

// StreamError yields err before any fragment.
func StreamError(err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}
