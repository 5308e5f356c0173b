package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient implements Client for tests and offline runs. It replays a
// scripted sequence of responses and records every request it sees.
type MockClient struct {
	mu        sync.Mutex
	model     string
	responses []*CompletionResponse
	err       error
	index     int

	// Requests holds every request passed to Complete, in order.
	Requests []CompletionRequest
}

// NewMockClient returns a mock that replays the given responses in order.
// The last response is repeated once the script runs out.
func NewMockClient(model string, responses ...*CompletionResponse) *MockClient {
	return &MockClient{model: model, responses: responses}
}

// FailWith makes every subsequent Complete call return err.
func (m *MockClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockClient) Model() string {
	return m.model
}

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock client has no scripted responses")
	}

	resp := m.responses[m.index]
	if m.index < len(m.responses)-1 {
		m.index++
	}

	cloned := *resp
	if cloned.Usage.TotalTokens == 0 {
		cloned.Usage = TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}
	}
	return &cloned, nil
}

// TextResponse is a convenience constructor for a plain content response.
func TextResponse(content string) *CompletionResponse {
	return &CompletionResponse{Content: content, StopReason: "stop"}
}
