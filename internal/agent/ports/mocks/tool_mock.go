package mocks

import (
	"context"
	"sync"

	"agentcore/internal/agent/ports"
)

type MockToolDispatcher struct {
	DispatchFunc func(ctx context.Context, call ports.ToolCall) (ports.ToolResult, error)

	mu    sync.Mutex
	calls []ports.ToolCall
}

func (m *MockToolDispatcher) Dispatch(ctx context.Context, call ports.ToolCall) (ports.ToolResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, call)
	}
	return ports.ToolResult{
		ID:      call.ID,
		Tool:    call.Tool,
		Content: "Mock tool result",
	}, nil
}

// Calls returns the calls dispatched so far.
func (m *MockToolDispatcher) Calls() []ports.ToolCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.ToolCall, len(m.calls))
	copy(out, m.calls)
	return out
}

type MockTagResolver struct {
	ResolveFunc func(ctx context.Context, tags []string) (string, error)
}

func (m *MockTagResolver) Resolve(ctx context.Context, tags []string) (string, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, tags)
	}
	return "", nil
}

type MockTokenizer struct {
	CountTokensFunc func(prompt ports.Prompt) int
}

func (m *MockTokenizer) CountTokens(prompt ports.Prompt) int {
	if m.CountTokensFunc != nil {
		return m.CountTokensFunc(prompt)
	}
	return 0
}

type MockInstructionsProvider struct {
	ProjectInstructionsFunc func(ctx context.Context) (string, error)
}

func (m *MockInstructionsProvider) ProjectInstructions(ctx context.Context) (string, error) {
	if m.ProjectInstructionsFunc != nil {
		return m.ProjectInstructionsFunc(ctx)
	}
	return "", nil
}
