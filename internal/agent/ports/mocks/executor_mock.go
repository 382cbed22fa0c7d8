package mocks

import (
	"context"
	"iter"

	"agentcore/internal/agent/ports"
)

type MockPromptExecutor struct {
	ExecuteFunc          func(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) ([]ports.Response, error)
	ExecuteStreamingFunc func(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) iter.Seq2[ports.StreamFrame, error]
}

func (m *MockPromptExecutor) Execute(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) ([]ports.Response, error) {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, prompt, model, tools)
	}
	return []ports.Response{ports.Assistant{
		Text:         "Mock response",
		FinishReason: "stop",
		ResponseMeta: ports.ResponseMeta{Usage: &ports.Usage{TotalTokens: 100}},
	}}, nil
}

func (m *MockPromptExecutor) ExecuteStreaming(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) iter.Seq2[ports.StreamFrame, error] {
	if m.ExecuteStreamingFunc != nil {
		return m.ExecuteStreamingFunc(ctx, prompt, model, tools)
	}
	return StreamOf(ports.TextDelta("Mock response"), ports.EndFrame("stop", &ports.Usage{TotalTokens: 100}, nil))
}

// StreamOf returns a sequence yielding frames in order.
func StreamOf(frames ...ports.StreamFrame) iter.Seq2[ports.StreamFrame, error] {
	return StreamThenFail(nil, frames...)
}

// StreamThenFail yields frames and then err, when err is non-nil.
func StreamThenFail(err error, frames ...ports.StreamFrame) iter.Seq2[ports.StreamFrame, error] {
	return func(yield func(ports.StreamFrame, error) bool) {
		for _, frame := range frames {
			if !yield(frame, nil) {
				return
			}
		}
		if err != nil {
			yield(ports.StreamFrame{}, err)
		}
	}
}
