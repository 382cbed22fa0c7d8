package ports

import (
	"context"
	"iter"
)

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// PromptExecutor runs a prompt against a model provider.
type PromptExecutor interface {
	// Execute performs a blocking call and returns every response of the turn.
	Execute(ctx context.Context, prompt Prompt, model string, tools []ToolDefinition) ([]Response, error)

	// ExecuteStreaming returns a single-pass sequence of frames. A failure is
	// yielded as a final (zero frame, error) pair. Ranging over the sequence
	// again re-issues the call.
	ExecuteStreaming(ctx context.Context, prompt Prompt, model string, tools []ToolDefinition) iter.Seq2[StreamFrame, error]
}

// ToolDispatcher executes tool calls on behalf of the run state machine.
// Implementations must be safe for concurrent use.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, call ToolCall) (ToolResult, error)
}

// TagResolver turns attached context tags into inline text.
type TagResolver interface {
	Resolve(ctx context.Context, tags []string) (string, error)
}

// Tokenizer estimates prompt size when a provider reports no usage.
type Tokenizer interface {
	CountTokens(prompt Prompt) int
}

// InstructionsProvider returns the project-level instructions injected once per fresh run.
type InstructionsProvider interface {
	ProjectInstructions(ctx context.Context) (string, error)
}

// PendingQueue holds user messages typed while a run was busy.
type PendingQueue interface {
	// Drain removes and returns every queued message for runID in arrival order.
	Drain(runID string) []string
}

type toolOutputKey struct{}

// WithToolOutput installs a sink for incremental tool output on ctx.
func WithToolOutput(ctx context.Context, sink func(chunk string)) context.Context {
	if sink == nil {
		return ctx
	}
	return context.WithValue(ctx, toolOutputKey{}, sink)
}

// EmitToolOutput forwards a chunk of tool output to the sink installed on ctx, if any.
func EmitToolOutput(ctx context.Context, chunk string) {
	if sink, ok := ctx.Value(toolOutputKey{}).(func(string)); ok {
		sink(chunk)
	}
}
