package id

import "context"

type contextKey string

const (
	runKey  contextKey = "agentcore_run_id"
	logKey  contextKey = "agentcore_log_id"
	nodeKey contextKey = "agentcore_node"
	toolKey contextKey = "agentcore_tool_call_id"
)

// IDs captures the identifiers propagated across run boundaries.
type IDs struct {
	RunID      string
	LogID      string
	Node       string
	ToolCallID string
}

// WithRunID stores the current run identifier on the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runKey, runID)
}

// WithLogID stores the provided log identifier on the context.
func WithLogID(ctx context.Context, logID string) context.Context {
	if logID == "" {
		return ctx
	}
	return context.WithValue(ctx, logKey, logID)
}

// WithNode records the state-machine node currently executing.
func WithNode(ctx context.Context, node string) context.Context {
	if node == "" {
		return ctx
	}
	return context.WithValue(ctx, nodeKey, node)
}

// WithToolCallID records the tool call a dispatcher is serving.
func WithToolCallID(ctx context.Context, callID string) context.Context {
	if callID == "" {
		return ctx
	}
	return context.WithValue(ctx, toolKey, callID)
}

// WithIDs stores any provided identifiers on the context.
func WithIDs(ctx context.Context, ids IDs) context.Context {
	ctx = WithRunID(ctx, ids.RunID)
	ctx = WithLogID(ctx, ids.LogID)
	ctx = WithNode(ctx, ids.Node)
	ctx = WithToolCallID(ctx, ids.ToolCallID)
	return ctx
}

// RunIDFromContext extracts the run identifier from context.
func RunIDFromContext(ctx context.Context) string {
	return stringValue(ctx, runKey)
}

// LogIDFromContext extracts the log identifier from context.
func LogIDFromContext(ctx context.Context) string {
	return stringValue(ctx, logKey)
}

// NodeFromContext extracts the executing node from context.
func NodeFromContext(ctx context.Context) string {
	return stringValue(ctx, nodeKey)
}

// ToolCallIDFromContext extracts the tool call identifier from context.
func ToolCallIDFromContext(ctx context.Context) string {
	return stringValue(ctx, toolKey)
}

// IDsFromContext collects all known identifiers from the context.
func IDsFromContext(ctx context.Context) IDs {
	return IDs{
		RunID:      RunIDFromContext(ctx),
		LogID:      LogIDFromContext(ctx),
		Node:       NodeFromContext(ctx),
		ToolCallID: ToolCallIDFromContext(ctx),
	}
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(key).(string); ok {
		return value
	}
	return ""
}
