package react

import (
	"context"
	"fmt"
	"runtime/debug"

	"agentcore/internal/agent/ports"
	agenterrors "agentcore/internal/errors"
	"agentcore/internal/observability"
	id "agentcore/internal/utils/id"

	"golang.org/x/sync/errgroup"
)

// toolBatch dispatches every call of one model turn concurrently and joins
// them. A failing or panicking call becomes an error result for that call
// only; siblings keep running.
type toolBatch struct {
	runner   *Runner
	listener ports.EventListener
	calls    []ports.ToolCall
	results  []ports.ToolResult
}

func newToolBatch(r *Runner, listener ports.EventListener, calls []ports.ToolCall) *toolBatch {
	return &toolBatch{
		runner:   r,
		listener: listener,
		calls:    calls,
		results:  make([]ports.ToolResult, len(calls)),
	}
}

// execute returns one result per call, in call order.
func (b *toolBatch) execute(ctx context.Context) []ports.ToolResult {
	if len(b.calls) == 0 {
		return b.results
	}
	var group errgroup.Group
	if limit := b.runner.cfg.MaxParallelTools; limit > 0 {
		group.SetLimit(limit)
	}
	for i, call := range b.calls {
		group.Go(func() error {
			b.results[i] = b.runCall(ctx, call)
			return nil
		})
	}
	_ = group.Wait()
	return b.results
}

func (b *toolBatch) runCall(ctx context.Context, call ports.ToolCall) (result ports.ToolResult) {
	logger := b.runner.loggerFor(ctx)
	toolCtx := id.WithToolCallID(ctx, call.ID)
	toolCtx = ports.WithToolOutput(toolCtx, func(chunk string) {
		b.listener.OnToolOutput(call.ID, chunk)
	})
	toolCtx, span := b.runner.tracer.StartSpan(toolCtx, observability.SpanToolExecute, observability.ToolAttrs(call.Tool)...)
	start := b.runner.clock()

	b.listener.OnToolStarting(call)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Tool %s (%s) panicked: %v\n%s", call.Tool, call.ID, r, debug.Stack())
			result = errorResult(call, fmt.Errorf("tool %s panicked: %v", call.Tool, r))
		}
		status := "ok"
		var spanErr error
		if result.IsError {
			status = "error"
			spanErr = fmt.Errorf("%s", result.Content)
		}
		observability.EndSpan(span, spanErr)
		b.runner.metrics.RecordToolExecution(ctx, call.Tool, status, b.runner.clock().Sub(start))
		b.listener.OnToolCompleted(result)
	}()

	logger.Debug("Executing tool %s (%s) with args: %s", call.Tool, call.ID, argsForLog(call.Args))
	out, err := b.runner.deps.Tools.Dispatch(toolCtx, call)
	if err != nil {
		logger.Warn("Tool %s (%s) failed: %v", call.Tool, call.ID, err)
		return errorResult(call, err)
	}
	out.ID = call.ID
	if out.Tool == "" {
		out.Tool = call.Tool
	}
	return out
}

func errorResult(call ports.ToolCall, err error) ports.ToolResult {
	return ports.ToolResult{
		ID:      call.ID,
		Tool:    call.Tool,
		Content: "Error: " + agenterrors.FormatForLLM(err),
		IsError: true,
	}
}
