package llm

import (
	"strings"

	"agentcore/internal/agent/ports"
)

// FrameAccumulator folds streaming frames into the responses a blocking call
// would have returned.
type FrameAccumulator struct {
	text         strings.Builder
	reasoning    strings.Builder
	calls        []ports.ToolCall
	finishReason string
	usage        *ports.Usage
	metadata     map[string]any
	ended        bool
}

// Add folds one frame.
func (a *FrameAccumulator) Add(frame ports.StreamFrame) {
	switch frame.Kind {
	case ports.FrameTextDelta:
		a.text.WriteString(frame.Text)
	case ports.FrameReasoningDelta:
		a.reasoning.WriteString(frame.Text)
	case ports.FrameToolCall:
		if frame.Call != nil {
			a.calls = append(a.calls, *frame.Call)
		}
	case ports.FrameEnd:
		a.ended = true
		a.finishReason = frame.FinishReason
		if frame.Usage != nil {
			a.usage = frame.Usage
		}
		if len(frame.Metadata) > 0 {
			a.metadata = frame.Metadata
		}
	}
}

// Ended reports whether the terminal frame was seen.
func (a *FrameAccumulator) Ended() bool {
	return a.ended
}

// Responses returns reasoning, then assistant text, then tool calls.
// Usage and metadata from the end frame attach to the last response.
func (a *FrameAccumulator) Responses() []ports.Response {
	var out []ports.Response
	if a.reasoning.Len() > 0 {
		out = append(out, ports.Reasoning{Text: a.reasoning.String()})
	}
	if a.text.Len() > 0 || len(a.calls) == 0 {
		out = append(out, ports.Assistant{Text: a.text.String(), FinishReason: a.finishReason})
	}
	for _, call := range a.calls {
		out = append(out, call)
	}
	if len(out) == 0 || (a.usage == nil && a.metadata == nil) {
		return out
	}

	meta := ports.ResponseMeta{Usage: a.usage, Metadata: a.metadata}
	switch last := out[len(out)-1].(type) {
	case ports.Assistant:
		last.ResponseMeta = meta
		out[len(out)-1] = last
	case ports.Reasoning:
		last.ResponseMeta = meta
		out[len(out)-1] = last
	case ports.ToolCall:
		last.ResponseMeta = meta
		out[len(out)-1] = last
	case ports.ToolResult:
		last.ResponseMeta = meta
		out[len(out)-1] = last
	}
	return out
}

// FoldFrames converts a complete frame sequence into responses.
func FoldFrames(frames []ports.StreamFrame) []ports.Response {
	var acc FrameAccumulator
	for _, frame := range frames {
		acc.Add(frame)
	}
	return acc.Responses()
}
