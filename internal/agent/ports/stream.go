package ports

// FrameKind enumerates streaming frame variants.
type FrameKind int

const (
	FrameTextDelta FrameKind = iota
	FrameReasoningDelta
	FrameToolCall
	FrameEnd
)

func (k FrameKind) String() string {
	switch k {
	case FrameTextDelta:
		return "text_delta"
	case FrameReasoningDelta:
		return "reasoning_delta"
	case FrameToolCall:
		return "tool_call"
	case FrameEnd:
		return "end"
	default:
		return "unknown"
	}
}

// StreamFrame is one unit emitted by a streaming model call.
// Text is set for deltas, Call for tool-call frames, and FinishReason,
// Usage and Metadata for the end frame.
type StreamFrame struct {
	Kind         FrameKind
	Text         string
	Call         *ToolCall
	FinishReason string
	Usage        *Usage
	Metadata     map[string]any
}

// TextDelta builds a text frame.
func TextDelta(text string) StreamFrame {
	return StreamFrame{Kind: FrameTextDelta, Text: text}
}

// ReasoningDelta builds a reasoning frame.
func ReasoningDelta(text string) StreamFrame {
	return StreamFrame{Kind: FrameReasoningDelta, Text: text}
}

// ToolCallFrame builds a frame carrying a complete tool call.
func ToolCallFrame(call ToolCall) StreamFrame {
	return StreamFrame{Kind: FrameToolCall, Call: &call}
}

// EndFrame builds the terminal frame of a stream.
func EndFrame(finishReason string, usage *Usage, metadata map[string]any) StreamFrame {
	return StreamFrame{Kind: FrameEnd, FinishReason: finishReason, Usage: usage, Metadata: metadata}
}
