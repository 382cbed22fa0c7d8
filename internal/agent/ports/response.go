package ports

// ResponseKind enumerates the closed set of response variants.
type ResponseKind int

const (
	ResponseAssistant ResponseKind = iota
	ResponseReasoning
	ResponseToolCall
	ResponseToolResult
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseAssistant:
		return "assistant"
	case ResponseReasoning:
		return "reasoning"
	case ResponseToolCall:
		return "tool_call"
	case ResponseToolResult:
		return "tool_result"
	default:
		return "unknown"
	}
}

// ResponseMeta carries provider usage and free-form metadata (e.g. credits).
type ResponseMeta struct {
	Usage    *Usage         `json:"usage,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Response is one message produced by a model turn. The set of
// implementations is sealed: Assistant, Reasoning, ToolCall and ToolResult.
type Response interface {
	Kind() ResponseKind
	Meta() ResponseMeta
	// ToMessage renders the response as a history message.
	ToMessage() Message
	sealed()
}

// Assistant is user-visible model text.
type Assistant struct {
	Text         string
	FinishReason string
	ResponseMeta
}

// Reasoning is model thinking that is shown but never replayed.
type Reasoning struct {
	Text string
	ResponseMeta
}

// ToolCall is a model request to run a tool. Args is the raw argument blob.
type ToolCall struct {
	ID   string
	Tool string
	Args string
	ResponseMeta
}

// ToolResult is the outcome of one tool call, threaded by the call ID.
type ToolResult struct {
	ID      string
	Tool    string
	Content string
	IsError bool
	ResponseMeta
}

func (Assistant) Kind() ResponseKind  { return ResponseAssistant }
func (Reasoning) Kind() ResponseKind  { return ResponseReasoning }
func (ToolCall) Kind() ResponseKind   { return ResponseToolCall }
func (ToolResult) Kind() ResponseKind { return ResponseToolResult }

func (r Assistant) Meta() ResponseMeta  { return r.ResponseMeta }
func (r Reasoning) Meta() ResponseMeta  { return r.ResponseMeta }
func (r ToolCall) Meta() ResponseMeta   { return r.ResponseMeta }
func (r ToolResult) Meta() ResponseMeta { return r.ResponseMeta }

func (Assistant) sealed()  {}
func (Reasoning) sealed()  {}
func (ToolCall) sealed()   {}
func (ToolResult) sealed() {}

func (r Assistant) ToMessage() Message {
	return Message{Role: RoleAssistant, Content: r.Text, Usage: r.Usage, Metadata: r.Metadata}
}

func (r Reasoning) ToMessage() Message {
	return Message{Role: RoleReasoning, Content: r.Text, Usage: r.Usage, Metadata: r.Metadata}
}

func (r ToolCall) ToMessage() Message {
	return Message{Role: RoleToolCall, ToolCallID: r.ID, ToolName: r.Tool, ToolArgs: r.Args, Usage: r.Usage, Metadata: r.Metadata}
}

func (r ToolResult) ToMessage() Message {
	return Message{Role: RoleToolResult, ToolCallID: r.ID, ToolName: r.Tool, Content: r.Content, IsError: r.IsError, Usage: r.Usage, Metadata: r.Metadata}
}

// ResponseFromMessage converts a history message back into its response
// variant. System and user messages have no response form.
func ResponseFromMessage(msg Message) (Response, bool) {
	meta := ResponseMeta{Usage: msg.Usage, Metadata: msg.Metadata}
	switch msg.Role {
	case RoleAssistant:
		return Assistant{Text: msg.Content, ResponseMeta: meta}, true
	case RoleReasoning:
		return Reasoning{Text: msg.Content, ResponseMeta: meta}, true
	case RoleToolCall:
		return ToolCall{ID: msg.ToolCallID, Tool: msg.ToolName, Args: msg.ToolArgs, ResponseMeta: meta}, true
	case RoleToolResult:
		return ToolResult{ID: msg.ToolCallID, Tool: msg.ToolName, Content: msg.Content, IsError: msg.IsError, ResponseMeta: meta}, true
	default:
		return nil, false
	}
}
