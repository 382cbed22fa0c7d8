package ports

import "slices"

// Role identifies who produced a message in the conversation.
type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleReasoning  Role = "reasoning"
	RoleToolCall   Role = "tool_call"
	RoleToolResult Role = "tool_result"
)

// Metadata keys understood by the runtime.
const (
	// MetadataCacheable tags one-time project instructions so transcripts can hide them.
	MetadataCacheable = "cacheable"
	// MetadataNudge tags the steering reminder injected after tool results.
	MetadataNudge = "nudge"
	// MetadataQueued tags user messages flushed from the pending queue.
	MetadataQueued = "queued"
	// MetadataTagContext tags the inline text resolved from attached tags.
	MetadataTagContext = "tag_context"
)

// Usage tracks token consumption reported by a provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Total returns TotalTokens or, when the provider left it empty, the sum of both sides.
func (u *Usage) Total() int {
	if u == nil {
		return 0
	}
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}

// Message represents a conversation message
type Message struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolArgs   string         `json:"tool_args,omitempty"`
	IsError    bool           `json:"is_error,omitempty"`
	Usage      *Usage         `json:"usage,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// HasFlag reports whether the boolean metadata key is set.
func (m Message) HasFlag(key string) bool {
	if m.Metadata == nil {
		return false
	}
	flag, ok := m.Metadata[key].(bool)
	return ok && flag
}

// WithFlag returns a copy of the message with the boolean metadata key set.
func (m Message) WithFlag(key string) Message {
	meta := make(map[string]any, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		meta[k] = v
	}
	meta[key] = true
	m.Metadata = meta
	return m
}

// Prompt is an ordered, immutable sequence of messages sent to a model.
// Every transformation returns a new Prompt and leaves the receiver untouched.
type Prompt struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
}

// NewPrompt copies msgs into a new prompt.
func NewPrompt(id string, msgs ...Message) Prompt {
	return Prompt{ID: id, Messages: slices.Clone(msgs)}
}

// Len returns the number of messages.
func (p Prompt) Len() int {
	return len(p.Messages)
}

// Append returns a prompt with msgs added at the end.
func (p Prompt) Append(msgs ...Message) Prompt {
	out := make([]Message, 0, len(p.Messages)+len(msgs))
	out = append(out, p.Messages...)
	out = append(out, msgs...)
	return Prompt{ID: p.ID, Messages: out}
}

// DropLast returns a prompt without its final message, plus the dropped message.
func (p Prompt) DropLast() (Prompt, Message, bool) {
	if len(p.Messages) == 0 {
		return p, Message{}, false
	}
	last := p.Messages[len(p.Messages)-1]
	return Prompt{ID: p.ID, Messages: slices.Clone(p.Messages[:len(p.Messages)-1])}, last, true
}

// WithoutSystem returns a prompt with every system message removed.
func (p Prompt) WithoutSystem() Prompt {
	out := make([]Message, 0, len(p.Messages))
	for _, msg := range p.Messages {
		if msg.Role == RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	return Prompt{ID: p.ID, Messages: out}
}

// LatestTokenUsage returns the most recent provider-reported total, or 0.
func (p Prompt) LatestTokenUsage() int {
	for i := len(p.Messages) - 1; i >= 0; i-- {
		if total := p.Messages[i].Usage.Total(); total > 0 {
			return total
		}
	}
	return 0
}
