// Package tokenizer counts prompt tokens with tiktoken. It lazily loads the
// cl100k_base encoding on first use and falls back to a character heuristic
// if the encoding cannot be loaded.
package tokenizer

import (
	"strings"
	"sync"

	"agentcore/internal/agent/ports"

	"github.com/pkoukk/tiktoken-go"
)

// Per-message framing overhead and reply priming, as counted for chat models.
const (
	tokensPerMessage = 4
	tokensPerReply   = 3
)

var (
	once     sync.Once
	encoding *tiktoken.Tiktoken
)

func loadEncoding() *tiktoken.Tiktoken {
	once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// Tokenizer estimates prompt size when a provider does not report usage.
type Tokenizer struct{}

var _ ports.Tokenizer = Tokenizer{}

// New returns a Tokenizer.
func New() Tokenizer { return Tokenizer{} }

// CountTokens counts every message's content and tool arguments plus framing.
func (Tokenizer) CountTokens(prompt ports.Prompt) int {
	if len(prompt.Messages) == 0 {
		return 0
	}
	total := tokensPerReply
	for _, msg := range prompt.Messages {
		total += tokensPerMessage
		total += CountText(msg.Content)
		total += CountText(msg.ToolName)
		total += CountText(msg.ToolArgs)
	}
	return total
}

// CountText returns the cl100k_base token count of text, or EstimateFast
// when tiktoken is unavailable.
func CountText(text string) int {
	if text == "" {
		return 0
	}
	if enc := loadEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateFast(text)
}

// EstimateFast returns a heuristic token estimate: max(runes/4, word_count).
func EstimateFast(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	runes := len([]rune(trimmed))
	words := len(strings.Fields(trimmed))
	estimate := max(runes/4, words)
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}
