package tokenizer

import (
	"strings"
	"testing"

	"agentcore/internal/agent/ports"

	"github.com/stretchr/testify/require"
)

func TestCountTextEmpty(t *testing.T) {
	require.Equal(t, 0, CountText(""))
}

func TestCountTextSimple(t *testing.T) {
	got := CountText("hello world")
	require.Positive(t, got)
	if loadEncoding() != nil {
		require.Equal(t, 2, got)
	}
}

func TestEstimateFast(t *testing.T) {
	require.Equal(t, 0, EstimateFast("   "))
	require.Equal(t, 1, EstimateFast("a"))
	require.Equal(t, 3, EstimateFast("one two three"))
	require.Equal(t, 25, EstimateFast(strings.Repeat("x", 100)))
}

func TestCountTokensGrowsWithHistory(t *testing.T) {
	tok := New()
	require.Equal(t, 0, tok.CountTokens(ports.NewPrompt("p")))

	short := ports.NewPrompt("p", ports.UserMessage("list files"))
	long := short.Append(
		ports.Message{Role: ports.RoleToolCall, ToolCallID: "c1", ToolName: "Bash", ToolArgs: `{"command":"ls -la"}`},
		ports.Message{Role: ports.RoleToolResult, ToolCallID: "c1", ToolName: "Bash", Content: "main.go\ngo.mod"},
	)
	require.Greater(t, tok.CountTokens(short), tokensPerReply+tokensPerMessage)
	require.Greater(t, tok.CountTokens(long), tok.CountTokens(short))
}
