package react

import (
	"testing"

	"agentcore/internal/agent/ports"

	"github.com/stretchr/testify/require"
)

func toolCallMsg(id, tool string) ports.Message {
	return ports.Message{Role: ports.RoleToolCall, ToolCallID: id, ToolName: tool}
}

func toolResultMsg(id string) ports.Message {
	return ports.Message{Role: ports.RoleToolResult, ToolCallID: id, Content: "ok"}
}

func TestReplayHistoryDropsSystemAndDanglingCalls(t *testing.T) {
	history := []ports.Message{
		ports.SystemMessage("you are an agent"),
		ports.UserMessage("list files"),
		toolCallMsg("c1", "Bash"),
		toolResultMsg("c1"),
		{Role: ports.RoleAssistant, Content: "checking more"},
		toolCallMsg("c2", "Read"),
		toolCallMsg("c3", "Read"),
	}
	replayed := replayHistory(history)
	require.Len(t, replayed, 4)
	require.Equal(t, ports.RoleUser, replayed[0].Role)
	require.Equal(t, ports.RoleAssistant, replayed[3].Role)

	require.Len(t, replayHistory(history[:4]), 3, "resolved calls are kept")
	require.Empty(t, replayHistory(nil))
}

func TestAppendableResponsesOrdersAssistantFirst(t *testing.T) {
	msgs := appendableResponses([]ports.Response{
		ports.Reasoning{Text: "thinking"},
		ports.ToolCall{ID: "c1", Tool: "Bash"},
		ports.Assistant{Text: "Running ls."},
		ports.ToolCall{ID: "c2", Tool: "Read"},
	})
	require.Len(t, msgs, 3)
	require.Equal(t, ports.RoleAssistant, msgs[0].Role)
	require.Equal(t, "c1", msgs[1].ToolCallID)
	require.Equal(t, "c2", msgs[2].ToolCallID)
}

func TestNeedsNudge(t *testing.T) {
	oneTurn := []ports.Message{ports.UserMessage("go"), toolCallMsg("a", "Bash"), toolCallMsg("b", "Bash"), toolResultMsg("a"), toolResultMsg("b")}
	require.False(t, needsNudge(oneTurn, "TodoWrite"), "parallel calls are one turn")

	twoTurns := append(append([]ports.Message{}, oneTurn...), toolCallMsg("c", "Read"), toolResultMsg("c"))
	require.True(t, needsNudge(twoTurns, "TodoWrite"))

	withTodo := append(append([]ports.Message{}, twoTurns...), toolCallMsg("d", "todowrite"))
	require.False(t, needsNudge(withTodo, "TodoWrite"))

	alreadyNudged := append(append([]ports.Message{}, twoTurns...), nudgeMessage())
	require.False(t, needsNudge(alreadyNudged, "TodoWrite"))
}

func TestQueuedMessagesAreTagged(t *testing.T) {
	msgs := queuedMessages([]string{"also check tests", "and docs"})
	require.Len(t, msgs, 2)
	require.Equal(t, "also check tests", msgs[0].Content)
	require.True(t, msgs[1].HasFlag(ports.MetadataQueued))
}
