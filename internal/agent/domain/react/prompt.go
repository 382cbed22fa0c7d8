package react

import (
	"slices"
	"strings"

	"agentcore/internal/agent/ports"
)

// nudgeText is the one-off steering reminder appended after tool results.
const nudgeText = "It seems that you haven't created a todo list yet. If the task on hand requires multiple steps then create a todo list to track your changes."

// nudgeAfterToolTurns is how many tool-call turns may pass before the reminder.
const nudgeAfterToolTurns = 2

// replayHistory prepares a checkpoint history for a new model call: system
// messages are dropped, and so is the trailing run of tool calls that never
// got results.
func replayHistory(history []ports.Message) []ports.Message {
	out := make([]ports.Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == ports.RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	end := len(out)
	for end > 0 && out[end-1].Role == ports.RoleToolCall {
		end--
	}
	return out[:end]
}

// appendableResponses orders responses with Assistant first and removes
// Reasoning, which is shown to observers but not replayed.
func appendableResponses(responses []ports.Response) []ports.Message {
	ordered := slices.Clone(responses)
	slices.SortStableFunc(ordered, func(a, b ports.Response) int {
		return rank(a) - rank(b)
	})
	out := make([]ports.Message, 0, len(ordered))
	for _, resp := range ordered {
		if resp == nil || resp.Kind() == ports.ResponseReasoning {
			continue
		}
		out = append(out, resp.ToMessage())
	}
	return out
}

func rank(resp ports.Response) int {
	if resp != nil && resp.Kind() == ports.ResponseAssistant {
		return 0
	}
	return 1
}

// needsNudge reports whether the reminder should be injected: enough
// tool-call turns have passed, the task-tracking tool was never called and
// the reminder was not sent before.
func needsNudge(history []ports.Message, taskTool string) bool {
	turns := 0
	inTurn := false
	for _, msg := range history {
		if msg.HasFlag(ports.MetadataNudge) {
			return false
		}
		if msg.Role != ports.RoleToolCall {
			inTurn = false
			continue
		}
		if strings.EqualFold(msg.ToolName, taskTool) {
			return false
		}
		if !inTurn {
			turns++
			inTurn = true
		}
	}
	return turns >= nudgeAfterToolTurns
}

func nudgeMessage() ports.Message {
	return ports.UserMessage(nudgeText).WithFlag(ports.MetadataNudge)
}

func queuedMessages(texts []string) []ports.Message {
	out := make([]ports.Message, 0, len(texts))
	for _, text := range texts {
		out = append(out, ports.UserMessage(text).WithFlag(ports.MetadataQueued))
	}
	return out
}
