package checkpoint

import (
	"encoding/json"
	"strings"

	"agentcore/internal/agent/ports"

	"github.com/kaptinlin/jsonrepair"
)

const (
	fallbackTitle   = "Recovered conversation"
	maxTitleRunes   = 80
	maxPreviewRunes = 160
)

// DefaultTaskTool is the task-tracking tool whose "title" argument names a run.
const DefaultTaskTool = "TodoWrite"

// Title derives a display title for a history. The newest task-tracking call
// with a title argument wins, then the newest visible user message.
func Title(history []ports.Message, taskTool, projectInstructions string) string {
	if taskTool == "" {
		taskTool = DefaultTaskTool
	}
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != ports.RoleToolCall || !isTaskTool(msg.ToolName, taskTool) {
			continue
		}
		if title := argumentTitle(msg.ToolArgs); title != "" {
			return truncateRunes(singleLine(title), maxTitleRunes)
		}
	}
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != ports.RoleUser || ShouldHideInTranscript(msg, projectInstructions) {
			continue
		}
		if text := singleLine(msg.Content); text != "" {
			return truncateRunes(text, maxTitleRunes)
		}
	}
	return fallbackTitle
}

// Preview is the newest non-empty assistant or reasoning text, on one line.
func Preview(history []ports.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != ports.RoleAssistant && msg.Role != ports.RoleReasoning {
			continue
		}
		if text := singleLine(msg.Content); text != "" {
			return truncateRunes(text, maxPreviewRunes)
		}
	}
	return ""
}

func isTaskTool(name, taskTool string) bool {
	return strings.EqualFold(name, taskTool) || strings.EqualFold(name, taskTool+"Tool")
}

func argumentTitle(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return ""
		}
		if err := json.Unmarshal([]byte(repaired), &args); err != nil {
			return ""
		}
	}
	title, _ := args["title"].(string)
	return strings.TrimSpace(title)
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
