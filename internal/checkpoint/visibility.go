package checkpoint

import (
	"strings"

	"agentcore/internal/agent/ports"
)

// ShouldHideInTranscript reports whether a user message is scaffolding the
// agent injected rather than something the user typed: cacheable instruction
// messages and the project instructions themselves.
func ShouldHideInTranscript(msg ports.Message, projectInstructions string) bool {
	if msg.Role != ports.RoleUser {
		return false
	}
	if isCacheable(msg) {
		return true
	}
	if strings.TrimSpace(projectInstructions) == "" {
		return false
	}
	return singleLine(msg.Content) == singleLine(projectInstructions)
}

func isCacheable(msg ports.Message) bool {
	value, ok := msg.Metadata[ports.MetadataCacheable]
	if !ok {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}

func singleLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
