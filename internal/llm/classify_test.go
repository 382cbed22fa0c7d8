package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"agentcore/internal/agent/ports"
	agenterrors "agentcore/internal/errors"

	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	rateLimited := ClassifyError(NewHTTPStatusError(429, "Too Many Requests", ""))
	require.True(t, agenterrors.IsTransient(rateLimited))
	require.Equal(t, agenterrors.KindRateLimit, agenterrors.FailureKind(rateLimited))

	unauthorized := ClassifyError(NewHTTPStatusError(401, "Unauthorized", ""))
	require.True(t, agenterrors.IsPermanent(unauthorized))

	orphan := ClassifyError(errors.New("HTTP 400: messages.3: tool_use ids were found without tool_result blocks"))
	require.True(t, agenterrors.IsSerialization(orphan))

	cancelled := fmt.Errorf("stream: %w", context.Canceled)
	require.Same(t, cancelled, ClassifyError(cancelled))

	marked := agenterrors.NewTransientError(errors.New("x"), "already marked")
	require.Same(t, marked, ClassifyError(marked))

	require.NoError(t, ClassifyError(nil))
}

func TestFoldFrames(t *testing.T) {
	call := ports.ToolCall{ID: "c1", Tool: "Read", Args: `{"path":"go.mod"}`}
	responses := FoldFrames([]ports.StreamFrame{
		ports.ReasoningDelta("let me "),
		ports.ReasoningDelta("look"),
		ports.TextDelta("Reading "),
		ports.TextDelta("the file"),
		ports.ToolCallFrame(call),
		ports.EndFrame("tool_use", &ports.Usage{TotalTokens: 42}, map[string]any{"credits": map[string]any{"remaining": 3}}),
	})

	require.Len(t, responses, 3)
	require.Equal(t, ports.Reasoning{Text: "let me look"}, responses[0])
	require.Equal(t, "Reading the file", responses[1].(ports.Assistant).Text)

	folded := responses[2].(ports.ToolCall)
	require.Equal(t, "c1", folded.ID)
	require.Equal(t, 42, folded.Usage.Total())
	require.NotNil(t, folded.Metadata["credits"])
}

func TestFoldFramesEmptyStreamYieldsEmptyAssistant(t *testing.T) {
	responses := FoldFrames([]ports.StreamFrame{ports.EndFrame("stop", nil, nil)})
	require.Len(t, responses, 1)
	require.Equal(t, "stop", responses[0].(ports.Assistant).FinishReason)
}
