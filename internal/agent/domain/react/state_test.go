package react

import (
	"testing"

	"agentcore/internal/agent/ports"
	agenterrors "agentcore/internal/errors"

	"github.com/stretchr/testify/require"
)

func TestTransitionStartCallsModel(t *testing.T) {
	next, effects, err := Transition(StateStart, TurnSubmitted())
	require.NoError(t, err)
	require.Equal(t, StateCallModel, next)
	require.Equal(t, []Effect{{Kind: EffectCallModel}}, effects)
}

func TestTransitionSingleAssistantFinishes(t *testing.T) {
	responses := []ports.Response{ports.Reasoning{Text: "hmm"}, ports.Assistant{Text: "done"}}
	next, effects, err := Transition(StateCallModel, ModelResponded(responses))
	require.NoError(t, err)
	require.Equal(t, StateFinish, next)
	require.Equal(t, []Effect{{Kind: EffectFinish, Text: "done"}}, effects)
}

func TestTransitionToolCallsExecute(t *testing.T) {
	call := ports.ToolCall{ID: "c1", Tool: "Bash", Args: `{"command":"ls"}`}
	for _, responses := range [][]ports.Response{
		{call},
		{ports.Assistant{Text: "Let me look."}, call, ports.ToolCall{ID: "c2", Tool: "Read"}},
		{ports.Reasoning{Text: "plan"}, call},
	} {
		next, effects, err := Transition(StateSendToolResults, ModelResponded(responses))
		require.NoError(t, err)
		require.Equal(t, StateExecuteTools, next)
		require.Len(t, effects, 1)
		require.Equal(t, EffectDispatchTools, effects[0].Kind)
		require.Equal(t, call, effects[0].Calls[0])
	}
}

func TestTransitionAmbiguousShapes(t *testing.T) {
	call := ports.ToolCall{ID: "c1", Tool: "Bash"}
	for name, responses := range map[string][]ports.Response{
		"empty":           nil,
		"reasoning only":  {ports.Reasoning{Text: "x"}},
		"two assistants":  {ports.Assistant{Text: "a"}, ports.Assistant{Text: "b"}},
		"two with call":   {ports.Assistant{Text: "a"}, ports.Assistant{Text: "b"}, call},
		"tool result":     {ports.ToolResult{ID: "c1", Content: "x"}},
		"call and result": {call, ports.ToolResult{ID: "c1"}},
		"nil response":    {nil},
	} {
		next, effects, err := Transition(StateCallModel, ModelResponded(responses))
		require.ErrorIs(t, err, agenterrors.ErrAmbiguousResponse, name)
		require.Equal(t, StateCallModel, next, name)
		require.Nil(t, effects, name)
	}
}

func TestTransitionToolsExecutedSendsResults(t *testing.T) {
	results := []ports.ToolResult{{ID: "c1", Content: "ok"}}
	next, effects, err := Transition(StateExecuteTools, ToolsExecuted(results))
	require.NoError(t, err)
	require.Equal(t, StateSendToolResults, next)
	require.Equal(t, []Effect{
		{Kind: EffectAppendToolResults, Results: results},
		{Kind: EffectCallModel},
	}, effects)
}

func TestTransitionRejectsInvalidEvents(t *testing.T) {
	cases := []struct {
		state State
		event Event
	}{
		{StateStart, ModelResponded(nil)},
		{StateCallModel, TurnSubmitted()},
		{StateExecuteTools, ModelResponded(nil)},
		{StateFinish, TurnSubmitted()},
		{StateSendToolResults, ToolsExecuted(nil)},
	}
	for _, tc := range cases {
		_, _, err := Transition(tc.state, tc.event)
		var invariant *agenterrors.InvariantError
		require.ErrorAs(t, err, &invariant, "%s", tc.state)
	}
}

func TestNodePaths(t *testing.T) {
	require.Equal(t, "single_run/__start__", StateStart.NodePath())
	require.Equal(t, "single_run/call_model", StateCallModel.NodePath())
	require.Equal(t, "single_run/execute_tools", StateExecuteTools.NodePath())
	require.Equal(t, "single_run/send_tool_results", StateSendToolResults.NodePath())
	require.Equal(t, "single_run/__finish__", StateFinish.NodePath())
}
