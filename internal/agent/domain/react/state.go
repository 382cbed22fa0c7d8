package react

import (
	"fmt"

	"agentcore/internal/agent/ports"
	"agentcore/internal/agent/ports/storage"
	agenterrors "agentcore/internal/errors"
)

// strategyName prefixes every node path written to checkpoints.
const strategyName = "single_run"

// State is a node of the single-run graph.
type State int

const (
	StateStart State = iota
	StateCallModel
	StateExecuteTools
	StateSendToolResults
	StateFinish
)

func (s State) String() string {
	switch s {
	case StateStart:
		return storage.NodeStart
	case StateCallModel:
		return "call_model"
	case StateExecuteTools:
		return "execute_tools"
	case StateSendToolResults:
		return "send_tool_results"
	case StateFinish:
		return storage.NodeFinish
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// NodePath is the checkpoint path of the node, e.g. "single_run/call_model".
func (s State) NodePath() string {
	return strategyName + "/" + s.String()
}

// EventKind identifies what just happened to a run.
type EventKind int

const (
	EventTurnSubmitted EventKind = iota
	EventModelResponded
	EventToolsExecuted
)

// Event is the input of Transition.
type Event struct {
	Kind      EventKind
	Responses []ports.Response
	Results   []ports.ToolResult
}

// TurnSubmitted starts a run.
func TurnSubmitted() Event { return Event{Kind: EventTurnSubmitted} }

// ModelResponded carries the responses of one model call.
func ModelResponded(responses []ports.Response) Event {
	return Event{Kind: EventModelResponded, Responses: responses}
}

// ToolsExecuted carries one result per dispatched call.
func ToolsExecuted(results []ports.ToolResult) Event {
	return Event{Kind: EventToolsExecuted, Results: results}
}

// EffectKind identifies work the runner must perform.
type EffectKind int

const (
	EffectCallModel EffectKind = iota
	EffectDispatchTools
	EffectAppendToolResults
	EffectFinish
)

func (k EffectKind) String() string {
	switch k {
	case EffectCallModel:
		return "call_model"
	case EffectDispatchTools:
		return "dispatch_tools"
	case EffectAppendToolResults:
		return "append_tool_results"
	case EffectFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// Effect is an instruction emitted by Transition.
type Effect struct {
	Kind    EffectKind
	Calls   []ports.ToolCall
	Results []ports.ToolResult
	Text    string
}

// Transition is the pure state machine of a run. It never performs I/O.
//
//	Start           --TurnSubmitted-->  CallModel        [CallModel]
//	CallModel       --ModelResponded--> Finish           [Finish(text)]
//	                                    ExecuteTools     [DispatchTools(calls)]
//	ExecuteTools    --ToolsExecuted-->  SendToolResults  [AppendToolResults, CallModel]
//	SendToolResults --ModelResponded--> Finish | ExecuteTools
//
// Responses of any other shape yield an error wrapping ErrAmbiguousResponse.
func Transition(state State, ev Event) (State, []Effect, error) {
	switch {
	case state == StateStart && ev.Kind == EventTurnSubmitted:
		return StateCallModel, []Effect{{Kind: EffectCallModel}}, nil

	case (state == StateCallModel || state == StateSendToolResults) && ev.Kind == EventModelResponded:
		text, calls, err := ClassifyResponses(ev.Responses)
		if err != nil {
			return state, nil, err
		}
		if calls == nil {
			return StateFinish, []Effect{{Kind: EffectFinish, Text: text}}, nil
		}
		return StateExecuteTools, []Effect{{Kind: EffectDispatchTools, Calls: calls}}, nil

	case state == StateExecuteTools && ev.Kind == EventToolsExecuted:
		return StateSendToolResults, []Effect{
			{Kind: EffectAppendToolResults, Results: ev.Results},
			{Kind: EffectCallModel},
		}, nil
	}
	return state, nil, &agenterrors.InvariantError{
		Op:     "react.Transition",
		Detail: fmt.Sprintf("event %d is not valid in state %s", ev.Kind, state),
	}
}

// ClassifyResponses decides what a model turn asks for, ignoring reasoning.
// A single Assistant finishes with its text. One or more tool calls with at
// most one Assistant and no tool results execute the calls, which are
// returned non-nil. Anything else is ambiguous.
func ClassifyResponses(responses []ports.Response) (string, []ports.ToolCall, error) {
	var (
		assistants []ports.Assistant
		calls      []ports.ToolCall
		others     int
	)
	for _, resp := range responses {
		switch r := resp.(type) {
		case ports.Reasoning:
		case ports.Assistant:
			assistants = append(assistants, r)
		case ports.ToolCall:
			calls = append(calls, r)
		default:
			others++
		}
	}

	switch {
	case len(calls) == 0 && others == 0 && len(assistants) == 1:
		return assistants[0].Text, nil, nil
	case len(calls) > 0 && others == 0 && len(assistants) <= 1:
		return "", calls, nil
	}
	return "", nil, fmt.Errorf("%w: %d assistant, %d tool call, %d other responses",
		agenterrors.ErrAmbiguousResponse, len(assistants), len(calls), others)
}
