package react

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agentcore/internal/agent/ports"
	"agentcore/internal/agent/ports/mocks"
	"agentcore/internal/agent/ports/storage"
	"agentcore/internal/checkpoint/memstore"
	"agentcore/internal/checkpoint/storetest"
	agenterrors "agentcore/internal/errors"
	"agentcore/internal/llm"
	"agentcore/internal/logging"
	"agentcore/internal/queue"

	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, cfg Config, deps Dependencies) (*Runner, *memstore.Store) {
	t.Helper()
	store, _ := deps.Store.(*memstore.Store)
	if deps.Store == nil {
		store = memstore.New()
		deps.Store = store
	}
	if deps.Tools == nil {
		deps.Tools = &mocks.MockToolDispatcher{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	runner, err := NewRunner(cfg, deps)
	require.NoError(t, err)
	return runner, store
}

// scriptedExecutor answers model calls from a fixed script; the last entry repeats.
func scriptedExecutor(script ...func(prompt ports.Prompt) ([]ports.Response, error)) (*mocks.MockPromptExecutor, *atomic.Int32) {
	var calls atomic.Int32
	return &mocks.MockPromptExecutor{
		ExecuteFunc: func(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) ([]ports.Response, error) {
			n := int(calls.Add(1))
			return script[min(n, len(script))-1](prompt)
		},
	}, &calls
}

func reply(responses ...ports.Response) func(ports.Prompt) ([]ports.Response, error) {
	return func(ports.Prompt) ([]ports.Response, error) { return responses, nil }
}

func fail(err error) func(ports.Prompt) ([]ports.Response, error) {
	return func(ports.Prompt) ([]ports.Response, error) { return nil, err }
}

func nodeSegments(t *testing.T, store storage.CheckpointStore, runID string) []string {
	t.Helper()
	cps, err := store.List(context.Background(), runID, true)
	require.NoError(t, err)
	out := make([]string, 0, len(cps))
	for _, cp := range cps {
		out = append(out, cp.LastNodeSegment())
	}
	return out
}

func TestSubmitTurnRetriesModelThenExecutesTools(t *testing.T) {
	unavailable := agenterrors.NewTransientError(errors.New("HTTP 503: service unavailable"), "provider unavailable")
	delegate, calls := scriptedExecutor(
		fail(unavailable),
		fail(unavailable),
		reply(ports.ToolCall{ID: "call_1", Tool: "Bash", Args: `{"command":"ls"}`}),
		reply(ports.Assistant{Text: "README.md and go.mod"}),
	)
	listener := &mocks.RecordingListener{}
	executor := llm.NewRetryingExecutor(delegate, llm.RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
	}, listener,
		llm.WithLogger(logging.Nop()),
		llm.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	tools := &mocks.MockToolDispatcher{}
	runner, store := newTestRunner(t, Config{Model: "test-model"}, Dependencies{
		Executor: executor,
		Tools:    tools,
		Listener: listener,
	})

	result, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-ls", Message: "list files"})
	require.NoError(t, err)
	require.Equal(t, OutcomeFinished, result.Outcome)
	require.Equal(t, "README.md and go.mod", result.Text)
	require.False(t, result.Resumed)

	require.Len(t, listener.Retries, 2)
	require.Equal(t, 2, listener.Retries[0].Attempt)
	require.Equal(t, 3, listener.Retries[1].Attempt)
	require.Equal(t, 3, listener.Retries[1].MaxAttempts)
	require.EqualValues(t, 4, calls.Load())

	require.Len(t, tools.Calls(), 1)
	require.Equal(t, "call_1", tools.Calls()[0].ID)
	require.Equal(t, []string{"__start__", "call_model", "execute_tools", "send_tool_results", "__finish__"},
		nodeSegments(t, store, "run-ls"))

	latest, err := store.Latest(context.Background(), "run-ls")
	require.NoError(t, err)
	require.Equal(t, result.Checkpoint.CheckpointID, latest.CheckpointID)
	roles := make([]ports.Role, 0, len(latest.MessageHistory))
	for _, msg := range latest.MessageHistory {
		roles = append(roles, msg.Role)
	}
	require.Equal(t, []ports.Role{ports.RoleUser, ports.RoleToolCall, ports.RoleToolResult, ports.RoleAssistant}, roles)
}

func TestSubmitTurnSingleAssistantFinishesWithoutTools(t *testing.T) {
	executor, _ := scriptedExecutor(reply(ports.Reasoning{Text: "easy"}, ports.Assistant{Text: "Hi there"}))
	tools := &mocks.MockToolDispatcher{}
	listener := &mocks.RecordingListener{}
	runner, store := newTestRunner(t, Config{}, Dependencies{Executor: executor, Tools: tools, Listener: listener})

	result, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-hi", Message: "hello"})
	require.NoError(t, err)
	require.Equal(t, "Hi there", result.Text)
	require.Empty(t, tools.Calls())
	require.Equal(t, []string{"Hi there"}, listener.Texts)
	require.Equal(t, []string{"easy"}, listener.Reasoning)
	require.Equal(t, []string{"__start__", "call_model", "__finish__"}, nodeSegments(t, store, "run-hi"))

	latest, err := store.Latest(context.Background(), "run-hi")
	require.NoError(t, err)
	for _, msg := range latest.MessageHistory {
		require.NotEqual(t, ports.RoleReasoning, msg.Role, "reasoning is never replayed")
	}
}

func TestSubmitTurnGeneratesRunID(t *testing.T) {
	executor, _ := scriptedExecutor(reply(ports.Assistant{Text: "ok"}))
	runner, _ := newTestRunner(t, Config{}, Dependencies{Executor: executor})

	result, err := runner.SubmitTurn(context.Background(), TurnRequest{Message: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)

	_, err = runner.SubmitTurn(context.Background(), TurnRequest{Message: "   "})
	require.Error(t, err)
}

func TestSubmitTurnAmbiguousResponseFailsRun(t *testing.T) {
	executor, _ := scriptedExecutor(reply(ports.Assistant{Text: "one"}, ports.Assistant{Text: "two"}))
	tools := &mocks.MockToolDispatcher{}
	runner, store := newTestRunner(t, Config{}, Dependencies{Executor: executor, Tools: tools})

	result, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-amb", Message: "hello"})
	require.ErrorIs(t, err, agenterrors.ErrAmbiguousResponse)
	var failed *agenterrors.RunFailedError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, "run-amb", failed.RunID)
	require.Equal(t, StateCallModel.NodePath(), failed.Node)
	require.Equal(t, OutcomeFailed, result.Outcome)
	require.Empty(t, tools.Calls())
	require.Equal(t, []string{"__start__"}, nodeSegments(t, store, "run-amb"))
}

func TestSubmitTurnAfterAmbiguousResponseDoesNotReplayIt(t *testing.T) {
	var prompts []ports.Prompt
	record := func(responses ...ports.Response) func(ports.Prompt) ([]ports.Response, error) {
		return func(prompt ports.Prompt) ([]ports.Response, error) {
			prompts = append(prompts, prompt)
			return responses, nil
		}
	}
	executor, _ := scriptedExecutor(
		record(ports.Assistant{Text: "one"}, ports.Assistant{Text: "two"}),
		record(ports.Assistant{Text: "ok"}),
	)
	runner, store := newTestRunner(t, Config{}, Dependencies{Executor: executor})

	_, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-amb2", Message: "hello"})
	require.ErrorIs(t, err, agenterrors.ErrAmbiguousResponse)

	result, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-amb2", Message: "again"})
	require.NoError(t, err)
	require.Equal(t, "ok", result.Text)

	require.Len(t, prompts, 2)
	for _, msg := range prompts[1].Messages {
		require.NotEqual(t, ports.RoleAssistant, msg.Role, "ambiguous reply leaked into the next turn: %q", msg.Content)
	}
	require.Equal(t, []string{"__start__", "__start__", "call_model", "__finish__"}, nodeSegments(t, store, "run-amb2"))
}

func TestSubmitTurnModelFailureIsRunFailure(t *testing.T) {
	executor, _ := scriptedExecutor(fail(errors.New("HTTP 400: bad request")))
	runner, store := newTestRunner(t, Config{}, Dependencies{Executor: executor})

	result, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-400", Message: "hello"})
	var failed *agenterrors.RunFailedError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, OutcomeFailed, result.Outcome)
	require.Equal(t, []string{"__start__"}, nodeSegments(t, store, "run-400"))
}

func TestSubmitTurnCancelledNodeSavesNoCheckpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	executor := &mocks.MockPromptExecutor{
		ExecuteFunc: func(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) ([]ports.Response, error) {
			cancel()
			return nil, ctx.Err()
		},
	}
	runner, store := newTestRunner(t, Config{}, Dependencies{Executor: executor})

	result, err := runner.SubmitTurn(ctx, TurnRequest{RunID: "run-cancel", Message: "hello"})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, OutcomeCancelled, result.Outcome)
	require.Equal(t, []string{"__start__"}, nodeSegments(t, store, "run-cancel"))
}

func TestSubmitTurnRejectsConcurrentTurnOnSameRun(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	executor := &mocks.MockPromptExecutor{
		ExecuteFunc: func(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) ([]ports.Response, error) {
			once.Do(func() { close(entered) })
			<-release
			return []ports.Response{ports.Assistant{Text: "done"}}, nil
		},
	}
	runner, _ := newTestRunner(t, Config{}, Dependencies{Executor: executor})

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-busy", Message: "first"})
	}()
	<-entered

	_, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-busy", Message: "second"})
	require.ErrorIs(t, err, agenterrors.ErrRunBusy)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)

	_, err = runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-busy", Message: "third"})
	require.NoError(t, err, "lease is released after the turn ends")
}

func TestSubmitTurnResumesLatestCheckpoint(t *testing.T) {
	var (
		mu      sync.Mutex
		prompts [][]ports.Message
	)
	executor := &mocks.MockPromptExecutor{
		ExecuteFunc: func(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) ([]ports.Response, error) {
			mu.Lock()
			prompts = append(prompts, slices.Clone(prompt.Messages))
			mu.Unlock()
			return []ports.Response{ports.Assistant{Text: "answer"}}, nil
		},
	}
	instructions := &mocks.MockInstructionsProvider{
		ProjectInstructionsFunc: func(context.Context) (string, error) { return "Use gofmt.", nil },
	}
	tags := &mocks.MockTagResolver{
		ResolveFunc: func(ctx context.Context, tags []string) (string, error) { return "file: main.go", nil },
	}
	runner, store := newTestRunner(t, Config{}, Dependencies{Executor: executor, Instructions: instructions, Tags: tags})

	first, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-2", Message: "first question", Tags: []string{"main.go"}})
	require.NoError(t, err)
	require.False(t, first.Resumed)

	second, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-2", Message: "follow up", Tags: []string{"main.go"}})
	require.NoError(t, err)
	require.True(t, second.Resumed)

	require.Len(t, prompts, 2)
	require.True(t, prompts[0][0].HasFlag(ports.MetadataCacheable))
	require.True(t, prompts[0][1].HasFlag(ports.MetadataTagContext))
	require.Equal(t, "first question", prompts[0][2].Content)

	contents := make([]string, 0, len(prompts[1]))
	for _, msg := range prompts[1] {
		contents = append(contents, msg.Content)
	}
	require.Equal(t, []string{"Use gofmt.", "file: main.go", "first question", "answer", "follow up"}, contents)

	cps, err := store.List(context.Background(), "run-2", true)
	require.NoError(t, err)
	for i, cp := range cps {
		require.EqualValues(t, i+1, cp.Version)
	}
	require.Len(t, cps, 6)
}

func TestSubmitTurnResumeRefDropsDanglingToolCalls(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "run-r", storetest.Make("run-r", 1, "__start__")))
	require.NoError(t, store.Save(ctx, "run-r", storetest.Make("run-r", 2, "call_model",
		ports.UserMessage("list files"),
		ports.Message{Role: ports.RoleToolCall, ToolCallID: "c1", ToolName: "Bash", ToolArgs: `{"command":"ls"}`},
	)))
	require.NoError(t, store.Save(ctx, "run-r", storetest.Make("run-r", 3, "__finish__", ports.UserMessage("other"))))

	var seen []ports.Message
	executor := &mocks.MockPromptExecutor{
		ExecuteFunc: func(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) ([]ports.Response, error) {
			seen = slices.Clone(prompt.Messages)
			return []ports.Response{ports.Assistant{Text: "ok"}}, nil
		},
	}
	runner, _ := newTestRunner(t, Config{}, Dependencies{Executor: executor, Store: store})

	result, err := runner.SubmitTurn(ctx, TurnRequest{
		RunID:     "run-r",
		Message:   "continue",
		ResumeRef: &storage.CheckpointRef{RunID: "run-r", CheckpointID: "ckpt-run-r-2"},
	})
	require.NoError(t, err)
	require.True(t, result.Resumed)
	require.Len(t, seen, 2)
	require.Equal(t, "list files", seen[0].Content)
	require.Equal(t, "continue", seen[1].Content)

	cps, err := store.List(ctx, "run-r", true)
	require.NoError(t, err)
	require.EqualValues(t, 4, cps[3].Version)
}

func TestSubmitTurnNudgesOnceWithoutTaskTool(t *testing.T) {
	executor, _ := scriptedExecutor(
		reply(ports.ToolCall{ID: "a", Tool: "Bash"}),
		reply(ports.ToolCall{ID: "b", Tool: "Read"}),
		reply(ports.ToolCall{ID: "c", Tool: "Read"}),
		reply(ports.Assistant{Text: "done"}),
	)
	runner, store := newTestRunner(t, Config{}, Dependencies{Executor: executor})

	_, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-n", Message: "refactor"})
	require.NoError(t, err)

	latest, err := store.Latest(context.Background(), "run-n")
	require.NoError(t, err)
	nudges := 0
	for i, msg := range latest.MessageHistory {
		if msg.HasFlag(ports.MetadataNudge) {
			nudges++
			require.Equal(t, ports.RoleToolResult, latest.MessageHistory[i-1].Role)
			require.Equal(t, "b", latest.MessageHistory[i-1].ToolCallID)
		}
	}
	require.Equal(t, 1, nudges)
}

func TestSubmitTurnSkipsNudgeWhenTaskToolUsed(t *testing.T) {
	executor, _ := scriptedExecutor(
		reply(ports.ToolCall{ID: "a", Tool: "TodoWrite", Args: `{"title":"refactor"}`}),
		reply(ports.ToolCall{ID: "b", Tool: "Read"}),
		reply(ports.Assistant{Text: "done"}),
	)
	runner, store := newTestRunner(t, Config{}, Dependencies{Executor: executor})

	_, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-t", Message: "refactor"})
	require.NoError(t, err)

	latest, err := store.Latest(context.Background(), "run-t")
	require.NoError(t, err)
	for _, msg := range latest.MessageHistory {
		require.False(t, msg.HasFlag(ports.MetadataNudge))
	}
}

func TestSubmitTurnFlushesQueuedMessagesAfterToolResults(t *testing.T) {
	pending := queue.New()
	require.True(t, pending.Enqueue("run-q", "also check the tests"))
	executor, _ := scriptedExecutor(
		reply(ports.ToolCall{ID: "a", Tool: "Bash"}),
		reply(ports.Assistant{Text: "done"}),
	)
	listener := &mocks.RecordingListener{}
	runner, store := newTestRunner(t, Config{}, Dependencies{Executor: executor, Queue: pending, Listener: listener})

	_, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-q", Message: "check build"})
	require.NoError(t, err)
	require.Equal(t, []int{1}, listener.QueuedResolved)
	require.Empty(t, pending.Peek("run-q"))

	latest, err := store.Latest(context.Background(), "run-q")
	require.NoError(t, err)
	history := latest.MessageHistory
	require.Equal(t, ports.RoleToolResult, history[2].Role)
	require.Equal(t, "also check the tests", history[3].Content)
	require.True(t, history[3].HasFlag(ports.MetadataQueued))
}

func TestSubmitTurnToolFailuresBecomeErrorResults(t *testing.T) {
	executor, _ := scriptedExecutor(
		reply(
			ports.ToolCall{ID: "boom", Tool: "Explode"},
			ports.ToolCall{ID: "bad", Tool: "Fail"},
			ports.ToolCall{ID: "good", Tool: "Bash"},
		),
		reply(ports.Assistant{Text: "recovered"}),
	)
	tools := &mocks.MockToolDispatcher{
		DispatchFunc: func(ctx context.Context, call ports.ToolCall) (ports.ToolResult, error) {
			switch call.Tool {
			case "Explode":
				panic("kaboom")
			case "Fail":
				return ports.ToolResult{}, errors.New("disk full")
			}
			ports.EmitToolOutput(ctx, "partial")
			return ports.ToolResult{Content: "fine"}, nil
		},
	}
	listener := &mocks.RecordingListener{}
	runner, store := newTestRunner(t, Config{MaxParallelTools: 2}, Dependencies{Executor: executor, Tools: tools, Listener: listener})

	result, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-p", Message: "go"})
	require.NoError(t, err)
	require.Equal(t, "recovered", result.Text)
	require.Len(t, listener.ToolsStarted, 3)
	require.Len(t, listener.ToolsCompleted, 3)
	require.Equal(t, []string{"partial"}, listener.ToolOutput["good"])

	latest, err := store.Latest(context.Background(), "run-p")
	require.NoError(t, err)
	var results []ports.Message
	for _, msg := range latest.MessageHistory {
		if msg.Role == ports.RoleToolResult {
			results = append(results, msg)
		}
	}
	require.Len(t, results, 3)
	require.Equal(t, "boom", results[0].ToolCallID)
	require.True(t, results[0].IsError)
	require.True(t, strings.HasPrefix(results[0].Content, "Error: "))
	require.Contains(t, results[0].Content, "kaboom")
	require.True(t, results[1].IsError)
	require.Equal(t, "Error: disk full", results[1].Content)
	require.Equal(t, "good", results[2].ToolCallID)
	require.False(t, results[2].IsError)
	require.Equal(t, "Bash", results[2].ToolName)
}

func TestSubmitTurnStreamsDeltasAndPublishesUsage(t *testing.T) {
	executor := &mocks.MockPromptExecutor{
		ExecuteStreamingFunc: func(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) iter.Seq2[ports.StreamFrame, error] {
			return mocks.StreamOf(
				ports.ReasoningDelta("thinking"),
				ports.TextDelta("Hel"),
				ports.TextDelta("lo"),
				ports.EndFrame("stop", &ports.Usage{TotalTokens: 42}, map[string]any{
					"credits": map[string]any{"remaining": 90, "total": 100},
				}),
			)
		},
	}
	listener := &mocks.RecordingListener{}
	runner, _ := newTestRunner(t, Config{Stream: true}, Dependencies{Executor: executor, Listener: listener})

	result, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-s", Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "Hello", result.Text)
	require.Equal(t, []string{"Hel", "lo"}, listener.Texts)
	require.Equal(t, []string{"thinking"}, listener.Reasoning)
	require.Equal(t, []int{42}, listener.TokenUsage)
	require.Equal(t, []ports.Credits{{Remaining: 90, MonthlyRemaining: 90, Total: 100}}, listener.CreditSnapshots)
}

func TestSubmitTurnCountsTokensWithoutProviderUsage(t *testing.T) {
	executor, _ := scriptedExecutor(reply(ports.Assistant{Text: "ok"}))
	listener := &mocks.RecordingListener{}
	runner, _ := newTestRunner(t, Config{}, Dependencies{
		Executor:  executor,
		Listener:  listener,
		Tokenizer: &mocks.MockTokenizer{CountTokensFunc: func(ports.Prompt) int { return 7 }},
	})

	_, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-tok", Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, []int{7}, listener.TokenUsage)
	require.Empty(t, listener.CreditSnapshots)
}

func TestSubmitTurnStopsAtModelCallLimit(t *testing.T) {
	executor, _ := scriptedExecutor(reply(ports.ToolCall{ID: "loop", Tool: "Bash"}))
	runner, _ := newTestRunner(t, Config{MaxModelCalls: 2}, Dependencies{Executor: executor})

	result, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-loop", Message: "spin"})
	require.ErrorIs(t, err, ErrModelCallLimit)
	require.Equal(t, OutcomeFailed, result.Outcome)
}

func TestSubmitTurnCheckpointSaveFailureFailsRun(t *testing.T) {
	executor, _ := scriptedExecutor(reply(ports.Assistant{Text: "ok"}))
	store := &mocks.MockCheckpointStore{
		SaveFunc: func(context.Context, string, storage.Checkpoint) error { return errors.New("disk full") },
	}
	runner, err := NewRunner(Config{}, Dependencies{
		Executor: executor,
		Tools:    &mocks.MockToolDispatcher{},
		Store:    store,
		Logger:   logging.Nop(),
	})
	require.NoError(t, err)

	result, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-disk", Message: "hi"})
	var failed *agenterrors.RunFailedError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, StateStart.NodePath(), failed.Node)
	require.Equal(t, OutcomeFailed, result.Outcome)
	require.Nil(t, result.Checkpoint)
}

func TestSubmitTurnStoreReadFailureIsRunFailure(t *testing.T) {
	executor, calls := scriptedExecutor(reply(ports.Assistant{Text: "ok"}))
	store := &mocks.MockCheckpointStore{
		ListFunc: func(context.Context, string, bool) ([]storage.Checkpoint, error) {
			return nil, errors.New("database is locked")
		},
	}
	runner, err := NewRunner(Config{}, Dependencies{
		Executor: executor,
		Tools:    &mocks.MockToolDispatcher{},
		Store:    store,
		Logger:   logging.Nop(),
	})
	require.NoError(t, err)

	result, err := runner.SubmitTurn(context.Background(), TurnRequest{RunID: "run-locked", Message: "hi"})
	var failed *agenterrors.RunFailedError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, "run-locked", failed.RunID)
	require.Equal(t, StateStart.NodePath(), failed.Node)
	require.ErrorContains(t, err, "database is locked")
	require.Equal(t, OutcomeFailed, result.Outcome)
	require.Zero(t, calls.Load())
}

func TestNewRunnerRequiresCollaborators(t *testing.T) {
	_, err := NewRunner(Config{}, Dependencies{})
	require.Error(t, err)
	_, err = NewRunner(Config{}, Dependencies{Executor: &mocks.MockPromptExecutor{}})
	require.Error(t, err)
	_, err = NewRunner(Config{}, Dependencies{Executor: &mocks.MockPromptExecutor{}, Tools: &mocks.MockToolDispatcher{}})
	require.Error(t, err)
}
