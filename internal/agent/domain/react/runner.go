package react

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"agentcore/internal/agent/ports"
	"agentcore/internal/agent/ports/storage"
	"agentcore/internal/checkpoint"
	agenterrors "agentcore/internal/errors"
	"agentcore/internal/llm"
	"agentcore/internal/logging"
	"agentcore/internal/observability"
	"agentcore/internal/tokenizer"
	id "agentcore/internal/utils/id"

	"go.opentelemetry.io/otel/attribute"
)

const defaultMaxModelCalls = 100

// ErrModelCallLimit stops a run that keeps asking for tools without finishing.
var ErrModelCallLimit = errors.New("model call limit reached")

// Outcome is how a turn ended.
type Outcome string

const (
	OutcomeFinished  Outcome = "finished"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Config holds the per-runner model settings.
type Config struct {
	Model string
	Tools []ports.ToolDefinition
	// Stream selects ExecuteStreaming; text deltas reach the listener as they arrive.
	Stream bool
	// MaxParallelTools bounds concurrent tool calls of one batch; 0 means unbounded.
	MaxParallelTools int
	// MaxModelCalls bounds model calls per turn; 0 selects the default.
	MaxModelCalls int
	// TaskToolName is the task-tracking tool the steering reminder asks for.
	TaskToolName string
}

// Dependencies are the collaborators of a Runner. Executor, Tools and Store
// are required; the rest are optional.
type Dependencies struct {
	Executor     ports.PromptExecutor
	Tools        ports.ToolDispatcher
	Store        storage.CheckpointStore
	Listener     ports.EventListener
	Tags         ports.TagResolver
	Instructions ports.InstructionsProvider
	Queue        ports.PendingQueue
	Tokenizer    ports.Tokenizer
	Logger       logging.Logger
	Metrics      *observability.MetricsCollector
	Tracer       *observability.TracerProvider
	Clock        func() time.Time
}

// TurnRequest submits one user message to a run. An empty RunID starts a
// new run. ResumeRef pins the checkpoint to continue from; without it the
// run's latest resume point is used, if any.
type TurnRequest struct {
	RunID     string
	Message   string
	Tags      []string
	ResumeRef *storage.CheckpointRef
}

// TurnResult describes a finished, failed or cancelled turn.
type TurnResult struct {
	RunID      string
	Text       string
	Outcome    Outcome
	Resumed    bool
	Checkpoint *storage.CheckpointRef
}

// Runner drives the single-run state machine for any number of runs, one
// turn at a time per run.
type Runner struct {
	cfg       Config
	deps      Dependencies
	listener  ports.EventListener
	logger    logging.Logger
	metrics   *observability.MetricsCollector
	tracer    *observability.TracerProvider
	tokenizer ports.Tokenizer
	clock     func() time.Time

	mu     sync.Mutex
	active map[string]struct{}
}

// NewRunner validates deps and builds a Runner.
func NewRunner(cfg Config, deps Dependencies) (*Runner, error) {
	if deps.Executor == nil {
		return nil, fmt.Errorf("runner: executor is required")
	}
	if deps.Tools == nil {
		return nil, fmt.Errorf("runner: tool dispatcher is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("runner: checkpoint store is required")
	}
	if cfg.MaxModelCalls <= 0 {
		cfg.MaxModelCalls = defaultMaxModelCalls
	}
	if cfg.TaskToolName == "" {
		cfg.TaskToolName = checkpoint.DefaultTaskTool
	}
	r := &Runner{
		cfg:       cfg,
		deps:      deps,
		logger:    logging.OrNop(deps.Logger),
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		tokenizer: deps.Tokenizer,
		clock:     deps.Clock,
		active:    make(map[string]struct{}),
	}
	if deps.Logger == nil {
		r.logger = logging.NewComponentLogger("react")
	}
	if r.tracer == nil {
		r.tracer = observability.NoopTracerProvider()
	}
	if r.tokenizer == nil {
		r.tokenizer = tokenizer.New()
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	r.listener = ports.GuardListener(deps.Listener, r.logger)
	return r, nil
}

// SubmitTurn runs one user message to completion. A second call for a run
// whose turn is still in progress fails with ErrRunBusy. On failure the
// returned result still carries the outcome and the last saved checkpoint.
func (r *Runner) SubmitTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("turn message is empty")
	}
	if req.RunID == "" {
		req.RunID = id.NewRunID()
	}
	if !r.acquire(req.RunID) {
		return nil, fmt.Errorf("run %s: %w", req.RunID, agenterrors.ErrRunBusy)
	}
	defer r.release(req.RunID)

	ctx = id.WithRunID(ctx, req.RunID)
	if id.LogIDFromContext(ctx) == "" {
		ctx = id.WithLogID(ctx, id.NewLogID())
	}
	ctx, span := r.tracer.StartSpan(ctx, observability.SpanSubmitTurn)
	r.metrics.RunStarted(ctx)

	result := &TurnResult{RunID: req.RunID}
	t, err := r.newTurn(ctx, req)
	if err == nil {
		result.Resumed = t.resumed
		result.Text, err = t.run(ctx)
		result.Checkpoint = t.last
	}

	switch {
	case err == nil:
		result.Outcome = OutcomeFinished
	case agenterrors.IsCancelled(err) || ctx.Err() != nil:
		result.Outcome = OutcomeCancelled
	default:
		result.Outcome = OutcomeFailed
	}
	span.SetAttributes(
		attribute.String(observability.AttrOutcome, string(result.Outcome)),
		attribute.Bool(observability.AttrResumed, result.Resumed),
	)
	observability.EndSpan(span, err)
	r.metrics.RunEnded(ctx, string(result.Outcome))
	if err != nil {
		r.loggerFor(ctx).Warn("Turn ended with outcome %s: %v", result.Outcome, err)
		return result, err
	}
	return result, nil
}

func (r *Runner) acquire(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[runID]; busy {
		return false
	}
	r.active[runID] = struct{}{}
	return true
}

func (r *Runner) release(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, runID)
}

func (r *Runner) loggerFor(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, r.logger)
}

// turn is the mutable state of one SubmitTurn call.
type turn struct {
	r          *Runner
	req        TurnRequest
	prompt     ports.Prompt
	resume     *storage.Checkpoint
	resumed    bool
	version    int64
	modelCalls int
	last       *storage.CheckpointRef
}

func (r *Runner) newTurn(ctx context.Context, req TurnRequest) (*turn, error) {
	store := r.deps.Store
	existing, err := store.List(ctx, req.RunID, true)
	if err != nil {
		return nil, runFailure(req.RunID, StateStart, fmt.Errorf("load run %s: %w", req.RunID, err))
	}
	t := &turn{r: r, req: req, prompt: ports.NewPrompt(req.RunID), version: 1}
	if n := len(existing); n > 0 {
		t.version = existing[n-1].Version + 1
	}

	resume, err := checkpoint.SelectResume(ctx, store, req.RunID, req.ResumeRef)
	if err != nil {
		return nil, runFailure(req.RunID, StateStart, fmt.Errorf("select resume point: %w", err))
	}
	switch {
	case resume == nil:
	case !resume.IsResumable():
		r.loggerFor(ctx).Warn("Checkpoint %s is at %s and cannot be resumed; starting fresh", resume.CheckpointID, resume.NodePath)
	default:
		t.resume = resume
		t.resumed = true
	}
	return t, nil
}

func (t *turn) run(ctx context.Context) (string, error) {
	if err := t.node(ctx, StateStart, func(context.Context) error {
		if t.resume != nil {
			t.prompt = ports.NewPrompt(t.req.RunID, replayHistory(t.resume.MessageHistory)...)
		}
		return nil
	}); err != nil {
		return "", t.fail(StateStart, err)
	}

	state, effects, err := Transition(StateStart, TurnSubmitted())
	if err != nil {
		return "", t.fail(StateStart, err)
	}
	for {
		var (
			ev          Event
			text        string
			finished    bool
			next        State
			nextEffects []Effect
		)
		// Transition runs inside the node: a rejected response shape fails
		// the node and saves nothing.
		err := t.node(ctx, state, func(nodeCtx context.Context) error {
			for _, eff := range effects {
				switch eff.Kind {
				case EffectCallModel:
					if state == StateCallModel {
						t.prepareFirstCall(nodeCtx)
					}
					responses, err := t.callModel(nodeCtx)
					if err != nil {
						return err
					}
					ev = ModelResponded(responses)
				case EffectDispatchTools:
					ev = ToolsExecuted(newToolBatch(t.r, t.r.listener, eff.Calls).execute(nodeCtx))
				case EffectAppendToolResults:
					t.appendToolResults(eff.Results)
				case EffectFinish:
					text, finished = eff.Text, true
				}
			}
			if finished {
				return nil
			}
			var err error
			next, nextEffects, err = Transition(state, ev)
			return err
		})
		if err != nil {
			return "", t.fail(state, err)
		}
		if finished {
			return text, nil
		}
		state, effects = next, nextEffects
	}
}

// node runs body as one graph node and checkpoints it. A cancelled node
// saves nothing.
func (t *turn) node(ctx context.Context, state State, body func(ctx context.Context) error) error {
	nodeCtx := id.WithNode(ctx, state.NodePath())
	nodeCtx, span := t.r.tracer.StartSpan(nodeCtx, observability.SpanNode, observability.NodeAttrs(state.NodePath())...)
	err := body(nodeCtx)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = t.save(nodeCtx, state)
	}
	observability.EndSpan(span, err)
	return err
}

func (t *turn) fail(state State, err error) error {
	return runFailure(t.req.RunID, state, err)
}

// runFailure wraps err as the terminal RunFailedError of runID at state.
// Cancellation and already wrapped failures pass through unchanged.
func runFailure(runID string, state State, err error) error {
	if agenterrors.IsCancelled(err) {
		return err
	}
	var failed *agenterrors.RunFailedError
	if errors.As(err, &failed) {
		return err
	}
	return &agenterrors.RunFailedError{RunID: runID, Node: state.NodePath(), Cause: err}
}

func (t *turn) save(ctx context.Context, state State) error {
	cp := storage.Checkpoint{
		RunID:          t.req.RunID,
		CheckpointID:   id.NewCheckpointID(),
		CreatedAt:      t.r.clock(),
		NodePath:       state.NodePath(),
		MessageHistory: slices.Clone(t.prompt.Messages),
		Version:        t.version,
	}
	if err := t.r.deps.Store.Save(ctx, t.req.RunID, cp); err != nil {
		return fmt.Errorf("save checkpoint at %s: %w", cp.NodePath, err)
	}
	t.version++
	ref := cp.Ref()
	t.last = &ref
	t.r.metrics.RecordCheckpointSaved(ctx, state.String())
	return nil
}

// prepareFirstCall adds what precedes the user message on the first model
// call of a turn. Fresh runs get the project instructions and resolved tag
// context; failures of either collaborator are logged and skipped.
func (t *turn) prepareFirstCall(ctx context.Context) {
	if !t.resumed {
		logger := t.r.loggerFor(ctx)
		if provider := t.r.deps.Instructions; provider != nil {
			instructions, err := provider.ProjectInstructions(ctx)
			switch {
			case err != nil:
				logger.Warn("Failed to load project instructions: %v", err)
			case strings.TrimSpace(instructions) != "":
				t.prompt = t.prompt.Append(ports.UserMessage(instructions).WithFlag(ports.MetadataCacheable))
			}
		}
		if resolver := t.r.deps.Tags; resolver != nil && len(t.req.Tags) > 0 {
			tagContext, err := resolver.Resolve(ctx, t.req.Tags)
			switch {
			case err != nil:
				logger.Warn("Failed to resolve %d tags: %v", len(t.req.Tags), err)
			case strings.TrimSpace(tagContext) != "":
				t.prompt = t.prompt.Append(ports.UserMessage(strings.TrimSpace(tagContext)).WithFlag(ports.MetadataTagContext))
			}
		}
	}
	t.prompt = t.prompt.Append(ports.UserMessage(t.req.Message))
}

func (t *turn) callModel(ctx context.Context) ([]ports.Response, error) {
	t.modelCalls++
	if t.modelCalls > t.r.cfg.MaxModelCalls {
		return nil, fmt.Errorf("%w after %d calls", ErrModelCallLimit, t.r.cfg.MaxModelCalls)
	}

	var (
		responses []ports.Response
		err       error
	)
	if t.r.cfg.Stream {
		responses, err = t.stream(ctx)
	} else {
		responses, err = t.r.deps.Executor.Execute(ctx, t.prompt, t.r.cfg.Model, t.r.cfg.Tools)
		if err == nil {
			t.emitResponses(responses)
		}
	}
	if err != nil {
		return nil, err
	}

	t.prompt = t.prompt.Append(appendableResponses(responses)...)
	t.publishUsage(ctx, responses)
	return responses, nil
}

func (t *turn) stream(ctx context.Context) ([]ports.Response, error) {
	var acc llm.FrameAccumulator
	for frame, err := range t.r.deps.Executor.ExecuteStreaming(ctx, t.prompt, t.r.cfg.Model, t.r.cfg.Tools) {
		if err != nil {
			return nil, err
		}
		switch frame.Kind {
		case ports.FrameTextDelta:
			if frame.Text != "" {
				t.r.listener.OnTextReceived(frame.Text)
			}
		case ports.FrameReasoningDelta:
			if frame.Text != "" {
				t.r.listener.OnReasoning(frame.Text)
			}
		}
		acc.Add(frame)
	}
	return acc.Responses(), nil
}

func (t *turn) emitResponses(responses []ports.Response) {
	for _, resp := range responses {
		switch r := resp.(type) {
		case ports.Reasoning:
			if r.Text != "" {
				t.r.listener.OnReasoning(r.Text)
			}
		case ports.Assistant:
			if r.Text != "" {
				t.r.listener.OnTextReceived(r.Text)
			}
		}
	}
}

// appendToolResults threads results into history, then adds the steering
// reminder and any messages queued while the turn was busy.
func (t *turn) appendToolResults(results []ports.ToolResult) {
	msgs := make([]ports.Message, 0, len(results))
	for _, result := range results {
		msgs = append(msgs, result.ToMessage())
	}
	t.prompt = t.prompt.Append(msgs...)

	if needsNudge(t.prompt.Messages, t.r.cfg.TaskToolName) {
		t.prompt = t.prompt.Append(nudgeMessage())
	}

	if t.r.deps.Queue == nil {
		return
	}
	if pending := t.r.deps.Queue.Drain(t.req.RunID); len(pending) > 0 {
		t.prompt = t.prompt.Append(queuedMessages(pending)...)
		t.r.listener.OnQueuedMessagesResolved(len(pending))
	}
}
