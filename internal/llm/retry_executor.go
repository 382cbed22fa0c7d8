package llm

import (
	"context"
	"iter"
	"time"

	"agentcore/internal/agent/ports"
	agenterrors "agentcore/internal/errors"
	"agentcore/internal/logging"
	"agentcore/internal/observability"
	"agentcore/internal/utils/id"

	"go.opentelemetry.io/otel/attribute"
)

// RetryPolicy configures bounded retry for model calls.
type RetryPolicy = agenterrors.RetryPolicy

// DefaultRetryPolicy returns 5 attempts, 1s initial delay, 30s cap, x2 growth and 10% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return agenterrors.DefaultRetryPolicy()
}

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryOption customises a RetryingExecutor.
type RetryOption func(*RetryingExecutor)

// WithLogger sets the executor logger.
func WithLogger(logger logging.Logger) RetryOption {
	return func(e *RetryingExecutor) { e.logger = logging.OrNop(logger) }
}

// WithMetrics records attempts and retries on collector.
func WithMetrics(collector *observability.MetricsCollector) RetryOption {
	return func(e *RetryingExecutor) { e.metrics = collector }
}

// WithTracer emits one span per underlying attempt.
func WithTracer(tracer *observability.TracerProvider) RetryOption {
	return func(e *RetryingExecutor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithSleep replaces the backoff wait. Tests use it to avoid real delays.
func WithSleep(sleep SleepFunc) RetryOption {
	return func(e *RetryingExecutor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithRandom replaces the jitter source; fn must return values in [0, 1).
func WithRandom(fn func() float64) RetryOption {
	return func(e *RetryingExecutor) { e.randFloat = fn }
}

// WithClassifier replaces the provider error classifier.
func WithClassifier(classify func(error) error) RetryOption {
	return func(e *RetryingExecutor) {
		if classify != nil {
			e.classify = classify
		}
	}
}

// RetryingExecutor wraps a PromptExecutor with bounded retry, backoff with
// jitter, partial-stream protection and malformed-history truncation.
type RetryingExecutor struct {
	delegate  ports.PromptExecutor
	policy    RetryPolicy
	listener  ports.EventListener
	logger    logging.Logger
	metrics   *observability.MetricsCollector
	tracer    *observability.TracerProvider
	sleep     SleepFunc
	randFloat func() float64
	classify  func(error) error
}

var _ ports.PromptExecutor = (*RetryingExecutor)(nil)

// NewRetryingExecutor wraps delegate. listener may be nil.
func NewRetryingExecutor(delegate ports.PromptExecutor, policy RetryPolicy, listener ports.EventListener, opts ...RetryOption) *RetryingExecutor {
	e := &RetryingExecutor{
		delegate: delegate,
		policy:   policy.Normalize(),
		logger:   logging.NewComponentLogger("llm-retry"),
		tracer:   observability.NoopTracerProvider(),
		sleep:    sleepContext,
		classify: ClassifyError,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.listener = ports.GuardListener(listener, e.logger)
	return e
}

// Policy returns the normalised policy in effect.
func (e *RetryingExecutor) Policy() RetryPolicy {
	return e.policy
}

// Execute performs a blocking call, retrying failed attempts until one
// succeeds or the attempt budget is spent. The last error is returned as is.
func (e *RetryingExecutor) Execute(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) ([]ports.Response, error) {
	state := retryState{working: prompt}

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptCtx, span := e.tracer.StartSpan(ctx, observability.SpanLLMGenerate,
			attribute.String(observability.AttrModel, model),
			attribute.Int(observability.AttrAttempt, attempt),
			attribute.String(observability.AttrRequestID, id.NewRequestIDWithLogID(id.LogIDFromContext(ctx))),
		)
		start := time.Now()
		responses, err := e.delegate.Execute(attemptCtx, state.working, model, tools)
		observability.EndSpan(span, err)

		if err == nil {
			e.metrics.RecordLLMRequest(ctx, model, "ok", time.Since(start))
			if attempt > 1 {
				e.logger.Info("Model call succeeded on attempt %d/%d", attempt, e.policy.MaxAttempts)
			}
			return responses, nil
		}
		e.metrics.RecordLLMRequest(ctx, model, "error", time.Since(start))

		if err := e.afterFailure(ctx, attempt, &state, e.classify(err)); err != nil {
			return nil, err
		}
	}

	return nil, &agenterrors.InvariantError{Op: "RetryingExecutor.Execute", Detail: "retry loop ended without result or error"}
}

// ExecuteStreaming returns a single-pass frame sequence. Attempts that fail
// before any frame reached the caller are retried; once a frame has been
// delivered, a later failure is yielded unchanged and the sequence ends.
func (e *RetryingExecutor) ExecuteStreaming(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) iter.Seq2[ports.StreamFrame, error] {
	return func(yield func(ports.StreamFrame, error) bool) {
		state := retryState{working: prompt}

		for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				yield(ports.StreamFrame{}, err)
				return
			}

			attemptCtx, span := e.tracer.StartSpan(ctx, observability.SpanLLMGenerate,
				attribute.String(observability.AttrModel, model),
				attribute.Int(observability.AttrAttempt, attempt),
				attribute.String(observability.AttrRequestID, id.NewRequestIDWithLogID(id.LogIDFromContext(ctx))),
				attribute.Bool("agentcore.llm.streaming", true),
			)
			start := time.Now()
			delivered := false
			var streamErr error
			stopped := false

			for frame, err := range e.delegate.ExecuteStreaming(attemptCtx, state.working, model, tools) {
				if err != nil {
					streamErr = err
					break
				}
				delivered = true
				if !yield(frame, nil) {
					stopped = true
					break
				}
			}
			observability.EndSpan(span, streamErr)

			if stopped {
				return
			}
			if streamErr == nil {
				e.metrics.RecordLLMRequest(ctx, model, "ok", time.Since(start))
				return
			}
			e.metrics.RecordLLMRequest(ctx, model, "error", time.Since(start))

			if delivered {
				e.logger.Warn("Stream failed after partial delivery, not retrying: %v", streamErr)
				yield(ports.StreamFrame{}, streamErr)
				return
			}

			if err := e.afterFailure(ctx, attempt, &state, e.classify(streamErr)); err != nil {
				yield(ports.StreamFrame{}, err)
				return
			}
		}

		yield(ports.StreamFrame{}, &agenterrors.InvariantError{Op: "RetryingExecutor.ExecuteStreaming", Detail: "retry loop ended without result or error"})
	}
}

// retryState is the explicit loop state shared by both call paths.
type retryState struct {
	working  ports.Prompt
	backoffs int
}

// afterFailure decides whether the loop continues after a failed attempt.
// A nil return means retry with state.working; otherwise the returned error ends the call.
func (e *RetryingExecutor) afterFailure(ctx context.Context, attempt int, state *retryState, err error) error {
	if ctx.Err() != nil || agenterrors.IsCancelled(err) {
		return err
	}
	if attempt >= e.policy.MaxAttempts {
		e.logger.Warn("Model call failed after %d attempts: %v", attempt, err)
		return err
	}

	kind := agenterrors.FailureKind(err)

	if agenterrors.IsSerialization(err) {
		truncated, dropped, ok := state.working.DropLast()
		if !ok {
			return err
		}
		e.logger.Warn("Provider rejected history (%v); dropping trailing %s message and retrying", err, dropped.Role)
		state.working = truncated
		e.notifyRetry(ctx, attempt+1, kind)
		return nil
	}

	state.backoffs++
	delay := e.policy.Jitter(e.policy.BackoffDelay(state.backoffs), e.randFloat)
	e.logger.Debug("Attempt %d/%d failed (%s): %v; retrying in %v", attempt, e.policy.MaxAttempts, kind, err, delay)
	e.notifyRetry(ctx, attempt+1, kind)

	if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
		return sleepErr
	}
	return nil
}

func (e *RetryingExecutor) notifyRetry(ctx context.Context, nextAttempt int, kind string) {
	e.metrics.RecordRetry(ctx, kind)
	e.listener.OnRetry(nextAttempt, e.policy.MaxAttempts, kind)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
