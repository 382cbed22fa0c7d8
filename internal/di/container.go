package di

import (
	"context"
	"errors"

	"agentcore/internal/agent/domain/react"
	"agentcore/internal/agent/ports"
	"agentcore/internal/agent/ports/storage"
	"agentcore/internal/checkpoint"
	"agentcore/internal/config"
	"agentcore/internal/llm"
	"agentcore/internal/logging"
	"agentcore/internal/observability"
	"agentcore/internal/permission"
	"agentcore/internal/queue"
)

// Container holds the long-lived collaborators built from one configuration.
type Container struct {
	Config  *config.Manager
	Store   storage.Store
	History *checkpoint.HistoryService
	Queue   *queue.Pending
	Metrics *observability.MetricsCollector
	Tracer  *observability.TracerProvider

	closers []func(context.Context) error
	cleaned bool
}

// Cleanup flushes telemetry and closes the checkpoint store. Later calls are no-ops.
func (c *Container) Cleanup(ctx context.Context) error {
	if c == nil || c.cleaned {
		return nil
	}
	c.cleaned = true
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunnerOptions supplies the pieces the container cannot build itself.
type RunnerOptions struct {
	Executor ports.PromptExecutor
	Tools    ports.ToolDispatcher
	Listener ports.EventListener
	Approver permission.Approver
	Tags     ports.TagResolver
	// RetryOptions are appended after the container's logger, metrics and tracer options.
	RetryOptions []llm.RetryOption
}

// NewRunner wires a Runner: the executor gains the configured retry policy,
// tool calls pass through the permission guard, and checkpoints land in the
// container's store.
func (c *Container) NewRunner(opts RunnerOptions) (*react.Runner, error) {
	cfg := c.Config.Config()

	retryOpts := append([]llm.RetryOption{
		llm.WithLogger(logging.NewComponentLogger("llm-retry")),
		llm.WithMetrics(c.Metrics),
		llm.WithTracer(c.Tracer),
	}, opts.RetryOptions...)
	var executor ports.PromptExecutor
	if opts.Executor != nil {
		executor = llm.NewRetryingExecutor(opts.Executor, cfg.Retry.Policy(), opts.Listener, retryOpts...)
	}

	var tools ports.ToolDispatcher
	if opts.Tools != nil {
		guardOpts := []permission.GuardOption{
			permission.WithTargets(permission.ArgumentTargets(config.ExpandHome(cfg.Agent.WorkspaceRoot))),
			permission.WithExclusiveAllow(cfg.Agent.ExclusiveAllowTools...),
		}
		if opts.Approver != nil {
			guardOpts = append(guardOpts, permission.WithApprover(opts.Approver))
		}
		tools = permission.NewGuardedDispatcher(opts.Tools, c.Config, guardOpts...)
	}

	return react.NewRunner(react.Config{
		Model:            cfg.Agent.Model,
		Stream:           cfg.Agent.Stream,
		MaxParallelTools: cfg.Agent.MaxParallelTools,
		MaxModelCalls:    cfg.Agent.MaxModelCalls,
		TaskToolName:     cfg.Agent.TaskToolName,
	}, react.Dependencies{
		Executor:     executor,
		Tools:        tools,
		Store:        c.Store,
		Listener:     opts.Listener,
		Tags:         opts.Tags,
		Instructions: c.Config,
		Queue:        c.Queue,
		Logger:       logging.NewComponentLogger("react"),
		Metrics:      c.Metrics,
		Tracer:       c.Tracer,
	})
}
