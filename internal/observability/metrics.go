package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector manages the runtime metrics of the agent core.
// A zero collector is valid and records nothing.
type MetricsCollector struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider

	// LLM metrics
	llmRequests metric.Int64Counter
	llmRetries  metric.Int64Counter
	llmTokens   metric.Int64Counter
	llmLatency  metric.Float64Histogram

	// Tool metrics
	toolExecutions metric.Int64Counter
	toolDuration   metric.Float64Histogram

	// Run metrics
	runsActive       metric.Int64UpDownCounter
	runOutcomes      metric.Int64Counter
	checkpointsSaved metric.Int64Counter

	prometheusServer *http.Server
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port" mapstructure:"prometheus_port"`
}

// NewMetricsCollectorWithRegistry exports to registry, or to the default
// Prometheus registry when registry is nil.
func NewMetricsCollectorWithRegistry(config MetricsConfig, registry *promclient.Registry) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	var opts []prometheus.Option
	if registry != nil {
		opts = append(opts, prometheus.WithRegisterer(registry))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	if registry == nil {
		otel.SetMeterProvider(provider)
	}

	collector := &MetricsCollector{
		meter:    provider.Meter("agentcore"),
		provider: provider,
	}
	if err := collector.createInstruments(); err != nil {
		return nil, err
	}

	if config.PrometheusPort > 0 {
		var handler http.Handler = promhttp.Handler()
		if registry != nil {
			handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		}
		collector.startPrometheusServer(config.PrometheusPort, handler)
	}

	return collector, nil
}

func (m *MetricsCollector) createInstruments() error {
	var err error

	if m.llmRequests, err = m.meter.Int64Counter(
		"agentcore.llm.requests.total",
		metric.WithDescription("Underlying model calls, one per attempt"),
		metric.WithUnit("{request}"),
	); err != nil {
		return fmt.Errorf("failed to create llm_requests counter: %w", err)
	}

	if m.llmRetries, err = m.meter.Int64Counter(
		"agentcore.llm.retries.total",
		metric.WithDescription("Retries scheduled by the retrying executor"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return fmt.Errorf("failed to create llm_retries counter: %w", err)
	}

	if m.llmTokens, err = m.meter.Int64Counter(
		"agentcore.llm.tokens",
		metric.WithDescription("Tokens reported after each model response"),
		metric.WithUnit("{token}"),
	); err != nil {
		return fmt.Errorf("failed to create llm_tokens counter: %w", err)
	}

	if m.llmLatency, err = m.meter.Float64Histogram(
		"agentcore.llm.latency",
		metric.WithDescription("Model call latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create llm_latency histogram: %w", err)
	}

	if m.toolExecutions, err = m.meter.Int64Counter(
		"agentcore.tool.executions.total",
		metric.WithDescription("Total number of tool executions"),
		metric.WithUnit("{execution}"),
	); err != nil {
		return fmt.Errorf("failed to create tool_executions counter: %w", err)
	}

	if m.toolDuration, err = m.meter.Float64Histogram(
		"agentcore.tool.duration",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create tool_duration histogram: %w", err)
	}

	if m.runsActive, err = m.meter.Int64UpDownCounter(
		"agentcore.runs.active",
		metric.WithDescription("Turns currently executing"),
		metric.WithUnit("{run}"),
	); err != nil {
		return fmt.Errorf("failed to create runs_active gauge: %w", err)
	}

	if m.runOutcomes, err = m.meter.Int64Counter(
		"agentcore.runs.outcomes.total",
		metric.WithDescription("Completed turns by outcome"),
		metric.WithUnit("{run}"),
	); err != nil {
		return fmt.Errorf("failed to create run_outcomes counter: %w", err)
	}

	if m.checkpointsSaved, err = m.meter.Int64Counter(
		"agentcore.checkpoints.saved.total",
		metric.WithDescription("Checkpoints persisted after completed nodes"),
		metric.WithUnit("{checkpoint}"),
	); err != nil {
		return fmt.Errorf("failed to create checkpoints_saved counter: %w", err)
	}

	return nil
}

func (m *MetricsCollector) startPrometheusServer(port int, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	m.prometheusServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger := DefaultLogger().With("component", "metrics")
	go func() {
		logger.Info("prometheus metrics server listening", "port", port)
		if err := m.prometheusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("prometheus server error", "error", err)
		}
	}()
}

// Shutdown stops the scrape endpoint and flushes the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var errs []error
	if m.prometheusServer != nil {
		errs = append(errs, m.prometheusServer.Shutdown(ctx))
	}
	if m.provider != nil {
		errs = append(errs, m.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// RecordLLMRequest records one underlying model call.
func (m *MetricsCollector) RecordLLMRequest(ctx context.Context, model string, status string, latency time.Duration) {
	if m == nil || m.llmRequests == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("status", status),
	)
	m.llmRequests.Add(ctx, 1, attrs)
	m.llmLatency.Record(ctx, latency.Seconds(), attrs)
}

// RecordRetry records a retry scheduled after a failure of the given kind.
func (m *MetricsCollector) RecordRetry(ctx context.Context, kind string) {
	if m == nil || m.llmRetries == nil {
		return
	}
	m.llmRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordTokens records the token count reported after a model response.
func (m *MetricsCollector) RecordTokens(ctx context.Context, tokens int64) {
	if m == nil || m.llmTokens == nil || tokens <= 0 {
		return
	}
	m.llmTokens.Add(ctx, tokens)
}

// RecordToolExecution records a tool execution
func (m *MetricsCollector) RecordToolExecution(ctx context.Context, toolName string, status string, duration time.Duration) {
	if m == nil || m.toolExecutions == nil {
		return
	}

	m.toolExecutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool_name", toolName),
		attribute.String("status", status),
	))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("tool_name", toolName)))
}

// RecordCheckpointSaved records a persisted checkpoint for a node.
func (m *MetricsCollector) RecordCheckpointSaved(ctx context.Context, node string) {
	if m == nil || m.checkpointsSaved == nil {
		return
	}
	m.checkpointsSaved.Add(ctx, 1, metric.WithAttributes(attribute.String("node", node)))
}

// RunStarted increments the active run gauge.
func (m *MetricsCollector) RunStarted(ctx context.Context) {
	if m == nil || m.runsActive == nil {
		return
	}
	m.runsActive.Add(ctx, 1)
}

// RunEnded decrements the active run gauge and records the outcome.
func (m *MetricsCollector) RunEnded(ctx context.Context, outcome string) {
	if m == nil || m.runsActive == nil {
		return
	}
	m.runsActive.Add(ctx, -1)
	m.runOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
