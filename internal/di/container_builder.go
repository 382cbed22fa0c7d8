package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"agentcore/internal/agent/ports/storage"
	"agentcore/internal/checkpoint"
	"agentcore/internal/checkpoint/filestore"
	"agentcore/internal/checkpoint/memstore"
	"agentcore/internal/checkpoint/sqlitestore"
	"agentcore/internal/config"
	"agentcore/internal/logging"
	"agentcore/internal/observability"
	"agentcore/internal/queue"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Option adjusts how the container is built.
type Option func(*containerBuilder)

// WithRegistry registers metrics on reg instead of the process-wide registry.
func WithRegistry(reg *promclient.Registry) Option {
	return func(b *containerBuilder) { b.registry = reg }
}

// WithLogLevel overrides observability.logging.level.
func WithLogLevel(level string) Option {
	return func(b *containerBuilder) { b.logLevel = level }
}

// WithoutGlobalLogger keeps the process-wide logger untouched.
func WithoutGlobalLogger() Option {
	return func(b *containerBuilder) { b.keepLogger = true }
}

type containerBuilder struct {
	mgr        *config.Manager
	logger     logging.Logger
	registry   *promclient.Registry
	logLevel   string
	keepLogger bool
	container  *Container
}

// BuildContainer builds every collaborator named by the configuration. On
// failure the parts already built are released.
func BuildContainer(mgr *config.Manager, opts ...Option) (*Container, error) {
	if mgr == nil {
		return nil, fmt.Errorf("config manager is required")
	}
	b := &containerBuilder{mgr: mgr}
	for _, opt := range opts {
		opt(b)
	}
	container, err := b.build()
	if err != nil {
		_ = b.container.Cleanup(context.Background())
		return nil, err
	}
	return container, nil
}

func (b *containerBuilder) build() (*Container, error) {
	cfg := b.mgr.Config()
	b.container = &Container{Config: b.mgr, Queue: queue.New()}

	b.setupLogging(cfg.Observability.Logging)
	b.logger = logging.NewComponentLogger("DI")

	if err := b.setupTelemetry(cfg.Observability); err != nil {
		return nil, err
	}

	store, err := b.openStore(cfg.Checkpoints)
	if err != nil {
		return nil, err
	}
	b.container.Store = store

	var cacheMetrics *observability.CacheMetrics
	if cfg.Observability.Metrics.Enabled {
		if b.registry != nil {
			cacheMetrics = observability.NewCacheMetricsWithRegisterer(b.registry)
		} else {
			cacheMetrics = observability.NewCacheMetrics()
		}
	}
	instructions, err := b.mgr.ProjectInstructions(context.Background())
	if err != nil {
		b.logger.Warn("Project instructions unavailable for history titles: %v", err)
	}
	b.container.History = checkpoint.NewHistoryService(store, checkpoint.HistoryConfig{
		CacheSize:           cfg.History.CacheSize,
		CacheTTL:            cfg.History.CacheTTL,
		TaskTool:            cfg.Agent.TaskToolName,
		ProjectInstructions: instructions,
	}, cacheMetrics, logging.NewComponentLogger("history"))

	b.logger.Debug("Container built with %s checkpoint store", cfg.Checkpoints.Driver)
	return b.container, nil
}

func (b *containerBuilder) setupLogging(cfg observability.LoggingConfig) {
	if b.keepLogger {
		return
	}
	if b.logLevel != "" {
		cfg.Level = b.logLevel
	}
	observability.SetDefaultLogger(observability.NewLogger(observability.LogConfig{
		Level:  cfg.Level,
		Format: cfg.Format,
		Output: os.Stderr,
	}))
}

func (b *containerBuilder) setupTelemetry(cfg observability.Config) error {
	metrics, err := observability.NewMetricsCollectorWithRegistry(cfg.Metrics, b.registry)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	b.container.Metrics = metrics
	b.container.closers = append(b.container.closers, metrics.Shutdown)

	tracer, err := observability.NewTracerProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	b.container.Tracer = tracer
	b.container.closers = append(b.container.closers, tracer.Shutdown)
	return nil
}

func (b *containerBuilder) openStore(cfg config.CheckpointsConfig) (storage.Store, error) {
	storeLogger := logging.NewComponentLogger("checkpoints")
	switch cfg.Driver {
	case config.DriverMemory:
		return memstore.New(), nil
	case config.DriverFile:
		store, err := filestore.New(cfg.Dir, storeLogger)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint dir %s: %w", cfg.Dir, err)
		}
		return store, nil
	case config.DriverSQLite:
		path := config.ExpandHome(cfg.SQLitePath)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		store, err := sqlitestore.Open(path, storeLogger)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint db %s: %w", path, err)
		}
		b.container.closers = append(b.container.closers, func(context.Context) error { return store.Close() })
		return store, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q", cfg.Driver)
	}
}
