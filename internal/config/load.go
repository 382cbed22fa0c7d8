package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"agentcore/internal/observability"
	"agentcore/internal/permission"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces environment overrides, e.g. AGENTCORE_RETRY_MAX_ATTEMPTS.
	EnvPrefix = "AGENTCORE"
	// FileName is the config file base name searched in "." and $HOME/.agentcore.
	FileName = "agentcore"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_delay", time.Second)
	v.SetDefault("retry.max_delay", 30*time.Second)
	v.SetDefault("retry.backoff_multiplier", 2.0)
	v.SetDefault("retry.jitter_factor", 0.1)

	v.SetDefault("agent.model", "")
	v.SetDefault("agent.stream", false)
	v.SetDefault("agent.max_parallel_tools", 0)
	v.SetDefault("agent.max_model_calls", 100)
	v.SetDefault("agent.task_tool_name", "TodoWrite")
	v.SetDefault("agent.project_instructions_file", "")
	v.SetDefault("agent.workspace_root", "")
	v.SetDefault("agent.exclusive_allow_tools", []string{})

	v.SetDefault("checkpoints.driver", DriverFile)
	v.SetDefault("checkpoints.dir", "~/.agentcore")
	v.SetDefault("checkpoints.sqlite_path", "~/.agentcore/checkpoints.db")

	v.SetDefault("history.cache_size", 512)
	v.SetDefault("history.cache_ttl", 10*time.Minute)

	v.SetDefault("permissions.allow", []string{})
	v.SetDefault("permissions.ask", []string{})
	v.SetDefault("permissions.deny", []string{})

	obs := observability.DefaultConfig()
	v.SetDefault("observability.logging.level", obs.Logging.Level)
	v.SetDefault("observability.logging.format", obs.Logging.Format)
	v.SetDefault("observability.metrics.enabled", obs.Metrics.Enabled)
	v.SetDefault("observability.metrics.prometheus_port", obs.Metrics.PrometheusPort)
	v.SetDefault("observability.tracing.enabled", obs.Tracing.Enabled)
	v.SetDefault("observability.tracing.exporter", obs.Tracing.Exporter)
	v.SetDefault("observability.tracing.otlp_endpoint", obs.Tracing.OTLPEndpoint)
	v.SetDefault("observability.tracing.zipkin_endpoint", obs.Tracing.ZipkinEndpoint)
	v.SetDefault("observability.tracing.sample_rate", obs.Tracing.SampleRate)
	v.SetDefault("observability.tracing.service_name", obs.Tracing.ServiceName)
	v.SetDefault("observability.tracing.service_version", obs.Tracing.ServiceVersion)
	v.SetDefault("observability_file", "")
}

// Manager owns the resolved configuration. Permission lists are re-read from
// the config file on every PermissionLists call so edits apply without a
// restart.
type Manager struct {
	mu   sync.Mutex
	v    *viper.Viper
	cfg  Config
	meta Metadata
}

// Load resolves defaults, the YAML file and AGENTCORE_* environment
// overrides, in increasing precedence. An explicit path must exist; without
// one a missing agentcore.yaml is not an error.
func Load(path string) (*Manager, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".agentcore"))
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Manager{v: v, cfg: cfg, meta: provenance(v)}, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.ObservabilityFile != "" {
		fileCfg, err := observability.LoadConfig(cfg.ObservabilityFile)
		if err != nil {
			return Config{}, fmt.Errorf("observability file: %w", err)
		}
		cfg.Observability = observability.Merge(cfg.Observability, fileCfg)
	}
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.Checkpoints.Driver = strings.ToLower(strings.TrimSpace(cfg.Checkpoints.Driver))
	cfg.Agent.TaskToolName = strings.TrimSpace(cfg.Agent.TaskToolName)
	cfg.Permissions = permission.Lists{
		Allow: trimEntries(cfg.Permissions.Allow),
		Ask:   trimEntries(cfg.Permissions.Ask),
		Deny:  trimEntries(cfg.Permissions.Deny),
	}
}

func trimEntries(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

func validate(cfg Config) error {
	switch cfg.Checkpoints.Driver {
	case DriverMemory, DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("checkpoints.driver: unknown driver %q (want memory, file or sqlite)", cfg.Checkpoints.Driver)
	}
	if cfg.Checkpoints.Driver == DriverFile && strings.TrimSpace(cfg.Checkpoints.Dir) == "" {
		return fmt.Errorf("checkpoints.dir is required for the file driver")
	}
	if cfg.Checkpoints.Driver == DriverSQLite && strings.TrimSpace(cfg.Checkpoints.SQLitePath) == "" {
		return fmt.Errorf("checkpoints.sqlite_path is required for the sqlite driver")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.MaxDelay < cfg.Retry.InitialDelay {
		return fmt.Errorf("retry.max_delay (%v) is below retry.initial_delay (%v)", cfg.Retry.MaxDelay, cfg.Retry.InitialDelay)
	}
	if cfg.History.CacheSize < 0 || cfg.History.CacheTTL < 0 {
		return fmt.Errorf("history cache settings must not be negative")
	}
	if cfg.Agent.MaxParallelTools < 0 {
		return fmt.Errorf("agent.max_parallel_tools must not be negative")
	}
	return nil
}

func provenance(v *viper.Viper) Metadata {
	meta := Metadata{file: v.ConfigFileUsed(), sources: map[string]ValueSource{}, loadedAt: time.Now()}
	replacer := strings.NewReplacer(".", "_")
	for _, key := range v.AllKeys() {
		switch {
		case envSet(EnvPrefix + "_" + strings.ToUpper(replacer.Replace(key))):
			meta.sources[key] = SourceEnv
		case v.InConfig(key):
			meta.sources[key] = SourceFile
		default:
			meta.sources[key] = SourceDefault
		}
	}
	return meta
}

func envSet(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}

// Config returns the configuration resolved at load time.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Metadata returns provenance for the loaded keys.
func (m *Manager) Metadata() Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta
}

// PermissionLists re-reads the config file and returns the current
// allow/ask/deny lists. A file that became unreadable is an error; the
// guard treats that as a refusal.
func (m *Manager) PermissionLists(ctx context.Context) (permission.Lists, error) {
	if err := ctx.Err(); err != nil {
		return permission.Lists{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.meta.file != "" {
		if err := m.v.ReadInConfig(); err != nil {
			return permission.Lists{}, fmt.Errorf("reload permissions: %w", err)
		}
	}
	lists := permission.Lists{
		Allow: trimEntries(stringList(m.v.Get("permissions.allow"))),
		Ask:   trimEntries(stringList(m.v.Get("permissions.ask"))),
		Deny:  trimEntries(stringList(m.v.Get("permissions.deny"))),
	}
	m.cfg.Permissions = lists
	return lists, nil
}

// stringList accepts a YAML sequence or, from the environment, a
// comma-separated string.
func stringList(raw any) []string {
	switch value := raw.(type) {
	case nil:
		return nil
	case string:
		return strings.Split(value, ",")
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return []string{fmt.Sprint(value)}
	}
}

var _ permission.ListsProvider = (*Manager)(nil)
