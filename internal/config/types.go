package config

import (
	"time"

	agenterrors "agentcore/internal/errors"
	"agentcore/internal/observability"
	"agentcore/internal/permission"
)

// Checkpoint store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault ValueSource = "default"
	SourceFile    ValueSource = "file"
	SourceEnv     ValueSource = "environment"
)

// Config is the runtime configuration of the agent core.
type Config struct {
	Retry             RetryConfig          `mapstructure:"retry" yaml:"retry"`
	Agent             AgentConfig          `mapstructure:"agent" yaml:"agent"`
	Checkpoints       CheckpointsConfig    `mapstructure:"checkpoints" yaml:"checkpoints"`
	History           HistoryConfig        `mapstructure:"history" yaml:"history"`
	Permissions       permission.Lists     `mapstructure:"permissions" yaml:"permissions"`
	Observability     observability.Config `mapstructure:"observability" yaml:"observability"`
	ObservabilityFile string               `mapstructure:"observability_file" yaml:"observability_file,omitempty"`
}

// RetryConfig mirrors the model retry policy.
type RetryConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialDelay      time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
	JitterFactor      float64       `mapstructure:"jitter_factor" yaml:"jitter_factor"`
}

// Policy converts the section into a normalised retry policy.
func (r RetryConfig) Policy() agenterrors.RetryPolicy {
	return agenterrors.RetryPolicy{
		MaxAttempts:       r.MaxAttempts,
		InitialDelay:      r.InitialDelay,
		MaxDelay:          r.MaxDelay,
		BackoffMultiplier: r.BackoffMultiplier,
		JitterFactor:      r.JitterFactor,
	}.Normalize()
}

// AgentConfig tunes the run state machine.
type AgentConfig struct {
	Model                   string   `mapstructure:"model" yaml:"model"`
	Stream                  bool     `mapstructure:"stream" yaml:"stream"`
	MaxParallelTools        int      `mapstructure:"max_parallel_tools" yaml:"max_parallel_tools"`
	MaxModelCalls           int      `mapstructure:"max_model_calls" yaml:"max_model_calls"`
	TaskToolName            string   `mapstructure:"task_tool_name" yaml:"task_tool_name"`
	ProjectInstructionsFile string   `mapstructure:"project_instructions_file" yaml:"project_instructions_file"`
	WorkspaceRoot           string   `mapstructure:"workspace_root" yaml:"workspace_root"`
	ExclusiveAllowTools     []string `mapstructure:"exclusive_allow_tools" yaml:"exclusive_allow_tools"`
}

// CheckpointsConfig selects and locates the checkpoint store.
type CheckpointsConfig struct {
	Driver     string `mapstructure:"driver" yaml:"driver"`
	Dir        string `mapstructure:"dir" yaml:"dir"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// HistoryConfig sizes the thread summary cache.
type HistoryConfig struct {
	CacheSize int           `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// Metadata records where each loaded key came from.
type Metadata struct {
	file     string
	sources  map[string]ValueSource
	loadedAt time.Time
}

// File returns the config file that was read, or "" when none was found.
func (m Metadata) File() string {
	return m.file
}

// LoadedAt returns when the configuration was resolved.
func (m Metadata) LoadedAt() time.Time {
	return m.loadedAt
}

// Source returns the origin of a dotted key such as "retry.max_attempts".
func (m Metadata) Source(key string) ValueSource {
	if src, ok := m.sources[key]; ok {
		return src
	}
	return SourceDefault
}

// Sources returns a copy of the provenance map.
func (m Metadata) Sources() map[string]ValueSource {
	out := make(map[string]ValueSource, len(m.sources))
	for k, v := range m.sources {
		out[k] = v
	}
	return out
}
