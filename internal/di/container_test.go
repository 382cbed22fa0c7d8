package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"agentcore/internal/agent/domain/react"
	"agentcore/internal/agent/ports"
	"agentcore/internal/agent/ports/mocks"
	"agentcore/internal/checkpoint/memstore"
	"agentcore/internal/checkpoint/sqlitestore"
	"agentcore/internal/config"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, content string) *config.Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	mgr, err := config.Load(path)
	require.NoError(t, err)
	return mgr
}

func TestBuildContainerMemoryDriver(t *testing.T) {
	mgr := loadConfig(t, "checkpoints:\n  driver: memory\n")
	container, err := BuildContainer(mgr, WithoutGlobalLogger())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Cleanup(context.Background())) })

	require.IsType(t, &memstore.Store{}, container.Store)
	require.NotNil(t, container.History)
	require.NotNil(t, container.Queue)
	require.NotNil(t, container.Tracer)
}

func TestBuildContainerSQLiteDriverClosesOnCleanup(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "checkpoints.db")
	mgr := loadConfig(t, "checkpoints:\n  driver: sqlite\n  sqlite_path: "+dbPath+"\nobservability:\n  metrics:\n    enabled: true\n    prometheus_port: 0\n")
	container, err := BuildContainer(mgr, WithoutGlobalLogger(), WithRegistry(promclient.NewRegistry()))
	require.NoError(t, err)

	require.IsType(t, &sqlitestore.Store{}, container.Store)
	require.FileExists(t, dbPath)
	require.NoError(t, container.Cleanup(context.Background()))
	require.NoError(t, container.Cleanup(context.Background()), "second cleanup is a no-op")
}

func TestBuildContainerFileDriver(t *testing.T) {
	dir := t.TempDir()
	mgr := loadConfig(t, "checkpoints:\n  driver: file\n  dir: "+dir+"\n")
	container, err := BuildContainer(mgr, WithoutGlobalLogger())
	require.NoError(t, err)
	defer container.Cleanup(context.Background())

	runs, err := container.Store.ListRuns(context.Background())
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestBuildContainerRequiresManager(t *testing.T) {
	_, err := BuildContainer(nil)
	require.Error(t, err)
}

func TestNewRunnerGuardsToolsWithConfiguredPermissions(t *testing.T) {
	mgr := loadConfig(t, "checkpoints:\n  driver: memory\npermissions:\n  deny: [\"Bash(rm *)\"]\n")
	container, err := BuildContainer(mgr, WithoutGlobalLogger())
	require.NoError(t, err)
	defer container.Cleanup(context.Background())

	calls := 0
	executor := &mocks.MockPromptExecutor{
		ExecuteFunc: func(ctx context.Context, prompt ports.Prompt, model string, tools []ports.ToolDefinition) ([]ports.Response, error) {
			calls++
			if calls == 1 {
				return []ports.Response{ports.ToolCall{ID: "c1", Tool: "Bash", Args: `{"command":"rm -rf build"}`}}, nil
			}
			return []ports.Response{ports.Assistant{Text: "could not delete"}}, nil
		},
	}
	tools := &mocks.MockToolDispatcher{}
	runner, err := container.NewRunner(RunnerOptions{Executor: executor, Tools: tools})
	require.NoError(t, err)

	result, err := runner.SubmitTurn(context.Background(), react.TurnRequest{RunID: "run-guard", Message: "clean up"})
	require.NoError(t, err)
	require.Equal(t, "could not delete", result.Text)
	require.Empty(t, tools.Calls())

	latest, err := container.Store.Latest(context.Background(), "run-guard")
	require.NoError(t, err)
	var refusal *ports.Message
	for i := range latest.MessageHistory {
		if latest.MessageHistory[i].Role == ports.RoleToolResult {
			refusal = &latest.MessageHistory[i]
		}
	}
	require.NotNil(t, refusal)
	require.True(t, refusal.IsError)
	require.Equal(t, "Access denied by permissions.deny for Bash", refusal.Content)

	summaries, err := container.History.ListThreads(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "run-guard", summaries[0].RunID)
}

func TestNewRunnerRequiresExecutor(t *testing.T) {
	mgr := loadConfig(t, "checkpoints:\n  driver: memory\n")
	container, err := BuildContainer(mgr, WithoutGlobalLogger())
	require.NoError(t, err)
	defer container.Cleanup(context.Background())

	_, err = container.NewRunner(RunnerOptions{Tools: &mocks.MockToolDispatcher{}})
	require.Error(t, err)
}
