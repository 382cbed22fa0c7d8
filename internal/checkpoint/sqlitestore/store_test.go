package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"agentcore/internal/agent/ports"
	"agentcore/internal/agent/ports/storage"
	"agentcore/internal/checkpoint/storetest"
	"agentcore/internal/logging"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "checkpoints.db"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store { return openTestStore(t) })
}

func TestHistoryRoundTripsMetadata(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	instructions := ports.UserMessage("project rules").WithFlag(ports.MetadataCacheable)
	require.NoError(t, store.Save(ctx, "run-1", storetest.Make("run-1", 1, "call_model", instructions)))

	latest, err := store.Latest(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, latest.MessageHistory[0].HasFlag(ports.MetadataCacheable))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ", logging.Nop())
	require.Error(t, err)
}

func TestIsBusy(t *testing.T) {
	require.True(t, isBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	require.False(t, isBusy(errors.New("no such table: checkpoints")))
}
