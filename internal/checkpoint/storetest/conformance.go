// Package storetest holds behaviour every CheckpointStore implementation must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"agentcore/internal/agent/ports"
	"agentcore/internal/agent/ports/storage"

	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) storage.Store

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Make builds a checkpoint for tests.
func Make(runID string, version int64, node string, history ...ports.Message) storage.Checkpoint {
	return storage.Checkpoint{
		RunID:          runID,
		CheckpointID:   fmt.Sprintf("ckpt-%s-%d", runID, version),
		CreatedAt:      base.Add(time.Duration(version) * time.Second),
		NodePath:       "single_run/" + node,
		MessageHistory: history,
		Version:        version,
	}
}

// Run exercises the store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("SaveListLatest", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		latest, err := store.Latest(ctx, "run-a")
		require.NoError(t, err)
		require.Nil(t, latest)

		history := []ports.Message{
			ports.UserMessage("list files"),
			{Role: ports.RoleToolCall, ToolCallID: "c1", ToolName: "Bash", ToolArgs: `{"command":"ls"}`},
		}
		require.NoError(t, store.Save(ctx, "run-a", Make("run-a", 1, storage.NodeStart)))
		require.NoError(t, store.Save(ctx, "run-a", Make("run-a", 2, "call_model", history...)))

		listed, err := store.List(ctx, "run-a", false)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		require.Equal(t, int64(1), listed[0].Version)
		require.Equal(t, int64(2), listed[1].Version)
		require.Equal(t, "single_run/call_model", listed[1].NodePath)
		require.Equal(t, history[1].ToolArgs, listed[1].MessageHistory[1].ToolArgs)
		require.True(t, listed[1].CreatedAt.Equal(base.Add(2*time.Second)))

		latest, err = store.Latest(ctx, "run-a")
		require.NoError(t, err)
		require.Equal(t, "ckpt-run-a-2", latest.CheckpointID)

		other, err := store.List(ctx, "run-b", true)
		require.NoError(t, err)
		require.Empty(t, other)
	})

	t.Run("RejectsNonAdvancingVersion", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "run-a", Make("run-a", 5, "call_model")))

		stale := Make("run-a", 5, "execute_tools")
		stale.CheckpointID = "ckpt-dup"
		err := store.Save(ctx, "run-a", stale)
		require.True(t, errors.Is(err, storage.ErrVersionConflict), "got %v", err)

		older := Make("run-a", 3, "execute_tools")
		require.ErrorIs(t, store.Save(ctx, "run-a", older), storage.ErrVersionConflict)

		require.Error(t, store.Save(ctx, "run-a", storage.Checkpoint{RunID: "run-b", CheckpointID: "x", NodePath: "n", Version: 9}))
	})

	t.Run("TombstoneHidesButKeeps", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "run-a", Make("run-a", 1, "call_model")))
		require.NoError(t, store.Save(ctx, "run-a", Make("run-a", 2, storage.NodeFinish)))

		require.NoError(t, store.Tombstone(ctx, storage.CheckpointRef{RunID: "run-a", CheckpointID: "ckpt-run-a-2"}))

		live, err := store.List(ctx, "run-a", false)
		require.NoError(t, err)
		require.Len(t, live, 1)

		all, err := store.List(ctx, "run-a", true)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.True(t, all[1].Tombstoned)

		latest, err := store.Latest(ctx, "run-a")
		require.NoError(t, err)
		require.Equal(t, int64(1), latest.Version)

		// Tombstoned versions still count for ordering.
		require.ErrorIs(t, store.Save(ctx, "run-a", Make("run-a", 2, "call_model")), storage.ErrVersionConflict)

		err = store.Tombstone(ctx, storage.CheckpointRef{RunID: "run-a", CheckpointID: "missing"})
		require.ErrorIs(t, err, storage.ErrCheckpointNotFound)
	})

	t.Run("ListRuns", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "run-b", Make("run-b", 1, storage.NodeStart)))
		require.NoError(t, store.Save(ctx, "run-a", Make("run-a", 1, storage.NodeStart)))

		runs, err := store.ListRuns(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"run-a", "run-b"}, runs)
	})

	t.Run("ConcurrentRuns", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for r := 0; r < 4; r++ {
			runID := fmt.Sprintf("run-%d", r)
			wg.Add(1)
			go func() {
				defer wg.Done()
				for v := int64(1); v <= 10; v++ {
					errs <- store.Save(ctx, runID, Make(runID, v, "call_model"))
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		for r := 0; r < 4; r++ {
			listed, err := store.List(ctx, fmt.Sprintf("run-%d", r), false)
			require.NoError(t, err)
			require.Len(t, listed, 10)
		}
	})
}
