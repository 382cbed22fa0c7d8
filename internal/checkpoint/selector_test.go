package checkpoint

import (
	"context"
	"testing"
	"time"

	"agentcore/internal/agent/ports/storage"
	"agentcore/internal/checkpoint/memstore"
	"agentcore/internal/checkpoint/storetest"

	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, nodes ...string) *memstore.Store {
	t.Helper()
	store := memstore.New()
	for i, node := range nodes {
		require.NoError(t, store.Save(context.Background(), "run", storetest.Make("run", int64(i+1), node)))
	}
	return store
}

func ref(version int) *storage.CheckpointRef {
	cp := storetest.Make("run", int64(version), "")
	r := cp.Ref()
	return &r
}

func TestSelectResumeEmptyRun(t *testing.T) {
	cp, err := LatestResume(context.Background(), memstore.New(), "run")
	require.NoError(t, err)
	require.Nil(t, cp)
}

func TestSelectResumeRequestedResumable(t *testing.T) {
	store := seed(t, storage.NodeStart, "call_model", "execute_tools", storage.NodeFinish)

	cp, err := SelectResume(context.Background(), store, "run", ref(2))
	require.NoError(t, err)
	require.Equal(t, int64(2), cp.Version)
}

func TestSelectResumeRequestedFinishWalksBack(t *testing.T) {
	store := seed(t, storage.NodeStart, "call_model", storage.NodeFinish, "call_model", storage.NodeFinish)

	cp, err := SelectResume(context.Background(), store, "run", ref(3))
	require.NoError(t, err)
	require.Equal(t, int64(2), cp.Version, "newest resumable created no later than the request")
	require.True(t, cp.IsResumable())
}

func TestSelectResumeUnknownRequestFallsBackToLatest(t *testing.T) {
	store := seed(t, storage.NodeStart, "call_model", storage.NodeFinish)

	missing := &storage.CheckpointRef{RunID: "run", CheckpointID: "nope"}
	cp, err := SelectResume(context.Background(), store, "run", missing)
	require.NoError(t, err)
	require.Equal(t, int64(2), cp.Version)

	otherRun := &storage.CheckpointRef{RunID: "other", CheckpointID: "ckpt-run-1"}
	cp, err = SelectResume(context.Background(), store, "run", otherRun)
	require.NoError(t, err)
	require.Equal(t, int64(2), cp.Version)
}

func TestLatestResumeSkipsFinish(t *testing.T) {
	store := seed(t, storage.NodeStart, "call_model", "execute_tools", storage.NodeFinish)

	cp, err := LatestResume(context.Background(), store, "run")
	require.NoError(t, err)
	require.Equal(t, "single_run/execute_tools", cp.NodePath)
}

func TestSelectResumeOnlyFinishReturnsNewestForDisplay(t *testing.T) {
	store := seed(t, storage.NodeFinish, storage.NodeFinish)

	cp, err := LatestResume(context.Background(), store, "run")
	require.NoError(t, err)
	require.Equal(t, int64(2), cp.Version)
	require.False(t, cp.IsResumable())
}

func TestSelectResumeIgnoresTombstoned(t *testing.T) {
	ctx := context.Background()
	store := seed(t, storage.NodeStart, "call_model", "execute_tools")
	require.NoError(t, store.Tombstone(ctx, storage.CheckpointRef{RunID: "run", CheckpointID: "ckpt-run-3"}))

	cp, err := LatestResume(ctx, store, "run")
	require.NoError(t, err)
	require.Equal(t, int64(2), cp.Version)

	cp, err = SelectResume(ctx, store, "run", ref(3))
	require.NoError(t, err)
	require.Equal(t, int64(2), cp.Version)
}

func TestSelectResumeTieBreaksOnVersion(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for v, node := range []string{"call_model", "execute_tools", "send_tool_results"} {
		cp := storetest.Make("run", int64(v+1), node)
		cp.CreatedAt = at
		require.NoError(t, store.Save(ctx, "run", cp))
	}

	cp, err := LatestResume(ctx, store, "run")
	require.NoError(t, err)
	require.Equal(t, int64(3), cp.Version)
}

func TestSelectResumeOrdersByCreationTime(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	later := storetest.Make("run", 1, "call_model")
	later.CreatedAt = later.CreatedAt.Add(time.Hour)
	require.NoError(t, store.Save(ctx, "run", later))
	require.NoError(t, store.Save(ctx, "run", storetest.Make("run", 2, "execute_tools")))

	cp, err := LatestResume(ctx, store, "run")
	require.NoError(t, err)
	require.Equal(t, int64(1), cp.Version)
}

func TestSelectResumeReadsFreshState(t *testing.T) {
	ctx := context.Background()
	store := seed(t, storage.NodeStart)

	cp, err := LatestResume(ctx, store, "run")
	require.NoError(t, err)
	require.Equal(t, int64(1), cp.Version)

	require.NoError(t, store.Save(ctx, "run", storetest.Make("run", 2, "call_model")))
	cp, err = LatestResume(ctx, store, "run")
	require.NoError(t, err)
	require.Equal(t, int64(2), cp.Version)
}

func TestSelectResumeNilStore(t *testing.T) {
	_, err := LatestResume(context.Background(), nil, "run")
	require.Error(t, err)
}
