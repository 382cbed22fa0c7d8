// Package checkpoint selects resume points from a run's checkpoint history and
// summarises past runs for display.
package checkpoint

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"agentcore/internal/agent/ports/storage"
)

// SelectResume picks the checkpoint a run should continue from. When ref names
// a resumable checkpoint it wins. When it names a finished one, the newest
// resumable checkpoint created no later than it is used. Otherwise the newest
// resumable checkpoint of the whole run is returned. If nothing is resumable
// the newest checkpoint is returned for display only; callers must check
// IsResumable before continuing execution from it. A run without live
// checkpoints yields nil, nil.
//
// The store is read on every call so concurrent writers are always observed.
func SelectResume(ctx context.Context, store storage.CheckpointStore, runID string, ref *storage.CheckpointRef) (*storage.Checkpoint, error) {
	checkpoints, err := newestFirst(ctx, store, runID)
	if err != nil {
		return nil, err
	}
	if len(checkpoints) == 0 {
		return nil, nil
	}

	if ref != nil && ref.CheckpointID != "" && (ref.RunID == "" || ref.RunID == runID) {
		if idx := slices.IndexFunc(checkpoints, func(cp storage.Checkpoint) bool {
			return cp.CheckpointID == ref.CheckpointID
		}); idx >= 0 {
			requested := checkpoints[idx]
			if requested.IsResumable() {
				return &requested, nil
			}
			for _, cp := range checkpoints {
				if cp.CreatedAt.After(requested.CreatedAt) || !cp.IsResumable() {
					continue
				}
				return &cp, nil
			}
		}
	}

	return newestResumableOrNewest(checkpoints), nil
}

// LatestResume is SelectResume without a requested checkpoint.
func LatestResume(ctx context.Context, store storage.CheckpointStore, runID string) (*storage.Checkpoint, error) {
	return SelectResume(ctx, store, runID, nil)
}

func newestResumableOrNewest(checkpoints []storage.Checkpoint) *storage.Checkpoint {
	for _, cp := range checkpoints {
		if cp.IsResumable() {
			return &cp
		}
	}
	newest := checkpoints[0]
	return &newest
}

// newestFirst loads the run's live checkpoints ordered by creation time
// descending, with higher versions first on equal timestamps.
func newestFirst(ctx context.Context, store storage.CheckpointStore, runID string) ([]storage.Checkpoint, error) {
	if store == nil {
		return nil, fmt.Errorf("checkpoint store is nil")
	}
	checkpoints, err := store.List(ctx, runID, false)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints for %s: %w", runID, err)
	}
	live := checkpoints[:0:0]
	for _, cp := range checkpoints {
		if !cp.Tombstoned {
			live = append(live, cp)
		}
	}
	slices.SortStableFunc(live, compareNewestFirst)
	return live, nil
}

func compareNewestFirst(a, b storage.Checkpoint) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.Version, a.Version)
}
