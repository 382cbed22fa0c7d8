// Package memstore keeps checkpoints in process memory.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"agentcore/internal/agent/ports"
	"agentcore/internal/agent/ports/storage"
)

// Store is an in-memory checkpoint store, safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	runs map[string][]storage.Checkpoint
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{runs: make(map[string][]storage.Checkpoint)}
}

func (s *Store) Save(ctx context.Context, runID string, cp storage.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateForSave(runID, &cp); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.runs[runID]
	if n := len(history); n > 0 && cp.Version <= history[n-1].Version {
		return fmt.Errorf("run %s version %d after %d: %w", runID, cp.Version, history[n-1].Version, storage.ErrVersionConflict)
	}
	if slices.ContainsFunc(history, func(existing storage.Checkpoint) bool {
		return existing.CheckpointID == cp.CheckpointID
	}) {
		return fmt.Errorf("run %s checkpoint %s already stored: %w", runID, cp.CheckpointID, storage.ErrVersionConflict)
	}
	s.runs[runID] = append(history, clone(cp))
	return nil
}

func (s *Store) List(ctx context.Context, runID string, includeTombstoned bool) ([]storage.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.Checkpoint, 0, len(s.runs[runID]))
	for _, cp := range s.runs[runID] {
		if cp.Tombstoned && !includeTombstoned {
			continue
		}
		out = append(out, clone(cp))
	}
	return out, nil
}

func (s *Store) Latest(ctx context.Context, runID string) (*storage.Checkpoint, error) {
	checkpoints, err := s.List(ctx, runID, false)
	if err != nil || len(checkpoints) == 0 {
		return nil, err
	}
	latest := checkpoints[len(checkpoints)-1]
	return &latest, nil
}

func (s *Store) Tombstone(ctx context.Context, ref storage.CheckpointRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.runs[ref.RunID]
	for i := range history {
		if history[i].CheckpointID == ref.CheckpointID {
			history[i].Tombstoned = true
			return nil
		}
	}
	return fmt.Errorf("%s/%s: %w", ref.RunID, ref.CheckpointID, storage.ErrCheckpointNotFound)
}

func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func clone(cp storage.Checkpoint) storage.Checkpoint {
	cp.MessageHistory = slices.Clone(cp.MessageHistory)
	for i, msg := range cp.MessageHistory {
		cp.MessageHistory[i] = cloneMessage(msg)
	}
	return cp
}

func cloneMessage(msg ports.Message) ports.Message {
	if msg.Metadata != nil {
		meta := make(map[string]any, len(msg.Metadata))
		for k, v := range msg.Metadata {
			meta[k] = v
		}
		msg.Metadata = meta
	}
	if msg.Usage != nil {
		usage := *msg.Usage
		msg.Usage = &usage
	}
	return msg
}
