package mocks

import (
	"context"

	"agentcore/internal/agent/ports/storage"
)

type MockCheckpointStore struct {
	SaveFunc      func(ctx context.Context, runID string, cp storage.Checkpoint) error
	ListFunc      func(ctx context.Context, runID string, includeTombstoned bool) ([]storage.Checkpoint, error)
	LatestFunc    func(ctx context.Context, runID string) (*storage.Checkpoint, error)
	TombstoneFunc func(ctx context.Context, ref storage.CheckpointRef) error
	ListRunsFunc  func(ctx context.Context) ([]string, error)
}

func (m *MockCheckpointStore) Save(ctx context.Context, runID string, cp storage.Checkpoint) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, runID, cp)
	}
	return nil
}

func (m *MockCheckpointStore) List(ctx context.Context, runID string, includeTombstoned bool) ([]storage.Checkpoint, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, runID, includeTombstoned)
	}
	return nil, nil
}

func (m *MockCheckpointStore) Latest(ctx context.Context, runID string) (*storage.Checkpoint, error) {
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx, runID)
	}
	return nil, nil
}

func (m *MockCheckpointStore) Tombstone(ctx context.Context, ref storage.CheckpointRef) error {
	if m.TombstoneFunc != nil {
		return m.TombstoneFunc(ctx, ref)
	}
	return nil
}

func (m *MockCheckpointStore) ListRuns(ctx context.Context) ([]string, error) {
	if m.ListRunsFunc != nil {
		return m.ListRunsFunc(ctx)
	}
	return nil, nil
}
