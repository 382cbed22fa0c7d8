package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	core "agentcore/internal/agent/ports"
)

// Node path segments written by the run state machine.
const (
	NodeStart  = "__start__"
	NodeFinish = "__finish__"
)

var (
	// ErrCheckpointNotFound is returned when a referenced checkpoint does not exist.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrVersionConflict is returned when a save does not advance the run's version.
	ErrVersionConflict = errors.New("checkpoint version does not advance run history")
)

// Checkpoint is an immutable snapshot of a run's history at a node boundary.
type Checkpoint struct {
	RunID          string         `json:"run_id"`
	CheckpointID   string         `json:"checkpoint_id"`
	CreatedAt      time.Time      `json:"created_at"`
	NodePath       string         `json:"node_path"`
	MessageHistory []core.Message `json:"message_history"`
	Version        int64          `json:"version"`
	Tombstoned     bool           `json:"tombstoned,omitempty"`
}

// CheckpointRef points at a checkpoint without carrying its history.
type CheckpointRef struct {
	RunID        string `json:"run_id"`
	CheckpointID string `json:"checkpoint_id"`
}

// Ref returns the lightweight pointer to c.
func (c Checkpoint) Ref() CheckpointRef {
	return CheckpointRef{RunID: c.RunID, CheckpointID: c.CheckpointID}
}

// LastNodeSegment returns the final segment of the node path.
func (c Checkpoint) LastNodeSegment() string {
	path := strings.TrimRight(c.NodePath, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// IsResumable reports whether execution may continue from c.
func (c Checkpoint) IsResumable() bool {
	return c.LastNodeSegment() != NodeFinish
}

// CheckpointStore persists ordered checkpoints per run. Implementations are
// append-only except for the tombstone flag and must be safe for concurrent use.
type CheckpointStore interface {
	// Save appends cp to the run history. The version must exceed every
	// version already stored for the run, otherwise ErrVersionConflict.
	Save(ctx context.Context, runID string, cp Checkpoint) error

	// List returns the run's checkpoints ordered by version ascending.
	List(ctx context.Context, runID string, includeTombstoned bool) ([]Checkpoint, error)

	// Latest returns the non-tombstoned checkpoint with the highest version, or nil.
	Latest(ctx context.Context, runID string) (*Checkpoint, error)

	// Tombstone marks a checkpoint as logically deleted. It stays for audit.
	Tombstone(ctx context.Context, ref CheckpointRef) error
}

// RunLister enumerates the runs a store knows about.
type RunLister interface {
	ListRuns(ctx context.Context) ([]string, error)
}

// Store is a checkpoint store that can also enumerate runs.
type Store interface {
	CheckpointStore
	RunLister
}

// ValidateForSave checks the fields every store requires and fills RunID when
// the checkpoint leaves it empty.
func ValidateForSave(runID string, cp *Checkpoint) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("checkpoint run id is required")
	}
	if cp.RunID == "" {
		cp.RunID = runID
	}
	if cp.RunID != runID {
		return fmt.Errorf("checkpoint belongs to run %s, not %s", cp.RunID, runID)
	}
	if strings.TrimSpace(cp.CheckpointID) == "" {
		return fmt.Errorf("checkpoint id is required")
	}
	if strings.TrimSpace(cp.NodePath) == "" {
		return fmt.Errorf("checkpoint node path is required")
	}
	return nil
}
