// Package filestore persists checkpoints as JSON files laid out as
// <root>/checkpoints/<run>/<version>.json.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"agentcore/internal/agent/ports/storage"
	"agentcore/internal/logging"
)

type store struct {
	baseDir string
	logger  logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ storage.Store = (*store)(nil)

// New returns a store rooted at <root>/checkpoints. A leading "~/" expands to
// the home directory.
func New(root string, logger logging.Logger) (storage.Store, error) {
	if strings.HasPrefix(root, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		root = filepath.Join(home, root[2:])
	}
	baseDir := filepath.Join(root, "checkpoints")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	if logger == nil {
		logger = logging.NewComponentLogger("CheckpointFileStore")
	}
	return &store{
		baseDir: baseDir,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

func (s *store) Save(ctx context.Context, runID string, cp storage.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateForSave(runID, &cp); err != nil {
		return err
	}
	dir, err := s.runDir(runID)
	if err != nil {
		return err
	}

	lock := s.lockFor(runID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.readRun(dir)
	if err != nil {
		return err
	}
	if n := len(existing); n > 0 && cp.Version <= existing[n-1].Version {
		return fmt.Errorf("run %s version %d after %d: %w", runID, cp.Version, existing[n-1].Version, storage.ErrVersionConflict)
	}
	if slices.ContainsFunc(existing, func(e storage.Checkpoint) bool { return e.CheckpointID == cp.CheckpointID }) {
		return fmt.Errorf("run %s checkpoint %s already stored: %w", runID, cp.CheckpointID, storage.ErrVersionConflict)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}

	// A version file that exists but did not decode is the remnant of an
	// interrupted write and is replaced.
	if err := writeReplace(versionPath(dir, cp.Version), data); err != nil {
		return fmt.Errorf("write checkpoint %s version %d: %w", runID, cp.Version, err)
	}
	return nil
}

func (s *store) List(ctx context.Context, runID string, includeTombstoned bool) ([]storage.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	lock := s.lockFor(runID)
	lock.Lock()
	checkpoints, err := s.readRun(dir)
	lock.Unlock()
	if err != nil {
		return nil, err
	}
	if includeTombstoned {
		return checkpoints, nil
	}
	return slices.DeleteFunc(checkpoints, func(cp storage.Checkpoint) bool { return cp.Tombstoned }), nil
}

func (s *store) Latest(ctx context.Context, runID string) (*storage.Checkpoint, error) {
	checkpoints, err := s.List(ctx, runID, false)
	if err != nil || len(checkpoints) == 0 {
		return nil, err
	}
	latest := checkpoints[len(checkpoints)-1]
	return &latest, nil
}

func (s *store) Tombstone(ctx context.Context, ref storage.CheckpointRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.runDir(ref.RunID)
	if err != nil {
		return err
	}
	lock := s.lockFor(ref.RunID)
	lock.Lock()
	defer lock.Unlock()

	checkpoints, err := s.readRun(dir)
	if err != nil {
		return err
	}
	for _, cp := range checkpoints {
		if cp.CheckpointID != ref.CheckpointID {
			continue
		}
		if cp.Tombstoned {
			return nil
		}
		cp.Tombstoned = true
		data, err := json.MarshalIndent(cp, "", "  ")
		if err != nil {
			return err
		}
		return writeReplace(versionPath(dir, cp.Version), data)
	}
	return fmt.Errorf("%s/%s: %w", ref.RunID, ref.CheckpointID, storage.ErrCheckpointNotFound)
}

func (s *store) ListRuns(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

func (s *store) runDir(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return filepath.Join(s.baseDir, runID), nil
}

func (s *store) lockFor(runID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[runID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[runID] = lock
	}
	return lock
}

// readRun loads every checkpoint file of a run ordered by version. Files that
// fail to decode are logged and skipped.
func (s *store) readRun(dir string) ([]storage.Checkpoint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var checkpoints []storage.Checkpoint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if _, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64); err != nil {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Error("Failed to read checkpoint file %s: %v", path, err)
			continue
		}
		var cp storage.Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			s.logger.Error("Failed to decode checkpoint file %s: %v. Preview: %s", path, err, previewJSON(data))
			continue
		}
		checkpoints = append(checkpoints, cp)
	}
	slices.SortFunc(checkpoints, func(a, b storage.Checkpoint) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		default:
			return 0
		}
	})
	return checkpoints, nil
}

func versionPath(dir string, version int64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.json", version))
}

// writeReplace writes data to a temp file beside path, syncs it and renames
// it over path, so readers see either the old file or the complete new one.
func writeReplace(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".write-*")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

func previewJSON(data []byte) string {
	const maxPreview = 512
	preview := strings.TrimSpace(string(data))
	preview = strings.ReplaceAll(preview, "\n", " ")
	preview = strings.ReplaceAll(preview, "\t", " ")
	if len(preview) > maxPreview {
		preview = preview[:maxPreview] + "... (truncated)"
	}
	return preview
}
