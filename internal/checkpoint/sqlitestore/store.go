// Package sqlitestore persists checkpoints in a SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"agentcore/internal/agent/ports"
	"agentcore/internal/agent/ports/storage"
	agenterrors "agentcore/internal/errors"
	"agentcore/internal/logging"

	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"
	dsnOptions = "?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id        TEXT    NOT NULL,
	checkpoint_id TEXT    NOT NULL,
	version       INTEGER NOT NULL,
	created_at    INTEGER NOT NULL,
	node_path     TEXT    NOT NULL,
	history       TEXT    NOT NULL,
	tombstoned    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, version),
	UNIQUE (run_id, checkpoint_id)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_created ON checkpoints(run_id, created_at);
`

// Store is a SQLite-backed checkpoint store.
type Store struct {
	db     *sql.DB
	retry  agenterrors.RetryPolicy
	logger logging.Logger
}

var _ storage.Store = (*Store)(nil)

// Open creates or opens the database at path and applies the schema.
func Open(path string, logger logging.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("checkpoint db: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint db: create dir: %w", err)
	}
	db, err := sql.Open(driverName, path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("checkpoint db: open: %w", err)
	}
	// Save reads then inserts inside one transaction; a single connection serialises them.
	db.SetMaxOpenConns(1)
	s := &Store{
		db: db,
		retry: agenterrors.RetryPolicy{
			MaxAttempts:       4,
			InitialDelay:      20 * time.Millisecond,
			MaxDelay:          200 * time.Millisecond,
			BackoffMultiplier: 2,
			JitterFactor:      0.2,
		},
		logger: logging.OrNop(logger),
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint db: migrate: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, runID string, cp storage.Checkpoint) error {
	if err := storage.ValidateForSave(runID, &cp); err != nil {
		return err
	}
	history, err := json.Marshal(cp.MessageHistory)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	_, err = withBusyRetry(s, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.insert(ctx, cp, string(history))
	})
	return err
}

func (s *Store) insert(ctx context.Context, cp storage.Checkpoint, history string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM checkpoints WHERE run_id = ?`, cp.RunID,
	).Scan(&current); err != nil {
		return err
	}
	if current.Valid && cp.Version <= current.Int64 {
		return fmt.Errorf("run %s version %d after %d: %w", cp.RunID, cp.Version, current.Int64, storage.ErrVersionConflict)
	}
	var dup int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM checkpoints WHERE run_id = ? AND checkpoint_id = ?`, cp.RunID, cp.CheckpointID,
	).Scan(&dup); err != nil {
		return err
	}
	if dup > 0 {
		return fmt.Errorf("run %s checkpoint %s already stored: %w", cp.RunID, cp.CheckpointID, storage.ErrVersionConflict)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO checkpoints (run_id, checkpoint_id, version, created_at, node_path, history, tombstoned)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cp.RunID, cp.CheckpointID, cp.Version, cp.CreatedAt.UnixNano(), cp.NodePath, history, boolToInt(cp.Tombstoned),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) List(ctx context.Context, runID string, includeTombstoned bool) ([]storage.Checkpoint, error) {
	query := `
SELECT run_id, checkpoint_id, version, created_at, node_path, history, tombstoned
FROM checkpoints WHERE run_id = ?`
	if !includeTombstoned {
		query += ` AND tombstoned = 0`
	}
	query += ` ORDER BY version ASC`

	return withBusyRetry(s, ctx, func(ctx context.Context) ([]storage.Checkpoint, error) {
		rows, err := s.db.QueryContext(ctx, query, runID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []storage.Checkpoint
		for rows.Next() {
			cp, err := scanCheckpoint(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, cp)
		}
		return out, rows.Err()
	})
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
	affected, err := withBusyRetry(s, ctx, func(ctx context.Context) (int64, error) {
		res, err := s.db.ExecContext(ctx,
			`UPDATE checkpoints SET tombstoned = 1 WHERE run_id = ? AND checkpoint_id = ?`,
			ref.RunID, ref.CheckpointID)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s/%s: %w", ref.RunID, ref.CheckpointID, storage.ErrCheckpointNotFound)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	return withBusyRetry(s, ctx, func(ctx context.Context) ([]string, error) {
		rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT run_id FROM checkpoints ORDER BY run_id`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, rows.Err()
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (storage.Checkpoint, error) {
	var (
		cp         storage.Checkpoint
		createdAt  int64
		history    string
		tombstoned int
	)
	if err := row.Scan(&cp.RunID, &cp.CheckpointID, &cp.Version, &createdAt, &cp.NodePath, &history, &tombstoned); err != nil {
		return storage.Checkpoint{}, err
	}
	cp.CreatedAt = time.Unix(0, createdAt).UTC()
	cp.Tombstoned = tombstoned != 0
	var messages []ports.Message
	if err := json.Unmarshal([]byte(history), &messages); err != nil {
		return storage.Checkpoint{}, fmt.Errorf("decode history of %s/%s: %w", cp.RunID, cp.CheckpointID, err)
	}
	cp.MessageHistory = messages
	return cp, nil
}

// withBusyRetry retries fn while SQLite reports lock contention.
func withBusyRetry[T any](s *Store, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	return agenterrors.RetryWithResultAndLog(ctx, s.retry, func(ctx context.Context) (T, error) {
		result, err := fn(ctx)
		if err != nil && isBusy(err) {
			return result, agenterrors.NewTransientError(err, "checkpoint database is busy")
		}
		return result, err
	}, s.logger)
}

func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
