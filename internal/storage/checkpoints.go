package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/LdDl/sort-go/mot"
)

// schema.sql contains the table of tracker checkpoints
//
//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when there is no checkpoint to resume from
var ErrNotFound = errors.New("checkpoint not found")

// CheckpointInfo describes stored checkpoint without its payload
type CheckpointInfo struct {
	ID        string
	RunID     string
	Frame     int64
	Tracks    int
	NextID    uint64
	CreatedAt time.Time
}

// CheckpointStore keeps tracker checkpoints in SQLite database
type CheckpointStore struct {
	db *sql.DB
}

// Open opens (or creates) database at path and applies schema
func Open(path string) (*CheckpointStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	// SQLite allows single writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply checkpoint schema: %w", err)
	}
	return &CheckpointStore{db: db}, nil
}

// Close closes database
func (store *CheckpointStore) Close() error {
	return store.db.Close()
}

// SaveCheckpoint implements pipeline.Checkpointer
func (store *CheckpointStore) SaveCheckpoint(ctx context.Context, runID string, cp mot.Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	query := `
		INSERT INTO checkpoints (id, run_id, frame, tracks, next_id, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = store.db.ExecContext(ctx, query, uuid.NewString(), runID, cp.LastFrame, len(cp.Tracks), int64(cp.NextID), time.Now().UnixNano(), payload)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// Latest returns the most recent checkpoint of the run. Empty runID means the most recent checkpoint of any run
func (store *CheckpointStore) Latest(ctx context.Context, runID string) (mot.Checkpoint, CheckpointInfo, error) {
	query := `
		SELECT id, run_id, frame, tracks, next_id, created_at, payload
		FROM checkpoints
		WHERE (? = '' OR run_id = ?)
		ORDER BY rowid DESC
		LIMIT 1
	`
	var info CheckpointInfo
	var nextID, createdAt int64
	var payload []byte
	err := store.db.QueryRowContext(ctx, query, runID, runID).Scan(&info.ID, &info.RunID, &info.Frame, &info.Tracks, &nextID, &createdAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return mot.Checkpoint{}, CheckpointInfo{}, ErrNotFound
	}
	if err != nil {
		return mot.Checkpoint{}, CheckpointInfo{}, fmt.Errorf("query checkpoint: %w", err)
	}
	info.NextID = uint64(nextID)
	info.CreatedAt = time.Unix(0, createdAt)

	var cp mot.Checkpoint
	if err := json.Unmarshal(payload, &cp); err != nil {
		return mot.Checkpoint{}, CheckpointInfo{}, fmt.Errorf("decode checkpoint %s: %w", info.ID, err)
	}
	return cp, info, nil
}

// List returns every stored checkpoint from newest to oldest
func (store *CheckpointStore) List(ctx context.Context) ([]CheckpointInfo, error) {
	query := `
		SELECT id, run_id, frame, tracks, next_id, created_at
		FROM checkpoints
		ORDER BY rowid DESC
	`
	rows, err := store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	infos := []CheckpointInfo{}
	for rows.Next() {
		var info CheckpointInfo
		var nextID, createdAt int64
		if err := rows.Scan(&info.ID, &info.RunID, &info.Frame, &info.Tracks, &nextID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		info.NextID = uint64(nextID)
		info.CreatedAt = time.Unix(0, createdAt)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return infos, nil
}

// Prune keeps only the newest keep checkpoints of the run and returns number of removed rows
func (store *CheckpointStore) Prune(ctx context.Context, runID string, keep int) (int64, error) {
	query := `
		DELETE FROM checkpoints
		WHERE run_id = ? AND rowid NOT IN (
			SELECT rowid FROM checkpoints WHERE run_id = ? ORDER BY rowid DESC LIMIT ?
		)
	`
	result, err := store.db.ExecContext(ctx, query, runID, runID, keep)
	if err != nil {
		return 0, fmt.Errorf("prune checkpoints: %w", err)
	}
	return result.RowsAffected()
}
