// Package sqlite stores checkpoints in an embedded SQLite file, for
// deployments next to the receiver without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/RMahshie/sweepwatch/internal/repository"
	"github.com/RMahshie/sweepwatch/pkg/models"
)

// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
const schema = `
	CREATE TABLE IF NOT EXISTS checkpoints (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		bin_count INTEGER NOT NULL,
		object_key TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS checkpoints_created_at_idx ON checkpoints (created_at DESC);
	CREATE TABLE IF NOT EXISTS spectrum_bins (
		frequency_hz INTEGER PRIMARY KEY,
		last_power REAL NOT NULL,
		min_power REAL NOT NULL,
		max_power REAL NOT NULL,
		observed_at REAL NOT NULL,
		checkpoint_id TEXT NOT NULL REFERENCES checkpoints (id)
	);`

// SQLiteSpectrumRepository implements SpectrumRepository on modernc.org/sqlite
type SQLiteSpectrumRepository struct {
	db *sql.DB
}

// Open opens the database at dsn with WAL journaling
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		log.Warn().Err(err).Msg("Failed to set WAL mode")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		log.Warn().Err(err).Msg("Failed to set synchronous mode")
	}
	return db, nil
}

// NewSQLiteSpectrumRepository creates a new SQLite spectrum repository
func NewSQLiteSpectrumRepository(db *sql.DB) repository.SpectrumRepository {
	return &SQLiteSpectrumRepository{db: db}
}

// Migrate creates the tables
func (r *SQLiteSpectrumRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create checkpoint tables: %w", err)
	}
	return nil
}

// SaveCheckpoint inserts the checkpoint and upserts its bins
func (r *SQLiteSpectrumRepository) SaveCheckpoint(ctx context.Context, cp *models.Checkpoint, snap models.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO checkpoints (id, source, bin_count, object_key, created_at)
		VALUES (?, ?, ?, ?, ?)`

	if _, err := tx.ExecContext(ctx, query, cp.ID.String(), cp.Source, cp.BinCount, cp.ObjectKey, cp.CreatedAt.UnixMicro()); err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO spectrum_bins (frequency_hz, last_power, min_power, max_power, observed_at, checkpoint_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (frequency_hz) DO UPDATE SET
			last_power = excluded.last_power,
			min_power = excluded.min_power,
			max_power = excluded.max_power,
			observed_at = excluded.observed_at,
			checkpoint_id = excluded.checkpoint_id`)
	if err != nil {
		return fmt.Errorf("failed to prepare bin upsert: %w", err)
	}
	defer stmt.Close()

	id := cp.ID.String()
	for i, freq := range snap.Frequencies {
		if _, err := stmt.ExecContext(ctx, freq, snap.Last[i], snap.Min[i], snap.Max[i], snap.Timestamps[i], id); err != nil {
			return fmt.Errorf("failed to upsert bin %d: %w", freq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// LatestCheckpoint retrieves the most recent checkpoint
func (r *SQLiteSpectrumRepository) LatestCheckpoint(ctx context.Context) (*models.Checkpoint, error) {
	query := `
		SELECT id, source, bin_count, object_key, created_at
		FROM checkpoints
		ORDER BY created_at DESC
		LIMIT 1`

	var cp models.Checkpoint
	var id string
	var objectKey sql.NullString
	var createdAt int64

	err := r.db.QueryRowContext(ctx, query).Scan(&id, &cp.Source, &cp.BinCount, &objectKey, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if cp.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint id %q: %w", id, err)
	}
	cp.CreatedAt = time.UnixMicro(createdAt).UTC()
	if objectKey.Valid {
		cp.ObjectKey = &objectKey.String
	}

	return &cp, nil
}

// LoadBins retrieves all stored bins
func (r *SQLiteSpectrumRepository) LoadBins(ctx context.Context) (models.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT frequency_hz, last_power, min_power, max_power, observed_at
		FROM spectrum_bins
		ORDER BY frequency_hz`)
	if err != nil {
		return models.Snapshot{}, err
	}
	defer rows.Close()

	var snap models.Snapshot
	for rows.Next() {
		var freq int64
		var bin models.BinRecord
		if err := rows.Scan(&freq, &bin.Last, &bin.Min, &bin.Max, &bin.Timestamp); err != nil {
			return models.Snapshot{}, err
		}
		snap.Append(freq, bin)
	}
	return snap, rows.Err()
}

// Close closes the database
func (r *SQLiteSpectrumRepository) Close() error {
	return r.db.Close()
}
