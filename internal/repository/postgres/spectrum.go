package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/RMahshie/sweepwatch/internal/repository"
	"github.com/RMahshie/sweepwatch/pkg/models"
)

const schema = `
	CREATE TABLE IF NOT EXISTS checkpoints (
		id UUID PRIMARY KEY,
		source TEXT NOT NULL,
		bin_count INTEGER NOT NULL,
		object_key TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS checkpoints_created_at_idx ON checkpoints (created_at DESC);
	CREATE TABLE IF NOT EXISTS spectrum_bins (
		frequency_hz BIGINT PRIMARY KEY,
		last_power DOUBLE PRECISION NOT NULL,
		min_power DOUBLE PRECISION NOT NULL,
		max_power DOUBLE PRECISION NOT NULL,
		observed_at DOUBLE PRECISION NOT NULL,
		checkpoint_id UUID NOT NULL REFERENCES checkpoints (id)
	);`

// PostgresSpectrumRepository implements SpectrumRepository for PostgreSQL
type PostgresSpectrumRepository struct {
	db *sql.DB
}

// Open connects to url and verifies the connection
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewPostgresSpectrumRepository creates a new PostgreSQL spectrum repository
func NewPostgresSpectrumRepository(db *sql.DB) repository.SpectrumRepository {
	return &PostgresSpectrumRepository{db: db}
}

// Migrate creates the tables
func (r *PostgresSpectrumRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create checkpoint tables: %w", err)
	}
	return nil
}

// SaveCheckpoint inserts the checkpoint and upserts its bins
func (r *PostgresSpectrumRepository) SaveCheckpoint(ctx context.Context, cp *models.Checkpoint, snap models.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO checkpoints (id, source, bin_count, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.ExecContext(ctx, query, cp.ID, cp.Source, cp.BinCount, cp.ObjectKey, cp.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO spectrum_bins (frequency_hz, last_power, min_power, max_power, observed_at, checkpoint_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (frequency_hz) DO UPDATE SET
			last_power = EXCLUDED.last_power,
			min_power = EXCLUDED.min_power,
			max_power = EXCLUDED.max_power,
			observed_at = EXCLUDED.observed_at,
			checkpoint_id = EXCLUDED.checkpoint_id`)
	if err != nil {
		return fmt.Errorf("failed to prepare bin upsert: %w", err)
	}
	defer stmt.Close()

	for i, freq := range snap.Frequencies {
		if _, err := stmt.ExecContext(ctx, freq, snap.Last[i], snap.Min[i], snap.Max[i], snap.Timestamps[i], cp.ID); err != nil {
			return fmt.Errorf("failed to upsert bin %d: %w", freq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// LatestCheckpoint retrieves the most recent checkpoint
func (r *PostgresSpectrumRepository) LatestCheckpoint(ctx context.Context) (*models.Checkpoint, error) {
	query := `
		SELECT id, source, bin_count, object_key, created_at
		FROM checkpoints
		ORDER BY created_at DESC
		LIMIT 1`

	var cp models.Checkpoint
	var objectKey sql.NullString

	err := r.db.QueryRowContext(ctx, query).Scan(
		&cp.ID,
		&cp.Source,
		&cp.BinCount,
		&objectKey,
		&cp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if objectKey.Valid {
		cp.ObjectKey = &objectKey.String
	}

	return &cp, nil
}

// LoadBins retrieves all stored bins
func (r *PostgresSpectrumRepository) LoadBins(ctx context.Context) (models.Snapshot, error) {
	query := `
		SELECT frequency_hz, last_power, min_power, max_power, observed_at
		FROM spectrum_bins
		ORDER BY frequency_hz`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return models.Snapshot{}, err
	}
	defer rows.Close()

	return scanBins(rows)
}

// Close closes the underlying pool
func (r *PostgresSpectrumRepository) Close() error {
	return r.db.Close()
}

func scanBins(rows *sql.Rows) (models.Snapshot, error) {
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
