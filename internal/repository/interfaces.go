package repository

import (
	"context"
	"errors"

	"github.com/RMahshie/sweepwatch/pkg/models"
)

// ErrNotFound is returned when no checkpoint has been stored yet
var ErrNotFound = errors.New("no checkpoint stored")

// SpectrumRepository persists aggregate checkpoints
type SpectrumRepository interface {
	// Migrate creates the checkpoint tables if they are missing
	Migrate(ctx context.Context) error
	// SaveCheckpoint writes the checkpoint row and upserts every bin of
	// snap in one transaction.
	SaveCheckpoint(ctx context.Context, cp *models.Checkpoint, snap models.Snapshot) error
	LatestCheckpoint(ctx context.Context) (*models.Checkpoint, error)
	// LoadBins returns the stored bins ascending by frequency
	LoadBins(ctx context.Context) (models.Snapshot, error)
	Close() error
}
