package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/sweepwatch/internal/repository"
	"github.com/RMahshie/sweepwatch/internal/storage"
	"github.com/RMahshie/sweepwatch/pkg/models"
)

const (
	DefaultInterval = time.Minute
	// shutdownTimeout bounds the final save after cancellation
	shutdownTimeout = 10 * time.Second
)

// SnapshotReader is the read side of the aggregate
type SnapshotReader interface {
	Snapshot() (models.Snapshot, bool)
}

// Restorer accepts previously stored bins
type Restorer interface {
	Restore(snap models.Snapshot)
}

// CheckpointService periodically persists the aggregate
type CheckpointService interface {
	Run(ctx context.Context) error
	// Save stores one checkpoint. It returns nil, nil when the
	// aggregate holds no data.
	Save(ctx context.Context) (*models.Checkpoint, error)
	// Restore loads the stored bins into target and returns how many
	// were restored. When the database holds no bins, the latest
	// checkpoint's exported object is used instead.
	Restore(ctx context.Context, target Restorer) (int, error)
}

// Options tunes the service. Zero values select defaults.
type Options struct {
	Interval time.Duration
	Source   string
	Now      func() time.Time
}

type checkpointService struct {
	reader     SnapshotReader
	repository repository.SpectrumRepository
	exporter   storage.SnapshotExporter // nil disables export
	interval   time.Duration
	source     string
	now        func() time.Time
}

func NewCheckpointService(reader SnapshotReader, repo repository.SpectrumRepository, exporter storage.SnapshotExporter, opts Options) CheckpointService {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &checkpointService{
		reader:     reader,
		repository: repo,
		exporter:   exporter,
		interval:   opts.Interval,
		source:     opts.Source,
		now:        opts.Now,
	}
}

func (s *checkpointService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Bool("export", s.exporter != nil).Msg("Checkpointer started")

	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			s.saveAndLog(saveCtx, "Final checkpoint")
			return nil
		case <-ticker.C:
			s.saveAndLog(ctx, "Checkpoint")
		}
	}
}

func (s *checkpointService) saveAndLog(ctx context.Context, what string) {
	cp, err := s.Save(ctx)
	if err != nil {
		log.Error().Err(err).Msg(what + " failed")
		return
	}
	if cp == nil {
		log.Debug().Msg(what + " skipped, no data yet")
		return
	}
	event := log.Info().Str("checkpoint_id", cp.ID.String()).Int("bin_count", cp.BinCount)
	if cp.ObjectKey != nil {
		event = event.Str("object_key", *cp.ObjectKey)
	}
	event.Msg(what + " saved")
}

func (s *checkpointService) Save(ctx context.Context) (*models.Checkpoint, error) {
	snap, ok := s.reader.Snapshot()
	if !ok {
		return nil, nil
	}

	cp := &models.Checkpoint{
		ID:        uuid.New(),
		Source:    s.source,
		BinCount:  snap.Len(),
		CreatedAt: s.now().UTC(),
	}

	// Export failures still leave the database checkpoint in place
	if s.exporter != nil {
		key, err := s.exporter.Export(ctx, cp, snap)
		if err != nil {
			log.Warn().Err(err).Str("checkpoint_id", cp.ID.String()).Msg("Snapshot export failed")
		} else {
			cp.ObjectKey = &key
		}
	}

	if err := s.repository.SaveCheckpoint(ctx, cp, snap); err != nil {
		return nil, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return cp, nil
}

func (s *checkpointService) Restore(ctx context.Context, target Restorer) (int, error) {
	latest, err := s.repository.LatestCheckpoint(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read latest checkpoint: %w", err)
	}

	snap, err := s.repository.LoadBins(ctx)
	from := "database"

	// The exported object of the latest checkpoint stands in for bins the
	// database cannot return
	if (err != nil || snap.Len() == 0) && s.exporter != nil && latest.ObjectKey != nil {
		doc, fetchErr := s.exporter.Fetch(ctx, *latest.ObjectKey)
		if fetchErr != nil {
			log.Warn().Err(fetchErr).Str("object_key", *latest.ObjectKey).Msg("Failed to fetch exported snapshot")
		} else {
			snap, err, from = doc.Snapshot(), nil, "export"
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load checkpoint bins: %w", err)
	}
	if snap.Len() == 0 {
		return 0, nil
	}

	target.Restore(snap)
	log.Info().
		Str("checkpoint_id", latest.ID.String()).
		Time("created_at", latest.CreatedAt).
		Int("bin_count", snap.Len()).
		Str("from", from).
		Msg("Restored spectrum from checkpoint")
	return snap.Len(), nil
}
