package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/RMahshie/sweepwatch/internal/channel"
	"github.com/RMahshie/sweepwatch/internal/metrics"
	"github.com/RMahshie/sweepwatch/internal/msgrate"
	"github.com/RMahshie/sweepwatch/pkg/models"
)

// DefaultPollTimeout bounds each channel read so cancellation is observed
// within one interval.
const DefaultPollTimeout = time.Second

// Source yields raw frames. NextMessage returns nil, nil on timeout.
type Source interface {
	NextMessage(timeout time.Duration) ([]byte, error)
	Close() error
}

// Sink receives decoded sweep records
type Sink interface {
	Ingest(rec models.SweepRecord)
}

// ArrivalRecorder receives the arrival time of each ingested record
type ArrivalRecorder interface {
	RecordArrival(t float64)
}

// DecodeFunc parses one frame
type DecodeFunc func(frame []byte) (models.SweepRecord, error)

// IngestService drives frames from a source into the aggregate
type IngestService interface {
	Run(ctx context.Context) error
}

// Config tunes the loop. Zero values select defaults.
type Config struct {
	PollTimeout time.Duration
	Metrics     *metrics.Ingest
	Now         func() float64
	// DecodeLogBurst is how many decode failures are logged per second
	// before the rest are only counted.
	DecodeLogBurst int
}

type ingestService struct {
	source      Source
	decode      DecodeFunc
	sink        Sink
	arrivals    ArrivalRecorder
	pollTimeout time.Duration
	metrics     *metrics.Ingest
	now         func() float64
	logLimit    *rate.Limiter
	suppressed  int
	logger      zerolog.Logger
}

// NewIngestService wires a source to the aggregate and rate monitor. The
// service owns the source and closes it when Run returns.
func NewIngestService(source Source, decode DecodeFunc, sink Sink, arrivals ArrivalRecorder, cfg Config) IngestService {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewIngest(nil)
	}
	if cfg.Now == nil {
		cfg.Now = msgrate.Now
	}
	if cfg.DecodeLogBurst <= 0 {
		cfg.DecodeLogBurst = 5
	}

	return &ingestService{
		source:      source,
		decode:      decode,
		sink:        sink,
		arrivals:    arrivals,
		pollTimeout: cfg.PollTimeout,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
		logLimit:    rate.NewLimiter(rate.Every(time.Second/time.Duration(cfg.DecodeLogBurst)), cfg.DecodeLogBurst),
		logger:      log.With().Str("component", "ingest").Logger(),
	}
}

// Run polls until ctx is cancelled or the source is closed. Both end the
// loop with a nil error; a closed source leaves the aggregate readable.
// Per-frame failures never end the loop.
func (s *ingestService) Run(ctx context.Context) error {
	defer func() {
		if err := s.source.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close sweep channel")
		}
		s.logger.Info().Msg("Ingestion stopped")
	}()

	s.logger.Info().Dur("poll_timeout", s.pollTimeout).Msg("Ingestion started")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := s.source.NextMessage(s.pollTimeout)
		if err != nil {
			if errors.Is(err, channel.ErrClosed) {
				s.logger.Warn().Msg("Sweep channel closed")
				return nil
			}
			s.metrics.PollErrors.Inc()
			s.logger.Error().Err(err).Msg("Sweep channel poll failed")
			if !sleep(ctx, s.pollTimeout) {
				return nil
			}
			continue
		}
		if frame == nil {
			continue
		}

		s.handle(frame)
	}
}

func (s *ingestService) handle(frame []byte) {
	s.metrics.FramesReceived.Inc()

	rec, err := s.decode(frame)
	if err != nil {
		s.metrics.DecodeErrors.Inc()
		s.logDecodeError(err, len(frame))
		return
	}

	s.sink.Ingest(rec)
	s.arrivals.RecordArrival(s.now())

	s.metrics.RecordsIngested.Inc()
	s.metrics.BinsIngested.Add(float64(len(rec.Ranges[0].Powers) + len(rec.Ranges[1].Powers)))
}

func (s *ingestService) logDecodeError(err error, size int) {
	if !s.logLimit.Allow() {
		s.suppressed++
		return
	}
	s.logger.Warn().
		Err(err).
		Int("frame_bytes", size).
		Int("suppressed", s.suppressed).
		Msg("Dropping malformed sweep frame")
	s.suppressed = 0
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
