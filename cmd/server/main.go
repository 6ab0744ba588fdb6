package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/RMahshie/sweepwatch/internal/api"
	"github.com/RMahshie/sweepwatch/internal/api/handlers"
	"github.com/RMahshie/sweepwatch/internal/channel"
	"github.com/RMahshie/sweepwatch/internal/checkpoint"
	"github.com/RMahshie/sweepwatch/internal/config"
	"github.com/RMahshie/sweepwatch/internal/ingest"
	"github.com/RMahshie/sweepwatch/internal/keys"
	"github.com/RMahshie/sweepwatch/internal/metrics"
	"github.com/RMahshie/sweepwatch/internal/msgrate"
	"github.com/RMahshie/sweepwatch/internal/repository"
	"github.com/RMahshie/sweepwatch/internal/repository/postgres"
	"github.com/RMahshie/sweepwatch/internal/repository/sqlite"
	"github.com/RMahshie/sweepwatch/internal/spectrum"
	"github.com/RMahshie/sweepwatch/internal/storage"
	"github.com/RMahshie/sweepwatch/internal/sweep"
)

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Sweepwatch stopped with error")
	}
	log.Info().Msg("Server exited")
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Key setup faults are fatal before any socket exists
	created, err := keys.EnsureCertificate(cfg.Channel.KeyDir, keys.ClientName)
	if err != nil {
		return fmt.Errorf("failed to prepare client certificate: %w", err)
	}
	if created {
		log.Info().Str("key_dir", cfg.Channel.KeyDir).Msg("Generated new client certificate")
	}

	material, err := keys.Load(cfg.Channel.KeyDir, cfg.Channel.ServerPublicKey)
	if err != nil {
		if errors.Is(err, keys.ErrRemoteKeyNotFound) {
			log.Error().Msg("Copy the publisher's server.key into the key directory or set SERVER_PUBLIC_KEY")
		}
		return err
	}

	sub, err := channel.Open(cfg.Channel.Endpoint, material.LocalPublic, material.LocalSecret, material.RemotePublic, channel.Options{
		ReconnectInterval:    cfg.Channel.ReconnectInterval,
		ReceiveHighWaterMark: cfg.Channel.ReceiveHWM,
	})
	if err != nil {
		return fmt.Errorf("failed to open sweep channel: %w", err)
	}
	log.Info().Str("endpoint", sub.Endpoint()).Msg("Subscribed to sweep publisher")

	hint := spectrum.CapacityHint(cfg.Spectrum.LowHz, cfg.Spectrum.HighHz, cfg.Spectrum.BinWidthHz)
	agg := spectrum.NewAggregator(hint)
	monitor := msgrate.NewMonitor(cfg.Spectrum.RateRetention)

	reg := metrics.NewRegistry()
	reg.RegisterBinGauge(agg.Len)

	var checkpointer checkpoint.CheckpointService
	if cfg.CheckpointsEnabled() {
		repo, err := openRepository(ctx, cfg.Database)
		if err != nil {
			sub.Close()
			return err
		}
		defer repo.Close()

		var exporter storage.SnapshotExporter
		if cfg.ExportEnabled() {
			if exporter, err = openExporter(ctx, cfg); err != nil {
				sub.Close()
				return err
			}
		}

		checkpointer = checkpoint.NewCheckpointService(agg, repo, exporter, checkpoint.Options{
			Interval: cfg.Checkpoint.Interval,
			Source:   cfg.Channel.Endpoint,
		})
		if cfg.Checkpoint.Restore {
			if _, err := checkpointer.Restore(ctx, agg); err != nil {
				log.Warn().Err(err).Msg("Starting with an empty spectrum")
			}
		}
	}

	loop := ingest.NewIngestService(sub, sweep.Decode, agg, monitor, ingest.Config{
		PollTimeout: cfg.Channel.PollTimeout,
		Metrics:     reg.Ingest,
	})

	handler := handlers.NewSpectrumHandler(agg, monitor, reg.Ingest, cfg.Channel.Endpoint, cfg.Spectrum.RateWindow)
	router, _ := api.NewRouter(api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        reg.Handler(),
	}, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(gctx)
	})

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Starting Sweepwatch API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if checkpointer != nil {
		g.Go(func() error {
			return checkpointer.Run(gctx)
		})
	}

	return g.Wait()
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (repository.SpectrumRepository, error) {
	var repo repository.SpectrumRepository
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		repo = sqlite.NewSQLiteSpectrumRepository(db)
	default:
		db, err := postgres.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		repo = postgres.NewPostgresSpectrumRepository(db)
	}

	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	log.Info().Str("driver", cfg.Driver).Msg("Checkpoint database ready")
	return repo, nil
}

func openExporter(ctx context.Context, cfg *config.Config) (storage.SnapshotExporter, error) {
	codec, err := storage.ParseCodec(cfg.Export.Format, cfg.Export.Compression)
	if err != nil {
		return nil, err
	}
	exporter, err := storage.NewS3Exporter(ctx, storage.S3Config{
		Bucket:    cfg.AWS.S3Bucket,
		Endpoint:  cfg.AWS.S3Endpoint,
		Region:    cfg.AWS.Region,
		AccessKey: cfg.AWS.AccessKeyID,
		SecretKey: cfg.AWS.SecretAccessKey,
		Codec:     codec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot exporter: %w", err)
	}
	log.Info().Str("bucket", cfg.AWS.S3Bucket).Str("format", string(codec.Format)).Msg("Snapshot export enabled")
	return exporter, nil
}
