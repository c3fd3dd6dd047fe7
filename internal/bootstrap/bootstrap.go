// Package bootstrap wires the render pipeline from configuration. It is
// shared by the HTTP server and the command-line tool.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/maauso/slideshow-api/internal/audio"
	"github.com/maauso/slideshow-api/internal/config"
	"github.com/maauso/slideshow-api/internal/encode"
	"github.com/maauso/slideshow-api/internal/job"
	"github.com/maauso/slideshow-api/internal/media"
	"github.com/maauso/slideshow-api/internal/storage"
)

// Dependencies holds all initialized dependencies of the application.
type Dependencies struct {
	RenderService *job.RenderService
	Repository    job.Repository
	FFmpeg        *media.FFmpeg
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	renderCfg := cfg.RenderConfig()
	if err := renderCfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	// ffmpeg is needed for mp3 input and for every encode; a missing binary
	// only fails the jobs that reach it.
	ff := media.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)
	if err := ff.Available(); err != nil {
		logger.Warn("ffmpeg not available, renders will fail at the encode stage",
			slog.String("ffmpeg_path", cfg.FFmpegPath),
			slog.String("error", err.Error()),
		)
	}

	cover := media.NewCoverSynthesizer(renderCfg)
	loader := audio.NewFFmpegLoader(ff, logger)
	encoder := encode.NewPool(encode.NewFFmpegEncoder(ff, logger), cfg.MaxConcurrentEncodes)

	// Initialize job repository
	repo := job.NewMemoryRepository()

	svc := job.NewRenderService(
		repo,
		store,
		cover,
		loader,
		encoder,
		renderCfg,
		logger,
		job.WithNormalizeWorkers(cfg.MaxConcurrentNormalize),
		job.WithOutputDir(cfg.OutputDir),
		job.WithJobTimeout(cfg.JobTimeout),
	)

	return &Dependencies{
		RenderService: svc,
		Repository:    repo,
		FFmpeg:        ff,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(cfg.TempDir, cfg.S3Config())
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
