// Package bootstrap provides dependency initialization for the video compression API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/videocompress-api/internal/compress"
	"github.com/maauso/videocompress-api/internal/config"
	"github.com/maauso/videocompress-api/internal/media"
	"github.com/maauso/videocompress-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	CompressService *compress.Service
	Storage         storage.Storage
	Encoder         *media.FFmpegEncoder
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize encoder with the fixed compression profile
	encoder, err := media.NewFFmpegEncoder(cfg.FFmpegPath, media.DefaultProfile())
	if err != nil {
		return nil, fmt.Errorf("create ffmpeg encoder: %w", err)
	}

	profile := encoder.Profile()
	logger.Info("encoder configured",
		slog.String("ffmpeg_path", cfg.FFmpegPath),
		slog.String("codec", profile.VideoCodec),
		slog.Int("crf", profile.CRF),
		slog.String("preset", profile.Preset),
	)

	svc := compress.NewService(
		store,
		encoder,
		logger,
		compress.WithEncodeTimeout(cfg.RequestTimeout),
		compress.WithArchive(cfg.S3Enabled()),
	)

	return &Dependencies{
		CompressService: svc,
		Storage:         store,
		Encoder:         encoder,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 archival configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("prefix", cfg.S3Prefix),
			slog.String("temp_dir", s3Store.TempDir()),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil
}
