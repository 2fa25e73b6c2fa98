// Package bootstrap provides dependency initialization for the Foley API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/foleylab/foley-api/internal/config"
	"github.com/foleylab/foley-api/internal/generation"
	"github.com/foleylab/foley-api/internal/lifecycle"
	"github.com/foleylab/foley-api/internal/mediastore"
	"github.com/foleylab/foley-api/internal/prediction"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Coordinator *lifecycle.Coordinator
	Records     generation.Store
	Media       mediastore.Store
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize media storage
	media, err := initMediaStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize prediction client
	clientOpts := []prediction.ClientOption{prediction.WithAPIKey(cfg.PredictionAPIKey)}
	if cfg.PredictionBaseURL != "" {
		clientOpts = append(clientOpts, prediction.WithBaseURL(cfg.PredictionBaseURL))
	}
	predictions, err := prediction.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create prediction client: %w", err)
	}

	// Initialize generation record store
	records := generation.NewMemoryStore()

	// Initialize the job lifecycle coordinator
	coordinator := lifecycle.NewCoordinator(
		media,
		predictions,
		records,
		logger,
		lifecycle.WithPollInterval(cfg.PollInterval),
		lifecycle.WithMaxPollAttempts(cfg.MaxPollAttempts),
		lifecycle.WithDefaultPrompt(cfg.DefaultPrompt),
		lifecycle.WithOutputMediaKind(mediastore.Kind(cfg.OutputMediaKind)),
	)

	return &Dependencies{
		Coordinator: coordinator,
		Records:     records,
		Media:       media,
	}, nil
}

// initMediaStore creates the appropriate media storage backend based on configuration.
func initMediaStore(cfg *config.Config, logger *slog.Logger) (mediastore.Store, error) {
	buckets := mediastore.Buckets{
		Videos: cfg.VideoBucket,
		Audio:  cfg.AudioBucket,
	}

	if cfg.S3Enabled() {
		s3Store, err := mediastore.NewS3Store(mediastore.S3Config{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			Buckets:         buckets,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 media store: %w", err)
		}
		logger.Info("S3 media storage configured",
			slog.String("region", cfg.S3Region),
			slog.String("video_bucket", cfg.VideoBucket),
			slog.String("audio_bucket", cfg.AudioBucket),
		)
		return s3Store, nil
	}

	publicBase := cfg.PublicBaseURL
	if publicBase == "" {
		publicBase = fmt.Sprintf("http://localhost:%d/media", cfg.Port)
	}
	localStore, err := mediastore.NewLocalStore(cfg.MediaDir, publicBase, buckets)
	if err != nil {
		return nil, fmt.Errorf("create local media store: %w", err)
	}
	logger.Info("local media storage configured",
		slog.String("media_dir", cfg.MediaDir),
		slog.String("public_base", publicBase),
	)
	return localStore, nil
}
