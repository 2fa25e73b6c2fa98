// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrPredictionAPIKeyRequired is returned when PREDICTION_API_KEY is not set.
	ErrPredictionAPIKeyRequired = errors.New("config: PREDICTION_API_KEY is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Inference API settings
	PredictionAPIKey  string `env:"PREDICTION_API_KEY, required" json:"-"` // Masked in JSON
	PredictionBaseURL string `env:"PREDICTION_BASE_URL" json:"prediction_base_url,omitempty"`

	// Job lifecycle settings
	PollInterval    time.Duration `env:"POLL_INTERVAL, default=1500ms" json:"poll_interval"`
	MaxPollAttempts int           `env:"MAX_POLL_ATTEMPTS, default=180" json:"max_poll_attempts"`
	DefaultPrompt   string        `env:"DEFAULT_PROMPT, default=ambient sound matching the video content" json:"default_prompt"`
	// OutputMediaKind routes generated outputs to a bucket: "audio" for bare
	// sound tracks, "video" for deployments that store processed video.
	OutputMediaKind string `env:"OUTPUT_MEDIA_KIND, default=audio" json:"output_media_kind"`

	// Media storage settings
	VideoBucket string `env:"VIDEO_BUCKET, default=videos" json:"video_bucket"`
	AudioBucket string `env:"AUDIO_BUCKET, default=audio-files" json:"audio_bucket"`
	MediaDir    string `env:"MEDIA_DIR, default=/tmp/foley-media" json:"media_dir"`

	// Optional S3 settings; local disk storage is used when unset
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3PublicBaseURL    string `env:"S3_PUBLIC_BASE_URL" json:"s3_public_base_url,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Public base URL of this service, used for locally served media URLs
	PublicBaseURL string `env:"PUBLIC_BASE_URL" json:"public_base_url,omitempty"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Region != "" || c.S3Endpoint != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		if strings.Contains(err.Error(), "PREDICTION_API_KEY") {
			return nil, ErrPredictionAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.PredictionAPIKey == "" {
		return ErrPredictionAPIKeyRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, PollInterval: %s, MaxPollAttempts: %d, OutputMediaKind: %s, VideoBucket: %s, AudioBucket: %s, S3Enabled: %t, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.PollInterval,
		c.MaxPollAttempts,
		c.OutputMediaKind,
		c.VideoBucket,
		c.AudioBucket,
		c.S3Enabled(),
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
