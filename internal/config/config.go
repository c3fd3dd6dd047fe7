// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/slideshow-api/internal/media"
	"github.com/maauso/slideshow-api/internal/storage"
)

// ErrInvalidConfig is returned when a loaded value fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port         int   `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES, default=71303168" json:"max_body_bytes" validate:"min=1"`

	// Storage settings
	TempDir   string `env:"TEMP_DIR, default=/tmp/slideshow" json:"temp_dir" validate:"required"`
	OutputDir string `env:"OUTPUT_DIR, default=/tmp/slideshow-output" json:"output_dir" validate:"required"`

	// Tooling
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path" validate:"required"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path" validate:"required"`

	// Render settings
	CanvasWidth        int           `env:"CANVAS_WIDTH, default=1080" json:"canvas_width" validate:"min=2,max=4096,even"`
	CanvasHeight       int           `env:"CANVAS_HEIGHT, default=1920" json:"canvas_height" validate:"min=2,max=4096,even"`
	BlurRadius         float64       `env:"BLUR_RADIUS, default=20" json:"blur_radius" validate:"gte=0"`
	FrameDuration      time.Duration `env:"FRAME_DURATION, default=4s" json:"frame_duration" validate:"gt=0"`
	TransitionDuration time.Duration `env:"TRANSITION_DURATION, default=500ms" json:"transition_duration" validate:"gte=0"`
	FPS                int           `env:"FPS, default=30" json:"fps" validate:"min=1,max=120"`
	CoverText          string        `env:"COVER_TEXT, default=Моя обложка" json:"cover_text"`
	CaptionFontPath    string        `env:"CAPTION_FONT_PATH" json:"caption_font_path,omitempty"`
	CaptionFontSize    float64       `env:"CAPTION_FONT_SIZE, default=60" json:"caption_font_size" validate:"gt=0"`

	// Processing settings
	MaxConcurrentNormalize int           `env:"MAX_CONCURRENT_NORMALIZE, default=4" json:"max_concurrent_normalize" validate:"min=1"`
	MaxConcurrentEncodes   int           `env:"MAX_CONCURRENT_ENCODES, default=2" json:"max_concurrent_encodes" validate:"min=1"`
	JobTimeout             time.Duration `env:"JOB_TIMEOUT, default=10m" json:"job_timeout" validate:"gte=0"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty" validate:"required_with=S3Region"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty" validate:"required_with=S3Bucket"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=json text JSON TEXT"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level" validate:"oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// S3Config returns the storage settings for S3 uploads.
func (c *Config) S3Config() storage.S3Config {
	return storage.S3Config{
		Bucket:          c.S3Bucket,
		Region:          c.S3Region,
		Endpoint:        c.S3Endpoint,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
	}
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return load(envconfig.OsLookuper())
}

func load(lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its validate tag.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("even", validateEven); err != nil {
		return fmt.Errorf("config: register validators: %w", err)
	}

	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// validateEven rejects odd sizes, which yuv420p cannot encode.
func validateEven(fl validator.FieldLevel) bool {
	return fl.Field().Int()%2 == 0
}

// RenderConfig returns the pipeline settings derived from the environment.
func (c *Config) RenderConfig() media.RenderConfig {
	rc := media.DefaultRenderConfig()
	rc.Canvas = media.Canvas{Width: c.CanvasWidth, Height: c.CanvasHeight}
	rc.BlurRadius = c.BlurRadius
	rc.FrameDuration = c.FrameDuration
	rc.TransitionDuration = c.TransitionDuration
	rc.FPS = c.FPS
	rc.CoverText = c.CoverText
	rc.CaptionFontPath = c.CaptionFontPath
	rc.CaptionFontSize = c.CaptionFontSize
	// The caption sits 50px from the top-left corner of a 1080px wide canvas.
	margin := c.CanvasWidth * 50 / 1080
	rc.CaptionOrigin = image.Pt(margin, margin)
	return rc
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
		"Config{Port: %d, TempDir: %s, OutputDir: %s, Canvas: %dx%d, FrameDuration: %s, TransitionDuration: %s, FPS: %d, MaxConcurrentNormalize: %d, MaxConcurrentEncodes: %d, JobTimeout: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.OutputDir,
		c.CanvasWidth,
		c.CanvasHeight,
		c.FrameDuration,
		c.TransitionDuration,
		c.FPS,
		c.MaxConcurrentNormalize,
		c.MaxConcurrentEncodes,
		c.JobTimeout,
		c.S3Bucket,
		c.S3Region,
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
