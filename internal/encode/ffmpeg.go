package encode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/maauso/slideshow-api/internal/media"
	"github.com/maauso/slideshow-api/internal/metrics"
)

// ErrNoTimeline is returned for a request without a timeline.
var ErrNoTimeline = errors.New("request has no timeline")

// FFmpegEncoder pipes raw RGBA frames into ffmpeg and muxes H.264 + AAC.
type FFmpegEncoder struct {
	ffmpeg *media.FFmpeg
	preset string
	logger *slog.Logger
}

// NewFFmpegEncoder creates an encoder using the "fast" x264 preset.
func NewFFmpegEncoder(ffmpeg *media.FFmpeg, logger *slog.Logger) *FFmpegEncoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegEncoder{ffmpeg: ffmpeg, preset: "fast", logger: logger}
}

// Encode implements Encoder. A partially written output file is removed on failure.
func (e *FFmpegEncoder) Encode(ctx context.Context, req Request) (Result, error) {
	tl := req.Timeline
	if tl == nil {
		return Result{}, fmt.Errorf("%w: %w", media.ErrEncode, ErrNoTimeline)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("%w: create output directory: %w", media.ErrEncode, err)
	}

	start := time.Now()
	frames := 0
	err := e.ffmpeg.Pipe(ctx, e.Args(req), func(w io.Writer) error {
		bw := bufio.NewWriterSize(w, 1<<20)
		err := tl.Render(ctx, func(_ int, f *image.RGBA) error {
			if _, err := bw.Write(f.Pix); err != nil {
				return err
			}
			frames++
			metrics.FramesEncodedTotal.Inc()
			return nil
		})
		if err != nil {
			return err
		}
		return bw.Flush()
	})
	if err != nil {
		if rmErr := os.Remove(req.OutputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			e.logger.Warn("failed to remove partial output",
				slog.String("path", req.OutputPath),
				slog.String("error", rmErr.Error()),
			)
		}
		return Result{}, fmt.Errorf("%w: %w", media.ErrEncode, err)
	}

	e.logger.Info("encode completed",
		slog.String("output", req.OutputPath),
		slog.Int("frames", frames),
		slog.Duration("video_duration", tl.Duration()),
		slog.Duration("elapsed", time.Since(start)),
	)

	return Result{Path: req.OutputPath, Frames: frames, Duration: tl.Duration()}, nil
}

// Args builds the ffmpeg command line for req.
func (e *FFmpegEncoder) Args(req Request) []string {
	tl := req.Timeline
	fps := strconv.Itoa(tl.FPS())

	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", tl.Canvas().String(),
		"-framerate", fps,
		"-i", "pipe:0",
	}
	if req.AudioPath != "" {
		args = append(args, "-i", req.AudioPath)
	}

	args = append(args,
		"-map", "0:v:0",
		"-c:v", "libx264",
		"-preset", e.preset,
		"-pix_fmt", "yuv420p",
		"-r", fps,
	)
	if req.AudioPath != "" {
		args = append(args,
			"-map", "1:a:0",
			"-c:a", "aac",
			"-b:a", "192k",
			"-shortest",
		)
	}

	return append(args, "-movflags", "+faststart", req.OutputPath)
}

// Verify interface implementation at compile time.
var _ Encoder = (*FFmpegEncoder)(nil)
