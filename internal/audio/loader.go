package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maauso/slideshow-api/internal/media"
)

// Loader turns an uploaded audio file into a decoded Track.
type Loader interface {
	// Load decodes the file at path. Unreadable input is reported as a
	// *media.DecodeError so the caller can continue without audio.
	Load(ctx context.Context, path string) (*Track, error)
}

// FFmpegLoader decodes wav directly and converts everything else (mp3) to
// 16-bit PCM wav with ffmpeg first.
type FFmpegLoader struct {
	ffmpeg     *media.FFmpeg
	sampleRate int
	channels   int
	logger     *slog.Logger
}

// NewFFmpegLoader creates a loader that resamples converted audio to
// 44.1kHz stereo.
func NewFFmpegLoader(ffmpeg *media.FFmpeg, logger *slog.Logger) *FFmpegLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegLoader{
		ffmpeg:     ffmpeg,
		sampleRate: 44100,
		channels:   2,
		logger:     logger,
	}
}

// Load implements Loader.
func (l *FFmpegLoader) Load(ctx context.Context, path string) (*Track, error) {
	name := filepath.Base(path)
	if _, err := os.Stat(path); err != nil {
		return nil, &media.DecodeError{Source: name, Err: err}
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		track, err := LoadWAV(path)
		if err == nil {
			return track, nil
		}
		// Compressed or float wav variants are left to ffmpeg.
		l.logger.Debug("direct wav decode failed, converting",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
	}

	converted := strings.TrimSuffix(path, filepath.Ext(path)) + ".pcm.wav"
	if err := l.ffmpeg.Run(ctx, l.convertArgs(path, converted)); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &media.DecodeError{Source: name, Err: err}
	}
	defer os.Remove(converted)

	track, err := LoadWAV(converted)
	if err != nil {
		return nil, &media.DecodeError{Source: name, Err: err}
	}
	return track, nil
}

func (l *FFmpegLoader) convertArgs(in, out string) []string {
	return []string{
		"-y",
		"-i", in,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(l.sampleRate),
		"-ac", strconv.Itoa(l.channels),
		out,
	}
}

// Verify interface implementation at compile time.
var _ Loader = (*FFmpegLoader)(nil)

// String describes the loader output format.
func (l *FFmpegLoader) String() string {
	return fmt.Sprintf("pcm_s16le %dHz %dch", l.sampleRate, l.channels)
}
