package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Static errors for ffmpeg operations.
var (
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoArgs is returned when ffmpeg is invoked without arguments.
	ErrNoArgs = errors.New("ffmpeg called without arguments")
)

// FFmpeg runs the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpeg creates a new FFmpeg runner.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Path returns the configured ffmpeg binary.
func (p *FFmpeg) Path() string {
	return p.ffmpegPath
}

// Available reports whether the ffmpeg binary can be found.
func (p *FFmpeg) Available() error {
	if _, err := exec.LookPath(p.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	return nil
}

// Run executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpeg) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrNoArgs
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// Pipe starts ffmpeg, streams feed into its stdin and waits for it to exit.
// An ffmpeg failure takes precedence over the write error it usually causes.
func (p *FFmpeg) Pipe(ctx context.Context, args []string, feed func(w io.Writer) error) error {
	if len(args) == 0 {
		return ErrNoArgs
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}

	feedErr := feed(stdin)
	closeErr := stdin.Close()
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
	case waitErr != nil:
		return &FFmpegError{Args: args, Stderr: stderr.String(), Err: waitErr}
	case feedErr != nil:
		return fmt.Errorf("write ffmpeg input: %w", feedErr)
	case closeErr != nil:
		return fmt.Errorf("close ffmpeg input: %w", closeErr)
	}
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// MediaDuration returns the container duration of a media file using ffprobe.
func (p *FFmpeg) MediaDuration(ctx context.Context, path string) (time.Duration, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return parseProbeDuration(stdout.String())
}

// parseProbeDuration converts ffprobe's "12.345000" output to a Duration.
func parseProbeDuration(out string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
