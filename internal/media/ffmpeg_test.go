package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
}

func TestNewFFmpeg(t *testing.T) {
	t.Run("default paths", func(t *testing.T) {
		p := NewFFmpeg("", "")
		if p.ffmpegPath != "ffmpeg" {
			t.Errorf("expected default path 'ffmpeg', got %q", p.ffmpegPath)
		}
		if p.ffprobePath != "ffprobe" {
			t.Errorf("expected default path 'ffprobe', got %q", p.ffprobePath)
		}
	})

	t.Run("custom paths", func(t *testing.T) {
		p := NewFFmpeg("/usr/local/bin/ffmpeg", "/usr/local/bin/ffprobe")
		if p.Path() != "/usr/local/bin/ffmpeg" {
			t.Errorf("expected custom path, got %q", p.Path())
		}
		if p.ffprobePath != "/usr/local/bin/ffprobe" {
			t.Errorf("expected custom probe path, got %q", p.ffprobePath)
		}
	})
}

func TestFFmpeg_Run(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	p := NewFFmpeg("", "")

	t.Run("generates a tone", func(t *testing.T) {
		out := filepath.Join(tmpDir, "tone.wav")
		err := p.Run(context.Background(), []string{
			"-y", "-f", "lavfi", "-i", "sine=frequency=440:duration=1", out,
		})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		d, err := p.MediaDuration(context.Background(), out)
		if err != nil {
			t.Fatalf("MediaDuration failed: %v", err)
		}
		if d < 900*time.Millisecond || d > 1100*time.Millisecond {
			t.Errorf("expected ~1s, got %s", d)
		}
	})

	t.Run("non-existent input", func(t *testing.T) {
		err := p.Run(context.Background(), []string{"-i", "/nonexistent/input.wav", filepath.Join(tmpDir, "x.wav")})
		var ffErr *FFmpegError
		if !errors.As(err, &ffErr) {
			t.Fatalf("expected FFmpegError, got %T", err)
		}
		if ffErr.Stderr == "" {
			t.Error("expected stderr to be captured")
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := p.Run(ctx, []string{"-y", "-f", "lavfi", "-i", "sine=duration=1", filepath.Join(tmpDir, "c.wav")})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("no arguments", func(t *testing.T) {
		if err := p.Run(context.Background(), nil); !errors.Is(err, ErrNoArgs) {
			t.Errorf("expected ErrNoArgs, got %v", err)
		}
	})
}

func TestFFmpeg_Pipe(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	p := NewFFmpeg("", "")

	t.Run("encodes raw frames from stdin", func(t *testing.T) {
		out := filepath.Join(tmpDir, "raw.mp4")
		args := []string{
			"-y",
			"-f", "rawvideo",
			"-pixel_format", "rgba",
			"-video_size", "16x16",
			"-framerate", "10",
			"-i", "pipe:0",
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			out,
		}
		frame := bytes.Repeat([]byte{255, 0, 0, 255}, 16*16)
		err := p.Pipe(context.Background(), args, func(w io.Writer) error {
			for i := 0; i < 10; i++ {
				if _, err := w.Write(frame); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Pipe failed: %v", err)
		}
		if info, err := os.Stat(out); err != nil || info.Size() == 0 {
			t.Fatalf("expected non-empty output, err=%v", err)
		}
	})

	t.Run("ffmpeg failure wins over write error", func(t *testing.T) {
		args := []string{"-f", "rawvideo", "-i", "pipe:0", "-f", "nonexistent_muxer", "-"}
		err := p.Pipe(context.Background(), args, func(w io.Writer) error {
			_, err := w.Write(make([]byte, 1<<20))
			return err
		})
		var ffErr *FFmpegError
		if !errors.As(err, &ffErr) {
			t.Fatalf("expected FFmpegError, got %T: %v", err, err)
		}
	})
}

func TestFFmpegError(t *testing.T) {
	err := &FFmpegError{
		Args:   []string{"-i", "input.mp4", "-c", "copy", "output.mp4"},
		Stderr: "Error opening input file",
		Err:    fmt.Errorf("exit status 1"),
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "exit status 1") {
		t.Error("Error() should contain underlying error")
	}
	if !strings.Contains(errStr, "Error opening input file") {
		t.Error("Error() should contain stderr")
	}

	unwrapped := err.Unwrap()
	if unwrapped == nil || unwrapped.Error() != "exit status 1" {
		t.Errorf("Unwrap() returned wrong error: %v", unwrapped)
	}
}

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"11.000000\n", 11 * time.Second, false},
		{"0.500000", 500 * time.Millisecond, false},
		{"N/A", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseProbeDuration(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
