// Package audio loads the soundtrack and fits it to the video length.
package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the RIFF format tag for integer PCM.
const wavFormatPCM = 1

var (
	// ErrInvalidWAV is returned when the input is not a RIFF/WAVE PCM file.
	ErrInvalidWAV = errors.New("not a valid wav file")
	// ErrNoFormat is returned for buffers without channel count or sample rate.
	ErrNoFormat = errors.New("audio buffer has no format")
)

// Track is decoded, interleaved PCM audio.
type Track struct {
	buf      *goaudio.IntBuffer
	bitDepth int
}

// NewTrack wraps an IntBuffer. The buffer is owned by the track afterwards.
func NewTrack(buf *goaudio.IntBuffer, bitDepth int) (*Track, error) {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, ErrNoFormat
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	// Drop a trailing partial frame so every index is frame-aligned.
	ch := buf.Format.NumChannels
	buf.Data = buf.Data[:len(buf.Data)/ch*ch]
	buf.SourceBitDepth = bitDepth
	return &Track{buf: buf, bitDepth: bitDepth}, nil
}

// DecodeWAV reads a whole PCM wav stream into memory.
func DecodeWAV(r io.ReadSeeker) (*Track, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	return NewTrack(buf, int(dec.BitDepth))
}

// LoadWAV decodes the wav file at path.
func LoadWAV(path string) (*Track, error) {
	f, err := os.Open(path) // #nosec G304 - path is inside the run workspace
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// SampleRate returns samples per second per channel.
func (t *Track) SampleRate() int { return t.buf.Format.SampleRate }

// Channels returns the number of interleaved channels.
func (t *Track) Channels() int { return t.buf.Format.NumChannels }

// BitDepth returns the PCM sample size in bits.
func (t *Track) BitDepth() int { return t.bitDepth }

// Frames returns the number of sample frames (one sample per channel).
func (t *Track) Frames() int {
	return len(t.buf.Data) / t.Channels()
}

// Samples returns the interleaved samples. Callers must not modify them.
func (t *Track) Samples() []int {
	return t.buf.Data
}

// Duration is the playback length of the track.
func (t *Track) Duration() time.Duration {
	return FramesToDuration(t.Frames(), t.SampleRate())
}

// Fit returns a new track lasting exactly d: the first d of a longer track,
// or the track repeated from its start and cut at d. A track already of
// length d is copied unchanged. An empty track yields silence.
func (t *Track) Fit(d time.Duration) *Track {
	ch := t.Channels()
	n := DurationToFrames(d, t.SampleRate()) * ch
	src := t.buf.Data

	out := make([]int, n)
	if len(src) > 0 {
		for i := 0; i < n; {
			i += copy(out[i:], src)
		}
	}

	return &Track{
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: ch, SampleRate: t.SampleRate()},
			Data:           out,
			SourceBitDepth: t.bitDepth,
		},
		bitDepth: t.bitDepth,
	}
}

// EncodeWAV writes the track as a PCM wav stream.
func (t *Track) EncodeWAV(w io.WriteSeeker) error {
	enc := wav.NewEncoder(w, t.SampleRate(), t.bitDepth, t.Channels(), wavFormatPCM)
	if err := enc.Write(t.buf); err != nil {
		return fmt.Errorf("write pcm: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// SaveWAV writes the track to path.
func (t *Track) SaveWAV(path string) error {
	f, err := os.Create(path) // #nosec G304 - path is inside the run workspace
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := t.EncodeWAV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DurationToFrames converts d to a whole number of sample frames.
func DurationToFrames(d time.Duration, rate int) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * float64(rate)))
}

// FramesToDuration converts a sample frame count to a duration.
func FramesToDuration(frames, rate int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(rate)
}
