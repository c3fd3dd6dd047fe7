// Package timeline assembles normalized frames into one continuous,
// duration-stamped sequence and attaches the fitted soundtrack.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/maauso/slideshow-api/internal/audio"
	"github.com/maauso/slideshow-api/internal/media"
	"github.com/maauso/slideshow-api/internal/transition"
)

var (
	// ErrAudioAttached is returned when SyncAudio is called twice on one timeline.
	ErrAudioAttached = errors.New("audio already attached")
	// ErrNoAudio is returned when SyncAudio is given a nil track.
	ErrNoAudio = errors.New("no audio track")
)

// Timeline is the ordered, transition-composited frame sequence.
type Timeline struct {
	composite transition.Composite
	spec      transition.Spec
	fps       int
	audio     *audio.Track
}

// Assemble folds frames left to right with spec and fixes the output rate.
func Assemble(frames []media.Frame, spec transition.Spec, fps int) (*Timeline, error) {
	if len(frames) == 0 {
		return nil, media.ErrEmptyInput
	}
	if fps <= 0 {
		return nil, fmt.Errorf("%w: fps must be positive, got %d", media.ErrConfiguration, fps)
	}
	if _, err := transition.NewSpec(spec.Kind, spec.Duration); err != nil {
		return nil, err
	}

	c, err := transition.Single(frames[0])
	if err != nil {
		return nil, fmt.Errorf("frame 0: %w", err)
	}
	for i, f := range frames[1:] {
		c, err = transition.Apply(c, f, spec)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}
	}

	tl := &Timeline{composite: c, spec: spec, fps: fps}
	if tl.FrameCount() == 0 {
		return nil, fmt.Errorf("%w: %s at %d fps renders no frames", media.ErrConfiguration, tl.Duration(), fps)
	}
	return tl, nil
}

// Duration is the total playback length.
func (tl *Timeline) Duration() time.Duration { return tl.composite.Duration }

// FPS returns the output frame rate.
func (tl *Timeline) FPS() int { return tl.fps }

// Canvas returns the frame size shared by every frame.
func (tl *Timeline) Canvas() media.Canvas { return tl.composite.Canvas }

// Spec returns the transition used between frames.
func (tl *Timeline) Spec() transition.Spec { return tl.spec }

// Len returns the number of source frames.
func (tl *Timeline) Len() int { return len(tl.composite.Layers) }

// Clamped returns the indexes of frames whose entry transition was shortened.
func (tl *Timeline) Clamped() []int { return tl.composite.Clamped() }

// FrameCount is the number of output video frames, round(duration * fps).
func (tl *Timeline) FrameCount() int {
	return int(math.Round(tl.Duration().Seconds() * float64(tl.fps)))
}

// FrameTime is the presentation time of output frame i.
func (tl *Timeline) FrameTime(i int) time.Duration {
	return time.Duration(i) * time.Second / time.Duration(tl.fps)
}

// RenderFrame draws output frame i into dst.
func (tl *Timeline) RenderFrame(i int, dst *image.RGBA) {
	tl.composite.RenderAt(tl.FrameTime(i), dst)
}

// Render draws every output frame in order into one reused buffer and
// hands it to fn. fn must not retain the buffer.
func (tl *Timeline) Render(ctx context.Context, fn func(i int, frame *image.RGBA) error) error {
	dst := image.NewRGBA(tl.Canvas().Bounds())
	n := tl.FrameCount()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tl.RenderFrame(i, dst)
		if err := fn(i, dst); err != nil {
			return err
		}
	}
	return nil
}

// Audio returns the attached track, or nil.
func (tl *Timeline) Audio() *audio.Track { return tl.audio }

// SyncAudio fits track to the timeline duration and attaches it. The caller
// must not use track afterwards. A timeline accepts audio once.
func SyncAudio(tl *Timeline, track *audio.Track) (*Timeline, error) {
	if track == nil {
		return nil, ErrNoAudio
	}
	if tl.audio != nil {
		return nil, ErrAudioAttached
	}
	if track.Duration() == tl.Duration() {
		tl.audio = track
	} else {
		tl.audio = track.Fit(tl.Duration())
	}
	return tl, nil
}
