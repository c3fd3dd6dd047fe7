package timeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	goaudio "github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/slideshow-api/internal/audio"
	"github.com/maauso/slideshow-api/internal/media"
	"github.com/maauso/slideshow-api/internal/transition"
)

func frames(n int, d time.Duration) []media.Frame {
	out := make([]media.Frame, n)
	for i := range out {
		c := color.NRGBA{R: uint8(50 * i), G: 100, B: 200, A: 255}
		out[i] = media.Frame{Image: imaging.New(9, 16, c), Duration: d}
	}
	return out
}

func toneTrack(t *testing.T, d time.Duration) *audio.Track {
	t.Helper()
	const rate = 8000
	n := audio.DurationToFrames(d, rate)
	data := make([]int, n)
	for i := range data {
		data[i] = i % 1000
	}
	tr, err := audio.NewTrack(&goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:   data,
	}, 16)
	require.NoError(t, err)
	return tr
}

func TestAssemble_ThreeFramesFade(t *testing.T) {
	spec := transition.Spec{Kind: transition.Fade, Duration: 500 * time.Millisecond}

	tl, err := Assemble(frames(3, 4*time.Second), spec, 30)
	require.NoError(t, err)

	assert.Equal(t, 11*time.Second, tl.Duration())
	assert.Equal(t, 330, tl.FrameCount())
	assert.Equal(t, 3, tl.Len())
	assert.Equal(t, media.Canvas{Width: 9, Height: 16}, tl.Canvas())
	assert.Empty(t, tl.Clamped())
}

func TestAssemble_DurationFormula(t *testing.T) {
	tests := []struct {
		n    int
		d, t time.Duration
	}{
		{1, 4 * time.Second, 500 * time.Millisecond},
		{2, 4 * time.Second, 500 * time.Millisecond},
		{5, 3 * time.Second, time.Second},
		{10, 2 * time.Second, 2 * time.Second},
		{4, time.Second, 0},
	}

	for _, tt := range tests {
		for _, kind := range transition.Kinds() {
			spec := transition.Spec{Kind: kind, Duration: tt.t}
			tl, err := Assemble(frames(tt.n, tt.d), spec, 25)
			require.NoError(t, err)

			want := time.Duration(tt.n)*tt.d - time.Duration(tt.n-1)*tt.t
			assert.Equal(t, want, tl.Duration(), "n=%d d=%s t=%s kind=%s", tt.n, tt.d, tt.t, kind)
		}
	}
}

func TestAssemble_ClampedStaysPositive(t *testing.T) {
	spec := transition.Spec{Kind: transition.SlideDown, Duration: 3 * time.Second}

	tl, err := Assemble(frames(3, time.Second), spec, 30)
	require.NoError(t, err)

	assert.Equal(t, time.Second, tl.Duration())
	assert.Equal(t, []int{1, 2}, tl.Clamped())
	assert.Positive(t, tl.FrameCount())
}

func TestAssemble_Errors(t *testing.T) {
	fade := transition.Spec{Kind: transition.Fade, Duration: time.Second}

	_, err := Assemble(nil, fade, 30)
	assert.ErrorIs(t, err, media.ErrEmptyInput)

	_, err = Assemble(frames(2, time.Second), fade, 0)
	assert.ErrorIs(t, err, media.ErrConfiguration)

	_, err = Assemble(frames(2, time.Second), transition.Spec{Kind: 42}, 30)
	assert.ErrorIs(t, err, media.ErrConfiguration)

	_, err = Assemble(frames(2, 0), fade, 30)
	assert.ErrorIs(t, err, media.ErrConfiguration)

	_, err = Assemble(frames(3, 10*time.Millisecond), transition.Spec{Kind: transition.Fade, Duration: 500 * time.Millisecond}, 30)
	assert.ErrorIs(t, err, media.ErrConfiguration)

	mixed := frames(2, time.Second)
	mixed[1].Image = imaging.New(16, 9, color.White)
	_, err = Assemble(mixed, fade, 30)
	assert.ErrorIs(t, err, media.ErrConfiguration)
}

func TestTimeline_FrameTime(t *testing.T) {
	tl, err := Assemble(frames(1, time.Second), transition.Spec{Kind: transition.Fade}, 30)
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), tl.FrameTime(0))
	assert.Equal(t, time.Second, tl.FrameTime(30))
	assert.Equal(t, 500*time.Millisecond, tl.FrameTime(15))
}

func TestTimeline_Render(t *testing.T) {
	tl, err := Assemble(frames(2, time.Second), transition.Spec{Kind: transition.Fade, Duration: 200 * time.Millisecond}, 10)
	require.NoError(t, err)

	var seen int
	err = tl.Render(context.Background(), func(i int, f *image.RGBA) error {
		assert.Equal(t, seen, i)
		assert.Equal(t, tl.Canvas().Bounds(), f.Bounds())
		seen++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, tl.FrameCount(), seen)
	assert.Equal(t, 18, seen)
}

func TestTimeline_RenderStops(t *testing.T) {
	tl, err := Assemble(frames(2, time.Second), transition.Spec{Kind: transition.Fade}, 10)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tl.Render(context.Background(), func(i int, _ *image.RGBA) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = tl.Render(ctx, func(int, *image.RGBA) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSyncAudio(t *testing.T) {
	spec := transition.Spec{Kind: transition.Fade, Duration: 500 * time.Millisecond}

	t.Run("short audio loops to video length", func(t *testing.T) {
		tl, err := Assemble(frames(3, 4*time.Second), spec, 30)
		require.NoError(t, err)
		src := toneTrack(t, 3*time.Second)
		orig := append([]int(nil), src.Samples()...)

		tl, err = SyncAudio(tl, src)
		require.NoError(t, err)
		assert.Equal(t, 11*time.Second, tl.Audio().Duration())
		assert.Equal(t, orig, tl.Audio().Samples()[:len(orig)])
	})

	t.Run("long audio truncates", func(t *testing.T) {
		tl, err := Assemble(frames(3, 4*time.Second), spec, 30)
		require.NoError(t, err)
		src := toneTrack(t, 20*time.Second)
		orig := append([]int(nil), src.Samples()...)

		tl, err = SyncAudio(tl, src)
		require.NoError(t, err)
		got := tl.Audio().Samples()
		assert.Equal(t, 11*time.Second, tl.Audio().Duration())
		assert.Equal(t, orig[:len(got)], got)
	})

	t.Run("matching audio is unchanged", func(t *testing.T) {
		tl, err := Assemble(frames(3, 4*time.Second), spec, 30)
		require.NoError(t, err)
		src := toneTrack(t, 11*time.Second)

		tl, err = SyncAudio(tl, src)
		require.NoError(t, err)
		assert.Same(t, src, tl.Audio())
		assert.Equal(t, 11*time.Second, tl.Audio().Duration())
	})

	t.Run("second attach rejected", func(t *testing.T) {
		tl, err := Assemble(frames(1, time.Second), spec, 30)
		require.NoError(t, err)

		_, err = SyncAudio(tl, toneTrack(t, time.Second))
		require.NoError(t, err)
		_, err = SyncAudio(tl, toneTrack(t, time.Second))
		assert.ErrorIs(t, err, ErrAudioAttached)
	})

	t.Run("nil track", func(t *testing.T) {
		tl, err := Assemble(frames(1, time.Second), spec, 30)
		require.NoError(t, err)
		_, err = SyncAudio(tl, nil)
		assert.ErrorIs(t, err, ErrNoAudio)
		assert.Nil(t, tl.Audio())
	})
}
