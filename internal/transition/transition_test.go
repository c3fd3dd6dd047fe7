package transition

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/slideshow-api/internal/media"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func frameOf(c color.NRGBA, w, h int, d time.Duration) media.Frame {
	return media.Frame{Image: imaging.New(w, h, c), Duration: d}
}

func newDst(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"1", Fade, false},
		{"2", SlideRight, false},
		{"3", SlideDown, false},
		{"fade", Fade, false},
		{"Slide-Right", SlideRight, false},
		{"slide_down", SlideDown, false},
		{"0", 0, true},
		{"4", 0, true},
		{"wipe", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, media.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSpec(t *testing.T) {
	s, err := NewSpec(SlideDown, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Spec{Kind: SlideDown, Duration: 500 * time.Millisecond}, s)

	_, err = NewSpec(Kind(9), time.Second)
	assert.ErrorIs(t, err, media.ErrConfiguration)

	_, err = NewSpec(Fade, -time.Second)
	assert.ErrorIs(t, err, media.ErrConfiguration)
}

func TestFor(t *testing.T) {
	for _, k := range Kinds() {
		tr, err := For(k)
		require.NoError(t, err)
		assert.Equal(t, k, tr.Kind())
	}

	_, err := For(0)
	assert.ErrorIs(t, err, media.ErrConfiguration)
}

func TestOffset(t *testing.T) {
	tests := []struct {
		progress float64
		want     int
	}{
		{-0.5, -1080},
		{0, -1080},
		{0.25, -810},
		{0.5, -540},
		{0.999, -2},
		{1, 0},
		{1.5, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Offset(tt.progress, 1080), "progress %v", tt.progress)
	}
}

func TestAlpha(t *testing.T) {
	assert.Equal(t, uint8(0), Alpha(0))
	assert.Equal(t, uint8(128), Alpha(0.5))
	assert.Equal(t, uint8(255), Alpha(1))
	assert.Equal(t, uint8(255), Alpha(2))
}

func TestFade_Draw(t *testing.T) {
	src := imaging.New(4, 4, blue)

	tests := []struct {
		name     string
		progress float64
		wantR    uint8
		wantB    uint8
	}{
		{"start shows below", 0, 255, 0},
		{"halfway mixes", 0.5, 127, 128},
		{"end shows entering", 1, 0, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := newDst(4, 4)
			for i := 0; i < len(dst.Pix); i += 4 {
				dst.Pix[i], dst.Pix[i+3] = 255, 255
			}
			fade{}.Draw(dst, src, tt.progress)

			p := dst.RGBAAt(2, 2)
			assert.InDelta(t, tt.wantR, p.R, 1)
			assert.InDelta(t, tt.wantB, p.B, 1)
			assert.Equal(t, uint8(255), p.A)
		})
	}
}

func TestSlide_Draw(t *testing.T) {
	const w, h = 8, 4
	src := imaging.New(w, h, blue)

	t.Run("right halfway covers left half", func(t *testing.T) {
		dst := newDst(w, h)
		slideRight{}.Draw(dst, src, 0.5)
		assert.Equal(t, uint8(255), dst.RGBAAt(0, 0).B)
		assert.Equal(t, uint8(255), dst.RGBAAt(3, 3).B)
		assert.Equal(t, uint8(0), dst.RGBAAt(4, 0).B)
	})

	t.Run("down halfway covers top half", func(t *testing.T) {
		dst := newDst(w, h)
		slideDown{}.Draw(dst, src, 0.5)
		assert.Equal(t, uint8(255), dst.RGBAAt(7, 1).B)
		assert.Equal(t, uint8(0), dst.RGBAAt(0, 2).B)
	})

	t.Run("start draws nothing", func(t *testing.T) {
		dst := newDst(w, h)
		slideRight{}.Draw(dst, src, 0)
		for _, v := range dst.Pix {
			assert.Zero(t, v)
		}
	})
}

func TestApply_Durations(t *testing.T) {
	const w, h = 6, 10
	spec := Spec{Kind: Fade, Duration: 500 * time.Millisecond}

	c, err := Single(frameOf(red, w, h, 4*time.Second))
	require.NoError(t, err)

	c, err = Apply(c, frameOf(blue, w, h, 4*time.Second), spec)
	require.NoError(t, err)
	assert.Equal(t, 7500*time.Millisecond, c.Duration)
	assert.Equal(t, 3500*time.Millisecond, c.Layers[1].Start)
	assert.Equal(t, 500*time.Millisecond, c.Layers[1].Window)

	c, err = Apply(c, frameOf(red, w, h, 4*time.Second), spec)
	require.NoError(t, err)
	assert.Equal(t, 11*time.Second, c.Duration)
	assert.Empty(t, c.Clamped())
}

func TestApply_ClampsShortFrames(t *testing.T) {
	spec := Spec{Kind: SlideRight, Duration: 2 * time.Second}

	c, err := Single(frameOf(red, 4, 4, 4*time.Second))
	require.NoError(t, err)
	c, err = Apply(c, frameOf(blue, 4, 4, 500*time.Millisecond), spec)
	require.NoError(t, err)

	assert.Equal(t, 4*time.Second, c.Duration, "overlap clamped to the shorter frame")
	assert.Equal(t, []int{1}, c.Clamped())
	assert.Equal(t, 500*time.Millisecond, c.Layers[1].Window)
	assert.Positive(t, c.Duration)
}

func TestApply_Errors(t *testing.T) {
	base, err := Single(frameOf(red, 4, 4, time.Second))
	require.NoError(t, err)

	tests := []struct {
		name string
		next media.Frame
		spec Spec
	}{
		{"unknown kind", frameOf(blue, 4, 4, time.Second), Spec{Kind: 7, Duration: time.Second}},
		{"negative duration", frameOf(blue, 4, 4, time.Second), Spec{Kind: Fade, Duration: -1}},
		{"canvas mismatch", frameOf(blue, 5, 4, time.Second), Spec{Kind: Fade}},
		{"zero frame duration", frameOf(blue, 4, 4, 0), Spec{Kind: Fade}},
		{"nil image", media.Frame{Duration: time.Second}, Spec{Kind: Fade}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(base, tt.next, tt.spec)
			assert.ErrorIs(t, err, media.ErrConfiguration)
		})
	}
}

func TestApply_DoesNotAliasPrev(t *testing.T) {
	spec := Spec{Kind: Fade, Duration: 100 * time.Millisecond}
	base, err := Single(frameOf(red, 2, 2, time.Second))
	require.NoError(t, err)

	a, err := Apply(base, frameOf(blue, 2, 2, time.Second), spec)
	require.NoError(t, err)
	b, err := Apply(base, frameOf(red, 2, 2, 2*time.Second), spec)
	require.NoError(t, err)

	assert.Len(t, base.Layers, 1)
	assert.Equal(t, time.Second, a.Layers[1].Frame.Duration)
	assert.Equal(t, 2*time.Second, b.Layers[1].Frame.Duration)
}

func TestComposite_RenderAtSlideRight(t *testing.T) {
	const w, h = 1080, 8
	spec := Spec{Kind: SlideRight, Duration: 500 * time.Millisecond}

	c, err := Single(frameOf(red, w, h, 4*time.Second))
	require.NoError(t, err)
	c, err = Apply(c, frameOf(blue, w, h, 4*time.Second), spec)
	require.NoError(t, err)

	start := c.Layers[1].Start
	dst := newDst(w, h)

	// Window start: incoming frame fully off-canvas at x = -1080.
	assert.Equal(t, -1080, Offset(c.Layers[1].progress(start), w))
	c.RenderAt(start, dst)
	assert.Equal(t, uint8(255), dst.RGBAAt(0, 0).R)
	assert.Equal(t, uint8(255), dst.RGBAAt(w-1, 0).R)

	// Halfway: left half is the incoming frame.
	c.RenderAt(start+250*time.Millisecond, dst)
	assert.Equal(t, uint8(255), dst.RGBAAt(0, 0).B)
	assert.Equal(t, uint8(255), dst.RGBAAt(w/2+1, 0).R)

	// Window end: settled at x = 0.
	end := start + spec.Duration
	assert.Equal(t, 0, Offset(c.Layers[1].progress(end), w))
	c.RenderAt(end, dst)
	assert.Equal(t, uint8(255), dst.RGBAAt(0, 0).B)
	assert.Equal(t, uint8(255), dst.RGBAAt(w-1, 0).B)
}

func TestComposite_RenderAtFade(t *testing.T) {
	spec := Spec{Kind: Fade, Duration: time.Second}
	c, err := Single(frameOf(red, 2, 2, 4*time.Second))
	require.NoError(t, err)
	c, err = Apply(c, frameOf(blue, 2, 2, 4*time.Second), spec)
	require.NoError(t, err)

	dst := newDst(2, 2)

	c.RenderAt(time.Second, dst)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, dst.RGBAAt(0, 0))

	c.RenderAt(3500*time.Millisecond, dst)
	p := dst.RGBAAt(0, 0)
	assert.InDelta(t, 127, p.R, 1)
	assert.InDelta(t, 128, p.B, 1)

	c.RenderAt(5*time.Second, dst)
	assert.Equal(t, color.RGBA{B: 255, A: 255}, dst.RGBAAt(0, 0))

	// Past the end keeps the final frame.
	c.RenderAt(time.Hour, dst)
	assert.Equal(t, color.RGBA{B: 255, A: 255}, dst.RGBAAt(0, 0))
}

func TestComposite_RenderAtHardCut(t *testing.T) {
	c, err := Single(frameOf(red, 2, 2, time.Second))
	require.NoError(t, err)
	c, err = Apply(c, frameOf(blue, 2, 2, time.Second), Spec{Kind: SlideDown})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, c.Duration)

	dst := newDst(2, 2)
	c.RenderAt(999*time.Millisecond, dst)
	assert.Equal(t, uint8(255), dst.RGBAAt(0, 0).R)
	c.RenderAt(time.Second, dst)
	assert.Equal(t, uint8(255), dst.RGBAAt(0, 0).B)
}
