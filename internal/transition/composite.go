package transition

import (
	"fmt"
	"image"
	"time"

	"golang.org/x/image/draw"

	"github.com/maauso/slideshow-api/internal/media"
)

// Layer is one frame placed on the composite's time axis.
type Layer struct {
	Frame media.Frame
	// Start is when the frame first appears.
	Start time.Duration
	// Window is how long the entry transition runs. Zero means a hard cut.
	Window time.Duration
	// Entry is nil for the first layer.
	Entry Transition
	// Clamped is set when Window is shorter than the requested transition
	// because one of the adjacent frames is too short.
	Clamped bool
}

// End is when the frame disappears.
func (l Layer) End() time.Duration {
	return l.Start + l.Frame.Duration
}

// progress is the entry progress at t, 1 once settled.
func (l Layer) progress(t time.Duration) float64 {
	if l.Entry == nil || l.Window <= 0 {
		return 1
	}
	return float64(t-l.Start) / float64(l.Window)
}

// Composite is the running result of folding frames together.
type Composite struct {
	Layers   []Layer
	Duration time.Duration
	Canvas   media.Canvas
}

// Single wraps one frame as a composite.
func Single(f media.Frame) (Composite, error) {
	if err := checkFrame(f); err != nil {
		return Composite{}, err
	}
	return Composite{
		Layers:   []Layer{{Frame: f}},
		Duration: f.Duration,
		Canvas:   f.Size(),
	}, nil
}

// Apply appends next to prev with the transition described by spec.
// The overlap is min(spec.Duration, last frame of prev, next), so the result
// always lasts at least as long as the longer of the two inputs.
func Apply(prev Composite, next media.Frame, spec Spec) (Composite, error) {
	if len(prev.Layers) == 0 {
		return Single(next)
	}
	entry, err := For(spec.Kind)
	if err != nil {
		return Composite{}, err
	}
	if spec.Duration < 0 {
		return Composite{}, fmt.Errorf("%w: transition duration must not be negative, got %s", media.ErrConfiguration, spec.Duration)
	}
	if err := checkFrame(next); err != nil {
		return Composite{}, err
	}
	if next.Size() != prev.Canvas {
		return Composite{}, fmt.Errorf("%w: frame is %s, composite canvas is %s",
			media.ErrConfiguration, next.Size(), prev.Canvas)
	}

	last := prev.Layers[len(prev.Layers)-1]
	overlap := min(spec.Duration, last.Frame.Duration, next.Duration)

	layers := make([]Layer, len(prev.Layers), len(prev.Layers)+1)
	copy(layers, prev.Layers)
	layers = append(layers, Layer{
		Frame:   next,
		Start:   prev.Duration - overlap,
		Window:  overlap,
		Entry:   entry,
		Clamped: overlap < spec.Duration,
	})

	return Composite{
		Layers:   layers,
		Duration: prev.Duration + next.Duration - overlap,
		Canvas:   prev.Canvas,
	}, nil
}

// Clamped returns the indexes of layers whose transition was shortened.
func (c Composite) Clamped() []int {
	var idx []int
	for i, l := range c.Layers {
		if l.Clamped {
			idx = append(idx, i)
		}
	}
	return idx
}

// RenderAt draws the composite as it looks at time t into dst, which must
// be canvas-sized. Times past the end render the final frame.
func (c Composite) RenderAt(t time.Duration, dst *image.RGBA) {
	if len(c.Layers) == 0 {
		draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
		return
	}
	if t < 0 {
		t = 0
	}
	if t >= c.Duration {
		t = c.Duration - 1
	}

	// The topmost active layer whose entry is complete covers everything
	// below it, so drawing starts there.
	base := -1
	for i := len(c.Layers) - 1; i >= 0; i-- {
		l := c.Layers[i]
		if t < l.Start || t >= l.End() {
			continue
		}
		if l.progress(t) >= 1 {
			base = i
			break
		}
	}

	if base < 0 {
		draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
	} else {
		img := c.Layers[base].Frame.Image
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	}

	for i := base + 1; i < len(c.Layers); i++ {
		l := c.Layers[i]
		if t < l.Start || t >= l.End() {
			continue
		}
		l.Entry.Draw(dst, l.Frame.Image, l.progress(t))
	}
}

func checkFrame(f media.Frame) error {
	if f.Image == nil || f.Image.Bounds().Empty() {
		return fmt.Errorf("%w: frame has no image", media.ErrConfiguration)
	}
	if f.Duration <= 0 {
		return fmt.Errorf("%w: frame duration must be positive, got %s", media.ErrConfiguration, f.Duration)
	}
	return nil
}
