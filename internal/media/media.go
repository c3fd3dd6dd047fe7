// Package media provides the image side of the slideshow pipeline: decoding
// uploads, normalizing them onto the output canvas, synthesizing the cover
// frame, and running the ffmpeg/ffprobe binaries.
package media

import (
	"fmt"
	"image"
	"time"
)

// Canvas is the fixed pixel size every frame is normalized to.
type Canvas struct {
	Width  int
	Height int
}

// Vertical is the 1080x1920 portrait canvas used for short-form video.
var Vertical = Canvas{Width: 1080, Height: 1920}

// Bounds returns the canvas rectangle anchored at the origin.
func (c Canvas) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.Width, c.Height)
}

// Ratio returns width divided by height.
func (c Canvas) Ratio() float64 {
	return float64(c.Width) / float64(c.Height)
}

func (c Canvas) String() string {
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}

// Frame is a canvas-sized still with the time it stays on screen.
type Frame struct {
	Image    *image.NRGBA
	Duration time.Duration
}

// Size returns the pixel dimensions of the frame.
func (f Frame) Size() Canvas {
	if f.Image == nil {
		return Canvas{}
	}
	b := f.Image.Bounds()
	return Canvas{Width: b.Dx(), Height: b.Dy()}
}

// ImageAsset describes an uploaded image after its header has been read.
type ImageAsset struct {
	// Name is the original upload name, used in warnings.
	Name string
	// Path is the location of the upload inside the run workspace.
	Path string
	// Width and Height are the intrinsic dimensions of the decoded image.
	Width  int
	Height int
}

// RenderConfig holds every tunable of the render pipeline. It is passed by
// value into each component constructor and never mutated afterwards.
type RenderConfig struct {
	// Canvas is the output frame size.
	Canvas Canvas
	// BlurRadius is the Gaussian sigma applied to the letterbox background.
	BlurRadius float64
	// FrameDuration is how long each still stays on screen.
	FrameDuration time.Duration
	// TransitionDuration is the overlap between two adjacent frames.
	TransitionDuration time.Duration
	// FPS is the output frame rate.
	FPS int
	// CoverText is the caption used when a request does not provide one.
	CoverText string
	// CaptionFontPath points at a TTF/OTF file. Empty selects the embedded Go font.
	CaptionFontPath string
	// CaptionFontSize is the caption size in points at 72 DPI.
	CaptionFontSize float64
	// CaptionOrigin is the top-left corner of the caption box.
	CaptionOrigin image.Point
}

// DefaultRenderConfig returns the stock 1080x1920 configuration.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Canvas:             Vertical,
		BlurRadius:         20,
		FrameDuration:      4 * time.Second,
		TransitionDuration: 500 * time.Millisecond,
		FPS:                30,
		CoverText:          "Моя обложка",
		CaptionFontSize:    60,
		CaptionOrigin:      image.Pt(50, 50),
	}
}

// Validate reports the first invalid setting as an ErrConfiguration.
func (c RenderConfig) Validate() error {
	switch {
	case c.Canvas.Width <= 0 || c.Canvas.Height <= 0:
		return fmt.Errorf("%w: canvas must be positive, got %s", ErrConfiguration, c.Canvas)
	case c.BlurRadius < 0:
		return fmt.Errorf("%w: blur radius must not be negative, got %.2f", ErrConfiguration, c.BlurRadius)
	case c.FrameDuration <= 0:
		return fmt.Errorf("%w: frame duration must be positive, got %s", ErrConfiguration, c.FrameDuration)
	case c.TransitionDuration < 0:
		return fmt.Errorf("%w: transition duration must not be negative, got %s", ErrConfiguration, c.TransitionDuration)
	case c.FPS <= 0:
		return fmt.Errorf("%w: fps must be positive, got %d", ErrConfiguration, c.FPS)
	case c.FrameDuration < time.Second/time.Duration(c.FPS):
		return fmt.Errorf("%w: frame duration %s is shorter than one frame at %d fps", ErrConfiguration, c.FrameDuration, c.FPS)
	case c.CaptionFontSize <= 0:
		return fmt.Errorf("%w: caption font size must be positive, got %.1f", ErrConfiguration, c.CaptionFontSize)
	}
	return nil
}
