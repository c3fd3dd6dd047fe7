package media

import (
	"errors"
	"image"
	"time"

	"github.com/disintegration/imaging"
)

var errEmptyImage = errors.New("image has no pixels")

// LoadImage decodes the image at path, applying EXIF orientation.
// Any failure is returned as a *DecodeError naming the upload.
func LoadImage(name, path string) (image.Image, ImageAsset, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, ImageAsset{}, &DecodeError{Source: name, Err: err}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, ImageAsset{}, &DecodeError{Source: name, Err: errEmptyImage}
	}
	return img, ImageAsset{Name: name, Path: path, Width: b.Dx(), Height: b.Dy()}, nil
}

// Normalizer fits arbitrary images onto the canvas over a blurred,
// edge-to-edge copy of the same image.
type Normalizer struct {
	canvas   Canvas
	blur     float64
	duration time.Duration
}

// NewNormalizer creates a Normalizer for the given configuration.
func NewNormalizer(cfg RenderConfig) *Normalizer {
	return &Normalizer{
		canvas:   cfg.Canvas,
		blur:     cfg.BlurRadius,
		duration: cfg.FrameDuration,
	}
}

// FitSize returns the largest size with the image's aspect ratio that fits
// inside the canvas. A relatively wider image matches the canvas width,
// anything else matches the canvas height.
func (n *Normalizer) FitSize(w, h int) (int, int) {
	W, H := n.canvas.Width, n.canvas.Height
	ratio := float64(w) / float64(h)

	var fw, fh int
	if ratio > n.canvas.Ratio() {
		fw = W
		fh = int(float64(W) / ratio)
	} else {
		fh = H
		fw = int(float64(H) * ratio)
	}
	return clamp(fw, 1, W), clamp(fh, 1, H)
}

// Normalize renders img onto a canvas-sized frame.
func (n *Normalizer) Normalize(img image.Image) (Frame, error) {
	if img == nil || img.Bounds().Empty() {
		return Frame{}, &DecodeError{Source: "image", Err: errEmptyImage}
	}
	return Frame{Image: n.compose(img), Duration: n.duration}, nil
}

// compose builds the blurred background and pastes the fitted foreground
// centered on top of it.
func (n *Normalizer) compose(img image.Image) *image.NRGBA {
	b := img.Bounds()
	fw, fh := n.FitSize(b.Dx(), b.Dy())

	bg := imaging.Resize(img, n.canvas.Width, n.canvas.Height, imaging.Lanczos)
	if n.blur > 0 {
		bg = imaging.Blur(bg, n.blur)
	}
	fg := imaging.Resize(img, fw, fh, imaging.Lanczos)

	pos := image.Pt((n.canvas.Width-fw)/2, (n.canvas.Height-fh)/2)
	return imaging.Paste(bg, fg, pos)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
