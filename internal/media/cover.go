package media

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	shadowColor  = color.NRGBA{R: 0, G: 0, B: 0, A: 150}
	captionColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// shadowOffsets are the eight neighbours of the caption origin at a 2px step.
var shadowOffsets = func() []image.Point {
	var pts []image.Point
	for _, dx := range []int{-2, 0, 2} {
		for _, dy := range []int{-2, 0, 2} {
			if dx != 0 || dy != 0 {
				pts = append(pts, image.Pt(dx, dy))
			}
		}
	}
	return pts
}()

// CoverSynthesizer builds the title frame shown before the first image.
type CoverSynthesizer struct {
	normalizer *Normalizer
	origin     image.Point

	// font.Face implementations cache glyphs and are not safe for concurrent use.
	mu      sync.Mutex
	face    font.Face
	fontErr error
}

// NewCoverSynthesizer prepares the caption font. A font that cannot be read
// or parsed is replaced by the built-in 7x13 bitmap face; FontErr reports why.
func NewCoverSynthesizer(cfg RenderConfig) *CoverSynthesizer {
	c := &CoverSynthesizer{
		normalizer: NewNormalizer(cfg),
		origin:     cfg.CaptionOrigin,
	}
	face, err := loadFace(cfg.CaptionFontPath, cfg.CaptionFontSize)
	if err != nil {
		face = basicfont.Face7x13
		c.fontErr = fmt.Errorf("%w: caption font: %w", ErrConfiguration, err)
	}
	c.face = face
	return c
}

// FontErr returns the reason the fallback face is in use, or nil.
func (c *CoverSynthesizer) FontErr() error {
	return c.fontErr
}

// MakeCover normalizes img and draws caption on it with a dark outline.
// An empty caption yields the plain normalized frame.
func (c *CoverSynthesizer) MakeCover(img image.Image, caption string) (Frame, error) {
	frame, err := c.normalizer.Normalize(img)
	if err != nil {
		return Frame{}, err
	}
	if caption == "" {
		return frame, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Drawer.Dot is the baseline; the origin is the top of the text box.
	x := c.origin.X
	y := c.origin.Y + c.face.Metrics().Ascent.Ceil()

	shadow := &font.Drawer{Dst: frame.Image, Src: image.NewUniform(shadowColor), Face: c.face}
	for _, off := range shadowOffsets {
		shadow.Dot = fixed.P(x+off.X, y+off.Y)
		shadow.DrawString(caption)
	}

	fg := &font.Drawer{
		Dst:  frame.Image,
		Src:  image.NewUniform(captionColor),
		Face: c.face,
		Dot:  fixed.P(x, y),
	}
	fg.DrawString(caption)

	return frame, nil
}

// loadFace opens the TTF/OTF at path, or the embedded Go Regular when path is empty.
func loadFace(path string, size float64) (font.Face, error) {
	data := goregular.TTF
	if path != "" {
		b, err := os.ReadFile(path) // #nosec G304 - font path comes from configuration
		if err != nil {
			return nil, fmt.Errorf("read font file: %w", err)
		}
		data = b
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}
