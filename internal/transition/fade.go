package transition

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// fade is a linear cross-dissolve: out = below*(1-a) + src*a.
type fade struct{}

func (fade) Kind() Kind { return Fade }

func (fade) Draw(dst *image.RGBA, src *image.NRGBA, progress float64) {
	a := Alpha(progress)
	switch a {
	case 0:
		return
	case 255:
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return
	}
	mask := image.NewUniform(color.Alpha{A: a})
	draw.DrawMask(dst, dst.Bounds(), src, src.Bounds().Min, mask, image.Point{}, draw.Over)
}

// Alpha maps progress to the 8-bit opacity of the entering frame.
func Alpha(progress float64) uint8 {
	return uint8(math.Round(clampProgress(progress) * 255))
}
