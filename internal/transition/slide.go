package transition

import (
	"image"

	"golang.org/x/image/draw"
)

// slideRight moves the entering frame in from the left edge.
type slideRight struct{}

func (slideRight) Kind() Kind { return SlideRight }

func (slideRight) Draw(dst *image.RGBA, src *image.NRGBA, progress float64) {
	x := Offset(progress, src.Bounds().Dx())
	drawShifted(dst, src, image.Pt(x, 0))
}

// slideDown moves the entering frame in from the top edge.
type slideDown struct{}

func (slideDown) Kind() Kind { return SlideDown }

func (slideDown) Draw(dst *image.RGBA, src *image.NRGBA, progress float64) {
	y := Offset(progress, src.Bounds().Dy())
	drawShifted(dst, src, image.Pt(0, y))
}

// Offset is the position of the entering frame's leading edge along the
// slide axis: -size at the start of the window, 0 once settled.
func Offset(progress float64, size int) int {
	p := clampProgress(progress)
	if p >= 1 {
		return 0
	}
	return min(0, -size+int(p*float64(size)))
}

func drawShifted(dst *image.RGBA, src *image.NRGBA, off image.Point) {
	r := src.Bounds().Sub(src.Bounds().Min).Add(dst.Bounds().Min).Add(off)
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Src)
}
