package video

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// FitRect computes the centered, aspect-preserving rectangle a frame of
// size (frameW, frameH) should occupy inside a viewport of size
// (viewportW, viewportH), adapted from CalcProjection's geometry into a
// pure, unit-testable form independent of ebiten.Image.
func FitRect(viewportW, viewportH, frameW, frameH int) image.Rectangle {
	if frameW <= 0 || frameH <= 0 || viewportW <= 0 || viewportH <= 0 {
		return image.Rectangle{}
	}

	wf := float64(viewportW) / float64(frameW)
	hf := float64(viewportH) / float64(frameH)
	sf := wf
	if hf < wf {
		sf = hf
	}

	w := int(float64(frameW) * sf)
	h := int(float64(frameH) * sf)
	offX := (viewportW - w) / 2
	offY := (viewportH - h) / 2
	return image.Rect(offX, offY, offX+w, offY+h)
}

// Draw projects frame into viewport using FitRect's geometry, matching the
// scale-to-fit, centered, no-letterbox-paint behavior of the teacher's
// CalcProjection/Draw.
func Draw(viewport, frame *ebiten.Image) {
	vb := viewport.Bounds()
	fb := frame.Bounds()
	rect := FitRect(vb.Dx(), vb.Dy(), fb.Dx(), fb.Dy())
	if rect.Empty() {
		return
	}

	var geom ebiten.GeoM
	sf := float64(rect.Dx()) / float64(fb.Dx())
	geom.Scale(sf, sf)
	geom.Translate(float64(vb.Min.X+rect.Min.X), float64(vb.Min.Y+rect.Min.Y))

	var opts ebiten.DrawImageOptions
	opts.GeoM = geom
	opts.Filter = ebiten.FilterLinear
	viewport.DrawImage(frame, &opts)
}
