// Package raster holds the composed drawing surface. Every mutation goes
// through PaintSegment, PaintBatch, Clear, Restore or Resize.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"LiveCanvas/internal/state"
)

// MaxSide bounds both surface dimensions.
const MaxSide = 8192

var Background = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Surface is owned by a single session loop and is not safe for
// concurrent use.
type Surface struct {
	img *image.RGBA
}

func New(width, height int) *Surface {
	s := &Surface{}
	s.Resize(width, height)
	return s
}

func (s *Surface) Bounds() image.Rectangle { return s.img.Bounds() }

// SameSize reports whether Resize(width, height) would keep the current
// dimensions once both sides are clamped.
func (s *Surface) SameSize(width, height int) bool {
	b := s.img.Bounds()
	return b.Dx() == clampSide(width) && b.Dy() == clampSide(height)
}

// Resize reallocates a blank surface.
func (s *Surface) Resize(width, height int) {
	width = clampSide(width)
	height = clampSide(height)
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
	s.Clear()
}

func (s *Surface) Clear() {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
}

func (s *Surface) PaintSegment(a, b state.Point, c color.RGBA, mode state.Mode) {
	if mode == state.ModeErase {
		c = Background
	}
	StrokeSegment(s.img, a, b, c, Width(mode))
}

// PaintBatch paints the anchor-to-last path of a batch. A batch without an
// anchor starts with a dot on its first point.
func (s *Surface) PaintBatch(b state.PointBatch) error {
	c, err := state.ParseColor(b.Color)
	if err != nil {
		return fmt.Errorf("paint %s: %w", b.Stroke, err)
	}
	if len(b.Points) == 0 {
		return nil
	}
	prev := b.Points[0]
	rest := b.Points[1:]
	if b.Anchor != nil {
		prev = *b.Anchor
		rest = b.Points
	} else {
		s.PaintSegment(prev, prev, c, b.Mode)
	}
	for _, p := range rest {
		s.PaintSegment(prev, p, c, b.Mode)
		prev = p
	}
	return nil
}

// Restore blanks the surface and draws img at the origin. Parts of img
// outside the surface are dropped.
func (s *Surface) Restore(img image.Image) {
	s.Clear()
	draw.Draw(s.img, s.img.Bounds(), img, img.Bounds().Min, draw.Src)
}

// Snapshot returns a copy of the current pixels.
func (s *Surface) Snapshot() *image.RGBA {
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

func clampSide(v int) int {
	return max(1, min(v, MaxSide))
}
