package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"LiveCanvas/internal/state"
)

const (
	PenWidth   = 5.0
	EraseWidth = 20.0
	arcSteps   = 16
)

// Width returns the brush width used for mode.
func Width(mode state.Mode) float64 {
	if mode == state.ModeErase {
		return EraseWidth
	}
	return PenWidth
}

// StrokeSegment composites a round-capped segment from a to b onto dst.
// A zero-length segment paints a dot. Only the part of the segment that
// can reach dst is rasterized, so the cost is bounded by the size of dst.
func StrokeSegment(dst draw.Image, a, b state.Point, c color.Color, width float64) {
	r := width / 2
	a, b, ok := clipSegment(a, b, dst.Bounds(), r+1)
	if !ok {
		return
	}
	box := pixelBox(state.BoundsOf([]state.Point{a, b}, r+1))
	clip := box.Intersect(dst.Bounds())
	if clip.Empty() {
		return
	}

	z := vector.NewRasterizer(box.Dx(), box.Dy())
	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	capsule(z, a.X-ox, a.Y-oy, b.X-ox, b.Y-oy, r)

	mask := image.NewAlpha(image.Rect(0, 0, box.Dx(), box.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	mask.Rect = box

	draw.DrawMask(dst, clip, image.NewUniform(c), image.Point{}, mask, clip.Min, draw.Over)
}

// clipSegment trims a-b to bounds grown by pad on every side. Every pixel
// of bounds within pad of the segment is within pad of the trimmed part,
// and the caps of a trimmed end stay outside bounds.
func clipSegment(a, b state.Point, bounds image.Rectangle, pad float64) (state.Point, state.Point, bool) {
	minX, minY := float64(bounds.Min.X)-pad, float64(bounds.Min.Y)-pad
	maxX, maxY := float64(bounds.Max.X)+pad, float64(bounds.Max.Y)+pad
	dx, dy := b.X-a.X, b.Y-a.Y

	t0, t1 := 0.0, 1.0
	for _, e := range [4][2]float64{
		{-dx, a.X - minX},
		{dx, maxX - a.X},
		{-dy, a.Y - minY},
		{dy, maxY - a.Y},
	} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return a, b, false
			}
			t0 = max(t0, t)
		} else {
			if t < t0 {
				return a, b, false
			}
			t1 = min(t1, t)
		}
	}

	from, to := a, b
	if t0 > 0 {
		from = state.Point{X: a.X + t0*dx, Y: a.Y + t0*dy, T: a.T}
	}
	if t1 < 1 {
		to = state.Point{X: a.X + t1*dx, Y: a.Y + t1*dy, T: b.T}
	}
	return from, to, true
}

func pixelBox(r state.Rect) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Width)),
		int(math.Ceil(r.Y+r.Height)),
	)
}

// capsule adds the outline of a thick segment: a half circle around b
// followed by a half circle around a.
func capsule(z *vector.Rasterizer, ax, ay, bx, by, r float64) {
	ang := 0.0
	if ax != bx || ay != by {
		ang = math.Atan2(by-ay, bx-ax)
	}
	first := true
	arc := func(cx, cy, from float64) {
		for i := 0; i <= arcSteps; i++ {
			t := from + math.Pi*float64(i)/arcSteps
			x, y := float32(cx+r*math.Cos(t)), float32(cy+r*math.Sin(t))
			if first {
				z.MoveTo(x, y)
				first = false
				continue
			}
			z.LineTo(x, y)
		}
	}
	arc(bx, by, ang-math.Pi/2)
	arc(ax, ay, ang+math.Pi/2)
	z.ClosePath()
}
