package cursor

import (
	"hash/fnv"
	"image"
	"image/color"

	"LiveCanvas/internal/raster"
	"LiveCanvas/internal/state"
)

const markerSize = 12.0

var markerColors = []color.RGBA{
	{230, 25, 75, 255},
	{60, 180, 75, 255},
	{0, 130, 200, 255},
	{245, 130, 48, 255},
	{145, 30, 180, 255},
	{70, 240, 240, 255},
	{240, 50, 230, 255},
	{128, 128, 0, 255},
}

// ColorOf gives every peer a stable marker color.
func ColorOf(peer string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(peer))
	return markerColors[h.Sum32()%uint32(len(markerColors))]
}

// Render draws markers on a fresh transparent layer of the given bounds.
func Render(bounds image.Rectangle, markers []Marker) *image.RGBA {
	layer := image.NewRGBA(bounds)
	for _, m := range markers {
		p := state.Point{X: m.X, Y: m.Y}
		raster.StrokeSegment(layer, p, p, ColorOf(m.Peer), markerSize)
	}
	return layer
}
