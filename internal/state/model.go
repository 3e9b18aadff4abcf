package state

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// MaxCoord bounds every coordinate accepted from the wire.
const MaxCoord = 32768

type Mode string

const (
	ModePen   Mode = "pen"
	ModeErase Mode = "erase"
)

func (m Mode) Valid() bool {
	return m == ModePen || m == ModeErase
}

// Point is a sampled pointer position in canvas space. T is the capture
// time in Unix milliseconds.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t"`
}

func (p Point) valid() bool {
	for _, v := range []float64{p.X, p.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < -MaxCoord || v > MaxCoord {
			return false
		}
	}
	return true
}

// StrokeID identifies a stroke across every participant of a room.
type StrokeID struct {
	Peer string `json:"peer"`
	Seq  uint64 `json:"seq"`
}

func (id StrokeID) String() string {
	return fmt.Sprintf("%s:%d", id.Peer, id.Seq)
}

type Stroke struct {
	ID       StrokeID
	Color    string
	Mode     Mode
	Points   []Point
	Complete bool
}

var palette = map[string]color.RGBA{
	"black":  {0, 0, 0, 255},
	"white":  {255, 255, 255, 255},
	"red":    {255, 0, 0, 255},
	"green":  {0, 128, 0, 255},
	"blue":   {0, 0, 255, 255},
	"yellow": {255, 255, 0, 255},
	"orange": {255, 165, 0, 255},
	"purple": {128, 0, 128, 255},
	"pink":   {255, 192, 203, 255},
	"gray":   {128, 128, 128, 255},
	"brown":  {165, 42, 42, 255},
}

// ParseColor accepts a palette name or a #rgb / #rrggbb hex string.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := palette[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return color.RGBA{}, fmt.Errorf("unknown color %q", s)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("bad color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("bad color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
