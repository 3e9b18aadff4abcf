// Package capture turns pointer gestures into strokes and batches their
// points into draw events, one batch per display frame.
package capture

import (
	"fmt"
	"image/color"

	"github.com/jonboulle/clockwork"

	"LiveCanvas/internal/state"
)

// Segment is the piece of a stroke to echo locally right away.
type Segment struct {
	From, To state.Point
	Color    color.RGBA
	Mode     state.Mode
}

type run struct {
	color  string
	mode   state.Mode
	anchor *state.Point
	points []state.Point
}

// Capturer is driven from the session loop and is not safe for concurrent
// use.
type Capturer struct {
	seq   *state.Sequencer
	clock clockwork.Clock

	color string
	rgba  color.RGBA
	mode  state.Mode

	active bool
	stroke state.StrokeID
	batch  uint32
	last   *state.Point
	cur    *run
	out    []state.Event
}

func New(seq *state.Sequencer, clock clockwork.Clock) *Capturer {
	c := &Capturer{seq: seq, clock: clock, mode: state.ModePen}
	_ = c.SetColor("black")
	return c
}

// SetColor changes the style for points captured from now on.
func (c *Capturer) SetColor(name string) error {
	rgba, err := state.ParseColor(name)
	if err != nil {
		return err
	}
	c.color, c.rgba = name, rgba
	return nil
}

func (c *Capturer) SetMode(m state.Mode) error {
	if !m.Valid() {
		return fmt.Errorf("unknown mode %q", m)
	}
	c.mode = m
	return nil
}

func (c *Capturer) Style() (string, state.Mode) { return c.color, c.mode }

func (c *Capturer) Drawing() bool { return c.active }

// Down starts a new stroke. A stroke still open from a lost pointer-up is
// completed first and its events are returned.
func (c *Capturer) Down(x, y float64) (Segment, []state.Event) {
	var flushed []state.Event
	if c.active {
		flushed = c.Up()
	}
	c.active = true
	c.stroke = c.seq.Next()
	c.batch = 0
	c.last = nil

	p := c.point(x, y)
	c.add(p)
	return c.segment(p, p), flushed
}

// Move appends a point to the open stroke. It reports false when no stroke
// is open or the pointer did not move.
func (c *Capturer) Move(x, y float64) (Segment, bool) {
	if !c.active || (c.last != nil && c.last.X == x && c.last.Y == y) {
		return Segment{}, false
	}
	from := *c.last
	p := c.point(x, y)
	c.add(p)
	return c.segment(from, p), true
}

// Frame drains the points buffered since the previous frame.
func (c *Capturer) Frame() []state.Event {
	c.closeRun()
	return c.drain()
}

// Up flushes the open stroke and emits its completion marker.
func (c *Capturer) Up() []state.Event {
	if !c.active {
		return c.drain()
	}
	c.closeRun()
	c.out = append(c.out, state.StrokeComplete{Stroke: c.stroke, Batches: c.batch})
	c.active = false
	c.last = nil
	return c.drain()
}

// Cancel ends the stroke like Up; points already captured stay.
func (c *Capturer) Cancel() []state.Event { return c.Up() }

func (c *Capturer) point(x, y float64) state.Point {
	return state.Point{X: x, Y: y, T: c.clock.Now().UnixMilli()}
}

func (c *Capturer) segment(from, to state.Point) Segment {
	return Segment{From: from, To: to, Color: c.rgba, Mode: c.mode}
}

func (c *Capturer) add(p state.Point) {
	if c.cur != nil && (c.cur.color != c.color || c.cur.mode != c.mode || len(c.cur.points) >= state.MaxBatchPoints) {
		c.closeRun()
	}
	if c.cur == nil {
		c.cur = &run{color: c.color, mode: c.mode}
		if c.last != nil {
			anchor := *c.last
			c.cur.anchor = &anchor
		}
	}
	c.cur.points = append(c.cur.points, p)
	c.last = &p
}

func (c *Capturer) closeRun() {
	if c.cur == nil {
		return
	}
	if len(c.cur.points) > 0 {
		c.out = append(c.out, state.PointBatch{
			Stroke: c.stroke,
			Batch:  c.batch,
			Color:  c.cur.color,
			Mode:   c.cur.mode,
			Anchor: c.cur.anchor,
			Points: c.cur.points,
		})
		c.batch++
	}
	c.cur = nil
}

func (c *Capturer) drain() []state.Event {
	out := c.out
	c.out = nil
	return out
}
