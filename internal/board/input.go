package board

import (
	"math"

	"LiveCanvas/internal/capture"
	"LiveCanvas/internal/state"
)

// Pointer input is posted to the loop and returns immediately. Coordinates
// are in canvas space.

func (s *Session) PointerDown(x, y float64) {
	x, y = clampCoord(x), clampCoord(y)
	s.post(func() {
		seg, flushed := s.capture.Down(x, y)
		if len(flushed) > 0 {
			s.send(flushed...)
			s.requestSave()
		}
		s.echo(seg)
		s.throttle.Sample(x, y)
	})
}

func (s *Session) PointerMove(x, y float64) {
	x, y = clampCoord(x), clampCoord(y)
	s.post(func() {
		s.throttle.Sample(x, y)
		if seg, ok := s.capture.Move(x, y); ok {
			s.echo(seg)
		}
	})
}

func (s *Session) PointerUp() {
	s.post(func() { s.finishStroke(s.capture.Up()) })
}

func (s *Session) PointerCancel() {
	s.post(func() { s.finishStroke(s.capture.Cancel()) })
}

// Hover reports the pointer position while not drawing.
func (s *Session) Hover(x, y float64) {
	x, y = clampCoord(x), clampCoord(y)
	s.post(func() { s.throttle.Sample(x, y) })
}

func (s *Session) SetColor(name string) error {
	var err error
	if cerr := s.call(func() { err = s.capture.SetColor(name) }); cerr != nil {
		return cerr
	}
	return err
}

func (s *Session) SetMode(m state.Mode) error {
	var err error
	if cerr := s.call(func() { err = s.capture.SetMode(m) }); cerr != nil {
		return cerr
	}
	return err
}

func (s *Session) Style() (color string, mode state.Mode) {
	s.call(func() { color, mode = s.capture.Style() })
	return color, mode
}

// Clear wipes the surface locally and for everyone in the room.
func (s *Session) Clear() {
	s.post(func() {
		s.paint(s.surface.Clear)
		s.send(state.Clear{Peer: s.peer})
		s.requestSave()
	})
}

func (s *Session) finishStroke(evs []state.Event) {
	if len(evs) == 0 {
		return
	}
	s.send(evs...)
	s.requestSave()
}

func (s *Session) echo(seg capture.Segment) {
	s.paint(func() { s.surface.PaintSegment(seg.From, seg.To, seg.Color, seg.Mode) })
}

func clampCoord(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-state.MaxCoord, math.Min(v, state.MaxCoord))
}
