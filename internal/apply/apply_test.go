package apply

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveCanvas/internal/capture"
	"LiveCanvas/internal/raster"
	"LiveCanvas/internal/state"
)

// peer is one participant: a capturer echoing onto its own surface.
type peer struct {
	id      string
	cap     *capture.Capturer
	surface *raster.Surface
	clock   *clockwork.FakeClock
}

func newPeer(id string) *peer {
	clock := clockwork.NewFakeClock()
	return &peer{
		id:      id,
		cap:     capture.New(state.NewSequencer(id), clock),
		surface: raster.New(64, 64),
		clock:   clock,
	}
}

func (p *peer) echo(seg capture.Segment) {
	p.surface.PaintSegment(seg.From, seg.To, seg.Color, seg.Mode)
}

// draw records one stroke, one frame per point, and returns the wire frames.
func (p *peer) draw(t *testing.T, pts ...state.Point) [][]byte {
	t.Helper()
	var evs []state.Event
	seg, _ := p.cap.Down(pts[0].X, pts[0].Y)
	p.echo(seg)
	for _, pt := range pts[1:] {
		evs = append(evs, p.cap.Frame()...)
		p.clock.Advance(16 * time.Millisecond)
		seg, ok := p.cap.Move(pt.X, pt.Y)
		require.True(t, ok)
		p.echo(seg)
	}
	evs = append(evs, p.cap.Up()...)
	return p.encode(t, evs)
}

func (p *peer) encode(t *testing.T, evs []state.Event) [][]byte {
	t.Helper()
	frames := make([][]byte, 0, len(evs))
	for _, ev := range evs {
		frame, err := state.Encode(p.id, ev)
		require.NoError(t, err)
		frames = append(frames, frame)
	}
	return frames
}

func receive(t *testing.T, a *Applier, frames [][]byte) []*state.Stroke {
	t.Helper()
	var done []*state.Stroke
	for _, frame := range frames {
		_, ev, err := state.Decode(frame)
		require.NoError(t, err)
		s, err := a.Apply(ev)
		require.NoError(t, err)
		if s != nil {
			done = append(done, s)
		}
	}
	return done
}

func xy(x, y float64) state.Point { return state.Point{X: x, Y: y} }

func TestRedStrokeRendersIdentically(t *testing.T) {
	a := newPeer("a")
	require.NoError(t, a.cap.SetColor("red"))
	frames := a.draw(t, xy(10, 10), xy(20, 20), xy(30, 10))

	b := raster.New(64, 64)
	done := receive(t, New(b), frames)

	require.Len(t, done, 1)
	assert.Equal(t, "red", done[0].Color)
	assert.True(t, done[0].Complete)
	require.Len(t, done[0].Points, 3)
	for i, want := range []state.Point{xy(10, 10), xy(20, 20), xy(30, 10)} {
		assert.Equal(t, want.X, done[0].Points[i].X)
		assert.Equal(t, want.Y, done[0].Points[i].Y)
	}
	assert.Equal(t, a.surface.Snapshot().Pix, b.Snapshot().Pix)
}

func TestAbandonedStrokeShowsOnlyReceivedBatches(t *testing.T) {
	a := newPeer("a")
	frames := a.draw(t, xy(5, 5), xy(15, 50), xy(25, 5), xy(35, 50), xy(45, 5))
	// five batches and a completion marker; the sender vanishes after two
	require.Len(t, frames, 6)

	partial := raster.New(64, 64)
	applier := New(partial)
	assert.Empty(t, receive(t, applier, frames[:2]))
	assert.Equal(t, 1, applier.Open())

	want := raster.New(64, 64)
	for _, frame := range frames[:2] {
		_, ev, err := state.Decode(frame)
		require.NoError(t, err)
		require.NoError(t, want.PaintBatch(ev.(state.PointBatch)))
	}
	assert.Equal(t, want.Snapshot().Pix, partial.Snapshot().Pix)
	assert.NotEqual(t, a.surface.Snapshot().Pix, partial.Snapshot().Pix)
}

func TestBatchesReplayToOriginalPath(t *testing.T) {
	a := newPeer("a")
	want := []state.Point{xy(1, 2), xy(3, 5), xy(8, 13), xy(21, 34), xy(55, 60)}
	frames := a.draw(t, want...)

	done := receive(t, New(raster.New(64, 64)), frames)
	require.Len(t, done, 1)
	require.Len(t, done[0].Points, len(want))
	for i := range want {
		assert.Equal(t, want[i].X, done[0].Points[i].X)
		assert.Equal(t, want[i].Y, done[0].Points[i].Y)
	}
}

func TestDuplicateAndLateBatchesAreDropped(t *testing.T) {
	a := newPeer("a")
	frames := a.draw(t, xy(10, 10), xy(40, 40), xy(10, 40))

	s := raster.New(64, 64)
	applier := New(s)
	receive(t, applier, frames[:2])
	before := s.Snapshot()

	// a redelivered batch paints nothing new
	receive(t, applier, frames[1:2])
	assert.Equal(t, before.Pix, s.Snapshot().Pix)

	done := receive(t, applier, frames[2:])
	require.Len(t, done, 1)
	assert.Empty(t, receive(t, applier, frames), "stroke already completed")
	assert.Zero(t, applier.Open())
}

func TestOutOfOrderBatchesPaintOnArrival(t *testing.T) {
	a := newPeer("a")
	frames := a.draw(t, xy(10, 10), xy(30, 30), xy(50, 10))
	require.Len(t, frames, 4)

	s := raster.New(64, 64)
	applier := New(s)
	receive(t, applier, frames[1:2])
	assert.Equal(t, raster.Background, s.Snapshot().RGBAAt(40, 20), "batch 2 not yet received")
	assert.NotEqual(t, raster.Background, s.Snapshot().RGBAAt(20, 20), "batch 1 painted from its anchor")

	done := receive(t, applier, [][]byte{frames[0], frames[2], frames[3]})
	require.Len(t, done, 1)
	assert.Equal(t, 10.0, done[0].Points[0].X, "path is ordered by batch")
	assert.NotEqual(t, raster.Background, s.Snapshot().RGBAAt(40, 20))
}

func TestClearIsABarrier(t *testing.T) {
	a := newPeer("a")
	first := a.draw(t, xy(5, 5), xy(20, 20))
	clear := a.encode(t, []state.Event{state.Clear{Peer: "a"}})
	second := a.draw(t, xy(40, 40), xy(60, 60))

	s := raster.New(64, 64)
	applier := New(s)
	receive(t, applier, first)
	receive(t, applier, clear)
	assert.Equal(t, raster.Background, s.Snapshot().RGBAAt(12, 12))
	receive(t, applier, second)

	want := raster.New(64, 64)
	receive(t, New(want), second)
	assert.Equal(t, want.Snapshot().Pix, s.Snapshot().Pix)
}

func TestPerSenderOrderIsPreserved(t *testing.T) {
	a := newPeer("a")
	require.NoError(t, a.cap.SetColor("red"))
	under := a.draw(t, xy(10, 32), xy(54, 32))
	require.NoError(t, a.cap.SetColor("blue"))
	over := a.draw(t, xy(32, 10), xy(32, 54))

	s := raster.New(64, 64)
	done := receive(t, New(s), append(under, over...))
	require.Len(t, done, 2)
	assert.Less(t, done[0].ID.Seq, done[1].ID.Seq)
	assert.Equal(t, a.surface.Snapshot().Pix, s.Snapshot().Pix)
	assert.Equal(t, uint8(255), s.Snapshot().RGBAAt(32, 32).B, "later stroke on top")
}

func TestIgnoresNonDrawEvents(t *testing.T) {
	s := raster.New(8, 8)
	applier := New(s)
	for _, ev := range []state.Event{state.Cursor{Peer: "x", X: 1, Y: 1}, state.Hello{Peer: "x"}, state.Bye{Peer: "x"}} {
		done, err := applier.Apply(ev)
		assert.NoError(t, err)
		assert.Nil(t, done)
	}
	assert.Equal(t, raster.New(8, 8).Snapshot().Pix, s.Snapshot().Pix)
}
