package capture

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveCanvas/internal/state"
)

func newCapturer() (*Capturer, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000))
	return New(state.NewSequencer("me"), clock), clock
}

func TestFrameCoalescesMoves(t *testing.T) {
	c, clock := newCapturer()
	seg, flushed := c.Down(1, 1)
	assert.Empty(t, flushed)
	assert.Equal(t, seg.From, seg.To)

	clock.Advance(5 * time.Millisecond)
	c.Move(2, 2)
	c.Move(3, 3)
	_, moved := c.Move(3, 3)
	assert.False(t, moved, "no movement")

	evs := c.Frame()
	require.Len(t, evs, 1)
	b := evs[0].(state.PointBatch)
	assert.Equal(t, uint32(0), b.Batch)
	assert.Nil(t, b.Anchor)
	assert.Len(t, b.Points, 3)
	assert.Equal(t, int64(1_000), b.Points[0].T)
	assert.Equal(t, int64(1_005), b.Points[1].T)

	assert.Empty(t, c.Frame(), "nothing new")

	c.Move(4, 4)
	evs = c.Frame()
	require.Len(t, evs, 1)
	b = evs[0].(state.PointBatch)
	assert.Equal(t, uint32(1), b.Batch)
	require.NotNil(t, b.Anchor)
	assert.Equal(t, 3.0, b.Anchor.X)
}

func TestStyleIsSampledAtCaptureTime(t *testing.T) {
	c, _ := newCapturer()
	require.NoError(t, c.SetColor("red"))
	c.Down(0, 0)
	c.Move(1, 0)
	require.NoError(t, c.SetColor("blue"))
	seg, _ := c.Move(2, 0)
	assert.Equal(t, uint8(255), seg.Color.B)
	require.NoError(t, c.SetMode(state.ModeErase))
	c.Move(3, 0)

	evs := c.Up()
	require.Len(t, evs, 4)
	first := evs[0].(state.PointBatch)
	second := evs[1].(state.PointBatch)
	third := evs[2].(state.PointBatch)
	assert.Equal(t, "red", first.Color)
	assert.Len(t, first.Points, 2)
	assert.Equal(t, "blue", second.Color)
	assert.Equal(t, 1.0, second.Anchor.X)
	assert.Equal(t, state.ModeErase, third.Mode)
	assert.Equal(t, state.StrokeComplete{Stroke: first.Stroke, Batches: 3}, evs[3])
}

func TestUpAndCancelComplete(t *testing.T) {
	c, _ := newCapturer()
	c.Down(0, 0)
	evs := c.Cancel()
	require.Len(t, evs, 2)
	assert.IsType(t, state.StrokeComplete{}, evs[1])
	assert.False(t, c.Drawing())
	assert.Empty(t, c.Up(), "already completed")

	_, moved := c.Move(5, 5)
	assert.False(t, moved, "hover is not drawing")
}

func TestDownWhileDrawingCompletesPrevious(t *testing.T) {
	c, _ := newCapturer()
	c.Down(0, 0)
	c.Move(1, 1)
	_, flushed := c.Down(10, 10)
	require.Len(t, flushed, 2)
	prev := flushed[1].(state.StrokeComplete)

	evs := c.Up()
	next := evs[len(evs)-1].(state.StrokeComplete)
	assert.Less(t, prev.Stroke.Seq, next.Stroke.Seq)
}

func TestRejectsUnknownStyle(t *testing.T) {
	c, _ := newCapturer()
	assert.Error(t, c.SetColor("chartreuse-ish"))
	assert.Error(t, c.SetMode("spray"))
	name, mode := c.Style()
	assert.Equal(t, "black", name)
	assert.Equal(t, state.ModePen, mode)
}
