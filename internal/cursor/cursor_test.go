package cursor

import (
	"image"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveCanvas/internal/state"
)

func TestThrottleOncePerFrame(t *testing.T) {
	var th Throttle
	_, _, ok := th.Frame()
	assert.False(t, ok, "nothing sampled")

	th.Sample(1, 1)
	th.Sample(2, 2)
	th.Sample(3, 4)
	x, y, ok := th.Frame()
	require.True(t, ok)
	assert.Equal(t, [2]float64{3, 4}, [2]float64{x, y})

	_, _, ok = th.Frame()
	assert.False(t, ok, "already released this sample")

	th.Sample(3, 4)
	_, _, ok = th.Frame()
	assert.False(t, ok, "did not move")

	th.Reset()
	th.Sample(3, 4)
	_, _, ok = th.Frame()
	assert.True(t, ok)
}

func TestMarkerExpiresAfterTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tr := NewTracker(clock, 3*time.Second)

	// sender timestamps far in the future do not extend liveness
	tr.Update(state.Cursor{Peer: "c", X: 10, Y: 10, T: time.Now().Add(time.Hour).UnixMilli()})
	clock.Advance(2 * time.Second)
	tr.Update(state.Cursor{Peer: "d", X: 20, Y: 20})

	clock.Advance(time.Second)
	assert.Empty(t, tr.Sweep(), "exactly at the timeout")
	assert.Len(t, tr.Markers(), 2)

	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"c"}, tr.Sweep())
	markers := tr.Markers()
	require.Len(t, markers, 1)
	assert.Equal(t, "d", markers[0].Peer)
}

func TestUpdateResetsLiveness(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tr := NewTracker(clock, 0)

	tr.Update(state.Cursor{Peer: "c", X: 1, Y: 1})
	for range 5 {
		clock.Advance(2 * time.Second)
		tr.Update(state.Cursor{Peer: "c", X: 2, Y: 2})
		assert.Empty(t, tr.Sweep())
	}
	assert.Equal(t, 2.0, tr.Markers()[0].X)

	assert.True(t, tr.Remove("c"))
	assert.False(t, tr.Remove("c"))
}

func TestRenderIsTransientOverlay(t *testing.T) {
	bounds := image.Rect(0, 0, 40, 40)
	layer := Render(bounds, []Marker{{Peer: "c", X: 20, Y: 20}})
	assert.Equal(t, ColorOf("c"), layer.RGBAAt(20, 20))
	assert.Zero(t, layer.RGBAAt(2, 2).A, "transparent elsewhere")

	empty := Render(bounds, nil)
	for _, v := range empty.Pix {
		require.Zero(t, v)
	}
}

func TestColorOfIsStable(t *testing.T) {
	assert.Equal(t, ColorOf("peer-1"), ColorOf("peer-1"))
}
