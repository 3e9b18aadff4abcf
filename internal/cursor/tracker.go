// Package cursor broadcasts the local pointer at frame rate and keeps the
// transient markers of remote peers.
package cursor

import (
	"slices"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"LiveCanvas/internal/state"
)

// DefaultTimeout is how long a marker survives without updates.
const DefaultTimeout = 3 * time.Second

type Marker struct {
	Peer string
	X, Y float64
	Seen time.Time
}

// Tracker holds one marker per peer. Liveness is measured on the local
// clock at receipt; sender timestamps are never trusted.
type Tracker struct {
	clock   clockwork.Clock
	timeout time.Duration
	markers map[string]Marker
}

func NewTracker(clock clockwork.Clock, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{clock: clock, timeout: timeout, markers: make(map[string]Marker)}
}

func (t *Tracker) Update(c state.Cursor) {
	t.markers[c.Peer] = Marker{Peer: c.Peer, X: c.X, Y: c.Y, Seen: t.clock.Now()}
}

// Remove drops a peer's marker, reporting whether it had one.
func (t *Tracker) Remove(peer string) bool {
	_, ok := t.markers[peer]
	delete(t.markers, peer)
	return ok
}

// Sweep removes markers that have gone stale and returns their peers.
func (t *Tracker) Sweep() []string {
	now := t.clock.Now()
	var gone []string
	for peer, m := range t.markers {
		if now.Sub(m.Seen) > t.timeout {
			delete(t.markers, peer)
			gone = append(gone, peer)
		}
	}
	slices.Sort(gone)
	return gone
}

// Markers returns the live markers ordered by peer.
func (t *Tracker) Markers() []Marker {
	out := make([]Marker, 0, len(t.markers))
	for _, m := range t.markers {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Marker) int { return strings.Compare(a.Peer, b.Peer) })
	return out
}

func (t *Tracker) Reset() {
	clear(t.markers)
}
