package cursor

// Throttle keeps the latest sampled pointer position and releases it at
// most once per frame, only when it moved since the last release.
type Throttle struct {
	x, y    float64
	sampled bool

	sent         bool
	sentX, sentY float64
}

func (t *Throttle) Sample(x, y float64) {
	t.x, t.y, t.sampled = x, y, true
}

// Frame returns the position to broadcast for this frame, if any.
func (t *Throttle) Frame() (x, y float64, ok bool) {
	if !t.sampled {
		return 0, 0, false
	}
	t.sampled = false
	if t.sent && t.sentX == t.x && t.sentY == t.y {
		return 0, 0, false
	}
	t.sent, t.sentX, t.sentY = true, t.x, t.y
	return t.x, t.y, true
}

// Reset forgets the last released position, e.g. after reconnecting.
func (t *Throttle) Reset() {
	*t = Throttle{}
}
