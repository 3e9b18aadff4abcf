package state

import "sort"

// finishedMemory bounds how many completed stroke IDs are remembered for
// dropping late or duplicate batches.
const finishedMemory = 4096

type pending struct {
	stroke  Stroke
	batches map[uint32][]Point
}

// StrokeTable holds the in-progress strokes of remote peers. It is not
// safe for concurrent use; the owning session serializes access.
type StrokeTable struct {
	open     map[StrokeID]*pending
	finished map[StrokeID]struct{}
	order    []StrokeID
}

func NewStrokeTable() *StrokeTable {
	return &StrokeTable{
		open:     make(map[StrokeID]*pending),
		finished: make(map[StrokeID]struct{}),
	}
}

// Add records a batch and reports whether it is new. Duplicates and
// batches for already completed strokes return false.
func (t *StrokeTable) Add(b PointBatch) bool {
	if _, done := t.finished[b.Stroke]; done {
		return false
	}
	p, ok := t.open[b.Stroke]
	if !ok {
		p = &pending{
			stroke:  Stroke{ID: b.Stroke},
			batches: make(map[uint32][]Point),
		}
		t.open[b.Stroke] = p
	}
	if _, seen := p.batches[b.Batch]; seen {
		return false
	}
	p.batches[b.Batch] = append([]Point(nil), b.Points...)
	p.stroke.Color = b.Color
	p.stroke.Mode = b.Mode
	return true
}

// Complete finalizes a stroke. It returns nil when the stroke is unknown
// or was already completed.
func (t *StrokeTable) Complete(id StrokeID) *Stroke {
	if _, done := t.finished[id]; done {
		return nil
	}
	t.markFinished(id)
	p, ok := t.open[id]
	if !ok {
		return nil
	}
	delete(t.open, id)
	s := p.stroke
	s.Points = p.path()
	s.Complete = true
	return &s
}

// Path returns the points received so far for an open stroke, ordered by
// batch number.
func (t *StrokeTable) Path(id StrokeID) ([]Point, bool) {
	p, ok := t.open[id]
	if !ok {
		return nil, false
	}
	return p.path(), true
}

func (t *StrokeTable) Open() int { return len(t.open) }

func (t *StrokeTable) markFinished(id StrokeID) {
	t.finished[id] = struct{}{}
	t.order = append(t.order, id)
	if len(t.order) > finishedMemory {
		delete(t.finished, t.order[0])
		t.order = t.order[1:]
	}
}

func (p *pending) path() []Point {
	keys := make([]uint32, 0, len(p.batches))
	for k := range p.batches {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	var pts []Point
	for _, k := range keys {
		pts = append(pts, p.batches[k]...)
	}
	return pts
}
