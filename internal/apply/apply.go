// Package apply paints inbound draw events onto the local surface.
package apply

import (
	"fmt"

	"LiveCanvas/internal/state"
)

// Surface is the subset of the raster the applier composes onto.
type Surface interface {
	PaintBatch(state.PointBatch) error
	Clear()
}

// Applier tracks remote in-progress strokes. Like the surface it paints on,
// it belongs to one session loop.
type Applier struct {
	surface Surface
	strokes *state.StrokeTable
}

func New(surface Surface) *Applier {
	return &Applier{surface: surface, strokes: state.NewStrokeTable()}
}

// Apply composes one draw event. It returns the finalized stroke when ev
// completes one. Duplicate batches and batches for strokes already
// completed are dropped; cursor and presence events are ignored.
func (a *Applier) Apply(ev state.Event) (*state.Stroke, error) {
	switch e := ev.(type) {
	case state.PointBatch:
		if !a.strokes.Add(e) {
			return nil, nil
		}
		if err := a.surface.PaintBatch(e); err != nil {
			return nil, fmt.Errorf("apply batch %d of %s: %w", e.Batch, e.Stroke, err)
		}
		return nil, nil
	case state.StrokeComplete:
		return a.strokes.Complete(e.Stroke), nil
	case state.Clear:
		a.surface.Clear()
		return nil, nil
	default:
		return nil, nil
	}
}

// Path returns what has been received so far for an open stroke.
func (a *Applier) Path(id state.StrokeID) ([]state.Point, bool) {
	return a.strokes.Path(id)
}

// Open reports how many remote strokes are still in progress.
func (a *Applier) Open() int { return a.strokes.Open() }
