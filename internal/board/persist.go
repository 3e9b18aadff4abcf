package board

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/rs/zerolog/log"

	"LiveCanvas/internal/snapshot"
)

// Storage jobs run one at a time on the I/O goroutine, so a load queued
// after a save observes it. Results come back to the loop as tasks.

func (s *Session) loadJob(restore func(image.Image)) func() {
	return func() {
		var img image.Image
		snap, err := s.store.Load(s.ctx)
		switch {
		case err == nil:
			img = snap.Image
			log.Debug().Time("captured_at", snap.CapturedAt).Msg("snapshot loaded")
		case errors.Is(err, snapshot.ErrNoSnapshot):
		default:
			log.Warn().Err(err).Msg("snapshot restore skipped")
		}
		s.post(func() { s.finishRestore(img, restore) })
	}
}

func (s *Session) finishRestore(img image.Image, restore func(image.Image)) {
	restore(img)
	s.dirty = true
	s.restores--
	if s.restores > 0 {
		return
	}
	pending := s.pending
	s.pending = nil
	for _, fn := range pending {
		fn()
	}
	if !s.isReady {
		s.isReady = true
		close(s.ready)
	}
	if s.saveAgain && !s.saving {
		s.saveAgain = false
		s.requestSave()
	}
}

// requestSave persists the surface. Requests made while a save is in
// flight or a restore is pending collapse into one later save.
func (s *Session) requestSave() {
	if s.saving || s.restores > 0 {
		s.saveAgain = true
		return
	}
	s.saving = true
	s.io <- s.saveJob(s.surface.Snapshot(), s.clock.Now())
}

// saveJob is never cancelled: leaving a room lets it finish.
func (s *Session) saveJob(img *image.RGBA, at time.Time) func() {
	return func() {
		if err := s.store.Save(context.Background(), img, at); err != nil {
			log.Warn().Err(err).Msg("snapshot skipped")
		} else {
			log.Debug().Time("captured_at", at).Msg("snapshot saved")
		}
		s.post(s.saveDone)
	}
}

func (s *Session) saveDone() {
	s.saving = false
	if s.saveAgain {
		s.saveAgain = false
		s.requestSave()
	}
}

// Resize reallocates the surface and carries the current pixels over, so
// strokes not yet persisted survive. A restore still in flight lands on
// the new surface instead.
func (s *Session) Resize(width, height int) error {
	return s.call(func() {
		if s.surface.SameSize(width, height) {
			return
		}
		prev := s.surface.Snapshot()
		s.surface.Resize(width, height)
		if s.restores > 0 {
			return
		}
		s.surface.Restore(prev)
		s.dirty = true
	})
}
