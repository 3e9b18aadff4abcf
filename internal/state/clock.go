package state

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// NewPeerID returns a fresh identifier for this participant.
func NewPeerID() string {
	return uuid.NewString()
}

// Sequencer hands out stroke identifiers for one peer.
type Sequencer struct {
	peer string
	seq  atomic.Uint64
}

func NewSequencer(peer string) *Sequencer {
	return &Sequencer{peer: peer}
}

func (s *Sequencer) Peer() string { return s.peer }

func (s *Sequencer) Next() StrokeID {
	return StrokeID{Peer: s.peer, Seq: s.seq.Add(1)}
}
