// Package net joins a room-scoped broadcast group over a pluggable
// transport and keeps the membership alive across transport failures.
package net

import (
	"context"
	"errors"
)

var (
	ErrTransportFailure = errors.New("transport failure")
	ErrNotJoined        = errors.New("not joined")
)

// Link is one live connection to a room. Recv returns frames sent by other
// members in per-sender order. Send and Recv may be called from different
// goroutines, but each only from one at a time.
type Link interface {
	Send(ctx context.Context, frame []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens a Link scoped to a room.
type Dialer interface {
	Dial(ctx context.Context, room string) (Link, error)
}

type State int

const (
	Disconnected State = iota
	Connecting
	Joined
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Joined:
		return "joined"
	case Reconnecting:
		return "reconnecting"
	}
	return "unknown"
}
