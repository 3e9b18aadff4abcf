package net

import (
	"context"
	"fmt"
	"sync"
)

const hubInboxSize = 1024

// Hub is an in-process room broadcaster. Handy for single-process demos and
// tests without sockets. Each Dialer it hands out is tagged with a name so
// faults can target one participant.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]map[*hubLink]struct{}
	failures map[string]int
}

func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*hubLink]struct{}),
		failures: make(map[string]int),
	}
}

// Dialer returns a dialer whose links are known to the hub as name.
func (h *Hub) Dialer(name string) Dialer {
	return hubDialer{hub: h, name: name}
}

// FailDials makes the next n dials by name fail.
func (h *Hub) FailDials(name string, n int) {
	h.mu.Lock()
	h.failures[name] = n
	h.mu.Unlock()
}

// Drop breaks every link opened by name, as a dropped connection would.
func (h *Hub) Drop(name string) {
	h.mu.Lock()
	var victims []*hubLink
	for _, links := range h.rooms {
		for l := range links {
			if l.name == name {
				victims = append(victims, l)
			}
		}
	}
	h.mu.Unlock()
	for _, l := range victims {
		l.fail()
	}
}

// Members reports how many links are open in room.
func (h *Hub) Members(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

type hubDialer struct {
	hub  *Hub
	name string
}

func (d hubDialer) Dial(ctx context.Context, room string) (Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := d.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failures[d.name] > 0 {
		h.failures[d.name]--
		return nil, fmt.Errorf("%w: dial %s refused", ErrTransportFailure, room)
	}
	l := &hubLink{
		hub:    h,
		name:   d.name,
		room:   room,
		inbox:  make(chan []byte, hubInboxSize),
		closed: make(chan struct{}),
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*hubLink]struct{})
	}
	h.rooms[room][l] = struct{}{}
	return l, nil
}

type hubLink struct {
	hub   *Hub
	name  string
	room  string
	inbox chan []byte

	once   sync.Once
	closed chan struct{}
	err    error
}

func (l *hubLink) Send(ctx context.Context, frame []byte) error {
	select {
	case <-l.closed:
		return l.err
	default:
	}
	l.hub.mu.Lock()
	defer l.hub.mu.Unlock()
	for peer := range l.hub.rooms[l.room] {
		if peer == l {
			continue
		}
		select {
		case peer.inbox <- append([]byte(nil), frame...):
		default:
			// slow member: at-most-once delivery
		}
	}
	return nil
}

func (l *hubLink) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-l.inbox:
		return frame, nil
	case <-l.closed:
		return nil, l.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *hubLink) Close() error {
	l.shutdown(fmt.Errorf("%w: link closed", ErrTransportFailure))
	return nil
}

func (l *hubLink) fail() {
	l.shutdown(fmt.Errorf("%w: connection dropped", ErrTransportFailure))
}

func (l *hubLink) shutdown(err error) {
	l.once.Do(func() {
		l.hub.mu.Lock()
		delete(l.hub.rooms[l.room], l)
		if len(l.hub.rooms[l.room]) == 0 {
			delete(l.hub.rooms, l.room)
		}
		l.hub.mu.Unlock()
		l.err = err
		close(l.closed)
	})
}
