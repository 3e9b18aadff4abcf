// Package board runs one drawing session: local capture, the room channel,
// remote application, cursors and snapshot persistence, all serialized on
// a single loop goroutine that owns the surface.
package board

import (
	"context"
	"errors"
	"fmt"
	"image"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"LiveCanvas/internal/apply"
	"LiveCanvas/internal/capture"
	"LiveCanvas/internal/cursor"
	roomnet "LiveCanvas/internal/net"
	"LiveCanvas/internal/raster"
	"LiveCanvas/internal/snapshot"
	"LiveCanvas/internal/state"
)

const (
	taskBuffer   = 256
	noticeBuffer = 64
	leaveTimeout = 2 * time.Second
)

var ErrClosed = errors.New("session closed")

type Options struct {
	// Room is a path-style identifier; empty means the landing state with
	// no channel.
	Room string
	// Peer defaults to a random identifier.
	Peer   string
	Width  int
	Height int

	// Dialer is required to join a room.
	Dialer  roomnet.Dialer
	Channel roomnet.ChannelConfig
	Slot    snapshot.Slot

	Clock         clockwork.Clock
	FrameInterval time.Duration
	CursorTimeout time.Duration
	// ManualFrames disables the frame ticker; the caller drives Tick.
	ManualFrames bool
	// OnChange is called from the loop, at most once per frame, after the
	// surface or the cursor overlay changed. It must not block.
	OnChange func()
}

type Session struct {
	peer  string
	room  string
	opts  Options
	clock clockwork.Clock

	ctx      context.Context
	cancel   context.CancelFunc
	tasks    chan func()
	states   chan roomnet.State
	io       chan func()
	notices  chan Notice
	ready    chan struct{}
	loopDone chan struct{}
	ioDone   chan struct{}
	closing  sync.Once

	channel *roomnet.Channel
	store   *snapshot.Store

	// owned by the loop
	surface   *raster.Surface
	applier   *apply.Applier
	capture   *capture.Capturer
	throttle  cursor.Throttle
	tracker   *cursor.Tracker
	peers     map[string]struct{}
	restores  int
	pending   []func()
	saving    bool
	saveAgain bool
	dirty     bool
	isReady   bool
}

// Open starts a session: the surface starts blank, the stored snapshot is
// restored in the background and the room, if any, is joined.
func Open(ctx context.Context, opts Options) (*Session, error) {
	room, err := state.ParseRoom(opts.Room)
	if err != nil {
		return nil, err
	}
	if room != "" && opts.Dialer == nil {
		return nil, fmt.Errorf("room %q: no dialer", room)
	}
	if opts.Slot == nil {
		opts.Slot = &snapshot.MemorySlot{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 16 * time.Millisecond
	}
	peer := opts.Peer
	if peer == "" {
		peer = state.NewPeerID()
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	surface := raster.New(opts.Width, opts.Height)
	s := &Session{
		peer:      peer,
		room:      room,
		opts:      opts,
		clock:     opts.Clock,
		ctx:       loopCtx,
		cancel:    cancel,
		tasks:     make(chan func(), taskBuffer),
		states:    make(chan roomnet.State, 16),
		io:        make(chan func(), 16),
		notices:   make(chan Notice, noticeBuffer),
		ready:     make(chan struct{}),
		loopDone:  make(chan struct{}),
		ioDone:    make(chan struct{}),
		store:     snapshot.NewStore(opts.Slot),
		surface:   surface,
		applier:   apply.New(surface),
		capture:   capture.New(state.NewSequencer(peer), opts.Clock),
		tracker:   cursor.NewTracker(opts.Clock, opts.CursorTimeout),
		peers:     make(map[string]struct{}),
		restores:  1,
	}

	go s.ioLoop()
	s.io <- s.loadJob(func(img image.Image) {
		if img != nil {
			s.surface.Restore(img)
		}
	})

	if room != "" {
		s.channel = roomnet.NewChannel(opts.Dialer, opts.Channel, opts.Clock)
		s.channel.OnStateChange(func(st roomnet.State) {
			select {
			case s.states <- st:
			default:
				log.Warn().Str("room", room).Str("state", st.String()).Msg("state change dropped")
			}
		})
		if err := s.channel.Join(ctx, room); err != nil {
			cancel()
			close(s.io)
			return nil, err
		}
		s.emit(Notice{Kind: SessionStarted, Room: room, Peer: peer})
	}

	go s.loop()
	log.Info().Str("room", room).Str("peer", peer).Msg("session opened")
	return s, nil
}

func (s *Session) Peer() string { return s.peer }
func (s *Session) Room() string { return s.room }

// State reports the room connection; Disconnected in the landing state.
func (s *Session) State() roomnet.State {
	if s.channel == nil {
		return roomnet.Disconnected
	}
	return s.channel.State()
}

// Notices is closed when the session closes.
func (s *Session) Notices() <-chan Notice { return s.notices }

// Ready is closed once the first snapshot restore has been applied.
func (s *Session) Ready() <-chan struct{} { return s.ready }

func (s *Session) loop() {
	defer close(s.loopDone)

	var tick <-chan time.Time
	if !s.opts.ManualFrames {
		ticker := s.clock.NewTicker(s.opts.FrameInterval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}
	var inbound <-chan []byte
	if s.channel != nil {
		inbound = s.channel.Inbound()
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.tasks:
			fn()
		case st := <-s.states:
			s.stateChanged(st)
		case frame, ok := <-inbound:
			if !ok {
				inbound = nil
				continue
			}
			s.receive(frame)
		case <-tick:
			s.frame()
		}
	}
}

func (s *Session) ioLoop() {
	defer close(s.ioDone)
	for job := range s.io {
		job()
	}
}

// post hands fn to the loop. It reports false once the session is closed.
func (s *Session) post(fn func()) bool {
	select {
	case s.tasks <- fn:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// call runs fn on the loop and waits for it.
func (s *Session) call(fn func()) error {
	done := make(chan struct{})
	if !s.post(func() { fn(); close(done) }) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.loopDone:
		return ErrClosed
	}
}

func (s *Session) emit(n Notice) {
	select {
	case s.notices <- n:
	default:
		log.Debug().Str("notice", n.Kind.String()).Msg("notice dropped, nobody listening")
	}
}

func (s *Session) stateChanged(st roomnet.State) {
	s.emit(Notice{Kind: ConnectionChanged, Room: s.room, Peer: s.peer, State: st})
	if st == roomnet.Joined {
		s.throttle.Reset()
		s.send(state.Hello{Peer: s.peer})
	}
}

// Sync waits until every task posted before it has run.
func (s *Session) Sync() error {
	return s.call(func() {})
}

// Tick runs one frame step: flush buffered points and the cursor, expire
// stale markers.
func (s *Session) Tick() error {
	return s.call(s.frame)
}

func (s *Session) frame() {
	s.send(s.capture.Frame()...)
	if x, y, ok := s.throttle.Frame(); ok {
		s.send(state.Cursor{Peer: s.peer, X: x, Y: y, T: s.clock.Now().UnixMilli()})
	}
	if gone := s.tracker.Sweep(); len(gone) > 0 {
		log.Debug().Strs("peers", gone).Msg("cursor markers expired")
		s.dirty = true
	}
	if s.dirty {
		s.dirty = false
		if s.opts.OnChange != nil {
			s.opts.OnChange()
		}
	}
}

func (s *Session) send(evs ...state.Event) {
	if s.channel == nil {
		return
	}
	for _, ev := range evs {
		frame, err := state.Encode(s.peer, ev)
		if err != nil {
			log.Error().Err(err).Msg("failed to encode event")
			continue
		}
		if err := s.channel.Send(frame); err != nil {
			log.Debug().Err(err).Str("kind", string(ev.Kind())).Msg("event not sent")
		}
	}
}

// paint runs fn now, or after the restore in flight has been applied.
func (s *Session) paint(fn func()) {
	if s.restores > 0 {
		s.pending = append(s.pending, fn)
		return
	}
	fn()
	s.dirty = true
}

func (s *Session) receive(frame []byte) {
	from, ev, err := state.Decode(frame)
	if err != nil {
		log.Debug().Err(err).Str("room", s.room).Msg("dropping frame")
		return
	}
	if from == s.peer {
		return
	}

	switch e := ev.(type) {
	case state.Hello:
		if s.join(from) {
			// introduce ourselves to the newcomer
			s.send(state.Hello{Peer: s.peer})
		}
	case state.Bye:
		if _, ok := s.peers[from]; ok {
			delete(s.peers, from)
			s.emit(Notice{Kind: PeerLeft, Room: s.room, Peer: from})
		}
		if s.tracker.Remove(from) {
			s.dirty = true
		}
	case state.Cursor:
		s.join(from)
		s.tracker.Update(e)
		s.dirty = true
	default:
		s.join(from)
		s.paint(func() { s.applyRemote(ev) })
	}
}

func (s *Session) join(peer string) bool {
	if _, ok := s.peers[peer]; ok {
		return false
	}
	s.peers[peer] = struct{}{}
	s.emit(Notice{Kind: PeerJoined, Room: s.room, Peer: peer})
	return true
}

func (s *Session) applyRemote(ev state.Event) {
	done, err := s.applier.Apply(ev)
	if err != nil {
		log.Debug().Err(err).Msg("dropping event")
		return
	}
	if done != nil {
		log.Debug().Str("stroke", done.ID.String()).Int("points", len(done.Points)).Msg("remote stroke complete")
	}
	if done != nil || ev.Kind() == state.KindClear {
		s.requestSave()
	}
}

// Peers lists the other participants seen in the room.
func (s *Session) Peers() []string {
	var out []string
	s.call(func() {
		out = slices.Sorted(maps.Keys(s.peers))
	})
	return out
}

// Image returns a copy of the composed surface.
func (s *Session) Image() *image.RGBA {
	var img *image.RGBA
	s.call(func() { img = s.surface.Snapshot() })
	return img
}

// Overlay renders the peer cursor layer on a transparent image the size of
// the surface.
func (s *Session) Overlay() *image.RGBA {
	var img *image.RGBA
	s.call(func() { img = cursor.Render(s.surface.Bounds(), s.tracker.Markers()) })
	return img
}

// Close finishes any open stroke, says goodbye, leaves the room and waits
// for snapshot writes in flight.
func (s *Session) Close() error {
	s.closing.Do(func() {
		s.call(func() {
			s.send(s.capture.Up()...)
			s.send(state.Bye{Peer: s.peer})
			if s.saveAgain && s.restores == 0 {
				s.saveAgain = false
				s.io <- s.saveJob(s.surface.Snapshot(), s.clock.Now())
			}
		})
		if s.channel != nil {
			ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
			s.channel.Leave(ctx)
			cancel()
		}
		s.cancel()
		<-s.loopDone
		close(s.io)
		<-s.ioDone
		close(s.notices)
		log.Info().Str("room", s.room).Str("peer", s.peer).Msg("session closed")
	})
	return nil
}
