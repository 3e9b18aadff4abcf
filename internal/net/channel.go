package net

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const flushTimeout = time.Second

type ChannelConfig struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int // zero retries forever
	OutboxSize  int
	InboxSize   int
}

func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		MaxAttempts: 20,
		OutboxSize:  256,
		InboxSize:   256,
	}
}

// Channel is one membership of one room. Frames are sent at most once and
// never acknowledged; frames queued when a link drops are discarded, and
// nothing missed while disconnected is replayed. A Channel is joined once;
// open a new one to change rooms.
type Channel struct {
	dialer   Dialer
	cfg      ChannelConfig
	clock    clockwork.Clock
	onChange func(State)

	mu     sync.Mutex
	state  State
	room   string
	used   bool
	left   bool
	outbox chan []byte

	inbound chan []byte
	stop    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewChannel(dialer Dialer, cfg ChannelConfig, clock clockwork.Clock) *Channel {
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = DefaultChannelConfig().OutboxSize
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultChannelConfig().InboxSize
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultChannelConfig().BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return &Channel{
		dialer:  dialer,
		cfg:     cfg,
		clock:   clock,
		inbound: make(chan []byte, cfg.InboxSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// OnStateChange registers a callback invoked on every transition. It must
// be set before Join and must not block.
func (c *Channel) OnStateChange(fn func(State)) {
	c.onChange = fn
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Inbound delivers frames from other members. It is closed once the
// channel gives up or is left.
func (c *Channel) Inbound() <-chan []byte { return c.inbound }

// Join dials the room. A failed first dial is not an error: the channel
// moves to Reconnecting and keeps trying in the background.
func (c *Channel) Join(ctx context.Context, room string) error {
	c.mu.Lock()
	if c.used {
		c.mu.Unlock()
		return errors.New("channel already joined a room")
	}
	c.used = true
	c.room = room
	c.mu.Unlock()

	c.setState(Connecting)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	link, err := c.dialer.Dial(ctx, room)
	if err != nil {
		log.Warn().Err(err).Str("room", room).Msg("initial dial failed")
		link = nil
	}
	go c.run(runCtx, link)
	return nil
}

// Send queues a frame for the current link.
func (c *Channel) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Joined || c.outbox == nil {
		return ErrNotJoined
	}
	select {
	case c.outbox <- frame:
		return nil
	default:
		return fmt.Errorf("%w: outbox full", ErrTransportFailure)
	}
}

// Leave flushes frames already queued, closes the link and stops retrying.
// If ctx ends first, pending frames are abandoned.
func (c *Channel) Leave(ctx context.Context) {
	c.mu.Lock()
	if !c.used || c.left {
		c.mu.Unlock()
		return
	}
	c.left = true
	cancel := c.cancel
	c.mu.Unlock()

	c.setState(Disconnected)
	close(c.stop)
	select {
	case <-c.done:
	case <-ctx.Done():
		cancel()
		<-c.done
	}
	cancel()
}

func (c *Channel) run(ctx context.Context, link Link) {
	defer close(c.done)
	defer close(c.inbound)

	attempt := 0
	for {
		if link != nil {
			attempt = 0
			err := c.serve(ctx, link)
			if c.stopped() {
				return
			}
			log.Warn().Err(err).Str("room", c.room).Msg("room link lost")
			c.setState(Reconnecting)
		} else {
			c.setState(Reconnecting)
		}

		if c.cfg.MaxAttempts > 0 && attempt >= c.cfg.MaxAttempts {
			log.Error().Str("room", c.room).Int("attempts", attempt).Msg("giving up on room")
			c.setState(Disconnected)
			return
		}
		delay := c.backoff(attempt)
		attempt++
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-c.clock.After(delay):
		}

		l, err := c.dialer.Dial(ctx, c.room)
		if err != nil {
			log.Debug().Err(err).Str("room", c.room).Int("attempt", attempt).Msg("redial failed")
			link = nil
			continue
		}
		link = l
	}
}

func (c *Channel) backoff(attempt int) time.Duration {
	d := c.cfg.BaseDelay
	for range attempt {
		d *= 2
		if d >= c.cfg.MaxDelay {
			return c.cfg.MaxDelay
		}
	}
	return d
}

func (c *Channel) serve(ctx context.Context, link Link) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outbox := make(chan []byte, c.cfg.OutboxSize)
	c.mu.Lock()
	if c.left {
		c.mu.Unlock()
		link.Close()
		return nil
	}
	c.outbox = outbox
	c.mu.Unlock()
	c.setState(Joined)
	defer func() {
		c.mu.Lock()
		c.outbox = nil
		c.mu.Unlock()
	}()

	errc := make(chan error, 2)
	go func() { errc <- c.writeLoop(ctx, link, outbox) }()
	go func() { errc <- c.readLoop(ctx, link) }()

	err := <-errc
	cancel()
	link.Close()
	<-errc
	return err
}

func (c *Channel) writeLoop(ctx context.Context, link Link, outbox chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			c.flush(ctx, link, outbox)
			return nil
		case frame := <-outbox:
			if err := link.Send(ctx, frame); err != nil {
				return err
			}
		}
	}
}

func (c *Channel) flush(ctx context.Context, link Link, outbox chan []byte) {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	for {
		select {
		case frame := <-outbox:
			if err := link.Send(ctx, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, link Link) error {
	for {
		frame, err := link.Recv(ctx)
		if err != nil {
			return err
		}
		select {
		case c.inbound <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Channel) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	if c.state == s || (c.left && s != Disconnected) {
		c.mu.Unlock()
		return
	}
	c.state = s
	fn := c.onChange
	c.mu.Unlock()

	log.Debug().Str("room", c.room).Str("state", s.String()).Msg("room channel state")
	if fn != nil {
		fn(s)
	}
}
