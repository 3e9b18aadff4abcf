package net

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type member struct {
	ch     *Channel
	states chan State
}

func join(t *testing.T, hub *Hub, name, room string, cfg ChannelConfig, clock clockwork.Clock) *member {
	t.Helper()
	m := &member{ch: NewChannel(hub.Dialer(name), cfg, clock), states: make(chan State, 32)}
	m.ch.OnStateChange(func(s State) { m.states <- s })
	require.NoError(t, m.ch.Join(context.Background(), room))
	t.Cleanup(func() { m.ch.Leave(context.Background()) })
	return m
}

func (m *member) await(t *testing.T, want State) {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case s := <-m.states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("state %s never reached, now %s", want, m.ch.State())
		}
	}
}

func (m *member) recv(t *testing.T) string {
	t.Helper()
	select {
	case frame, ok := <-m.ch.Inbound():
		require.True(t, ok, "inbound closed")
		return string(frame)
	case <-time.After(waitFor):
		t.Fatal("no frame received")
		return ""
	}
}

func TestJoinAndBroadcast(t *testing.T) {
	hub := NewHub()
	clock := clockwork.NewFakeClock()
	a := join(t, hub, "a", "r1", DefaultChannelConfig(), clock)
	b := join(t, hub, "b", "r1", DefaultChannelConfig(), clock)
	other := join(t, hub, "c", "r2", DefaultChannelConfig(), clock)

	assert.Equal(t, Joined, a.ch.State())
	assert.Equal(t, "r1", a.ch.Room())
	require.NoError(t, a.ch.Send([]byte("hello")))
	assert.Equal(t, "hello", b.recv(t))

	select {
	case frame := <-a.ch.Inbound():
		t.Fatalf("sender received its own frame %q", frame)
	case frame := <-other.ch.Inbound():
		t.Fatalf("other room received %q", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFramesFromOneSenderStayOrdered(t *testing.T) {
	hub := NewHub()
	clock := clockwork.NewFakeClock()
	a := join(t, hub, "a", "r", DefaultChannelConfig(), clock)
	b := join(t, hub, "b", "r", DefaultChannelConfig(), clock)

	for i := range 200 {
		require.NoError(t, a.ch.Send(fmt.Appendf(nil, "%d", i)))
		if i%50 == 49 {
			// let the writer drain so the outbox never fills
			for j := i - 49; j <= i; j++ {
				assert.Equal(t, fmt.Sprint(j), b.recv(t))
			}
		}
	}
}

func TestReconnectsAfterDrop(t *testing.T) {
	hub := NewHub()
	clock := clockwork.NewFakeClock()
	cfg := DefaultChannelConfig()
	a := join(t, hub, "a", "r", cfg, clock)
	b := join(t, hub, "b", "r", cfg, clock)
	a.await(t, Joined)

	hub.Drop("a")
	a.await(t, Reconnecting)
	assert.ErrorIs(t, a.ch.Send([]byte("lost")), ErrNotJoined)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(cfg.BaseDelay)
	a.await(t, Joined)

	require.NoError(t, a.ch.Send([]byte("back")))
	assert.Equal(t, "back", b.recv(t), "nothing from the outage is replayed")
}

func TestInitialDialFailureRetries(t *testing.T) {
	hub := NewHub()
	clock := clockwork.NewFakeClock()
	hub.FailDials("a", 1)
	cfg := DefaultChannelConfig()
	a := join(t, hub, "a", "r", cfg, clock)
	a.await(t, Connecting)
	a.await(t, Reconnecting)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(cfg.BaseDelay)
	a.await(t, Joined)
	assert.Equal(t, 1, hub.Members("r"))
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	hub := NewHub()
	clock := clockwork.NewFakeClock()
	hub.FailDials("a", 100)
	cfg := DefaultChannelConfig()
	cfg.MaxAttempts = 2
	a := join(t, hub, "a", "r", cfg, clock)
	a.await(t, Reconnecting)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	for _, d := range []time.Duration{cfg.BaseDelay, 2 * cfg.BaseDelay} {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(d)
	}
	a.await(t, Disconnected)

	select {
	case _, ok := <-a.ch.Inbound():
		assert.False(t, ok)
	case <-time.After(waitFor):
		t.Fatal("inbound not closed")
	}
}

func TestLeaveFlushesQueuedFrames(t *testing.T) {
	hub := NewHub()
	clock := clockwork.NewFakeClock()
	a := join(t, hub, "a", "r", DefaultChannelConfig(), clock)
	b := join(t, hub, "b", "r", DefaultChannelConfig(), clock)

	require.NoError(t, a.ch.Send([]byte("bye")))
	a.ch.Leave(context.Background())
	a.await(t, Disconnected)
	assert.Equal(t, "bye", b.recv(t))
	assert.ErrorIs(t, a.ch.Send([]byte("late")), ErrNotJoined)
	assert.Equal(t, 1, hub.Members("r"))
	assert.Error(t, a.ch.Join(context.Background(), "r"), "single use")
}

func TestBackoffIsCapped(t *testing.T) {
	c := NewChannel(NewHub().Dialer("x"), ChannelConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second}, clockwork.NewFakeClock())
	var got []time.Duration
	for i := range 5 {
		got = append(got, c.backoff(i))
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}, got)
}

func TestDialerEndpoints(t *testing.T) {
	ws, err := WebSocketDialer{URL: "http://relay.local:8888/", Peer: "p 1"}.endpoint("team/board")
	require.NoError(t, err)
	assert.Equal(t, "ws://relay.local:8888/ws/team/board?peer=p+1", ws)

	_, err = WebSocketDialer{URL: "ftp://x"}.endpoint("r")
	assert.Error(t, err)

	assert.Equal(t, "livecanvas.room.dGVhbS9ib2FyZA", NATSSubject("team/board"))
	assert.Equal(t, "livecanvas:room:team/board", RedisChannel("team/board"))
}

func TestUnreachableBrokersFailAsTransport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	_, err := NATSDialer{URL: "nats://127.0.0.1:1"}.Dial(ctx, "r")
	assert.ErrorIs(t, err, ErrTransportFailure)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()
	_, err = RedisDialer{Client: client}.Dial(ctx, "r")
	assert.ErrorIs(t, err, ErrTransportFailure)

	_, err = WebSocketDialer{URL: "ws://127.0.0.1:1", Peer: "p"}.Dial(ctx, "r")
	assert.ErrorIs(t, err, ErrTransportFailure)
}
