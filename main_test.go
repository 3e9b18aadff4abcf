package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveCanvas/internal/config"
	"LiveCanvas/internal/snapshot"
)

func TestParseArgsShareLinkSelectsRelay(t *testing.T) {
	cfg := config.Default()
	cfg.Transport = "nats"
	room, err := parseArgs(&cfg, []string{"livecanvas://10.1.2.3:8888/team/a"})
	require.NoError(t, err)
	assert.Equal(t, "team/a", room)
	assert.Equal(t, "websocket", cfg.Transport)
	assert.Equal(t, "http://10.1.2.3:8888", cfg.RelayURL)
}

func TestParseArgsRoom(t *testing.T) {
	cfg := config.Default()
	room, err := parseArgs(&cfg, []string{"/retro/"})
	require.NoError(t, err)
	assert.Equal(t, "retro", room)

	room, err = parseArgs(&cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, room)

	_, err = parseArgs(&cfg, []string{"a b"})
	assert.Error(t, err)
}

func TestShareLinker(t *testing.T) {
	cfg := config.Default()
	cfg.RelayURL = "http://10.0.0.5:9000"
	assert.Equal(t, "livecanvas://10.0.0.5:9000/r1", shareLinker(&cfg)("r1"))

	cfg.RelayURL = "https://relay.example.org"
	assert.Equal(t, "livecanvas://relay.example.org:443/r1", shareLinker(&cfg)("r1"))

	cfg.Transport = "redis"
	assert.Equal(t, "r1", shareLinker(&cfg)("r1"))
}

func TestNewDialerPicksTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Peer = "p"
	for _, transport := range []string{"websocket", "nats", "redis"} {
		cfg.Transport = transport
		d, done, err := newDialer(&cfg)
		require.NoError(t, err, transport)
		assert.NotNil(t, d, transport)
		done()
	}
}

func TestNewSlotFollowsSnapshotStore(t *testing.T) {
	cfg := config.Default()
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "snap.json")
	slot, done := newSlot(&cfg)
	assert.Equal(t, snapshot.FileSlot{Path: cfg.SnapshotPath}, slot)
	done()

	cfg.SnapshotStore = "redis"
	cfg.SnapshotKey = "boards:me"
	slot, done = newSlot(&cfg)
	defer done()
	redisSlot, ok := slot.(snapshot.RedisSlot)
	require.True(t, ok)
	assert.Equal(t, "boards:me", redisSlot.Key)
	assert.Equal(t, cfg.Redis.Addr, redisSlot.Client.Options().Addr)
}
