package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "livecanvas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 16*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, 3*time.Second, cfg.CursorTimeout)
}

func TestFileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
transport: nats
nats_url: nats://broker:4222
frame_interval: 33ms
canvas:
  width: 640
relay:
  allowed_origins: [http://a.test]
`)
	t.Setenv("LIVECANVAS_CONFIG", path)
	t.Setenv("LIVECANVAS_CANVAS_HEIGHT", "480")
	t.Setenv("LIVECANVAS_RELAY_ADVERTISE", "false")
	t.Setenv("LIVECANVAS_RELAY_ALLOWED_ORIGINS", "http://b.test, http://c.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "nats", cfg.Transport)
	assert.Equal(t, "nats://broker:4222", cfg.NATSURL)
	assert.Equal(t, 33*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, 640, cfg.Canvas.Width)
	assert.Equal(t, 480, cfg.Canvas.Height)
	assert.False(t, cfg.Relay.Advertise)
	assert.Equal(t, []string{"http://b.test", "http://c.test"}, cfg.Relay.AllowedOrigins)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr, "untouched default")
}

func TestExplicitMissingFileFails(t *testing.T) {
	t.Setenv("LIVECANVAS_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBadValuesAreReported(t *testing.T) {
	t.Setenv("LIVECANVAS_CONFIG", writeConfig(t, "transport: carrier-pigeon\n"))
	t.Setenv("LIVECANVAS_FRAME_INTERVAL", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LIVECANVAS_FRAME_INTERVAL")

	t.Setenv("LIVECANVAS_FRAME_INTERVAL", "16ms")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestSnapshotStoreSelection(t *testing.T) {
	t.Setenv("LIVECANVAS_CONFIG", writeConfig(t, "snapshot_store: redis\nsnapshot_key: boards:me\n"))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.SnapshotStore)
	assert.Equal(t, "boards:me", cfg.SnapshotKey)

	bad := Default()
	bad.SnapshotStore = "floppy"
	assert.ErrorContains(t, bad.Validate(), "floppy")

	bad = Default()
	bad.SnapshotStore = "redis"
	bad.SnapshotKey = ""
	assert.ErrorContains(t, bad.Validate(), "snapshot_key")
}
