// Package config loads client and relay settings. Later sources win:
// built-in defaults, a YAML file, a .env file, LIVECANVAS_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix   = "LIVECANVAS_"
	defaultFile = "livecanvas.yaml"
	maxSide     = 8192
)

type Config struct {
	Peer          string          `yaml:"peer"`
	Transport     string          `yaml:"transport"`
	RelayURL      string          `yaml:"relay_url"`
	NATSURL       string          `yaml:"nats_url"`
	Redis         RedisConfig     `yaml:"redis"`
	SnapshotStore string          `yaml:"snapshot_store"`
	SnapshotPath  string          `yaml:"snapshot_path"`
	SnapshotKey   string          `yaml:"snapshot_key"`
	Canvas        CanvasConfig    `yaml:"canvas"`
	FrameInterval time.Duration   `yaml:"frame_interval"`
	CursorTimeout time.Duration   `yaml:"cursor_timeout"`
	Reconnect     ReconnectConfig `yaml:"reconnect"`
	LogLevel      string          `yaml:"log_level"`
	Relay         RelayConfig     `yaml:"relay"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CanvasConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type RelayConfig struct {
	Listen         string        `yaml:"listen"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	Advertise      bool          `yaml:"advertise"`
	Presence       bool          `yaml:"presence"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	Environment    string        `yaml:"environment"`
}

func Default() Config {
	return Config{
		Transport:     "websocket",
		RelayURL:      "http://localhost:8888",
		NATSURL:       "nats://localhost:4222",
		Redis:         RedisConfig{Addr: "localhost:6379"},
		SnapshotStore: "file",
		SnapshotPath:  "livecanvas-snapshot.json",
		SnapshotKey:   "livecanvas:snapshot",
		Canvas:        CanvasConfig{Width: 1280, Height: 800},
		FrameInterval: 16 * time.Millisecond,
		CursorTimeout: 3 * time.Second,
		Reconnect: ReconnectConfig{
			BaseDelay:   250 * time.Millisecond,
			MaxDelay:    10 * time.Second,
			MaxAttempts: 20,
		},
		LogLevel: "info",
		Relay: RelayConfig{
			Listen:         ":8888",
			AllowedOrigins: []string{"*"},
			Advertise:      true,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			PingInterval:   30 * time.Second,
			MaxMessageSize: 1 << 20,
			Environment:    "development",
		},
	}
}

// Load reads the YAML file named by LIVECANVAS_CONFIG (livecanvas.yaml when
// unset; a missing default file is not an error), then .env, then the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	path, explicit := os.LookupEnv(envPrefix + "CONFIG")
	if !explicit {
		path = defaultFile
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("PEER", &c.Peer)
	str("TRANSPORT", &c.Transport)
	str("RELAY_URL", &c.RelayURL)
	str("NATS_URL", &c.NATSURL)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	num("REDIS_DB", &c.Redis.DB)
	str("SNAPSHOT_STORE", &c.SnapshotStore)
	str("SNAPSHOT_PATH", &c.SnapshotPath)
	str("SNAPSHOT_KEY", &c.SnapshotKey)
	num("CANVAS_WIDTH", &c.Canvas.Width)
	num("CANVAS_HEIGHT", &c.Canvas.Height)
	dur("FRAME_INTERVAL", &c.FrameInterval)
	dur("CURSOR_TIMEOUT", &c.CursorTimeout)
	dur("RECONNECT_BASE_DELAY", &c.Reconnect.BaseDelay)
	dur("RECONNECT_MAX_DELAY", &c.Reconnect.MaxDelay)
	num("RECONNECT_MAX_ATTEMPTS", &c.Reconnect.MaxAttempts)
	str("LOG_LEVEL", &c.LogLevel)
	str("RELAY_LISTEN", &c.Relay.Listen)
	flag("RELAY_ADVERTISE", &c.Relay.Advertise)
	flag("RELAY_PRESENCE", &c.Relay.Presence)
	dur("RELAY_READ_TIMEOUT", &c.Relay.ReadTimeout)
	dur("RELAY_WRITE_TIMEOUT", &c.Relay.WriteTimeout)
	dur("RELAY_PING_INTERVAL", &c.Relay.PingInterval)
	str("RELAY_ENVIRONMENT", &c.Relay.Environment)
	if v, ok := os.LookupEnv(envPrefix + "RELAY_ALLOWED_ORIGINS"); ok {
		c.Relay.AllowedOrigins = splitList(v)
	}
	if v, ok := os.LookupEnv(envPrefix + "RELAY_MAX_MESSAGE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRELAY_MAX_MESSAGE_SIZE: %w", envPrefix, err))
		} else {
			c.Relay.MaxMessageSize = n
		}
	}
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Transport {
	case "websocket", "nats", "redis":
	default:
		errs = append(errs, fmt.Errorf("transport %q: want websocket, nats or redis", c.Transport))
	}
	switch c.SnapshotStore {
	case "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("snapshot_store %q: want file or redis", c.SnapshotStore))
	}
	if c.SnapshotStore == "redis" && c.SnapshotKey == "" {
		errs = append(errs, errors.New("snapshot_key is required for the redis snapshot store"))
	}
	if c.Canvas.Width < 1 || c.Canvas.Width > maxSide || c.Canvas.Height < 1 || c.Canvas.Height > maxSide {
		errs = append(errs, fmt.Errorf("canvas %dx%d out of range", c.Canvas.Width, c.Canvas.Height))
	}
	if c.FrameInterval <= 0 {
		errs = append(errs, errors.New("frame_interval must be positive"))
	}
	if c.CursorTimeout <= 0 {
		errs = append(errs, errors.New("cursor_timeout must be positive"))
	}
	if c.Reconnect.BaseDelay <= 0 || c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		errs = append(errs, errors.New("reconnect delays must be positive and max_delay >= base_delay"))
	}
	if c.Reconnect.MaxAttempts < 0 {
		errs = append(errs, errors.New("reconnect max_attempts must not be negative"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Relay.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("relay max_message_size must be positive"))
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
