// Command livecanvas is the desktop drawing client.
//
//	livecanvas                         landing state
//	livecanvas <room>                  join room over the configured transport
//	livecanvas livecanvas://host:port/<room>
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"LiveCanvas/internal/board"
	"LiveCanvas/internal/config"
	roomnet "LiveCanvas/internal/net"
	"LiveCanvas/internal/snapshot"
	"LiveCanvas/internal/state"
	"LiveCanvas/internal/ui"
)

const (
	discoverTimeout = 3 * time.Second
	openTimeout     = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogging(cfg.LogLevel)

	room, err := parseArgs(cfg, os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("bad arguments")
	}
	if cfg.Peer == "" {
		cfg.Peer = state.NewPeerID()
	}

	dialer, closeDialer, err := newDialer(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("transport", cfg.Transport).Msg("transport setup failed")
	}
	defer closeDialer()

	slot, closeSlot := newSlot(cfg)
	defer closeSlot()
	open := func(room string, onChange func()) (*board.Session, error) {
		ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
		defer cancel()
		return board.Open(ctx, board.Options{
			Room:   room,
			Peer:   cfg.Peer,
			Width:  cfg.Canvas.Width,
			Height: cfg.Canvas.Height,
			Dialer: dialer,
			Channel: roomnet.ChannelConfig{
				BaseDelay:   cfg.Reconnect.BaseDelay,
				MaxDelay:    cfg.Reconnect.MaxDelay,
				MaxAttempts: cfg.Reconnect.MaxAttempts,
				OutboxSize:  roomnet.DefaultChannelConfig().OutboxSize,
				InboxSize:   roomnet.DefaultChannelConfig().InboxSize,
			},
			Slot:          slot,
			FrameInterval: cfg.FrameInterval,
			CursorTimeout: cfg.CursorTimeout,
			OnChange:      onChange,
		})
	}

	log.Info().Str("peer", cfg.Peer).Str("transport", cfg.Transport).Str("room", room).Msg("starting client")
	err = ui.RunApp(ui.AppOptions{
		Title:     "LiveCanvas",
		Room:      room,
		Open:      open,
		ShareLink: shareLinker(cfg),
	})
	if err != nil {
		log.Error().Err(err).Msg("client exited")
	}
}

// parseArgs accepts a share link, which also selects the relay, or a bare
// room identifier.
func parseArgs(cfg *config.Config, args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	arg := args[0]
	if strings.HasPrefix(arg, roomnet.LinkScheme) {
		relayURL, room, err := roomnet.ParseShareLink(arg)
		if err != nil {
			return "", err
		}
		cfg.Transport = "websocket"
		cfg.RelayURL = relayURL
		return room, nil
	}
	return state.ParseRoom(arg)
}

func newDialer(cfg *config.Config) (roomnet.Dialer, func(), error) {
	switch cfg.Transport {
	case "nats":
		return roomnet.NATSDialer{URL: cfg.NATSURL, Name: "livecanvas-" + cfg.Peer}, func() {}, nil
	case "redis":
		client := redisClient(cfg)
		return roomnet.RedisDialer{Client: client}, func() { client.Close() }, nil
	}

	relayURL := cfg.RelayURL
	if relayURL == "mdns" {
		ctx, cancel := context.WithTimeout(context.Background(), discoverTimeout)
		defer cancel()
		found, err := roomnet.Discover(ctx, discoverTimeout)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("relay", found).Msg("relay discovered")
		relayURL = found
		cfg.RelayURL = found
	}
	return roomnet.WebSocketDialer{
		URL:          relayURL,
		Peer:         cfg.Peer,
		WriteTimeout: cfg.Relay.WriteTimeout,
		ReadTimeout:  cfg.Relay.ReadTimeout,
	}, func() {}, nil
}

// newSlot picks where the single canvas snapshot lives.
func newSlot(cfg *config.Config) (snapshot.Slot, func()) {
	if cfg.SnapshotStore == "redis" {
		client := redisClient(cfg)
		log.Info().Str("addr", cfg.Redis.Addr).Str("key", cfg.SnapshotKey).Msg("snapshots stored in redis")
		return snapshot.RedisSlot{Client: client, Key: cfg.SnapshotKey}, func() { client.Close() }
	}
	return snapshot.FileSlot{Path: cfg.SnapshotPath}, func() {}
}

func redisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// shareLinker renders livecanvas:// links for relay rooms. Broker
// transports have no single address to share, so the room itself is used.
func shareLinker(cfg *config.Config) func(string) string {
	return func(room string) string {
		if cfg.Transport != "websocket" {
			return room
		}
		u, err := url.Parse(cfg.RelayURL)
		if err != nil {
			return room
		}
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			port = 80
			if u.Scheme == "https" || u.Scheme == "wss" {
				port = 443
			}
		}
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" {
			host = roomnet.OutgoingIP()
		}
		return roomnet.ShareLink(host, port, room)
	}
}
