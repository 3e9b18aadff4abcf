// Command relay forwards room traffic between LiveCanvas clients over
// WebSocket and optionally advertises itself on the local network.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"LiveCanvas/internal/config"
	roomnet "LiveCanvas/internal/net"
	"LiveCanvas/internal/relay"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogging(cfg.LogLevel)
	if cfg.Relay.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var presence relay.Presence
	if cfg.Relay.Presence {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis presence enabled")
		presence = relay.NewRedisPresence(client)
	}

	connCfg := relay.DefaultConnectionConfig()
	connCfg.ReadTimeout = cfg.Relay.ReadTimeout
	connCfg.WriteTimeout = cfg.Relay.WriteTimeout
	connCfg.PingInterval = cfg.Relay.PingInterval
	connCfg.MaxMessageSize = cfg.Relay.MaxMessageSize
	hub := relay.NewHub(connCfg, presence)

	server := &http.Server{
		Addr:        cfg.Relay.Listen,
		Handler:     relay.NewRouter(hub, cfg.Relay.AllowedOrigins),
		IdleTimeout: 120 * time.Second,
	}
	listener, err := net.Listen("tcp", cfg.Relay.Listen)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Relay.Listen).Msg("failed to listen")
	}
	port := listener.Addr().(*net.TCPAddr).Port

	if cfg.Relay.Advertise {
		mdnsServer, err := roomnet.Advertise(port)
		if err != nil {
			log.Warn().Err(err).Msg("mDNS advertisement disabled")
		} else {
			defer mdnsServer.Shutdown()
		}
	}

	go func() {
		log.Info().Str("addr", listener.Addr().String()).Msg("relay listening")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	log.Info().
		Str("share", roomnet.ShareLink(roomnet.OutgoingIP(), port, "<room>")).
		Str("relay_url", "http://"+net.JoinHostPort(roomnet.OutgoingIP(), strconv.Itoa(port))).
		Msg("clients can join with")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	hub.Close()
	log.Info().Msg("relay shutdown complete")
}
