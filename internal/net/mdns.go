package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
)

const ServiceType = "_livecanvas._tcp"

var ErrNoRelay = errors.New("no relay found on the local network")

// Advertise announces a relay listening on port to the local network.
func Advertise(port int, info ...string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}
	if len(info) == 0 {
		info = []string{"LiveCanvas relay"}
	}
	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	log.Info().Str("service", ServiceType).Str("host", host).Int("port", port).Msg("advertising relay")
	return server, nil
}

// Discover browses for relays and returns the HTTP base URL of the first
// one that answers within timeout.
func Discover(ctx context.Context, timeout time.Duration) (string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	found := make(chan string, 1)
	go func() {
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			select {
			case found <- fmt.Sprintf("http://%s", net.JoinHostPort(e.AddrV4.String(), fmt.Sprint(e.Port))):
			default:
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	errc := make(chan error, 1)
	go func() {
		errc <- mdns.Query(params)
		close(entries)
	}()

	select {
	case addr := <-found:
		return addr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errc:
		select {
		case addr := <-found:
			return addr, nil
		default:
		}
		if err != nil {
			return "", fmt.Errorf("browse %s: %w", ServiceType, err)
		}
		return "", ErrNoRelay
	}
}
