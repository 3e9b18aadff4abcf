package net

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"LiveCanvas/internal/state"
)

// LinkScheme prefixes share links handed to the desktop client.
const LinkScheme = "livecanvas://"

var ErrBadLink = errors.New("bad share link")

// ShareLink builds livecanvas://<host>:<port>/<room>.
func ShareLink(host string, port int, room string) string {
	return LinkScheme + net.JoinHostPort(host, strconv.Itoa(port)) + "/" + room
}

// ParseShareLink returns the relay base URL and the room a share link
// points at. A link without a room yields the landing state.
func ParseShareLink(link string) (relayURL, room string, err error) {
	if !strings.HasPrefix(link, LinkScheme) {
		return "", "", fmt.Errorf("%w: want %s prefix", ErrBadLink, LinkScheme)
	}
	u, err := url.Parse("http://" + strings.TrimPrefix(link, LinkScheme))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrBadLink, err)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return "", "", fmt.Errorf("%w: host and port required", ErrBadLink)
	}
	room, err = state.ParseRoom(u.Path)
	if err != nil {
		return "", "", err
	}
	return "http://" + u.Host, room, nil
}
