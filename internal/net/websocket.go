package net

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer connects to a relay at <URL>/ws/<room>?peer=<Peer>.
type WebSocketDialer struct {
	URL          string
	Peer         string
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	Header       http.Header
}

func (d WebSocketDialer) endpoint(room string) (string, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return "", fmt.Errorf("relay url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("relay url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/" + room
	q := u.Query()
	q.Set("peer", d.Peer)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d WebSocketDialer) Dial(ctx context.Context, room string) (Link, error) {
	endpoint, err := d.endpoint(room)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: %v (status %d)", ErrTransportFailure, endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransportFailure, endpoint, err)
	}

	l := &wsLink{
		conn:         conn,
		writeTimeout: d.WriteTimeout,
		readTimeout:  d.ReadTimeout,
		frames:       make(chan []byte, 64),
		closed:       make(chan struct{}),
	}
	if l.writeTimeout <= 0 {
		l.writeTimeout = 10 * time.Second
	}
	if l.readTimeout <= 0 {
		l.readTimeout = 60 * time.Second
	}
	conn.SetReadDeadline(time.Now().Add(l.readTimeout))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(l.readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(l.writeTimeout))
	})
	go l.readPump()
	return l, nil
}

type wsLink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	readTimeout  time.Duration

	frames chan []byte
	once   sync.Once
	closed chan struct{}
	err    error
}

func (l *wsLink) readPump() {
	defer l.shutdown(fmt.Errorf("%w: read pump stopped", ErrTransportFailure))
	for {
		kind, data, err := l.conn.ReadMessage()
		if err != nil {
			l.shutdown(fmt.Errorf("%w: %v", ErrTransportFailure, err))
			return
		}
		l.conn.SetReadDeadline(time.Now().Add(l.readTimeout))
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		select {
		case l.frames <- data:
		case <-l.closed:
			return
		}
	}
}

func (l *wsLink) Send(ctx context.Context, frame []byte) error {
	deadline := time.Now().Add(l.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	l.conn.SetWriteDeadline(deadline)
	if err := l.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	return nil
}

func (l *wsLink) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-l.frames:
		return frame, nil
	case <-l.closed:
		return nil, l.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *wsLink) Close() error {
	l.shutdown(fmt.Errorf("%w: link closed", ErrTransportFailure))
	return nil
}

func (l *wsLink) shutdown(err error) {
	l.once.Do(func() {
		l.err = err
		close(l.closed)
		l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		l.conn.Close()
	})
}
