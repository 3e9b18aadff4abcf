package net

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const natsSubjectPrefix = "livecanvas.room."

// NATSDialer joins rooms as core NATS subjects. Core NATS is at-most-once
// with per-publisher ordering, which is all a room needs.
type NATSDialer struct {
	URL  string
	Name string
}

// NATSSubject maps a room path onto a single subject token.
func NATSSubject(room string) string {
	return natsSubjectPrefix + base64.RawURLEncoding.EncodeToString([]byte(room))
}

func (d NATSDialer) Dial(ctx context.Context, room string) (Link, error) {
	l := &natsLink{
		subject: NATSSubject(room),
		msgs:    make(chan *nats.Msg, 1024),
		closed:  make(chan struct{}),
	}
	opts := []nats.Option{
		nats.Name(d.Name),
		nats.NoEcho(),
		nats.NoReconnect(),
		nats.Timeout(dialTimeout(ctx)),
		nats.ClosedHandler(func(*nats.Conn) {
			l.shutdown(fmt.Errorf("%w: nats connection closed", ErrTransportFailure))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.shutdown(fmt.Errorf("%w: nats disconnected: %v", ErrTransportFailure, err))
		}),
	}
	nc, err := nats.Connect(d.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrTransportFailure, d.URL, err)
	}
	l.nc = nc
	sub, err := nc.ChanSubscribe(l.subject, l.msgs)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrTransportFailure, l.subject, err)
	}
	l.sub = sub
	if err := nc.FlushWithContext(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: flush subscription: %v", ErrTransportFailure, err)
	}
	return l, nil
}

func dialTimeout(ctx context.Context) time.Duration {
	if d, ok := ctx.Deadline(); ok {
		return time.Until(d)
	}
	return nats.GetDefaultOptions().Timeout
}

type natsLink struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	msgs    chan *nats.Msg

	once   sync.Once
	closed chan struct{}
	err    error
}

func (l *natsLink) Send(ctx context.Context, frame []byte) error {
	if err := l.nc.Publish(l.subject, frame); err != nil {
		return fmt.Errorf("%w: publish: %v", ErrTransportFailure, err)
	}
	return nil
}

func (l *natsLink) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-l.msgs:
		return msg.Data, nil
	case <-l.closed:
		return nil, l.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *natsLink) Close() error {
	l.shutdown(fmt.Errorf("%w: link closed", ErrTransportFailure))
	if l.nc != nil {
		l.nc.Close()
	}
	return nil
}

func (l *natsLink) shutdown(err error) {
	l.once.Do(func() {
		l.err = err
		close(l.closed)
	})
}
