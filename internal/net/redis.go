package net

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "livecanvas:room:"

// RedisDialer joins rooms as Redis Pub/Sub channels. Redis echoes a
// publisher's own messages; receivers drop them by sender.
type RedisDialer struct {
	Client *redis.Client
}

func RedisChannel(room string) string { return redisChannelPrefix + room }

func (d RedisDialer) Dial(ctx context.Context, room string) (Link, error) {
	channel := RedisChannel(room)
	sub := d.Client.Subscribe(ctx, channel)
	// wait for the subscription to be confirmed so nothing sent after Dial
	// returns is missed
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrTransportFailure, channel, err)
	}
	return &redisLink{client: d.Client, sub: sub, channel: channel}, nil
}

type redisLink struct {
	client  *redis.Client
	sub     *redis.PubSub
	channel string
	once    sync.Once
}

func (l *redisLink) Send(ctx context.Context, frame []byte) error {
	if err := l.client.Publish(ctx, l.channel, frame).Err(); err != nil {
		return fmt.Errorf("%w: publish: %v", ErrTransportFailure, err)
	}
	return nil
}

func (l *redisLink) Recv(ctx context.Context) ([]byte, error) {
	for {
		msg, err := l.sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: receive: %v", ErrTransportFailure, err)
		}
		if m, ok := msg.(*redis.Message); ok {
			return []byte(m.Payload), nil
		}
	}
}

func (l *redisLink) Close() error {
	var err error
	l.once.Do(func() { err = l.sub.Close() })
	return err
}
