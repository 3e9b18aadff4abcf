package relay

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceTTL = 24 * time.Hour

// Presence records which peers are in a room so relays sharing a Redis
// instance report the same counts.
type Presence interface {
	Join(ctx context.Context, room, peer string) error
	Leave(ctx context.Context, room, peer string) error
	Count(ctx context.Context, room string) (int, error)
}

type RedisPresence struct {
	client *redis.Client
}

func NewRedisPresence(client *redis.Client) *RedisPresence {
	return &RedisPresence{client: client}
}

func presenceKey(room string) string {
	return "livecanvas:room:" + room + ":peers"
}

func (p *RedisPresence) Join(ctx context.Context, room, peer string) error {
	key := presenceKey(room)
	pipe := p.client.TxPipeline()
	pipe.SAdd(ctx, key, peer)
	pipe.Expire(ctx, key, presenceTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPresence) Leave(ctx context.Context, room, peer string) error {
	return p.client.SRem(ctx, presenceKey(room), peer).Err()
}

func (p *RedisPresence) Count(ctx context.Context, room string) (int, error) {
	n, err := p.client.SCard(ctx, presenceKey(room)).Result()
	return int(n), err
}
