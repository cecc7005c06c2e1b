package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// redisClient is the subset of *redis.Client used for publishing
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher broadcasts events on a global channel and a per-auction
// channel ("<prefix>:<auctionID>") so other nodes can fan out to their own
// websocket clients.
type RedisPublisher struct {
	client redisClient
	prefix string
}

// NewRedisPublisher creates a publisher using channels under prefix
func NewRedisPublisher(client redisClient, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "dream60"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the per-auction channel name
func (p *RedisPublisher) Channel(auctionID string) string {
	if auctionID == "" {
		return p.prefix
	}
	return p.prefix + ":" + auctionID
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.prefix, payload).Err(); err != nil {
		return err
	}
	if e.AuctionID == "" {
		return nil
	}
	return p.client.Publish(ctx, p.Channel(e.AuctionID), payload).Err()
}

var _ Publisher = (*RedisPublisher)(nil)
