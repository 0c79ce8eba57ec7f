package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel shared by all instances.
const DefaultChannel = "campus-safety:notify"

// RedisBridge publishes each event to the local hub and to Redis, and feeds
// events published by other instances into the local hub. An instance also
// receives its own events back from Redis; per-subscriber dedupe drops them.
type RedisBridge struct {
	hub     *Hub
	rdb     *redis.Client
	channel string
}

func NewRedisBridge(hub *Hub, rdb *redis.Client, channel string) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBridge{hub: hub, rdb: rdb, channel: channel}
}

// Publish delivers locally first, then fans out through Redis. A Redis
// failure is returned but local subscribers have already been served.
func (b *RedisBridge) Publish(ctx context.Context, ev Event) error {
	b.hub.Deliver(ev)

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Run consumes the Redis channel until ctx is done. Messages are handled one
// at a time so per-subject order is preserved.
func (b *RedisBridge) Run(ctx context.Context) {
	for {
		if err := b.consume(ctx); err != nil {
			slog.Warn("redis notification stream interrupted", "component", "realtime", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (b *RedisBridge) consume(ctx context.Context) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	slog.Info("subscribed to notification channel", "component", "realtime", "channel", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("channel %s closed", b.channel)
			}
			b.handle(msg.Payload)
		}
	}
}

func (b *RedisBridge) handle(payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		slog.Warn("discarding malformed notification", "component", "realtime", "error", err)
		return
	}
	b.hub.Deliver(ev)
}
