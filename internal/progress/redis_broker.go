package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChannelPrefix prefixes the per-session Redis channel name.
const ChannelPrefix = "batchgen:progress:"

// Channel returns the Redis channel carrying sessionID's snapshots.
func Channel(sessionID uuid.UUID) string {
	return ChannelPrefix + sessionID.String()
}

// NewRedisClient parses url, connects and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RedisBroker publishes snapshots over Redis pub/sub and relays every
// snapshot it receives into a local Hub.
type RedisBroker struct {
	client *redis.Client
	local  *Hub
	logger *slog.Logger
}

// NewRedisBroker creates a broker relaying into local.
func NewRedisBroker(client *redis.Client, local *Hub, logger *slog.Logger) *RedisBroker {
	return &RedisBroker{
		client: client,
		local:  local,
		logger: logger.With("component", "progress_redis_broker"),
	}
}

// Publish sends s on the session channel. If Redis is unreachable the
// snapshot is still delivered to local subscribers and the error returned.
func (b *RedisBroker) Publish(ctx context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := b.client.Publish(ctx, Channel(s.SessionID), data).Err(); err != nil {
		_ = b.local.Publish(ctx, s)
		return fmt.Errorf("failed to publish snapshot to redis: %w", err)
	}
	return nil
}

// Run relays snapshots from Redis into the local hub until ctx is done.
// The subscription is confirmed before Run starts relaying, so a caller
// that waits on ready does not miss messages published afterwards.
func (b *RedisBroker) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := b.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer func() {
		if err := pubsub.Close(); err != nil {
			b.logger.Warn("failed to close redis subscription", "error", err)
		}
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to progress channels: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	b.logger.Info("relaying progress snapshots from redis")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			b.relay(ctx, msg)
		}
	}
}

func (b *RedisBroker) relay(ctx context.Context, msg *redis.Message) {
	var s Snapshot
	if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
		b.logger.Warn("dropping malformed snapshot", "channel", msg.Channel, "error", err)
		return
	}
	if Channel(s.SessionID) != msg.Channel {
		b.logger.Warn("dropping snapshot published on another session's channel", "channel", msg.Channel)
		return
	}
	_ = b.local.Publish(ctx, s)
}
