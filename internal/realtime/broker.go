package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"sharesync/api/internal/logging"
)

// Channel carries frames between instances.
const Channel = "sharesync:events"

// Broker publishes frames. With a Redis client every publish goes through
// Channel and Run delivers relayed frames to the local hub; without one
// delivery is local only.
type Broker struct {
	hub    *Hub
	client *redis.Client
	logger zerolog.Logger
	now    func() time.Time
}

func NewBroker(hub *Hub, client *redis.Client) *Broker {
	return &Broker{hub: hub, client: client, logger: logging.For("realtime"), now: func() time.Time { return time.Now().UTC() }}
}

func (b *Broker) Hub() *Hub {
	return b.hub
}

// Publish sends typ/payload to room. Errors are returned for logging only.
func (b *Broker) Publish(ctx context.Context, room, typ string, payload any) error {
	if b == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	frame := Frame{Type: typ, Room: room, Payload: raw, At: b.now()}
	if b.client == nil {
		b.hub.Deliver(frame)
		return nil
	}
	encoded, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := b.client.Publish(ctx, Channel, encoded).Err(); err != nil {
		// Keep local subscribers informed even when the relay is down.
		b.hub.Deliver(frame)
		return fmt.Errorf("publish frame: %w", err)
	}
	return nil
}

// Run relays frames from Redis to local subscribers until ctx is done.
func (b *Broker) Run(ctx context.Context) error {
	if b.client == nil {
		<-ctx.Done()
		return nil
	}
	pubsub := b.client.Subscribe(ctx, Channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}
	b.logger.Info().Str("channel", Channel).Msg("realtime relay subscribed")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var frame Frame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				b.logger.Warn().Err(err).Msg("discarding malformed relay frame")
				continue
			}
			b.hub.Deliver(frame)
		}
	}
}
