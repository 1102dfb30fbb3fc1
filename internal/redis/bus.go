package redis

import (
	"context"
	"encoding/json"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// EventBus carries auction events over one pub/sub channel so every instance
// can deliver them to its own websocket clients.
type EventBus struct {
	rdb     *redis.Client
	channel string
}

func NewEventBus(c *Client, channel string) *EventBus {
	return &EventBus{rdb: c.rdb, channel: channel}
}

func (b *EventBus) Publish(ctx context.Context, event types.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "error encoding event")
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return errors.Wrap(err, "error publishing event")
	}
	return nil
}

// Subscribe returns events published by any instance. The channel closes
// when ctx is done. Undecodable payloads are logged and skipped.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan types.Event, error) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrap(err, "error subscribing to "+b.channel)
	}

	out := make(chan types.Event, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event types.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Warn("Dropping malformed event", "channel", b.channel, "err", err)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
