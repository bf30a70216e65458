package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/vmarket/vmarket/internal/domain"
)

// historyMaxLen bounds the per-channel history stream (XADD MAXLEN ~).
const historyMaxLen int64 = 1000

// EventBus implements domain.EventBus with Redis Pub/Sub for live fan-out
// and a capped stream per channel for recent history.
type EventBus struct {
	rdb *redis.Client
}

var _ domain.EventBus = (*EventBus)(nil)

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Underlying()}
}

func historyKey(channel string) string {
	return "history:" + channel
}

// Publish appends payload to the channel's history and publishes it.
func (b *EventBus) Publish(ctx context.Context, channel string, payload []byte) error {
	pipe := b.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: historyKey(channel),
		MaxLen: historyMaxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	})
	pipe.Publish(ctx, channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads that is closed when ctx ends.
// Glob patterns use PSUBSCRIBE.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		pubsub = b.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = b.rdb.Subscribe(ctx, channel)
	}

	// Wait for the subscription confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
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
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Recent returns up to count most recent payloads on channel, oldest first.
func (b *EventBus) Recent(ctx context.Context, channel string, count int64) ([][]byte, error) {
	msgs, err := b.rdb.XRevRangeN(ctx, historyKey(channel), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: recent %s: %w", channel, err)
	}
	out := make([][]byte, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		switch v := msgs[i].Values["payload"].(type) {
		case string:
			out = append(out, []byte(v))
		case []byte:
			out = append(out, v)
		}
	}
	return out, nil
}
