package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
)

// RedisBroker fans out through Redis Pub/Sub so every API replica sees every append.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisBroker(client *redis.Client, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: logger}
}

// ChannelFor names the pub/sub channel of one ticket.
func ChannelFor(ticketID string) string {
	return "outbox:ticket:" + ticketID
}

func (b *RedisBroker) Publish(ctx context.Context, msg domain.OutboundMessage) error {
	payload, err := json.Marshal(toWire(msg))
	if err != nil {
		return fmt.Errorf("encode outbox message: %w", err)
	}
	return b.client.Publish(ctx, ChannelFor(msg.TicketID), payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, ticketID string) (<-chan domain.OutboundMessage, func(), error) {
	pubsub := b.client.Subscribe(ctx, ChannelFor(ticketID))
	// wait for the subscription confirmation so no publish is missed after return
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", ticketID, err)
	}

	out := make(chan domain.OutboundMessage, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				var w wireMessage
				if err := json.Unmarshal([]byte(raw.Payload), &w); err != nil {
					b.logger.Warn("discarding malformed outbox payload", zap.String("channel", raw.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- w.toDomain():
				default:
					b.logger.Warn("outbox subscriber lagging; dropped message", zap.String("ticket_id", ticketID))
				}
			}
		}
	}()
	return out, cancel, nil
}
