package messaging

import (
	"context"
	"fmt"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// ChannelPrefix namespaces every channel published by this service.
const ChannelPrefix = "agenda."

// Channel returns the broker channel for a domain event type.
func Channel(eventType string) string {
	return ChannelPrefix + eventType
}

// Consume subscribes to channel and feeds each message to handler until ctx
// is done or the subscription closes. Handler errors are passed to onError
// and do not stop consumption.
func Consume(ctx context.Context, b Broker, channel string, handler func(context.Context, []byte) error, onError func(error)) error {
	msgs, err := b.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := handler(ctx, msg); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
