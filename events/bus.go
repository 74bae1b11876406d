// Package events carries the outbound integration events of the result
// pipeline and the bus they travel on. Publishing is best-effort: a failed
// publish must never roll back the state transition that produced it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Bus is the publish/subscribe port injected into the services. The default
// implementation is an in-process watermill GoChannel; a host can substitute
// a broker-backed bus behind the same interface.
type Bus interface {
	Publish(ctx context.Context, topic string, event interface{}) error
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

type goChannelBus struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

func NewGoChannelBus(logger *slog.Logger) Bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			// Buffered so a slow subscriber cannot stall a publisher.
			OutputChannelBuffer: 64,
		},
		watermill.NewSlogLogger(logger),
	)
	return &goChannelBus{pubsub: pubsub, logger: logger}
}

func (b *goChannelBus) Publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for topic %q: %w", topic, err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to topic %q: %w", topic, err)
	}
	return nil
}

func (b *goChannelBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	messages, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to topic %q: %w", topic, err)
	}
	return messages, nil
}

func (b *goChannelBus) Close() error {
	return b.pubsub.Close()
}
