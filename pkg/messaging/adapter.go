package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/phms-engine/pkg/logger"
)

// ChannelPublisher publishes typed messages onto a single broker channel.
type ChannelPublisher struct {
	broker  Broker
	channel string
}

func NewChannelPublisher(broker Broker, channel string) *ChannelPublisher {
	return &ChannelPublisher{broker: broker, channel: channel}
}

func (p *ChannelPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return p.broker.Publish(ctx, p.channel, Message{Type: eventType, Payload: raw})
}

// Consume subscribes to channel and hands every decodable envelope to handler
// until ctx is done. Handler errors are logged and do not stop consumption.
func Consume(ctx context.Context, broker Broker, channel string, log *logger.Logger, handler func(context.Context, Message) error) error {
	msgChan, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	go func() {
		for raw := range msgChan {
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Warn("dropping undecodable message", "channel", channel, "error", err.Error())
				continue
			}
			if err := handler(ctx, msg); err != nil {
				log.Error(err, "message handler failed", "channel", channel, "type", msg.Type)
			}
		}
	}()

	return nil
}
