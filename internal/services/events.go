package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/imzleep/abibuilder-sub000/types"
	"go.uber.org/zap"
)

// Broker channels carrying build lifecycle events.
const (
	TopicBuildSubmitted = "builds.submitted"
	TopicBuildModerated = "builds.moderated"
)

// Publisher is the broker surface used for events. *mq.MQ satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// EventPublisher publishes build events. A nil *EventPublisher or one
// without a broker drops events.
type EventPublisher struct {
	broker Publisher
	logger *zap.Logger
}

// NewEventPublisher returns a publisher over broker. A nil broker drops
// every event.
func NewEventPublisher(broker Publisher, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{broker: broker, logger: logger}
}

// Publish sends ev on topic. Failures are logged and never returned: the
// store write the event describes has already happened.
func (p *EventPublisher) Publish(ctx context.Context, topic string, ev types.BuildEvent) {
	if p == nil || p.broker == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("encode build event", zap.String("topic", topic), zap.Error(err))
		return
	}

	attrs := map[string]string{
		"build_id": strconv.FormatInt(ev.BuildID, 10),
		"status":   string(ev.Status),
	}
	id, err := p.broker.Publish(ctx, topic, data, attrs)
	if err != nil {
		p.logger.Warn("publish build event failed",
			zap.String("topic", topic),
			zap.Int64("build_id", ev.BuildID),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("build event published", zap.String("topic", topic), zap.String("message_id", id))
}
