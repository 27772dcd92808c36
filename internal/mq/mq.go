// Package mq carries build lifecycle events over a message broker.
// RabbitMQ and Google Cloud Pub/Sub backends are supported.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/imzleep/abibuilder-sub000/config"
)

// Supported backend names.
const (
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Connect dials the broker selected by cfg. An empty backend name disables
// the broker and returns nil.
func Connect(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch name {
	case "":
		return nil, nil
	case BackendRabbitMQ:
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case BackendPubSub:
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	return New(backend), nil
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}

// JSONHandler decodes each message body into T before calling fn. Bodies
// that do not decode are reported to onMalformed and acknowledged, since
// redelivery cannot fix them.
func JSONHandler[T any](fn func(ctx context.Context, v T, msg Message) error, onMalformed func(msg Message, err error)) Handler {
	return func(ctx context.Context, msg Message) error {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			if onMalformed != nil {
				onMalformed(msg, err)
			}
			return nil
		}
		return fn(ctx, v, msg)
	}
}
