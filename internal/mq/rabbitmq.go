package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imzleep/abibuilder-sub000/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultExchange = "abibuilder.events"

// RabbitMQClient publishes events to a topic exchange using the channel
// name as routing key. Subscribers consume from a queue bound to that key.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	opts    rabbitOptions
}

type rabbitOptions struct {
	exchange    string
	queueSuffix string
	durable     bool
	autoDelete  bool
}

func rabbitOptionsFrom(cfg config.RabbitMQConfig) rabbitOptions {
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		exchange = defaultExchange
	}
	return rabbitOptions{
		exchange:    exchange,
		queueSuffix: cfg.QueueSuffix,
		durable:     cfg.QueueDurable,
		autoDelete:  cfg.QueueAutoDelete,
	}
}

// queueName is the consumer queue for a routing key.
func (o rabbitOptions) queueName(channel string) string {
	return channel + o.queueSuffix
}

func (o rabbitOptions) deliveryMode() uint8 {
	if o.durable {
		return amqp.Persistent
	}
	return amqp.Transient
}

// NewRabbitMQClient dials RabbitMQ and declares the event exchange.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	opts := rabbitOptionsFrom(cfg)

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	setup := func() error {
		if cfg.PrefetchCount > 0 {
			if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
				return fmt.Errorf("set prefetch: %w", err)
			}
		}
		if err := ch.ExchangeDeclare(opts.exchange, amqp.ExchangeTopic, opts.durable, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", opts.exchange, err)
		}
		return nil
	}
	if err := setup(); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQClient{conn: conn, channel: ch, opts: opts}, nil
}

// Publish routes a JSON event to the exchange. Attributes travel as
// message headers.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	messageID := uuid.NewString()
	err := r.channel.PublishWithContext(ctx, r.opts.exchange, channel, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: r.opts.deliveryMode(),
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Headers:      attributesToHeaders(attrs),
		Body:         data,
	})
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", channel, err)
	}
	return messageID, nil
}

// Subscribe binds a queue to the channel's routing key and hands each
// delivery to handler until ctx is done. A failed delivery is requeued
// once; a second failure drops it.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	queue, err := r.channel.QueueDeclare(r.opts.queueName(channel), r.opts.durable, r.opts.autoDelete, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := r.channel.QueueBind(queue.Name, channel, r.opts.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue.Name, err)
	}

	consumerTag := "abibuilder-" + uuid.NewString()
	deliveries, err := r.channel.Consume(queue.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			herr := handler(ctx, Message{
				ID:         d.MessageId,
				Data:       d.Body,
				Attributes: headersToAttributes(d.Headers),
			})
			if herr == nil {
				_ = d.Ack(false)
				continue
			}
			_ = d.Nack(false, shouldRequeue(d.Redelivered))
		}
	}
}

// Close closes the channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func shouldRequeue(redelivered bool) bool {
	return !redelivered
}

func attributesToHeaders(attrs map[string]string) amqp.Table {
	if len(attrs) == 0 {
		return nil
	}
	headers := make(amqp.Table, len(attrs))
	for k, v := range attrs {
		headers[k] = v
	}
	return headers
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch v := value.(type) {
		case string:
			attrs[key] = v
		case []byte:
			attrs[key] = string(v)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
