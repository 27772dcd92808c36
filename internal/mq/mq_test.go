package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/imzleep/abibuilder-sub000/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanBackend struct {
	published []Message
	channels  []string
	closed    bool
}

func (b *chanBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.channels = append(b.channels, channel)
	b.published = append(b.published, Message{ID: "m1", Data: data, Attributes: attrs})
	return "m1", nil
}

func (b *chanBackend) Subscribe(ctx context.Context, _ string, handler Handler) error {
	for _, msg := range b.published {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *chanBackend) Close() error {
	b.closed = true
	return nil
}

func TestConnect_Disabled(t *testing.T) {
	m, err := Connect(context.Background(), config.MQConfig{})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestConnect_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MQConfig
	}{
		{"unknown backend", config.MQConfig{Backend: "kafka"}},
		{"rabbitmq without url", config.MQConfig{Backend: BackendRabbitMQ}},
		{"pubsub without project", config.MQConfig{Backend: BackendPubSub}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Connect(context.Background(), tc.cfg)
			require.Error(t, err)
		})
	}
}

func TestMQ_PublishSubscribe(t *testing.T) {
	backend := &chanBackend{}
	m := New(backend)

	id, err := m.Publish(context.Background(), "builds.moderated", []byte(`{"build_id":7}`), map[string]string{"status": "verified"})
	require.NoError(t, err)
	assert.Equal(t, "m1", id)

	var got []Message
	err = m.Subscribe(context.Background(), "builds.moderated", func(_ context.Context, msg Message) error {
		got = append(got, msg)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "verified", got[0].Attributes["status"])

	require.NoError(t, m.Close())
	assert.True(t, backend.closed)
}

type event struct {
	BuildID int64 `json:"build_id"`
}

func TestJSONHandler(t *testing.T) {
	var (
		decoded   []int64
		malformed int
	)
	h := JSONHandler(func(_ context.Context, ev event, _ Message) error {
		decoded = append(decoded, ev.BuildID)
		if ev.BuildID == 0 {
			return errors.New("retry")
		}
		return nil
	}, func(Message, error) { malformed++ })

	require.NoError(t, h(context.Background(), Message{Data: []byte(`{"build_id":3}`)}))
	require.NoError(t, h(context.Background(), Message{Data: []byte(`not json`)}))
	require.Error(t, h(context.Background(), Message{Data: []byte(`{}`)}))

	assert.Equal(t, []int64{3, 0}, decoded)
	assert.Equal(t, 1, malformed)
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))
	assert.Equal(t,
		map[string]string{"status": "verified", "raw": "bytes", "n": "4"},
		headersToAttributes(amqp.Table{"status": "verified", "raw": []byte("bytes"), "n": int32(4)}),
	)
}

func TestRabbitOptions(t *testing.T) {
	opts := rabbitOptionsFrom(config.RabbitMQConfig{QueueSuffix: ".notify", QueueDurable: true})
	assert.Equal(t, defaultExchange, opts.exchange)
	assert.Equal(t, "builds.moderated.notify", opts.queueName("builds.moderated"))
	assert.Equal(t, amqp.Persistent, opts.deliveryMode())

	opts = rabbitOptionsFrom(config.RabbitMQConfig{Exchange: "events"})
	assert.Equal(t, "events", opts.exchange)
	assert.Equal(t, "builds.submitted", opts.queueName("builds.submitted"))
	assert.Equal(t, amqp.Transient, opts.deliveryMode())
}

func TestShouldRequeue(t *testing.T) {
	assert.True(t, shouldRequeue(false))
	assert.False(t, shouldRequeue(true))
}

func TestAttributesToHeaders(t *testing.T) {
	assert.Nil(t, attributesToHeaders(nil))
	headers := attributesToHeaders(map[string]string{"build_id": "7"})
	assert.Equal(t, amqp.Table{"build_id": "7"}, headers)
	assert.Equal(t, map[string]string{"build_id": "7"}, headersToAttributes(headers))
}
