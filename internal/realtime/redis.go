package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// channelPrefix matches the prefix the platform uses when fanning push events
// out over redis for instances without a direct gateway connection.
const channelPrefix = "realtime:"

// RedisTransport subscribes to the platform's redis pub/sub fanout as an
// alternative push channel. Channel names carry the event name after the
// "realtime:" prefix; message payloads are the raw event payload.
type RedisTransport struct {
	client *redis.Client
	topics []string
}

// NewRedisTransport creates a redis pub/sub transport subscribed to the given
// event topics.
func NewRedisTransport(client *redis.Client, topics []string) *RedisTransport {
	return &RedisTransport{client: client, topics: topics}
}

// Dial verifies the redis connection and opens the subscription.
func (t *RedisTransport) Dial(ctx context.Context) (Session, error) {
	if err := t.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	channels := make([]string, len(t.topics))
	for i, topic := range t.topics {
		channels[i] = channelPrefix + topic
	}

	pubsub := t.client.Subscribe(context.Background(), channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to redis channels: %w", err)
	}

	return &redisSession{pubsub: pubsub, messages: pubsub.Channel()}, nil
}

// redisSession wraps an open redis subscription
type redisSession struct {
	pubsub   *redis.PubSub
	messages <-chan *redis.Message
}

// Receive blocks for the next published event.
func (s *redisSession) Receive() (Envelope, error) {
	msg, ok := <-s.messages
	if !ok {
		return Envelope{}, errors.New("redis subscription closed")
	}
	return Envelope{
		Event:   strings.TrimPrefix(msg.Channel, channelPrefix),
		Payload: []byte(msg.Payload),
	}, nil
}

// Close tears down the subscription.
func (s *redisSession) Close() error {
	return s.pubsub.Close()
}
