// Package pubsub carries index signals over Google Cloud Pub/Sub. Trace
// context travels in message attributes so indexing spans join the crawl
// that produced the article.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.opentelemetry.io/otel"
)

// Publisher publishes JSON payloads to topics on one client.
type Publisher struct {
	client *pubsub.Client

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// New creates a Publisher backed by client.
func New(client *pubsub.Client) *Publisher {
	return &Publisher{client: client, publishers: make(map[string]*pubsub.Publisher)}
}

// Publish marshals the payload to JSON and publishes it to topic, waiting for
// the server to assign a message ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p.client == nil {
		return "", errors.New("pubsub client is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: make(map[string]string)}
	otel.GetTextMapPropagator().Inject(ctx, &pubsubCarrier{attrs: msg.Attributes})

	result := p.publisher(topic).Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

func (p *Publisher) publisher(topic string) *pubsub.Publisher {
	p.mu.Lock()
	defer p.mu.Unlock()
	pub, ok := p.publishers[topic]
	if !ok {
		pub = p.client.Publisher(topic)
		p.publishers[topic] = pub
	}
	return pub
}

// Stop flushes and stops every topic publisher.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pub := range p.publishers {
		pub.Stop()
	}
}

// Subscriber receives messages from one subscription.
type Subscriber struct {
	sub *pubsub.Subscriber
}

// NewSubscriber creates a Subscriber for subscription on client.
func NewSubscriber(client *pubsub.Client, subscription string) *Subscriber {
	return &Subscriber{sub: client.Subscriber(subscription)}
}

// Receive calls handle for each message until ctx ends. Messages are acked
// when handle succeeds and nacked for redelivery otherwise.
func (s *Subscriber) Receive(ctx context.Context, handle func(ctx context.Context, data []byte) error) error {
	err := s.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		ctx = otel.GetTextMapPropagator().Extract(ctx, &pubsubCarrier{attrs: msg.Attributes})
		if err := handle(ctx, msg.Data); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receive: %w", err)
	}
	return nil
}

// pubsubCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type pubsubCarrier struct {
	attrs map[string]string
}

func (c *pubsubCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *pubsubCarrier) Set(key, value string) {
	if c.attrs == nil {
		c.attrs = make(map[string]string)
	}
	c.attrs[key] = value
}

func (c *pubsubCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
