// Package memory is an in-process broker with the same JSON framing as the
// Pub/Sub publisher, for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler receives the encoded payload of a published message.
type Handler func(ctx context.Context, data []byte) error

// Publisher records published payloads and delivers them to subscribers.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
	subs     map[string][]Handler
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
	Data    []byte
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{subs: make(map[string][]Handler)}
}

// Subscribe registers h for topic. Delivery is synchronous with Publish.
func (p *Publisher) Subscribe(topic string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[topic] = append(p.subs[topic], h)
}

// Publish encodes payload as JSON, records it, and hands it to subscribers.
// A subscriber error fails the publish, mirroring a nacked delivery.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload, Data: data})
	id := fmt.Sprintf("memory-%d", len(p.messages))
	handlers := append([]Handler(nil), p.subs[topic]...)
	p.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, data); err != nil {
			return id, fmt.Errorf("deliver %s: %w", id, err)
		}
	}
	return id, nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
