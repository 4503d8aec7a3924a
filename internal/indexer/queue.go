package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

// ErrQueueFull is returned when the in-process signal buffer is full.
var ErrQueueFull = errors.New("index queue full")

// ChannelQueue delivers index signals to an in-process Indexer.
type ChannelQueue struct {
	ch chan string
}

// NewChannelQueue creates a ChannelQueue buffering up to capacity signals.
func NewChannelQueue(capacity int) *ChannelQueue {
	return &ChannelQueue{ch: make(chan string, capacity)}
}

// EnqueueIndex never blocks the crawl; a full buffer drops the signal.
func (q *ChannelQueue) EnqueueIndex(_ context.Context, articleID string) error {
	select {
	case q.ch <- articleID:
		return nil
	default:
		return fmt.Errorf("article %s: %w", articleID, ErrQueueFull)
	}
}

// Signals is the receive side consumed by Indexer.Run.
func (q *ChannelQueue) Signals() <-chan string {
	return q.ch
}

// PublisherQueue sends index signals through a message broker.
type PublisherQueue struct {
	publisher crawler.Publisher
	topic     string
}

// NewPublisherQueue creates a PublisherQueue publishing to topic.
func NewPublisherQueue(publisher crawler.Publisher, topic string) *PublisherQueue {
	return &PublisherQueue{publisher: publisher, topic: topic}
}

// EnqueueIndex publishes a Signal for articleID.
func (q *PublisherQueue) EnqueueIndex(ctx context.Context, articleID string) error {
	if _, err := q.publisher.Publish(ctx, q.topic, Signal{ArticleID: articleID}); err != nil {
		return fmt.Errorf("publish index signal: %w", err)
	}
	return nil
}
