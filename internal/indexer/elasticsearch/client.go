// Package elasticsearch writes article documents to Elasticsearch.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/JakeFAU/news-crawler/internal/indexer"
)

// Config holds connection settings.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// Client indexes documents into a single index.
type Client struct {
	client *es.Client
	index  string
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return NewWithClient(client, cfg.Index), nil
}

// NewWithClient wraps an existing client. An empty index uses indexer.DefaultIndex.
func NewWithClient(client *es.Client, index string) *Client {
	if index == "" {
		index = indexer.DefaultIndex
	}
	return &Client{client: client, index: index}
}

// IndexDocument upserts doc under id.
func (c *Client) IndexDocument(ctx context.Context, id string, doc indexer.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	res, err := c.client.Index(
		c.index,
		bytes.NewReader(body),
		c.client.Index.WithContext(ctx),
		c.client.Index.WithDocumentID(id),
	)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("index document %s: %s", id, res.String())
	}
	return nil
}

// Ping reports whether the cluster is reachable.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("ping elasticsearch: %s", res.Status())
	}
	return nil
}
