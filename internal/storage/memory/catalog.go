package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

// Catalog holds sources and campaigns, typically seeded from configuration.
type Catalog struct {
	mu        sync.RWMutex
	sources   map[string]crawler.Source
	campaigns map[string]crawler.Campaign
}

// NewCatalog constructs a Catalog seeded with sources and campaigns.
func NewCatalog(sources []crawler.Source, campaigns []crawler.Campaign) *Catalog {
	c := &Catalog{
		sources:   make(map[string]crawler.Source, len(sources)),
		campaigns: make(map[string]crawler.Campaign, len(campaigns)),
	}
	for _, s := range sources {
		c.sources[s.ID] = s
	}
	for _, cp := range campaigns {
		c.campaigns[cp.ID] = cp
	}
	return c
}

// GetSource fetches a source by ID.
func (c *Catalog) GetSource(_ context.Context, sourceID string) (crawler.Source, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sources[sourceID]
	if !ok {
		return crawler.Source{}, fmt.Errorf("source %s: %w", sourceID, crawler.ErrNotFound)
	}
	return s, nil
}

// ListSources returns all sources ordered by ID.
func (c *Catalog) ListSources(_ context.Context) ([]crawler.Source, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]crawler.Source, 0, len(c.sources))
	for _, s := range c.sources {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b crawler.Source) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// UpdateSourceLastCrawled records a successful crawl.
func (c *Catalog) UpdateSourceLastCrawled(_ context.Context, sourceID string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sources[sourceID]
	if !ok {
		return fmt.Errorf("source %s: %w", sourceID, crawler.ErrNotFound)
	}
	s.LastCrawledAt = &at
	c.sources[sourceID] = s
	return nil
}

// ListCampaigns returns all campaigns ordered by ID.
func (c *Catalog) ListCampaigns(_ context.Context) ([]crawler.Campaign, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]crawler.Campaign, 0, len(c.campaigns))
	for _, cp := range c.campaigns {
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b crawler.Campaign) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}
