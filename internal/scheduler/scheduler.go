// Package scheduler periodically dispatches crawls for sources that are due.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

// DefaultSpec runs the due check once a minute.
const DefaultSpec = "@every 1m"

// Submitter queues a crawl.
type Submitter interface {
	Submit(ctx context.Context, campaignID, sourceID string) error
}

// Scheduler finds due sources of active campaigns and submits them.
type Scheduler struct {
	spec      string
	sources   crawler.SourceStore
	campaigns crawler.CampaignStore
	submitter Submitter
	clock     crawler.Clock
	logger    *zap.Logger

	mu         sync.Mutex
	dispatched map[string]time.Time
}

// New constructs a Scheduler. An empty spec uses DefaultSpec.
func New(
	spec string,
	sources crawler.SourceStore,
	campaigns crawler.CampaignStore,
	submitter Submitter,
	clock crawler.Clock,
	logger *zap.Logger,
) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		spec:       spec,
		sources:    sources,
		campaigns:  campaigns,
		submitter:  submitter,
		clock:      clock,
		logger:     logger.Named("scheduler"),
		dispatched: make(map[string]time.Time),
	}
}

// Start registers the tick with a cron runner and starts it. The runner stops
// when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("schedule tick failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("parse schedule %q: %w", s.spec, err)
	}
	c.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		s.logger.Info("scheduler stopped")
	}()
	return nil
}

// Tick submits every due source once and returns how many were submitted.
// A source belonging to several active campaigns is submitted under the first
// campaign by ID.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.clock.Now()
	campaigns, err := s.campaigns.ListCampaigns(ctx)
	if err != nil {
		return 0, fmt.Errorf("list campaigns: %w", err)
	}
	sources, err := s.sources.ListSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sources: %w", err)
	}
	byID := make(map[string]crawler.Source, len(sources))
	for _, src := range sources {
		byID[src.ID] = src
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	submitted := 0
	seen := make(map[string]bool)
	for _, campaign := range campaigns {
		if !campaign.ActiveAt(now) {
			continue
		}
		for _, sourceID := range campaign.SourceIDs {
			src, ok := byID[sourceID]
			if !ok || !src.Active || seen[sourceID] {
				continue
			}
			seen[sourceID] = true
			if !s.due(src, now) {
				continue
			}
			if err := s.submitter.Submit(ctx, campaign.ID, sourceID); err != nil {
				s.logger.Error("submit crawl failed",
					zap.String("campaign_id", campaign.ID),
					zap.String("source_id", sourceID),
					zap.Error(err),
				)
				continue
			}
			s.dispatched[sourceID] = now
			submitted++
		}
	}
	if submitted > 0 {
		s.logger.Info("crawls scheduled", zap.Int("count", submitted))
	}
	return submitted, nil
}

// due reports whether src has passed its interval both since its last
// successful crawl and since this scheduler last submitted it, so a slow or
// failing crawl is not piled up every tick.
func (s *Scheduler) due(src crawler.Source, now time.Time) bool {
	if !src.Due(now) {
		return false
	}
	last, ok := s.dispatched[src.ID]
	return !ok || !now.Before(last.Add(src.CrawlInterval))
}
