package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/id/uuid"
)

// ArticleStore keeps articles in insertion order.
type ArticleStore struct {
	mu       sync.RWMutex
	ids      crawler.IDGenerator
	articles map[string]crawler.Article
	order    []string
}

// NewArticleStore constructs an ArticleStore. A nil ids uses UUIDv7.
func NewArticleStore(ids crawler.IDGenerator) *ArticleStore {
	if ids == nil {
		ids = uuid.NewUUIDGenerator()
	}
	return &ArticleStore{ids: ids, articles: make(map[string]crawler.Article)}
}

// SaveArticle stores a copy of article and returns its ID.
func (s *ArticleStore) SaveArticle(_ context.Context, article crawler.Article) (string, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("article id: %w", err)
	}
	article.ID = id
	article.Metadata = maps.Clone(article.Metadata)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[id] = article
	s.order = append(s.order, id)
	return id, nil
}

// DeleteArticlesBySource removes every article for sourceID.
func (s *ArticleStore) DeleteArticlesBySource(_ context.Context, sourceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	deleted := 0
	for _, id := range s.order {
		if s.articles[id].SourceID == sourceID {
			delete(s.articles, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return deleted, nil
}

// GetArticle fetches an article by ID.
func (s *ArticleStore) GetArticle(_ context.Context, articleID string) (crawler.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	article, ok := s.articles[articleID]
	if !ok {
		return crawler.Article{}, fmt.Errorf("article %s: %w", articleID, crawler.ErrNotFound)
	}
	return article, nil
}

// ListArticlesBySource returns the source's articles in insertion order.
func (s *ArticleStore) ListArticlesBySource(_ context.Context, sourceID string) ([]crawler.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.Article
	for _, id := range s.order {
		if a := s.articles[id]; a.SourceID == sourceID {
			out = append(out, a)
		}
	}
	return out, nil
}
