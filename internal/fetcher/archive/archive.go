// Package archive decorates a Fetcher so every successful page body is kept
// as a content-addressed snapshot in a blob store.
package archive

import (
	"bytes"
	"context"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/hash/sha256"
	"github.com/JakeFAU/news-crawler/internal/metrics"
)

// DefaultPrefix is the object prefix used when none is configured.
const DefaultPrefix = "snapshots"

// Fetcher archives responses of the wrapped fetcher.
type Fetcher struct {
	next   crawler.Fetcher
	blobs  crawler.BlobStore
	hasher *sha256.Hasher
	prefix string
	logger *zap.Logger
}

// New wraps next. Snapshots are written under prefix.
func New(next crawler.Fetcher, blobs crawler.BlobStore, prefix string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Fetcher{
		next:   next,
		blobs:  blobs,
		hasher: sha256.New(),
		prefix: prefix,
		logger: logger.Named("archive"),
	}
}

// Fetch delegates to the wrapped fetcher and snapshots 2xx bodies. Snapshot
// failures never fail the fetch.
func (f *Fetcher) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	resp, err := f.next.Fetch(ctx, req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || len(resp.Body) == 0 {
		return resp, nil
	}
	f.snapshot(ctx, resp)
	return resp, nil
}

// Key returns the object path for body fetched from rawURL.
func (f *Fetcher) Key(rawURL string, body []byte) string {
	return path.Join(f.prefix, hostOf(rawURL), f.hasher.Hash(body)+".html")
}

func (f *Fetcher) snapshot(ctx context.Context, resp crawler.FetchResponse) {
	key := f.Key(resp.URL, resp.Body)
	contentType := resp.Headers.Get("Content-Type")
	if contentType == "" {
		contentType = "text/html"
	}
	uri, err := f.blobs.PutObject(ctx, key, contentType, bytes.NewReader(resp.Body))
	if err != nil {
		metrics.ObserveSnapshot("error")
		f.logger.Warn("snapshot failed", zap.String("url", resp.URL), zap.String("key", key), zap.Error(err))
		return
	}
	metrics.ObserveSnapshot("ok")
	f.logger.Debug("snapshot stored", zap.String("url", resp.URL), zap.String("uri", uri))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
