// Package adapters implements the per-source extraction strategies: outlet
// profiles, feeds, JSON APIs, and a generic website scraper. Each adapter turns
// one Source into normalized articles and degrades to a fallback article
// instead of returning nothing when a page has no recognizable structure.
package adapters

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/htmldoc"
	"github.com/JakeFAU/news-crawler/internal/metrics"
)

// Priorities used by the registry; higher wins.
const (
	PrioritySite    = 100
	PriorityFeed    = 80
	PriorityAPI     = 80
	PriorityGeneric = 10
)

const (
	// FallbackContentLimit caps the page text copied into a fallback article.
	FallbackContentLimit = 2000
	// GenericContentLimit caps content extracted by the generic scraper.
	GenericContentLimit = 5000
)

// Adapter extracts articles for the sources it supports.
type Adapter interface {
	Name() string
	Priority() int
	Supports(source crawler.Source) bool
	Extract(ctx context.Context, source crawler.Source) ([]crawler.Article, error)
}

// Deps bundles the collaborators shared by all adapters.
type Deps struct {
	Fetcher crawler.Fetcher
	Parser  *htmldoc.Parser
	Logger  *zap.Logger
}

func (d Deps) withDefaults(name string) Deps {
	if d.Parser == nil {
		d.Parser = htmldoc.New()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	d.Logger = d.Logger.Named(name)
	return d
}

func (d Deps) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := d.Fetcher.Fetch(ctx, crawler.FetchRequest{URL: rawURL})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return resp.Body, nil
}

// fetchDocument fetches and parses a page, returning the raw body alongside
// the document so fallbacks can use it when parsing fails.
func (d Deps) fetchDocument(ctx context.Context, rawURL string) (htmldoc.Document, string, error) {
	body, err := d.fetch(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}
	raw := string(body)
	doc, err := d.Parser.Parse(raw)
	if err != nil {
		return nil, raw, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, raw, nil
}

// firstText returns the text of the first element with non-empty text, trying
// candidates in order.
func firstText(scope finder, candidates ...string) string {
	for _, selector := range candidates {
		for _, el := range scope.Find(selector) {
			if text := el.Text(); text != "" {
				return text
			}
		}
	}
	return ""
}

// firstElement returns the first element matched by any candidate, in order.
func firstElement(scope finder, candidates ...string) (htmldoc.Element, bool) {
	for _, selector := range candidates {
		if el, ok := scope.FindOne(selector, 0); ok {
			return el, true
		}
	}
	return nil, false
}

// finder is satisfied by both htmldoc.Document and htmldoc.Element.
type finder interface {
	Find(selector string) []htmldoc.Element
	FindOne(selector string, index int) (htmldoc.Element, bool)
}

// ensureScheme prefixes https:// when rawURL has no scheme.
func ensureScheme(rawURL string) string {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	return "https://" + strings.TrimLeft(rawURL, "/")
}

// resolveURL resolves href against base; unparseable input is joined textually.
func resolveURL(href, base string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	baseURL, err := url.Parse(base)
	if err == nil {
		if ref, err := url.Parse(href); err == nil {
			return baseURL.ResolveReference(ref).String()
		}
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
}

func joinPath(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// parseDate accepts the loose date formats found on news pages; unparseable
// input yields nil.
func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := dateparse.ParseAny(value)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// stripTags returns the text content of raw markup without parsing a tree.
func stripTags(raw string) string {
	var sb strings.Builder
	z := html.NewTokenizer(bytes.NewReader([]byte(raw)))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawText(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawText(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func isRawText(tag []byte) bool {
	switch string(tag) {
	case "script", "style", "noscript":
		return true
	}
	return false
}

// fallbackArticle builds the single article emitted when no structured content
// was found. The reason is recorded in metadata and counted.
func fallbackArticle(adapter, title, pageURL, text string, metadata map[string]any) crawler.Article {
	meta := map[string]any{"fallback": true}
	for k, v := range metadata {
		meta[k] = v
	}
	reason, _ := meta["reason"].(string)
	if reason == "" {
		reason = "no_structure"
		if _, ok := meta["parse_error"]; ok {
			reason = "parse_error"
		}
	}
	metrics.ObserveFallback(adapter, reason)
	return crawler.NewArticle(adapter, title, pageURL, crawler.Truncate(text, FallbackContentLimit), "", nil, meta)
}

// pageTitle returns the document <title> text or def.
func pageTitle(doc htmldoc.Document, def string) string {
	if title := firstText(doc, "title"); title != "" {
		return title
	}
	return def
}
