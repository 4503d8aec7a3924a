package adapters

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/htmldoc"
)

func TestGenericScraperExtractsContainers(t *testing.T) {
	t.Parallel()

	page := htmlPage("Local News", `
<main>
  <article>
    <h2><a href="/news/park">New park opens</a></h2>
    <p class="summary">The city opened a new park.</p>
    <span class="author-name">Riley Chen</span>
    <time datetime="2025-03-01T12:00:00Z">March 1</time>
  </article>
  <article>
    <div class="title">Council vote</div>
    <p>First paragraph.</p>
    <p>Second paragraph.</p>
  </article>
</main>`)
	fetcher := newFakeFetcher(map[string]string{"https://local.example.com": page})
	scraper := NewGenericScraper(Deps{Fetcher: fetcher})
	source := crawler.Source{ID: "g1", Name: "Local", BaseURL: "https://local.example.com", Type: crawler.SourceTypeWebsite}
	require.True(t, scraper.Supports(source))

	articles, err := scraper.Extract(context.Background(), source)
	require.NoError(t, err)
	require.Len(t, articles, 2)

	first := articles[0]
	require.Equal(t, "New park opens", first.Title)
	require.Equal(t, "https://local.example.com/news/park", first.URL)
	require.Equal(t, "The city opened a new park.", first.Content)
	require.Equal(t, "Riley Chen", first.Author)
	require.NotNil(t, first.PublishedAt)
	require.False(t, first.IsFallback())

	second := articles[1]
	require.Equal(t, "Council vote", second.Title)
	require.Equal(t, "https://local.example.com", second.URL)
	require.Equal(t, "First paragraph. Second paragraph.", second.Content)
	require.Nil(t, second.PublishedAt)
}

func TestGenericScraperCapsContent(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 2000)
	page := htmlPage("Long", "<article><h1>Long read</h1><p>"+long+"</p></article>")
	fetcher := newFakeFetcher(map[string]string{"https://long.example.com": page})

	articles, err := NewGenericScraper(Deps{Fetcher: fetcher}).Extract(
		context.Background(),
		crawler.Source{BaseURL: "https://long.example.com", Type: crawler.SourceTypeWebsite},
	)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	require.Len(t, articles[0].Content, GenericContentLimit)
	require.Len(t, articles[0].Summary, crawler.SummaryLength)
}

func TestGenericScraperFallsBackToArticleLinks(t *testing.T) {
	t.Parallel()

	page := htmlPage("Links", `
<ul>
  <li>Top: <a href="/story/1">Bridge reopens</a> after repairs</li>
  <li><a href="https://other.example.com/news/2">Rail strike ends</a></li>
  <li><a href="/about">About us</a></li>
  <li><a href="/post/3"></a></li>
</ul>`)
	fetcher := newFakeFetcher(map[string]string{"https://links.example.com": page})

	articles, err := NewGenericScraper(Deps{Fetcher: fetcher}).Extract(
		context.Background(),
		crawler.Source{BaseURL: "https://links.example.com", Type: crawler.SourceTypeWebsite},
	)
	require.NoError(t, err)
	// Selector list order: /news matches are collected before /story.
	require.Len(t, articles, 2)
	require.Equal(t, "Rail strike ends", articles[0].Title)
	require.Equal(t, "https://other.example.com/news/2", articles[0].URL)
	require.Equal(t, "Bridge reopens", articles[1].Title)
	require.Equal(t, "https://links.example.com/story/1", articles[1].URL)
	require.Equal(t, "Top: Bridge reopens after repairs", articles[1].Content)
	require.Equal(t, "link", articles[1].Metadata["extracted_from"])
}

func TestGenericScraperAlwaysReturnsFallbackArticle(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("plain text without structure ", 200)
	page := htmlPage("Bare Page", "<div>"+text+"</div>")
	fetcher := newFakeFetcher(map[string]string{"https://bare.example.com": page})

	articles, err := NewGenericScraper(Deps{Fetcher: fetcher}).Extract(
		context.Background(),
		crawler.Source{Name: "Bare", BaseURL: "https://bare.example.com", Type: crawler.SourceTypeWebsite},
	)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	require.True(t, articles[0].IsFallback())
	require.Equal(t, "Bare Page", articles[0].Title)
	require.Equal(t, "https://bare.example.com", articles[0].URL)
	require.Len(t, articles[0].Content, FallbackContentLimit)
	require.Equal(t, "no_articles_found", articles[0].Metadata["reason"])
}

func TestGenericScraperParseFailureIsCrawlError(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{"https://tiny.example.com": "<p>tiny</p>"})
	_, err := NewGenericScraper(Deps{Fetcher: fetcher}).Extract(
		context.Background(),
		crawler.Source{BaseURL: "https://tiny.example.com", Type: crawler.SourceTypeWebsite},
	)
	require.Error(t, err)
	require.True(t, errors.Is(err, crawler.ErrCrawl))
	require.True(t, errors.Is(err, htmldoc.ErrParse))
}

func TestGenericScraperLargeMalformedPageUsesStreamingBackend(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString(`<html><head><title>Big Page</title></head><body><div class="wrap">`)
	for i := 1; i <= 3; i++ {
		b.WriteString("<article><h2>Story ")
		b.WriteByte(byte('0' + i))
		b.WriteString("</h2><p>Body text</span></article>")
	}
	b.WriteString(`<div class="filler">`)
	b.WriteString(strings.Repeat("lorem ", 120_000))
	b.WriteString("</body></html>")
	page := b.String()
	require.Greater(t, len(page), 700_000)

	var (
		backends []htmldoc.Backend
		sizes    []int
	)
	parser := htmldoc.New(htmldoc.WithSelectionHook(func(backend htmldoc.Backend, size int) {
		backends = append(backends, backend)
		sizes = append(sizes, size)
	}))
	fetcher := newFakeFetcher(map[string]string{"https://big.example.com": page})
	scraper := NewGenericScraper(Deps{Fetcher: fetcher, Parser: parser})
	source := crawler.Source{ID: "big", Name: "Big", BaseURL: "https://big.example.com", Type: crawler.SourceTypeWebsite}

	articles, err := scraper.Extract(context.Background(), source)
	require.NoError(t, err)
	require.Len(t, articles, 3)
	for i, article := range articles {
		require.Equal(t, "Story "+string(rune('1'+i)), article.Title)
		require.False(t, article.IsFallback())
	}
	require.Equal(t, []htmldoc.Backend{htmldoc.BackendStreaming}, backends)
	require.Equal(t, []int{len(page)}, sizes)
}
