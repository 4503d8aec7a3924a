package adapters

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/htmldoc"
)

var (
	genericContainers = []string{
		"article",
		"div.article",
		`div[class*="article"]`,
		"div.post",
		`div[class*="post"]`,
		"div.entry",
		`div[class*="entry"]`,
		"div.item",
		`div[class*="item"]`,
	}
	genericTitles   = []string{"h1", "h2", "h3", ".title", `[class*="title"]`, "a.title"}
	genericContents = []string{".content", ".excerpt", ".summary", "p", `[class*="content"]`, `[class*="excerpt"]`}
	genericAuthor   = `.author, [class*="author"], .byline, [class*="byline"]`
	genericDate     = `time, .date, [class*="date"], .published, [class*="published"]`
	articleLinks    = `a[href*="/article"], a[href*="/post"], a[href*="/news"], a[href*="/story"]`
)

// GenericScraper extracts articles from arbitrary websites using common
// markup conventions.
type GenericScraper struct {
	deps Deps
}

// NewGenericScraper constructs a GenericScraper.
func NewGenericScraper(deps Deps) *GenericScraper {
	return &GenericScraper{deps: deps.withDefaults("generic")}
}

// Name implements Adapter.
func (g *GenericScraper) Name() string { return "Generic Website Crawler" }

// Priority implements Adapter.
func (g *GenericScraper) Priority() int { return PriorityGeneric }

// Supports matches sources declared as website.
func (g *GenericScraper) Supports(source crawler.Source) bool {
	return source.Type == crawler.SourceTypeWebsite
}

// Extract scans article containers, then article-like links, then falls back
// to a single page-level article.
func (g *GenericScraper) Extract(ctx context.Context, source crawler.Source) ([]crawler.Article, error) {
	doc, _, err := g.deps.fetchDocument(ctx, source.BaseURL)
	if err != nil {
		return nil, &crawler.CrawlError{Adapter: g.Name(), Reason: "load page", Err: err}
	}

	var articles []crawler.Article
	if containers := firstMatch(doc, genericContainers); len(containers) > 0 {
		for _, container := range containers {
			if article, ok := g.fromContainer(container, source); ok {
				articles = append(articles, article)
			}
		}
	} else {
		articles = g.fromLinks(doc, source)
	}

	if len(articles) == 0 {
		g.deps.Logger.Warn("no structured articles found, saving page content",
			zap.String("source_id", source.ID),
			zap.String("url", source.BaseURL),
		)
		articles = append(articles, fallbackArticle(
			g.Name(),
			pageTitle(doc, "Crawled from "+source.Name),
			source.BaseURL,
			doc.Text(),
			map[string]any{"reason": "no_articles_found"},
		))
	}
	return articles, nil
}

func (g *GenericScraper) fromContainer(container htmldoc.Element, source crawler.Source) (crawler.Article, bool) {
	title := firstText(container, genericTitles...)
	if title == "" {
		title = firstText(container, "h1, h2, h3")
	}

	link := source.BaseURL
	if a, ok := container.FindOne("a", 0); ok {
		if href, ok := a.Attr("href"); ok && strings.TrimSpace(href) != "" {
			link = resolveURL(href, source.BaseURL)
		}
	}

	content := ""
	for _, selector := range genericContents {
		var parts []string
		for _, el := range container.Find(selector) {
			if text := el.Text(); text != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			content = strings.Join(parts, " ")
			break
		}
	}
	if content == "" {
		content = container.Text()
	}

	author := firstText(container, genericAuthor)

	var dateValue string
	if el, ok := firstElement(container, genericDate); ok {
		if v, ok := el.Attr("datetime"); ok && v != "" {
			dateValue = v
		} else {
			dateValue = el.Text()
		}
	}

	if title == "" && link == "" {
		return crawler.Article{}, false
	}
	if title == "" {
		title = "Article from " + source.Name
	}
	return crawler.NewArticle(
		g.Name(),
		title,
		link,
		crawler.Truncate(content, GenericContentLimit),
		author,
		parseDate(dateValue),
		nil,
	), true
}

func (g *GenericScraper) fromLinks(doc htmldoc.Document, source crawler.Source) []crawler.Article {
	var articles []crawler.Article
	for _, link := range doc.Find(articleLinks) {
		title := link.Text()
		href, _ := link.Attr("href")
		if title == "" || strings.TrimSpace(href) == "" {
			continue
		}
		content := ""
		if parent, ok := link.Parent(); ok {
			content = parent.Text()
		}
		articles = append(articles, crawler.NewArticle(
			g.Name(),
			title,
			resolveURL(href, source.BaseURL),
			crawler.Truncate(content, FallbackContentLimit),
			"",
			nil,
			map[string]any{"extracted_from": "link"},
		))
	}
	return articles
}

// firstMatch returns the elements of the first selector that matches anything.
func firstMatch(scope finder, selectors []string) []htmldoc.Element {
	for _, selector := range selectors {
		if found := scope.Find(selector); len(found) > 0 {
			return found
		}
	}
	return nil
}
