package adapters

import (
	"context"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/htmldoc"
)

const (
	minParagraphLength = 10
	minLooseTextLength = 20
)

// Profile describes how to scrape one outlet. A profile with DetailLinks
// follows listing links to article pages; otherwise it reads listing cards.
type Profile struct {
	Name          string   `mapstructure:"name"`
	DisplayName   string   `mapstructure:"display_name"`
	Match         []string `mapstructure:"match"`
	FeedPath      string   `mapstructure:"feed_path"`
	FallbackTitle string   `mapstructure:"fallback_title"`
	DefaultTitle  string   `mapstructure:"default_title"`

	// Listing cards.
	Containers []string `mapstructure:"containers"`
	Title      []string `mapstructure:"title"`
	Link       []string `mapstructure:"link"`
	Summary    []string `mapstructure:"summary"`

	// Detail pages.
	DetailLinks []string `mapstructure:"detail_links"`
	Headline    []string `mapstructure:"headline"`
	Author      []string `mapstructure:"author"`
	Body        []string `mapstructure:"body"`
	Date        []string `mapstructure:"date"`
}

// BBCProfile reads the BBC feed and falls back to listing cards.
func BBCProfile() Profile {
	return Profile{
		Name:          "bbc",
		DisplayName:   "BBC News Crawler",
		Match:         []string{"bbc.com", "bbc.co.uk"},
		FeedPath:      "/feed",
		FallbackTitle: "BBC News",
		DefaultTitle:  "BBC News Article",
		Containers: []string{
			`article, div[data-testid="card"], div[data-testid="story-card"]`,
			"div.gs-c-promo, div.qa-story",
		},
		Title:   []string{`h3, h2, .qa-story-headline, [data-testid="card-headline"]`},
		Link:    []string{"a"},
		Summary: []string{`p, .qa-story-summary, [data-testid="card-description"]`},
	}
}

// CNNProfile follows container links to article pages.
func CNNProfile() Profile {
	return Profile{
		Name:          "cnn",
		DisplayName:   "CNN News Crawler",
		Match:         []string{"edition.cnn.com"},
		FallbackTitle: "CNN News",
		DefaultTitle:  "CNN Article",
		DetailLinks: []string{
			"a.container__link",
			`a[class*="container__link"]`,
			`a[class="container__link"]`,
		},
		Headline: []string{
			".headline__text",
			`[class*="headline__text"]`,
			`[class="headline__text"]`,
			"h1.headline__text",
			"h1",
			"title",
			".article__headline",
			`[data-module="ArticleHeadline"]`,
		},
		Author: []string{
			".byline__authors",
			`[class*="byline__authors"]`,
			`[class="byline__authors"]`,
			".byline__author",
			`[class*="byline__author"]`,
			".author",
			`[class*="author"]`,
			`[data-module="ArticleAuthor"]`,
			".byline",
			`[class*="byline"]`,
			`[rel="author"]`,
			".article__author",
			`[data-module="Byline"]`,
		},
		Body: []string{
			".article__content",
			`[class*="article__content"]`,
			`[class="article__content"]`,
			".article-body",
			`[class*="article-body"]`,
			".l-container",
			`[data-module="ArticleBody"]`,
		},
		Date: []string{
			`meta[property="article:published_time"]`,
			"time[datetime]",
			".timestamp",
		},
	}
}

// SiteScraper is a profile-driven adapter for a specific outlet.
type SiteScraper struct {
	profile  Profile
	deps     Deps
	worklist *WorkList
}

// NewSiteScraper constructs a SiteScraper for profile.
func NewSiteScraper(profile Profile, deps Deps, worklist *WorkList) *SiteScraper {
	deps = deps.withDefaults("site." + profile.Name)
	if worklist == nil {
		worklist = NewWorkList(WorkListConfig{}, deps.Logger)
	}
	if profile.DisplayName == "" {
		profile.DisplayName = profile.Name
	}
	if profile.FallbackTitle == "" {
		profile.FallbackTitle = profile.DisplayName
	}
	return &SiteScraper{profile: profile, deps: deps, worklist: worklist}
}

// Name implements Adapter.
func (s *SiteScraper) Name() string { return s.profile.DisplayName }

// Priority implements Adapter.
func (s *SiteScraper) Priority() int { return PrioritySite }

// Supports matches base URLs containing one of the profile's match strings.
func (s *SiteScraper) Supports(source crawler.Source) bool {
	base := strings.ToLower(source.BaseURL)
	for _, m := range s.profile.Match {
		if m != "" && strings.Contains(base, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// Extract implements Adapter.
func (s *SiteScraper) Extract(ctx context.Context, source crawler.Source) ([]crawler.Article, error) {
	base := ensureScheme(source.BaseURL)
	logger := s.deps.Logger.With(zap.String("source_id", source.ID))

	if s.profile.FeedPath != "" {
		articles, err := s.fromFeed(ctx, base)
		if err == nil && len(articles) > 0 {
			return articles, nil
		}
		logger.Warn("feed failed, trying website", zap.Error(err), zap.Int("articles", len(articles)))
	}

	body, err := s.deps.fetch(ctx, base)
	if err != nil {
		return nil, &crawler.CrawlError{Adapter: s.Name(), Reason: "fetch listing page", Err: err}
	}
	raw := string(body)
	doc, err := s.deps.Parser.Parse(raw)
	if err != nil {
		logger.Warn("listing page unparseable, saving fallback", zap.Error(err))
		content := stripTags(raw)
		if content == "" {
			content = "Content unavailable - HTML parsing failed"
		}
		return []crawler.Article{fallbackArticle(
			s.Name(),
			s.profile.FallbackTitle+" - "+source.Name,
			source.BaseURL,
			content,
			map[string]any{"source": s.profile.Name, "reason": "parse_error", "parse_error": err.Error()},
		)}, nil
	}

	if len(s.profile.DetailLinks) > 0 {
		return s.fromDetailPages(ctx, doc, source, base, logger)
	}
	return s.fromListing(doc, source, base, logger), nil
}

func (s *SiteScraper) fromFeed(ctx context.Context, base string) ([]crawler.Article, error) {
	body, err := s.deps.fetch(ctx, joinPath(base, s.profile.FeedPath))
	if err != nil {
		return nil, err
	}
	return parseFeed(s.Name(), body, base, map[string]any{"source": s.profile.Name})
}

func (s *SiteScraper) fromListing(
	doc htmldoc.Document,
	source crawler.Source,
	base string,
	logger *zap.Logger,
) []crawler.Article {
	var articles []crawler.Article
	for _, card := range firstMatch(doc, s.profile.Containers) {
		title := firstText(card, s.profile.Title...)
		link := base
		if a, ok := firstElement(card, s.profile.Link...); ok {
			if href, ok := a.Attr("href"); ok && strings.TrimSpace(href) != "" {
				link = resolveURL(href, base)
			}
		}
		if title == "" {
			title = s.profile.DefaultTitle
		}
		articles = append(articles, crawler.NewArticle(
			s.Name(),
			title,
			link,
			firstText(card, s.profile.Summary...),
			"",
			nil,
			map[string]any{"source": s.profile.Name, "parsed_from": "website"},
		))
	}
	if len(articles) > 0 {
		return articles
	}

	logger.Warn("no listing cards found, saving page content")
	return []crawler.Article{fallbackArticle(
		s.Name(),
		pageTitle(doc, s.profile.FallbackTitle),
		source.BaseURL,
		doc.Text(),
		map[string]any{"source": s.profile.Name, "reason": "no_articles_found"},
	)}
}

func (s *SiteScraper) fromDetailPages(
	ctx context.Context,
	doc htmldoc.Document,
	source crawler.Source,
	base string,
	logger *zap.Logger,
) ([]crawler.Article, error) {
	links := s.detailLinks(doc, base)
	if len(links) == 0 {
		logger.Warn("no article links found, saving page content")
		return []crawler.Article{fallbackArticle(
			s.Name(),
			pageTitle(doc, s.profile.FallbackTitle),
			source.BaseURL,
			doc.Text(),
			map[string]any{"source": s.profile.Name, "reason": "no_links_found"},
		)}, nil
	}
	logger.Info("following article links", zap.Int("links", len(links)))

	articles, err := s.worklist.Run(ctx, links, s.extractDetail)
	if err != nil {
		if len(articles) > 0 {
			logger.Warn("detail walk interrupted, keeping partial results", zap.Error(err), zap.Int("articles", len(articles)))
			return articles, nil
		}
		return nil, &crawler.CrawlError{Adapter: s.Name(), Reason: "detail walk", Err: err}
	}
	if len(articles) > 0 {
		return articles, nil
	}

	logger.Warn("no articles created from detail pages, saving page content")
	return []crawler.Article{fallbackArticle(
		s.Name(),
		pageTitle(doc, s.profile.FallbackTitle),
		source.BaseURL,
		doc.Text(),
		map[string]any{"source": s.profile.Name, "reason": "no_articles_created"},
	)}, nil
}

// detailLinks returns absolute, de-duplicated links from the first selector
// that yields any.
func (s *SiteScraper) detailLinks(doc htmldoc.Document, base string) []string {
	for _, selector := range s.profile.DetailLinks {
		var (
			links []string
			seen  = make(map[string]struct{})
		)
		for _, a := range doc.Find(selector) {
			href, ok := a.Attr("href")
			if !ok || strings.TrimSpace(href) == "" {
				continue
			}
			full := resolveURL(href, base)
			if !validURL(full) {
				s.deps.Logger.Debug("skipping invalid link", zap.String("href", href))
				continue
			}
			if _, dup := seen[full]; dup {
				continue
			}
			seen[full] = struct{}{}
			links = append(links, full)
		}
		if len(links) > 0 {
			return links
		}
	}
	return nil
}

func (s *SiteScraper) extractDetail(ctx context.Context, pageURL string) (crawler.Article, error) {
	doc, raw, err := s.deps.fetchDocument(ctx, pageURL)
	if err != nil {
		return crawler.Article{}, err
	}
	title := firstText(doc, s.profile.Headline...)
	if title == "" {
		title = s.profile.DefaultTitle
	}
	author := firstText(doc, s.profile.Author...)
	content := s.bodyText(doc, raw, pageURL)

	meta := map[string]any{"source": s.profile.Name, "parsed_from": "article_page"}
	if content == "" {
		meta["content_empty"] = true
	}
	return crawler.NewArticle(s.Name(), title, pageURL, content, author, s.publishedAt(doc), meta), nil
}

// bodyText tries the profile's body selectors, then readability, then any
// sufficiently long text blocks.
func (s *SiteScraper) bodyText(doc htmldoc.Document, raw, pageURL string) string {
	for _, selector := range s.profile.Body {
		el, ok := doc.FindOne(selector, 0)
		if !ok {
			continue
		}
		var paragraphs []string
		for _, p := range el.Find("p") {
			if text := p.Text(); len(text) > minParagraphLength {
				paragraphs = append(paragraphs, text)
			}
		}
		if len(paragraphs) > 0 {
			return strings.Join(paragraphs, "\n\n")
		}
		if text := el.Text(); text != "" {
			return text
		}
	}

	if text := readableText(raw, pageURL); text != "" {
		return text
	}

	var (
		blocks []string
		seen   = make(map[string]struct{})
	)
	for _, el := range doc.Find("p, div, span") {
		text := el.Text()
		if len(text) <= minLooseTextLength {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		blocks = append(blocks, text)
	}
	return strings.Join(blocks, "\n\n")
}

func (s *SiteScraper) publishedAt(doc htmldoc.Document) *time.Time {
	el, ok := firstElement(doc, s.profile.Date...)
	if !ok {
		return nil
	}
	for _, attr := range []string{"datetime", "content"} {
		if v, ok := el.Attr(attr); ok && v != "" {
			return parseDate(v)
		}
	}
	return parseDate(el.Text())
}

func readableText(raw, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(raw), parsed)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
