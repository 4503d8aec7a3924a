package htmldoc

import (
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// classEquals finds [class="v"] so it can match the class token like the
// streaming backend does.
var classEquals = regexp.MustCompile(`\[\s*class\s*=`)

// matchers caches compiled cascadia selectors; a nil entry never matches.
var matchers sync.Map

type cssFinder struct{}

func (cssFinder) find(ctx *html.Node, selector string) []*html.Node {
	var (
		out  []*html.Node
		seen = make(map[*html.Node]struct{})
		sel  = goquery.NewDocumentFromNode(ctx).Selection
	)
	for _, part := range SplitSelectorList(selector) {
		matcher := compileMatcher(part)
		if matcher == nil {
			continue
		}
		out = appendUnique(out, seen, sel.FindMatcher(matcher).Nodes)
	}
	return out
}

func compileMatcher(selector string) goquery.Matcher {
	if cached, ok := matchers.Load(selector); ok {
		m, _ := cached.(goquery.Matcher)
		return m
	}
	var m goquery.Matcher
	if compiledSel, err := cascadia.Compile(classEquals.ReplaceAllString(selector, "[class~=")); err == nil {
		m = compiledSel
	} else if tag := leadingTag(selector); tag != "" {
		if tagSel, err := cascadia.Compile(tag); err == nil {
			m = tagSel
		}
	}
	matchers.Store(selector, m)
	return m
}

func (p *Parser) parseSelector(input string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err == nil && len(doc.Nodes) > 0 && hasRoot(doc.Nodes[0]) {
		return &document{root: doc.Nodes[0], finder: cssFinder{}, backend: BackendSelector}, nil
	}
	if strings.Contains(strings.ToLower(input), "<html") {
		return nil, &ParseError{Length: len(input), Reason: "selector parse produced no root element", Err: err}
	}

	p.logger.Warn("document has no root element, retrying inside a minimal shell",
		zap.Int("size", len(input)),
		zap.Error(err),
	)
	doc, err = goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body>" + input + "</body></html>"))
	if err != nil {
		return nil, &ParseError{Length: len(input), Reason: "selector parse", Err: err}
	}
	if len(doc.Nodes) == 0 || !hasRoot(doc.Nodes[0]) {
		return nil, &ParseError{Length: len(input), Reason: "selector parse produced no root element"}
	}
	return &document{root: doc.Nodes[0], finder: cssFinder{}, backend: BackendSelector}, nil
}
