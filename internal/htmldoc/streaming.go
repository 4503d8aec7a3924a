package htmldoc

import (
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// compiled caches XPath expressions keyed by source; nil marks a failed compile.
var compiled sync.Map

type xpathFinder struct{}

func (xpathFinder) find(ctx *html.Node, selector string) []*html.Node {
	var (
		out  []*html.Node
		seen = make(map[*html.Node]struct{})
	)
	// Evaluated part by part: an XPath union would return document order.
	for _, part := range SplitSelectorList(selector) {
		expr := compileQuery(part)
		if expr == nil {
			continue
		}
		out = appendUnique(out, seen, htmlquery.QuerySelectorAll(ctx, expr))
	}
	return out
}

func compileQuery(selector string) *xpath.Expr {
	if cached, ok := compiled.Load(selector); ok {
		expr, _ := cached.(*xpath.Expr)
		return expr
	}
	query, _ := queryFor(selector)
	var expr *xpath.Expr
	if query != "" {
		if e, err := xpath.Compile(query); err == nil {
			expr = e
		}
	}
	compiled.Store(selector, expr)
	return expr
}

func (p *Parser) parseStreaming(input string) (Document, error) {
	if body, ok := bodySlice(input); ok {
		root, err := htmlquery.Parse(strings.NewReader("<html><body>" + body + "</body></html>"))
		if err == nil && hasRoot(root) && hasContent(root) {
			return &document{root: root, finder: xpathFinder{}, backend: BackendStreaming}, nil
		}
		p.logger.Warn("body slice produced no document, retrying full input",
			zap.Int("size", len(input)),
			zap.Error(err),
		)
	}

	root, err := htmlquery.Parse(strings.NewReader(input))
	if err != nil {
		return nil, &ParseError{Length: len(input), Reason: "streaming parse", Err: err}
	}
	if !hasRoot(root) {
		return nil, &ParseError{Length: len(input), Reason: "streaming parse produced no root element"}
	}
	return &document{root: root, finder: xpathFinder{}, backend: BackendStreaming}, nil
}

// bodySlice returns the markup between the first <body ...> tag and the last
// </body>, located with a case-insensitive scan.
func bodySlice(input string) (string, bool) {
	lower := strings.ToLower(input)
	open := strings.Index(lower, "<body")
	if open < 0 {
		return "", false
	}
	tagEnd := strings.IndexByte(lower[open:], '>')
	if tagEnd < 0 {
		return "", false
	}
	start := open + tagEnd + 1
	end := strings.LastIndex(lower, "</body>")
	if end < start {
		return input[start:], true
	}
	return input[start:end], true
}
