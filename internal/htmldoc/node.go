package htmldoc

import (
	"strings"

	"golang.org/x/net/html"
)

// finder evaluates a selector relative to a context node.
type finder interface {
	find(ctx *html.Node, selector string) []*html.Node
}

type document struct {
	root    *html.Node
	finder  finder
	backend Backend
}

func (d *document) Find(selector string) []Element {
	return wrap(d.finder.find(d.root, selector), d.finder)
}

func (d *document) FindOne(selector string, index int) (Element, bool) {
	return pick(d.Find(selector), index)
}

func (d *document) Text() string {
	if body := findTag(d.root, "body"); body != nil {
		return textOf(body)
	}
	return textOf(d.root)
}

func (d *document) Backend() Backend {
	return d.backend
}

type element struct {
	node   *html.Node
	finder finder
}

func (e *element) Find(selector string) []Element {
	return wrap(e.finder.find(e.node, selector), e.finder)
}

func (e *element) FindOne(selector string, index int) (Element, bool) {
	return pick(e.Find(selector), index)
}

func (e *element) Text() string {
	return textOf(e.node)
}

func (e *element) Attr(name string) (string, bool) {
	for _, attr := range e.node.Attr {
		if strings.EqualFold(attr.Key, name) {
			return attr.Val, true
		}
	}
	return "", false
}

func (e *element) Parent() (Element, bool) {
	parent := e.node.Parent
	if parent == nil || parent.Type != html.ElementNode {
		return nil, false
	}
	return &element{node: parent, finder: e.finder}, true
}

func (e *element) Tag() string {
	return strings.ToLower(e.node.Data)
}

func wrap(nodes []*html.Node, f finder) []Element {
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{node: n, finder: f})
	}
	return out
}

func pick(elements []Element, index int) (Element, bool) {
	if index < 0 || index >= len(elements) {
		return nil, false
	}
	return elements[index], true
}

// appendUnique appends nodes not already present in seen, preserving order.
func appendUnique(dst []*html.Node, seen map[*html.Node]struct{}, nodes []*html.Node) []*html.Node {
	for _, n := range nodes {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		dst = append(dst, n)
	}
	return dst
}

// textOf collects descendant text, skipping script and style, with whitespace collapsed.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			sb.WriteString(node.Data)
			sb.WriteByte(' ')
			return
		case html.ElementNode:
			switch node.Data {
			case "script", "style", "noscript", "template":
				return
			}
		case html.CommentNode:
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func findTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTag(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// hasRoot reports whether the tree contains an html element with at least one child.
func hasRoot(doc *html.Node) bool {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "html" {
			return c.FirstChild != nil
		}
	}
	return false
}

// hasContent reports whether the body holds any element or non-blank text.
func hasContent(doc *html.Node) bool {
	body := findTag(doc, "body")
	if body == nil {
		return false
	}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}
