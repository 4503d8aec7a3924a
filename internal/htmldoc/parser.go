// Package htmldoc parses HTML pages into a queryable document using one of two
// backends chosen by input size. Both backends expose the same Document and
// Element views so extraction code never needs to know which one ran.
package htmldoc

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Backend names the parsing strategy used for a document.
type Backend string

const (
	// BackendSelector parses with goquery and evaluates CSS selectors with cascadia.
	BackendSelector Backend = "selector"
	// BackendStreaming parses the body slice and evaluates translated XPath queries.
	BackendStreaming Backend = "streaming"
)

const (
	// StreamingThreshold is the input size above which the streaming backend is used.
	StreamingThreshold = 600_000
	// SelectorLimit caps the input handed to the selector backend.
	SelectorLimit = 550_000
	// MinLength is the smallest trimmed input accepted by Parse.
	MinLength = 100
)

// ErrParse is matched by every ParseError.
var ErrParse = errors.New("html parse failed")

// ParseError reports input that neither backend could turn into a document.
type ParseError struct {
	Length int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse html (%d bytes): %s: %v", e.Length, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse html (%d bytes): %s", e.Length, e.Reason)
}

// Unwrap exposes both ErrParse and the underlying cause.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Err}
}

// Document is a parsed page.
type Document interface {
	Find(selector string) []Element
	FindOne(selector string, index int) (Element, bool)
	Text() string
	Backend() Backend
}

// Element is a node inside a Document.
type Element interface {
	Find(selector string) []Element
	FindOne(selector string, index int) (Element, bool)
	// Text returns the recursive text content with whitespace collapsed.
	Text() string
	Attr(name string) (string, bool)
	Parent() (Element, bool)
	Tag() string
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used to report recovery attempts.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSelectionHook registers a callback invoked with the chosen backend and input size.
func WithSelectionHook(hook func(Backend, int)) Option {
	return func(p *Parser) {
		p.hook = hook
	}
}

// Parser turns raw HTML into a Document.
type Parser struct {
	logger *zap.Logger
	hook   func(Backend, int)
}

// New constructs a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses raw HTML with a default Parser.
func Parse(raw string) (Document, error) {
	return New().Parse(raw)
}

// SelectBackend picks the backend for an input of size bytes.
func SelectBackend(size int) Backend {
	if size > StreamingThreshold {
		return BackendStreaming
	}
	return BackendSelector
}

// Parse normalizes the input and parses it with the backend chosen by SelectBackend.
func (p *Parser) Parse(raw string) (Document, error) {
	input := normalize(raw)
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, &ParseError{Length: len(raw), Reason: "empty input"}
	}
	if len(trimmed) < MinLength {
		return nil, &ParseError{Length: len(raw), Reason: "input too short"}
	}

	size := len(input)
	backend := SelectBackend(size)
	if p.hook != nil {
		p.hook(backend, size)
	}

	if backend == BackendStreaming {
		return p.parseStreaming(input)
	}
	return p.parseSelector(truncateUTF8(input, SelectorLimit))
}

func normalize(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(s, "\x00", "")
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
