package crawler

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	ErrFetch       = errors.New("fetch failed")
	ErrCrawl       = errors.New("crawl failed")
	ErrNoAdapter   = errors.New("no adapter supports source")
	ErrPersistence = errors.New("persistence failed")
	ErrNotFound    = errors.New("not found")
	ErrQueueClosed = errors.New("queue closed")
)

// FetchError reports a non-2xx response, a timeout, or a network failure.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s failed", e.URL)
	}
}

// Unwrap exposes both the sentinel and the cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}

// CrawlError is an adapter-level failure.
type CrawlError struct {
	Adapter string
	Reason  string
	Err     error
}

func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Adapter, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Adapter, e.Reason)
}

// Unwrap exposes both the sentinel and the cause.
func (e *CrawlError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCrawl}
	}
	return []error{ErrCrawl, e.Err}
}

// NoAdapterError is returned when no registered adapter supports a source.
type NoAdapterError struct {
	SourceID   string
	SourceName string
}

func (e *NoAdapterError) Error() string {
	return fmt.Sprintf("no crawler found that supports source: %s (ID: %s)", e.SourceName, e.SourceID)
}

// Unwrap makes NoAdapterError match both ErrCrawl and ErrNoAdapter.
func (e *NoAdapterError) Unwrap() []error {
	return []error{ErrCrawl, ErrNoAdapter}
}

// PersistenceError wraps a storage failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
