package adapters

import (
	"context"
	"net/http"
	"sync"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls []string
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.URL)
	if err, ok := f.errs[req.URL]; ok {
		return crawler.FetchResponse{}, err
	}
	body, ok := f.pages[req.URL]
	if !ok {
		return crawler.FetchResponse{URL: req.URL, StatusCode: http.StatusNotFound},
			&crawler.FetchError{URL: req.URL, StatusCode: http.StatusNotFound}
	}
	return crawler.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type countingWaiter struct {
	mu    sync.Mutex
	waits int
}

func (w *countingWaiter) Wait(ctx context.Context, _ string) error {
	w.mu.Lock()
	w.waits++
	w.mu.Unlock()
	return ctx.Err()
}

func (w *countingWaiter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.waits
}

// htmlPage wraps body in a document long enough to pass the parser's minimum.
func htmlPage(title, body string) string {
	return "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>" + title +
		"</title><meta name=\"description\" content=\"news front page used in adapter tests\"></head><body>" +
		body + "</body></html>"
}
