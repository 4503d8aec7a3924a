package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/news-crawler/internal/indexer"
)

type recordedRequest struct {
	method string
	path   string
	body   map[string]any
}

func newFakeCluster(t *testing.T, status int) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		rec := recordedRequest{method: r.Method, path: r.URL.Path}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.body)
		}
		mu.Lock()
		reqs = append(reqs, rec)
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func TestIndexDocumentPutsByArticleID(t *testing.T) {
	t.Parallel()

	srv, requests := newFakeCluster(t, http.StatusCreated)
	client, err := New(Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	doc := indexer.Document{ID: "a-1", Title: "Headline", SourceName: "BBC", Metadata: map[string]any{"crawler": "bbc"}}
	require.NoError(t, client.IndexDocument(context.Background(), "a-1", doc))

	got := requests()
	require.Len(t, got, 1)
	require.Equal(t, http.MethodPut, got[0].method)
	require.Equal(t, "/articles/_doc/a-1", got[0].path)
	require.Equal(t, "Headline", got[0].body["title"])
	require.Equal(t, "BBC", got[0].body["source_name"])
}

func TestIndexDocumentReportsClusterErrors(t *testing.T) {
	t.Parallel()

	srv, _ := newFakeCluster(t, http.StatusBadRequest)
	client, err := New(Config{Addresses: []string{srv.URL}, Index: "news"})
	require.NoError(t, err)

	err = client.IndexDocument(context.Background(), "a-2", indexer.Document{ID: "a-2"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "index document a-2")
}

func TestPing(t *testing.T) {
	t.Parallel()

	srv, requests := newFakeCluster(t, http.StatusOK)
	client, err := New(Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	require.NoError(t, client.Ping(context.Background()))
	require.Equal(t, http.MethodHead, requests()[0].method)
}
