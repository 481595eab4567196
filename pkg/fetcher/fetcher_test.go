package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docs/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><main>
			<a href="guide.pdf">Guide</a>
			<a href="/files/manual.pdf#page=2">Manual</a>
			<a href="/files/manual.pdf">Manual again</a>
			<a href="/private/secret.pdf">Secret</a>
			<a href="missing.pdf">Missing</a>
			<a href="https://elsewhere.example/other.pdf">Elsewhere</a>
			<a href="/about">About</a>
		</main></body></html>`))
	})
	mux.HandleFunc("/docs/guide.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 guide"))
	})
	mux.HandleFunc("/files/manual.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 manual"))
	})
	mux.HandleFunc("/private/secret.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 secret"))
	})
	mux.HandleFunc("/big.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestFetch_SingleDocument(t *testing.T) {
	ts := newTestServer(t)
	f := NewWithConfig(FetcherConfig{RateLimit: 100})

	docs, err := f.Fetch(context.Background(), ts.URL+"/docs/guide.pdf")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "guide.pdf", docs[0].Name)
	assert.Equal(t, "%PDF-1.4 guide", string(docs[0].Content))
}

func TestFetch_FollowsPDFLinks(t *testing.T) {
	ts := newTestServer(t)

	var mu sync.Mutex
	var seen []string
	f := NewWithConfig(FetcherConfig{
		RateLimit:      100,
		FollowPDFLinks: true,
		IgnorePatterns: []string{"/private/"},
		OnProgress: func(url string) {
			mu.Lock()
			seen = append(seen, url)
			mu.Unlock()
		},
	})

	docs, err := f.Fetch(context.Background(), ts.URL+"/docs/")
	require.NoError(t, err)

	var names []string
	for _, d := range docs {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"docs", "guide.pdf", "manual.pdf"}, names)
	assert.Contains(t, seen, ts.URL+"/docs/missing.pdf")
}

func TestFetch_WithoutFollowing(t *testing.T) {
	ts := newTestServer(t)
	f := NewWithConfig(FetcherConfig{RateLimit: 100})

	docs, err := f.Fetch(context.Background(), ts.URL+"/docs/")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestFetch_Errors(t *testing.T) {
	ts := newTestServer(t)
	f := NewWithConfig(FetcherConfig{RateLimit: 100, MaxBytes: 1024})

	tests := []struct {
		name string
		url  string
	}{
		{name: "not found", url: ts.URL + "/nope.pdf"},
		{name: "too large", url: ts.URL + "/big.pdf"},
		{name: "unsupported scheme", url: "ftp://example.com/file.pdf"},
		{name: "malformed", url: "://bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), tt.url)
			assert.Error(t, err)
		})
	}
}

func TestDocumentName(t *testing.T) {
	ts := newTestServer(t)
	f := New()

	docs, err := f.Fetch(context.Background(), ts.URL+"/files/manual.pdf")
	require.NoError(t, err)
	assert.Equal(t, "manual.pdf", docs[0].Name)
}
